package handler

import (
	"errors"

	"personring/internal/people/models"
	dErrors "personring/pkg/domain-errors"
)

// toDomainError translates service sentinels into coded errors for the
// transport layer. Anything unrecognized is reported as internal without
// leaking its message.
func toDomainError(err error) error {
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	switch {
	case errors.Is(err, models.ErrNotPerson),
		errors.Is(err, models.ErrInvalidRing),
		errors.Is(err, models.ErrInvalidAccount):
		return dErrors.Wrap(err, dErrors.CodeNotFound, err.Error())
	case errors.Is(err, models.ErrInvalidSuspensions),
		errors.Is(err, models.ErrInvalidOnboardingSize):
		return dErrors.Wrap(err, dErrors.CodeValidation, err.Error())
	case errors.Is(err, models.ErrStillFresh),
		errors.Is(err, models.ErrIncomplete),
		errors.Is(err, models.ErrNoMutationSession),
		errors.Is(err, models.ErrSessionInProgress),
		errors.Is(err, models.ErrSuspensionSessionInProgress),
		errors.Is(err, models.ErrKeyAlreadyInUse),
		errors.Is(err, models.ErrAccountInUse),
		errors.Is(err, models.ErrSameKey),
		errors.Is(err, models.ErrQueueFull),
		errors.Is(err, models.ErrNoKey),
		errors.Is(err, models.ErrSuspended),
		errors.Is(err, models.ErrNotSuspended),
		errors.Is(err, models.ErrInvalidKeyMigration),
		errors.Is(err, models.ErrRingAboveMergeThreshold),
		errors.Is(err, models.ErrSuspensionsPending),
		errors.Is(err, models.ErrIDNotReserved),
		errors.Is(err, models.ErrReservationCannotRenew):
		return dErrors.Wrap(err, dErrors.CodeConflict, err.Error())
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
	}
}
