package models

import "errors"

// Domain sentinel errors. Services return these so callers and handlers can
// match failures with errors.Is and translate them for transport.
var (
	// Precondition not met.
	ErrStillFresh                  = errors.New("ring root is still fresh")
	ErrIncomplete                  = errors.New("not enough queued keys to onboard")
	ErrNoMutationSession           = errors.New("no mutation session in progress")
	ErrSessionInProgress           = errors.New("a mutation session is already in progress")
	ErrSuspensionSessionInProgress = errors.New("a suspension session is in progress")

	// Conflicting state.
	ErrKeyAlreadyInUse = errors.New("key already in use by another person")
	ErrAccountInUse    = errors.New("account is already in use")
	ErrSameKey         = errors.New("record already uses this key")
	ErrQueueFull       = errors.New("onboarding queue is full")

	// Not found or invalid reference.
	ErrNotPerson          = errors.New("identifier does not represent a person")
	ErrNoKey              = errors.New("person has no associated key")
	ErrInvalidRing        = errors.New("invalid ring for this operation")
	ErrInvalidSuspensions = errors.New("invalid suspension targets")
	ErrInvalidAccount     = errors.New("account is not known")

	// Policy violation.
	ErrSuspended               = errors.New("personhood is suspended")
	ErrNotSuspended            = errors.New("personhood is not suspended")
	ErrInvalidKeyMigration     = errors.New("invalid state for key migration")
	ErrRingAboveMergeThreshold = errors.New("ring is above the merge threshold")
	ErrSuspensionsPending      = errors.New("ring has suspensions pending removal")
	ErrInvalidOnboardingSize   = errors.New("onboarding size is incompatible with ring capacity")

	// Reservation lifecycle.
	ErrIDNotReserved          = errors.New("personal id is not reserved")
	ErrReservationCannotRenew = errors.New("personal id reservation cannot be renewed")
)
