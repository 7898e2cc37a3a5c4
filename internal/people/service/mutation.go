package service

import (
	"context"
	"slices"
	"sort"

	"github.com/google/uuid"

	"personring/internal/people/models"
	"personring/internal/people/store"
)

// StartMutationSession opens the process-wide mutation session and returns
// its token. Suspensions are only accepted against this token until the
// session is closed again.
func (s *Service) StartMutationSession(ctx context.Context) (uuid.UUID, error) {
	token := uuid.New()
	err := s.store.Update(ctx, func(st *store.State) error {
		next, err := st.RingsState.StartMutationSession(token)
		if err != nil {
			return err
		}
		st.RingsState = next
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return token, nil
}

// EndMutationSession closes the session identified by token. If staged key
// migrations or pending suspensions remain, the state moves to the key
// migration phase; otherwise it returns to append-only.
func (s *Service) EndMutationSession(ctx context.Context, token uuid.UUID) error {
	return s.store.Update(ctx, func(st *store.State) error {
		pendingWork := len(st.KeyMigrations) > 0
		if !pendingWork {
			for _, pending := range st.PendingSuspensions {
				if len(pending) > 0 {
					pendingWork = true
					break
				}
			}
		}
		next, err := st.RingsState.EndMutationSession(token, pendingWork)
		if err != nil {
			return err
		}
		st.RingsState = next
		return nil
	})
}

// SuspendPersonhood marks the given people suspended under an open session.
// Included members have their ring position queued for physical removal;
// onboarding members are dropped from their queue page immediately, since
// the queue carries no commitment and removal there is cheap. Any account
// binding is torn down either way.
func (s *Service) SuspendPersonhood(ctx context.Context, token uuid.UUID, ids []models.PersonalID) error {
	err := s.store.Update(ctx, func(st *store.State) error {
		if !st.RingsState.Mutating() || st.RingsState.Token != token {
			return models.ErrNoMutationSession
		}
		for _, id := range ids {
			if err := suspendOne(st, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.metrics.AddSuspended(len(ids))
	return nil
}

func suspendOne(st *store.State, id models.PersonalID) error {
	record, ok := st.People[id]
	if !ok {
		return models.ErrInvalidSuspensions
	}
	switch record.Position.Kind {
	case models.PositionIncluded:
		if err := queuePendingSuspension(st, record.Position.RingIndex, record.Position.RingPosition); err != nil {
			return err
		}
	case models.PositionOnboarding:
		page := st.QueuePages[record.Position.QueuePage]
		idx := slices.Index(page, record.Key)
		if idx < 0 {
			return models.ErrInvalidSuspensions
		}
		st.QueuePages[record.Position.QueuePage] = slices.Delete(page, idx, idx+1)
	default:
		// Already suspended.
		return models.ErrInvalidSuspensions
	}

	record.Position = models.SuspendedPosition()
	if record.Account != nil {
		delete(st.Accounts, *record.Account)
		record.Account = nil
	}
	return nil
}

// queuePendingSuspension inserts a ring-local position into the ring's
// pending-removal list, keeping it strictly ascending and duplicate-free.
func queuePendingSuspension(st *store.State, ring models.RingIndex, position uint32) error {
	pending := st.PendingSuspensions[ring]
	idx := sort.Search(len(pending), func(i int) bool { return pending[i] >= position })
	if idx < len(pending) && pending[idx] == position {
		return models.ErrInvalidSuspensions
	}
	st.PendingSuspensions[ring] = slices.Insert(pending, idx, position)
	return nil
}
