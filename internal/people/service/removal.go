package service

import (
	"context"
	"slices"

	"personring/internal/people/models"
	"personring/internal/people/store"
)

// RingsWithPendingSuspensions returns, in index order, the rings that hold
// keys awaiting physical removal.
func (s *Service) RingsWithPendingSuspensions(ctx context.Context) ([]models.RingIndex, error) {
	var rings []models.RingIndex
	err := s.store.View(ctx, func(st *store.State) error {
		for ix, pending := range st.PendingSuspensions {
			if len(pending) > 0 {
				rings = append(rings, ix)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(rings)
	return rings, nil
}

// CanRemoveSuspendedKeys reports whether removal is currently legal for the
// ring: the registry must be append-only with no staged migrations left, and
// the ring must actually have pending suspensions.
func (s *Service) CanRemoveSuspendedKeys(ctx context.Context, ringIndex models.RingIndex) (bool, error) {
	ok := false
	err := s.store.View(ctx, func(st *store.State) error {
		ok = st.RingsState.AppendOnly() &&
			len(st.KeyMigrations) == 0 &&
			len(st.PendingSuspensions[ringIndex]) > 0
		return nil
	})
	return ok, err
}

// RemoveSuspendedKeys physically deletes the ring's pending positions from
// its table and compacts it. Deletion runs from the highest index down so
// earlier deletions never shift a not-yet-processed index; every surviving
// member's record is patched to its new position. The accumulator scheme
// supports efficient append but not deletion, so Included resets to zero and
// the whole commitment must be rebuilt. Cost is proportional to ring size
// and the operation is indivisible: callers charge it as one unit of work.
func (s *Service) RemoveSuspendedKeys(ctx context.Context, ringIndex models.RingIndex) error {
	removed := 0
	err := s.store.Update(ctx, func(st *store.State) error {
		if !st.RingsState.AppendOnly() {
			return models.ErrSuspensionSessionInProgress
		}
		if len(st.KeyMigrations) > 0 {
			return models.ErrSuspensionsPending
		}
		pending := st.PendingSuspensions[ringIndex]
		if len(pending) == 0 {
			return models.ErrInvalidSuspensions
		}
		ring, ok := st.Rings[ringIndex]
		if !ok {
			return models.ErrInvalidRing
		}

		keys := ring.Keys
		for i := len(pending) - 1; i >= 0; i-- {
			idx := int(pending[i])
			if idx >= len(keys) {
				return models.ErrInvalidSuspensions
			}
			keys = slices.Delete(keys, idx, idx+1)
		}

		// Re-index every surviving member against the compacted table.
		for position, key := range keys {
			id, ok := st.Keys[key]
			if !ok {
				return models.ErrNotPerson
			}
			record, ok := st.People[id]
			if !ok {
				return models.ErrNotPerson
			}
			record.Position.RingPosition = uint32(position)
		}

		removed = len(pending)
		ring.Keys = keys
		ring.Status.Total -= uint32(removed)
		ring.Status.Included = 0
		ring.Accumulator = nil
		st.ActiveMembers -= uint32(removed)
		delete(st.PendingSuspensions, ringIndex)
		return nil
	})
	if err != nil {
		return err
	}
	s.metrics.AddRemoved(removed)
	s.publishActiveMembers(ctx)
	return nil
}
