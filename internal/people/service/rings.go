package service

import (
	"context"

	"personring/internal/people/models"
	"personring/internal/people/store"
)

// availableRing returns the index of the ring currently accepting members,
// advancing past a full ring if one is found.
func (s *Service) availableRing(st *store.State) models.RingIndex {
	ring := st.RingAt(st.CurrentRing)
	if uint32(len(ring.Keys)) >= s.cfg.MaxRingSize {
		st.CurrentRing++
	}
	return st.CurrentRing
}

// OnboardPeople pops one cohort of keys FIFO from the onboarding queue and
// appends them to the active ring's table. It fails with ErrIncomplete unless
// the queue holds at least one full cohort and the active ring is not waiting
// on suspension cleanup. New keys are not folded into any commitment here;
// that is BuildRing's job.
func (s *Service) OnboardPeople(ctx context.Context) error {
	onboarded := 0
	err := s.store.Update(ctx, func(st *store.State) error {
		if !st.RingsState.AppendOnly() {
			return models.ErrIncomplete
		}
		ringIndex := s.availableRing(st)
		if len(st.PendingSuspensions[ringIndex]) > 0 {
			return models.ErrIncomplete
		}

		ring := st.RingAt(ringIndex)
		openSlots := s.cfg.MaxRingSize - ring.Status.Total
		// The batch is exactly one cohort, except when suspension cleanup
		// shrank the active ring below a cohort boundary: then the batch tops
		// the ring off so it can close and a fresh one can open.
		batchSize := min(st.OnboardingSize, openSlots)
		if uint32(st.QueuedKeyCount()) < st.OnboardingSize {
			return models.ErrIncomplete
		}

		batch := popOnboardingBatch(st, int(batchSize))
		for _, key := range batch {
			id, ok := st.Keys[key]
			if !ok {
				return models.ErrNotPerson
			}
			record, ok := st.People[id]
			if !ok {
				return models.ErrNotPerson
			}
			record.Position = models.IncludedAt(ringIndex, uint32(len(ring.Keys)))
			ring.Keys = append(ring.Keys, key)
		}
		ring.Status.Total += batchSize
		st.ActiveMembers += batchSize
		if ring.Status.Total == s.cfg.MaxRingSize {
			st.CurrentRing++
		}
		onboarded = len(batch)
		return nil
	})
	if err != nil {
		return err
	}
	s.metrics.AddOnboarded(onboarded)
	s.publishActiveMembers(ctx)
	return nil
}

// ShouldBuildRing reports how many uncommitted keys a build may fold into the
// ring's commitment, capped at limit. It returns ErrStillFresh when the ring
// is fully committed or building is currently not allowed.
func (s *Service) ShouldBuildRing(ctx context.Context, ringIndex models.RingIndex, limit uint32) (uint32, error) {
	var toInclude uint32
	err := s.store.View(ctx, func(st *store.State) error {
		toInclude = s.buildableCount(st, ringIndex, limit)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if toInclude == 0 {
		return 0, models.ErrStillFresh
	}
	return toInclude, nil
}

func (s *Service) buildableCount(st *store.State, ringIndex models.RingIndex, limit uint32) uint32 {
	// Commitments may not change while a session is open or migrations are
	// draining, and never while the ring still has keys awaiting removal.
	if !st.RingsState.AppendOnly() {
		return 0
	}
	if len(st.PendingSuspensions[ringIndex]) > 0 {
		return 0
	}
	ring, ok := st.Rings[ringIndex]
	if !ok {
		return 0
	}
	return min(ring.Status.Total-ring.Status.Included, limit)
}

// BuildRing extends the ring's commitment over up to limit additional keys
// and stamps a fresh revision. A limit of zero means the full ring capacity.
func (s *Service) BuildRing(ctx context.Context, ringIndex models.RingIndex, limit uint32) error {
	if limit == 0 {
		limit = s.cfg.MaxRingSize
	}
	err := s.store.Update(ctx, func(st *store.State) error {
		toInclude := s.buildableCount(st, ringIndex, limit)
		if toInclude == 0 {
			return models.ErrStillFresh
		}
		ring := st.RingAt(ringIndex)

		acc := ring.Accumulator
		if acc == nil {
			acc = s.crypto.StartAccumulator()
		}
		from := ring.Status.Included
		acc, err := s.crypto.ExtendAccumulator(acc, ring.Keys[from:from+toInclude])
		if err != nil {
			return err
		}

		revision := uint32(0)
		if ring.Root != nil {
			revision = ring.Root.Revision + 1
		}
		ring.Accumulator = acc
		ring.Root = &models.RingRoot{
			Commitment: s.crypto.FinishAccumulator(acc),
			Revision:   revision,
		}
		ring.Status.Included += toInclude
		return nil
	})
	if err != nil {
		return err
	}
	s.metrics.IncRingsBuilt()
	return nil
}

// MergeRings folds every key of the donor ring into the base ring. Both rings
// must be closed for onboarding, clean of pending suspensions and below the
// merge threshold. The base ring's commitment is untouched: the donated keys
// arrive as uncommitted keys and join the root on the next build.
func (s *Service) MergeRings(ctx context.Context, baseIndex, donorIndex models.RingIndex) error {
	err := s.store.Update(ctx, func(st *store.State) error {
		if !st.RingsState.AppendOnly() {
			return models.ErrSuspensionSessionInProgress
		}
		if baseIndex == donorIndex || baseIndex == st.CurrentRing || donorIndex == st.CurrentRing {
			return models.ErrInvalidRing
		}

		threshold := s.cfg.MaxRingSize / s.cfg.MergeDivisor
		base := st.RingAt(baseIndex)
		donor := st.RingAt(donorIndex)
		if uint32(len(base.Keys)) >= threshold || uint32(len(donor.Keys)) >= threshold {
			return models.ErrRingAboveMergeThreshold
		}
		if len(st.PendingSuspensions[baseIndex]) > 0 || len(st.PendingSuspensions[donorIndex]) > 0 {
			return models.ErrSuspensionsPending
		}

		for _, key := range donor.Keys {
			id, ok := st.Keys[key]
			if !ok {
				return models.ErrNotPerson
			}
			record, ok := st.People[id]
			if !ok {
				return models.ErrNotPerson
			}
			position := models.IncludedAt(baseIndex, uint32(len(base.Keys)))
			// A staged migration survives the merge; only the coordinates
			// change.
			position.ScheduledForRemoval = record.Position.ScheduledForRemoval
			record.Position = position
			base.Keys = append(base.Keys, key)
		}
		base.Status.Total += donor.Status.Total
		delete(st.Rings, donorIndex)
		return nil
	})
	if err != nil {
		return err
	}
	s.metrics.IncRingsMerged()
	return nil
}
