package service

import (
	"context"
	"slices"

	"personring/internal/people/models"
	"personring/internal/people/store"
)

// MigrateOnboardingKey swaps the key of a person still in the onboarding
// queue. The swap is immediate and in place: the queue carries no commitment,
// so nothing downstream depends on the old key.
func (s *Service) MigrateOnboardingKey(ctx context.Context, id models.PersonalID, newKey models.MemberKey) error {
	return s.store.Update(ctx, func(st *store.State) error {
		record, err := migrationTarget(st, id, newKey)
		if err != nil {
			return err
		}
		if !record.Position.Onboarding() {
			return models.ErrInvalidKeyMigration
		}

		page := st.QueuePages[record.Position.QueuePage]
		idx := slices.Index(page, record.Key)
		if idx < 0 {
			return models.ErrNoKey
		}
		delete(st.Keys, record.Key)
		page[idx] = newKey
		record.Key = newKey
		st.Keys[newKey] = id
		return nil
	})
}

// MigrateIncludedKey stages a replacement key for a person already committed
// to a ring. Folding the new key in requires the same costly rebuild as any
// removal, so the old key stays authoritative and the swap is deferred to the
// next key migration phase. Restaging releases the previously staged key.
func (s *Service) MigrateIncludedKey(ctx context.Context, id models.PersonalID, newKey models.MemberKey) error {
	return s.store.Update(ctx, func(st *store.State) error {
		record, err := migrationTarget(st, id, newKey)
		if err != nil {
			return err
		}
		if !record.Position.Included() {
			return models.ErrInvalidKeyMigration
		}

		if staged, ok := st.KeyMigrations[id]; ok {
			delete(st.Keys, staged)
		}
		st.KeyMigrations[id] = newKey
		record.Position.ScheduledForRemoval = true
		st.Keys[newKey] = id
		return nil
	})
}

// migrationTarget validates the common preconditions of both migration calls.
func migrationTarget(st *store.State, id models.PersonalID, newKey models.MemberKey) (*models.PersonRecord, error) {
	if owner, inUse := st.Keys[newKey]; inUse {
		if owner == id {
			return nil, models.ErrSameKey
		}
		return nil, models.ErrKeyAlreadyInUse
	}
	record, ok := st.People[id]
	if !ok {
		return nil, models.ErrNotPerson
	}
	if record.Position.Suspended() {
		return nil, models.ErrSuspended
	}
	return record, nil
}

// MigrateKeys drains up to limit staged key migrations in ascending id
// order. Each drained entry retires the old key, queues the vacated ring
// position for removal and re-enters the person at the queue tail under the
// new key: rotation is structurally "retire + re-onboard". When the staging
// queue is empty the key migration phase closes.
//
// The number of drained entries is returned so the scheduler can charge the
// actual work done.
func (s *Service) MigrateKeys(ctx context.Context, limit int) (int, error) {
	drained := 0
	err := s.store.Update(ctx, func(st *store.State) error {
		if !st.RingsState.KeyMigration() {
			return models.ErrNoMutationSession
		}

		ids := make([]models.PersonalID, 0, len(st.KeyMigrations))
		for id := range st.KeyMigrations {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		if len(ids) > limit {
			ids = ids[:limit]
		}

		for _, id := range ids {
			newKey := st.KeyMigrations[id]
			delete(st.KeyMigrations, id)
			if err := s.migrateOne(st, id, newKey); err != nil {
				return err
			}
			drained++
		}

		if len(st.KeyMigrations) == 0 {
			next, err := st.RingsState.EndKeyMigration()
			if err != nil {
				return err
			}
			st.RingsState = next
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.metrics.AddKeysMigrated(drained)
	return drained, nil
}

// migrateOne enacts a single staged migration. Entries whose person no
// longer sits in a ring awaiting removal are dropped: the staged key is
// released and nothing else changes.
func (s *Service) migrateOne(st *store.State, id models.PersonalID, newKey models.MemberKey) error {
	record, ok := st.People[id]
	if !ok {
		delete(st.Keys, newKey)
		s.logger.Info("key migration skipped, person record missing", "personal_id", uint64(id))
		return nil
	}
	pos := record.Position
	if !pos.Included() || !pos.ScheduledForRemoval {
		delete(st.Keys, newKey)
		s.logger.Info("key migration skipped, person no longer scheduled for removal",
			"personal_id", uint64(id))
		return nil
	}

	if err := queuePendingSuspension(st, pos.RingIndex, pos.RingPosition); err != nil {
		// The vacated position is already queued for removal; keep the old
		// key authoritative and release the staged one.
		delete(st.Keys, newKey)
		s.logger.Info("key migration skipped, position already pending removal",
			"personal_id", uint64(id))
		return nil
	}
	delete(st.Keys, record.Key)
	return s.pushToOnboardingQueue(st, id, newKey, record.Account)
}

// PendingMigration returns the staged replacement key for a person, if any.
func (s *Service) PendingMigration(ctx context.Context, id models.PersonalID) (*models.MemberKey, error) {
	var staged *models.MemberKey
	err := s.store.View(ctx, func(st *store.State) error {
		if _, ok := st.People[id]; !ok {
			return models.ErrNotPerson
		}
		if key, ok := st.KeyMigrations[id]; ok {
			staged = &key
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return staged, nil
}
