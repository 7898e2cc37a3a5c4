// Package service implements the lifecycle of the personhood registry:
// recognition, paged onboarding, ring construction, suspension sessions, key
// migration and consolidation. All operations are atomic against the store
// and return domain sentinel errors from the models package.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"personring/internal/people/crypto"
	"personring/internal/people/metrics"
	"personring/internal/people/models"
	"personring/internal/people/store"
)

// Config fixes the geometry of rings and queue pages.
type Config struct {
	// MaxRingSize is the number of keys a ring holds before a new one opens.
	MaxRingSize uint32
	// QueuePageSize is the capacity of one onboarding queue page. Must be at
	// least MaxRingSize so one page can always fill a ring.
	QueuePageSize uint32
	// MergeDivisor sets the ring merge eligibility threshold: a ring may be
	// merged while its total is below MaxRingSize/MergeDivisor. Zero means 2.
	MergeDivisor uint32
}

// Service orchestrates the personhood registry lifecycle.
type Service struct {
	cfg     Config
	store   *store.Memory
	crypto  crypto.Ring
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New constructs the people service and validates the configured geometry
// against the onboarding size already held by the store.
func New(cfg Config, st *store.Memory, cr crypto.Ring, logger *slog.Logger, m *metrics.Metrics) (*Service, error) {
	if cfg.MaxRingSize == 0 {
		return nil, fmt.Errorf("max ring size must hold at least one person")
	}
	if cfg.QueuePageSize < cfg.MaxRingSize {
		return nil, fmt.Errorf("queue page size %d must be at least the max ring size %d",
			cfg.QueuePageSize, cfg.MaxRingSize)
	}
	if cfg.MergeDivisor == 0 {
		cfg.MergeDivisor = 2
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Service{cfg: cfg, store: st, crypto: cr, logger: logger, metrics: m}
	err := st.View(context.Background(), func(state *store.State) error {
		if !s.onboardingSizeValid(state.OnboardingSize) {
			return models.ErrInvalidOnboardingSize
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("onboarding size: %w", err)
	}
	return s, nil
}

// MaxRingSize exposes the ring capacity, used by the scheduler to price
// worst-case work.
func (s *Service) MaxRingSize() uint32 { return s.cfg.MaxRingSize }

// The onboarding size must divide the ring capacity so a full cohort always
// fits the open ring and ring totals stay aligned to cohort boundaries.
func (s *Service) onboardingSizeValid(n uint32) bool {
	return n > 0 && n <= s.cfg.MaxRingSize && s.cfg.MaxRingSize%n == 0
}

// ReserveNewID allocates the next personal id and marks it reserved.
func (s *Service) ReserveNewID(ctx context.Context) (models.PersonalID, error) {
	var id models.PersonalID
	err := s.store.Update(ctx, func(st *store.State) error {
		id = st.NextPersonalID
		st.NextPersonalID++
		st.Reserved[id] = struct{}{}
		return nil
	})
	return id, err
}

// CancelIDReservation releases a reservation that was never confirmed.
func (s *Service) CancelIDReservation(ctx context.Context, id models.PersonalID) error {
	return s.store.Update(ctx, func(st *store.State) error {
		if _, ok := st.Reserved[id]; !ok {
			return models.ErrIDNotReserved
		}
		delete(st.Reserved, id)
		return nil
	})
}

// RenewIDReservation re-acquires a previously released id slot. Renewal is
// only valid for ids below the allocation counter that are neither reserved
// nor confirmed.
func (s *Service) RenewIDReservation(ctx context.Context, id models.PersonalID) error {
	return s.store.Update(ctx, func(st *store.State) error {
		if id >= st.NextPersonalID {
			return models.ErrReservationCannotRenew
		}
		if _, ok := st.Reserved[id]; ok {
			return models.ErrReservationCannotRenew
		}
		if _, ok := st.People[id]; ok {
			return models.ErrReservationCannotRenew
		}
		st.Reserved[id] = struct{}{}
		return nil
	})
}

// RecognizePersonhood confirms a reserved id. Supplying a key binds it and
// enqueues the person for onboarding; supplying nil resumes a suspended
// person under their existing key.
func (s *Service) RecognizePersonhood(ctx context.Context, id models.PersonalID, key *models.MemberKey) error {
	err := s.store.Update(ctx, func(st *store.State) error {
		if key != nil {
			return s.insertKey(st, id, *key)
		}
		return s.resumePersonhood(st, id)
	})
	if err != nil {
		return err
	}
	s.metrics.AddRecognized(1)
	return nil
}

// RecognizeNewPerson reserves a fresh id and recognizes it under the given
// key in one atomic operation.
func (s *Service) RecognizeNewPerson(ctx context.Context, key models.MemberKey) (models.PersonalID, error) {
	var id models.PersonalID
	err := s.store.Update(ctx, func(st *store.State) error {
		id = st.NextPersonalID
		st.NextPersonalID++
		st.Reserved[id] = struct{}{}
		return s.insertKey(st, id, key)
	})
	if err != nil {
		return 0, err
	}
	s.metrics.AddRecognized(1)
	return id, nil
}

// ForceRecognizePersonhood recognizes a batch of people without further
// checks beyond key uniqueness. The whole batch fails on any duplicate,
// including duplicates internal to the batch.
func (s *Service) ForceRecognizePersonhood(ctx context.Context, keys []models.MemberKey) ([]models.PersonalID, error) {
	ids := make([]models.PersonalID, 0, len(keys))
	err := s.store.Update(ctx, func(st *store.State) error {
		for _, key := range keys {
			id := st.NextPersonalID
			st.NextPersonalID++
			st.Reserved[id] = struct{}{}
			if err := s.insertKey(st, id, key); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.AddRecognized(len(ids))
	return ids, nil
}

// SetOnboardingSize changes the cohort size for future onboarding rounds.
func (s *Service) SetOnboardingSize(ctx context.Context, size uint32) error {
	return s.store.Update(ctx, func(st *store.State) error {
		if !s.onboardingSizeValid(size) {
			return models.ErrInvalidOnboardingSize
		}
		st.OnboardingSize = size
		return nil
	})
}

// insertKey binds a first-time key to a reserved id and enqueues it.
func (s *Service) insertKey(st *store.State, id models.PersonalID, key models.MemberKey) error {
	if _, inUse := st.Keys[key]; inUse {
		return models.ErrKeyAlreadyInUse
	}
	if _, ok := st.Reserved[id]; !ok {
		return models.ErrIDNotReserved
	}
	delete(st.Reserved, id)
	return s.pushToOnboardingQueue(st, id, key, nil)
}

// resumePersonhood re-enqueues a suspended person under their existing key.
func (s *Service) resumePersonhood(st *store.State, id models.PersonalID) error {
	record, ok := st.People[id]
	if !ok {
		return models.ErrNotPerson
	}
	if !record.Position.Suspended() {
		return models.ErrNotSuspended
	}
	if owner, ok := st.Keys[record.Key]; !ok || owner != id {
		return models.ErrNoKey
	}
	return s.pushToOnboardingQueue(st, id, record.Key, record.Account)
}
