package service

import (
	"context"
	"slices"

	"personring/internal/people/models"
	"personring/internal/people/store"
)

// RingView is a point-in-time copy of one ring's table, status and root.
type RingView struct {
	models.RingStatus

	Index models.RingIndex
	Keys  []models.MemberKey
	Root  *models.RingRoot
}

// StatusView summarizes the registry for the read surface and the scheduler.
type StatusView struct {
	Phase              models.SessionPhase
	CurrentRing        models.RingIndex
	ActiveMembers      uint32
	OnboardingSize     uint32
	QueueHead          models.PageIndex
	QueueTail          models.PageIndex
	QueuedKeys         int
	StagedMigrations   int
	PendingSuspensions int
}

// Person returns a copy of a person's record.
func (s *Service) Person(ctx context.Context, id models.PersonalID) (*models.PersonRecord, error) {
	var record *models.PersonRecord
	err := s.store.View(ctx, func(st *store.State) error {
		r, ok := st.People[id]
		if !ok {
			return models.ErrNotPerson
		}
		record = r.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// RingInfo returns a copy of a ring's key table, status and root.
func (s *Service) RingInfo(ctx context.Context, ringIndex models.RingIndex) (*RingView, error) {
	var view *RingView
	err := s.store.View(ctx, func(st *store.State) error {
		ring, ok := st.Rings[ringIndex]
		if !ok {
			return models.ErrInvalidRing
		}
		view = &RingView{
			RingStatus: ring.Status,
			Index:      ringIndex,
			Keys:       slices.Clone(ring.Keys),
		}
		if ring.Root != nil {
			root := *ring.Root
			view.Root = &root
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// QueuePage returns the keys currently held on one onboarding queue page.
func (s *Service) QueuePage(ctx context.Context, page models.PageIndex) ([]models.MemberKey, error) {
	var keys []models.MemberKey
	err := s.store.View(ctx, func(st *store.State) error {
		keys = slices.Clone(st.QueuePages[page])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Status returns a summary of the registry state.
func (s *Service) Status(ctx context.Context) (StatusView, error) {
	var view StatusView
	err := s.store.View(ctx, func(st *store.State) error {
		view = StatusView{
			Phase:            st.RingsState.Phase,
			CurrentRing:      st.CurrentRing,
			ActiveMembers:    st.ActiveMembers,
			OnboardingSize:   st.OnboardingSize,
			QueueHead:        st.QueueHead,
			QueueTail:        st.QueueTail,
			QueuedKeys:       st.QueuedKeyCount(),
			StagedMigrations: len(st.KeyMigrations),
		}
		for _, pending := range st.PendingSuspensions {
			view.PendingSuspensions += len(pending)
		}
		return nil
	})
	return view, err
}

func (s *Service) publishActiveMembers(ctx context.Context) {
	_ = s.store.View(ctx, func(st *store.State) error {
		s.metrics.SetActiveMembers(st.ActiveMembers)
		return nil
	})
}
