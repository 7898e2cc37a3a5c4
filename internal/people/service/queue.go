package service

import (
	"context"
	"slices"

	"personring/internal/people/models"
	"personring/internal/people/store"
)

// pushToOnboardingQueue appends a key to the queue tail, opening a fresh page
// when the tail page is full, and (re)writes the person's record to point at
// the queue.
func (s *Service) pushToOnboardingQueue(st *store.State, id models.PersonalID, key models.MemberKey, account *string) error {
	tail := st.QueueTail
	page := st.QueuePages[tail]
	if uint32(len(page)) >= s.cfg.QueuePageSize {
		next := tail.Next()
		// The tail may never catch up with the head: that would alias two
		// live pages onto one index.
		if next == st.QueueHead {
			return models.ErrQueueFull
		}
		tail = next
		page = nil
	}
	st.QueuePages[tail] = append(page, key)
	st.QueueTail = tail

	st.Keys[key] = id
	st.People[id] = &models.PersonRecord{
		Key:      key,
		Position: models.OnboardingAt(tail),
		Account:  account,
	}
	return nil
}

// ShouldMergeQueuePages reports whether the two oldest queue pages can be
// repacked into one.
func (s *Service) ShouldMergeQueuePages(ctx context.Context) (bool, error) {
	mergeable := false
	err := s.store.View(ctx, func(st *store.State) error {
		mergeable = s.queuePagesMergeable(st)
		return nil
	})
	return mergeable, err
}

func (s *Service) queuePagesMergeable(st *store.State) bool {
	if !st.RingsState.AppendOnly() {
		return false
	}
	if st.QueueHead == st.QueueTail {
		return false
	}
	first := st.QueuePages[st.QueueHead]
	second := st.QueuePages[st.QueueHead.Next()]
	return uint32(len(first)+len(second)) <= s.cfg.QueuePageSize
}

// MergeQueuePages moves the people on the head page to the front of the
// following page, freeing the head page. Suspensions hollow pages out over
// time; without this repacking two sparse head pages could hold fewer than
// one cohort between them and stall onboarding forever.
func (s *Service) MergeQueuePages(ctx context.Context) error {
	err := s.store.Update(ctx, func(st *store.State) error {
		if !s.queuePagesMergeable(st) {
			return models.ErrIncomplete
		}
		oldHead := st.QueueHead
		newHead := oldHead.Next()
		first := st.QueuePages[oldHead]
		second := st.QueuePages[newHead]

		for _, key := range first {
			id, ok := st.Keys[key]
			if !ok {
				return models.ErrNotPerson
			}
			record, ok := st.People[id]
			if !ok {
				return models.ErrNotPerson
			}
			record.Position = models.OnboardingAt(newHead)
		}

		merged := make([]models.MemberKey, 0, len(first)+len(second))
		merged = append(merged, first...)
		merged = append(merged, second...)
		st.QueuePages[newHead] = merged
		delete(st.QueuePages, oldHead)
		st.QueueHead = newHead
		return nil
	})
	if err != nil {
		return err
	}
	s.metrics.IncQueuePagesMerged()
	return nil
}

// popOnboardingBatch removes exactly n keys FIFO from the queue head,
// draining and freeing head pages as they empty.
func popOnboardingBatch(st *store.State, n int) []models.MemberKey {
	batch := make([]models.MemberKey, 0, n)
	for n > 0 {
		page := st.QueuePages[st.QueueHead]
		take := min(len(page), n)
		batch = append(batch, page[:take]...)
		n -= take
		if take == len(page) {
			delete(st.QueuePages, st.QueueHead)
			if st.QueueHead == st.QueueTail {
				break
			}
			st.QueueHead = st.QueueHead.Next()
		} else {
			st.QueuePages[st.QueueHead] = slices.Clone(page[take:])
		}
	}
	return batch
}
