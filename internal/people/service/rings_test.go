package service

import (
	"math"

	"personring/internal/people/models"
	"personring/internal/people/store"
)

func (s *ServiceSuite) TestOnboardPeople() {
	s.Run("requires a full cohort", func() {
		s.recognizeN2(50, 1)
		s.ErrorIs(s.svc.OnboardPeople(s.ctx), models.ErrIncomplete)
	})

	s.recognizeN(3)

	s.Require().NoError(s.svc.OnboardPeople(s.ctx))

	ring, err := s.svc.RingInfo(s.ctx, 0)
	s.Require().NoError(err)
	s.Equal(uint32(testOnboardingSize), ring.Total)
	s.Equal(uint32(0), ring.Included, "onboarding never touches the commitment")

	s.Run("members land in queue order", func() {
		record, err := s.svc.Person(s.ctx, 0)
		s.Require().NoError(err)
		s.True(record.Position.Included())
		s.Equal(models.RingIndex(0), record.Position.RingIndex)
		s.Equal(uint32(0), record.Position.RingPosition)
	})

	s.Run("a full ring closes and the next opens", func() {
		s.Require().NoError(s.svc.OnboardPeople(s.ctx))

		status, err := s.svc.Status(s.ctx)
		s.Require().NoError(err)
		s.Equal(models.RingIndex(1), status.CurrentRing)
		s.Equal(uint32(4), status.ActiveMembers)
		s.Equal(0, status.QueuedKeys)
	})
}

func (s *ServiceSuite) TestBuildRing() {
	s.Run("nothing to build on an empty ring", func() {
		_, err := s.svc.ShouldBuildRing(s.ctx, 0, testRingSize)
		s.ErrorIs(err, models.ErrStillFresh)
		s.ErrorIs(s.svc.BuildRing(s.ctx, 0, 0), models.ErrStillFresh)
	})

	s.recognizeN(4)
	s.Require().NoError(s.svc.OnboardPeople(s.ctx))

	n, err := s.svc.ShouldBuildRing(s.ctx, 0, testRingSize)
	s.Require().NoError(err)
	s.Equal(uint32(testOnboardingSize), n)

	s.Require().NoError(s.svc.BuildRing(s.ctx, 0, 0))

	ring, err := s.svc.RingInfo(s.ctx, 0)
	s.Require().NoError(err)
	s.Require().NotNil(ring.Root)
	s.Equal(uint32(0), ring.Root.Revision)
	s.Equal(uint32(testOnboardingSize), ring.Included)

	s.Run("a fresh root rejects a rebuild", func() {
		s.ErrorIs(s.svc.BuildRing(s.ctx, 0, 0), models.ErrStillFresh)
	})

	s.Run("new members bump the revision", func() {
		s.Require().NoError(s.svc.OnboardPeople(s.ctx))
		s.Require().NoError(s.svc.BuildRing(s.ctx, 0, 0))

		rebuilt, err := s.svc.RingInfo(s.ctx, 0)
		s.Require().NoError(err)
		s.Equal(uint32(1), rebuilt.Root.Revision)
		s.NotEqual(ring.Root.Commitment, rebuilt.Root.Commitment)
		s.Equal(rebuilt.Total, rebuilt.Included)
	})

	s.Run("partial builds respect the limit", func() {
		s.recognizeN2(10, 2)
		s.Require().NoError(s.svc.OnboardPeople(s.ctx))

		s.Require().NoError(s.svc.BuildRing(s.ctx, 1, 1))
		partial, err := s.svc.RingInfo(s.ctx, 1)
		s.Require().NoError(err)
		s.Equal(uint32(1), partial.Included)
		s.Equal(uint32(2), partial.Total)
	})
}

// recognizeN2 recognizes n people with keys offset by base, for tests that
// already used the low key bytes.
func (s *ServiceSuite) recognizeN2(base byte, n int) {
	for i := 0; i < n; i++ {
		_, err := s.svc.RecognizeNewPerson(s.ctx, testKey(base+byte(i)))
		s.Require().NoError(err)
	}
}

func (s *ServiceSuite) TestQueuePaging() {
	s.recognizeN(5)

	s.Run("a full page opens the next", func() {
		record, err := s.svc.Person(s.ctx, 4)
		s.Require().NoError(err)
		s.Equal(models.PageIndex(1), record.Position.QueuePage)

		first, err := s.svc.QueuePage(s.ctx, 0)
		s.Require().NoError(err)
		s.Len(first, testPageSize)
	})

	s.Run("fifo across page boundaries", func() {
		// Two cohorts drain the whole first page; the third takes the key
		// that spilled onto page 1.
		s.recognizeN2(10, 1)
		s.Require().NoError(s.svc.OnboardPeople(s.ctx))
		s.Require().NoError(s.svc.OnboardPeople(s.ctx))
		s.Require().NoError(s.svc.OnboardPeople(s.ctx))

		record, err := s.svc.Person(s.ctx, 4)
		s.Require().NoError(err)
		s.True(record.Position.Included())
		s.Equal(models.RingIndex(1), record.Position.RingIndex)

		status, err := s.svc.Status(s.ctx)
		s.Require().NoError(err)
		s.Equal(models.PageIndex(1), status.QueueHead)
	})
}

func (s *ServiceSuite) TestQueueFull() {
	// Force the tail right behind the head in the wrapping index space.
	s.Require().NoError(s.mem.Update(s.ctx, func(st *store.State) error {
		st.QueueHead = 0
		st.QueueTail = math.MaxUint32
		full := make([]models.MemberKey, testPageSize)
		for i := range full {
			full[i] = testKey(byte(100 + i))
		}
		st.QueuePages[math.MaxUint32] = full
		return nil
	}))

	_, err := s.svc.RecognizeNewPerson(s.ctx, testKey(1))
	s.ErrorIs(err, models.ErrQueueFull)
}

func (s *ServiceSuite) TestMergeQueuePages() {
	s.Run("a single live page has nothing to merge", func() {
		mergeable, err := s.svc.ShouldMergeQueuePages(s.ctx)
		s.Require().NoError(err)
		s.False(mergeable)
		s.ErrorIs(s.svc.MergeQueuePages(s.ctx), models.ErrIncomplete)
	})

	ids := s.recognizeN(5)

	// Hollow out the head page so both live pages fit in one.
	token, err := s.svc.StartMutationSession(s.ctx)
	s.Require().NoError(err)
	s.Require().NoError(s.svc.SuspendPersonhood(s.ctx, token, ids[1:4]))
	s.Require().NoError(s.svc.EndMutationSession(s.ctx, token))

	mergeable, err := s.svc.ShouldMergeQueuePages(s.ctx)
	s.Require().NoError(err)
	s.True(mergeable)

	s.Require().NoError(s.svc.MergeQueuePages(s.ctx))

	status, err := s.svc.Status(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.PageIndex(1), status.QueueHead)
	s.Equal(models.PageIndex(1), status.QueueTail)

	s.Run("moved keys keep their queue order ahead of the target page", func() {
		page, err := s.svc.QueuePage(s.ctx, 1)
		s.Require().NoError(err)
		s.Equal([]models.MemberKey{testKey(1), testKey(5)}, page)
	})

	s.Run("moved records point at the new page", func() {
		record, err := s.svc.Person(s.ctx, ids[0])
		s.Require().NoError(err)
		s.Equal(models.PageIndex(1), record.Position.QueuePage)
	})
}

func (s *ServiceSuite) TestRemoveSuspendedKeys() {
	ids := s.recognizeN(4)
	s.Require().NoError(s.svc.OnboardPeople(s.ctx))
	s.Require().NoError(s.svc.OnboardPeople(s.ctx))
	s.Require().NoError(s.svc.BuildRing(s.ctx, 0, 0))

	s.Run("nothing pending", func() {
		ok, err := s.svc.CanRemoveSuspendedKeys(s.ctx, 0)
		s.Require().NoError(err)
		s.False(ok)
		s.ErrorIs(s.svc.RemoveSuspendedKeys(s.ctx, 0), models.ErrInvalidSuspensions)
	})

	token, err := s.svc.StartMutationSession(s.ctx)
	s.Require().NoError(err)
	s.Require().NoError(s.svc.SuspendPersonhood(s.ctx, token, []models.PersonalID{ids[1], ids[3]}))
	s.Require().NoError(s.svc.EndMutationSession(s.ctx, token))

	s.Run("removal waits for the migration phase to drain", func() {
		ok, err := s.svc.CanRemoveSuspendedKeys(s.ctx, 0)
		s.Require().NoError(err)
		s.False(ok)
		s.ErrorIs(s.svc.RemoveSuspendedKeys(s.ctx, 0), models.ErrSuspensionSessionInProgress)
	})

	// No migrations were staged, so one drain call closes the phase.
	drained, err := s.svc.MigrateKeys(s.ctx, 10)
	s.Require().NoError(err)
	s.Equal(0, drained)

	rings, err := s.svc.RingsWithPendingSuspensions(s.ctx)
	s.Require().NoError(err)
	s.Equal([]models.RingIndex{0}, rings)

	s.Require().NoError(s.svc.RemoveSuspendedKeys(s.ctx, 0))

	ring, err := s.svc.RingInfo(s.ctx, 0)
	s.Require().NoError(err)
	s.Equal([]models.MemberKey{testKey(1), testKey(3)}, ring.Keys)
	s.Equal(uint32(2), ring.Total)
	s.Equal(uint32(0), ring.Included, "the commitment must be rebuilt from scratch")
	s.Require().NotNil(ring.Root, "the stale root survives until the rebuild")

	s.Run("survivors are re-indexed", func() {
		record, err := s.svc.Person(s.ctx, ids[2])
		s.Require().NoError(err)
		s.Equal(uint32(1), record.Position.RingPosition)
	})

	s.Run("the rebuild bumps the revision", func() {
		s.Require().NoError(s.svc.BuildRing(s.ctx, 0, 0))
		rebuilt, err := s.svc.RingInfo(s.ctx, 0)
		s.Require().NoError(err)
		s.Equal(uint32(1), rebuilt.Root.Revision)
		s.Equal(uint32(2), rebuilt.Included)
	})

	s.Run("active members shrink", func() {
		status, err := s.svc.Status(s.ctx)
		s.Require().NoError(err)
		s.Equal(uint32(2), status.ActiveMembers)
	})
}

func (s *ServiceSuite) TestMergeRings() {
	// Two closed rings below the merge threshold and an open current ring.
	s.seedRing(0, 0, testKey(1))
	s.seedRing(1, 1, testKey(2))
	s.seedRing(2, 2, testKey(3), testKey(4))
	s.Require().NoError(s.mem.Update(s.ctx, func(st *store.State) error {
		st.CurrentRing = 3
		return nil
	}))

	s.Run("a ring cannot merge with itself", func() {
		s.ErrorIs(s.svc.MergeRings(s.ctx, 0, 0), models.ErrInvalidRing)
	})

	s.Run("the open ring never merges", func() {
		s.ErrorIs(s.svc.MergeRings(s.ctx, 0, 3), models.ErrInvalidRing)
	})

	s.Run("both rings must be below the threshold", func() {
		s.ErrorIs(s.svc.MergeRings(s.ctx, 0, 2), models.ErrRingAboveMergeThreshold)
	})

	s.Run("pending suspensions block the merge", func() {
		s.Require().NoError(s.mem.Update(s.ctx, func(st *store.State) error {
			st.PendingSuspensions[1] = []uint32{0}
			return nil
		}))
		s.ErrorIs(s.svc.MergeRings(s.ctx, 0, 1), models.ErrSuspensionsPending)
		s.Require().NoError(s.mem.Update(s.ctx, func(st *store.State) error {
			delete(st.PendingSuspensions, 1)
			return nil
		}))
	})

	s.Require().NoError(s.svc.MergeRings(s.ctx, 0, 1))

	base, err := s.svc.RingInfo(s.ctx, 0)
	s.Require().NoError(err)
	s.Equal([]models.MemberKey{testKey(1), testKey(2)}, base.Keys)
	s.Equal(uint32(2), base.Total)

	s.Run("the donor ring is gone", func() {
		_, err := s.svc.RingInfo(s.ctx, 1)
		s.ErrorIs(err, models.ErrInvalidRing)
	})

	s.Run("donated records are repointed", func() {
		record, err := s.svc.Person(s.ctx, 1)
		s.Require().NoError(err)
		s.Equal(models.RingIndex(0), record.Position.RingIndex)
		s.Equal(uint32(1), record.Position.RingPosition)
	})
}
