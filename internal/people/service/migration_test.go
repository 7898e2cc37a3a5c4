package service

import (
	"github.com/google/uuid"

	"personring/internal/people/models"
)

func (s *ServiceSuite) TestMutationSessionGating() {
	ids := s.recognizeN(2)

	token, err := s.svc.StartMutationSession(s.ctx)
	s.Require().NoError(err)

	s.Run("one session at a time", func() {
		_, err := s.svc.StartMutationSession(s.ctx)
		s.ErrorIs(err, models.ErrSessionInProgress)
	})

	s.Run("suspensions require the session token", func() {
		s.ErrorIs(s.svc.SuspendPersonhood(s.ctx, uuid.New(), ids[:1]), models.ErrNoMutationSession)
	})

	s.Run("append-only work is paused", func() {
		s.ErrorIs(s.svc.OnboardPeople(s.ctx), models.ErrIncomplete)
		s.ErrorIs(s.svc.BuildRing(s.ctx, 0, 0), models.ErrStillFresh)
		s.ErrorIs(s.svc.MergeRings(s.ctx, 1, 2), models.ErrSuspensionSessionInProgress)
	})

	s.Run("closing requires the session token", func() {
		s.ErrorIs(s.svc.EndMutationSession(s.ctx, uuid.New()), models.ErrNoMutationSession)
	})

	s.Require().NoError(s.svc.EndMutationSession(s.ctx, token))

	status, err := s.svc.Status(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.PhaseAppendOnly.String(), status.Phase.String())

	s.Run("suspensions outside a session are rejected", func() {
		s.ErrorIs(s.svc.SuspendPersonhood(s.ctx, token, ids[:1]), models.ErrNoMutationSession)
	})
}

func (s *ServiceSuite) TestSuspendPersonhood() {
	ids := s.recognizeN(4)
	s.Require().NoError(s.svc.OnboardPeople(s.ctx))

	token, err := s.svc.StartMutationSession(s.ctx)
	s.Require().NoError(err)

	s.Run("onboarding members leave the queue immediately", func() {
		s.Require().NoError(s.svc.SuspendPersonhood(s.ctx, token, ids[2:3]))

		page, err := s.svc.QueuePage(s.ctx, 0)
		s.Require().NoError(err)
		s.Equal([]models.MemberKey{testKey(4)}, page)

		record, err := s.svc.Person(s.ctx, ids[2])
		s.Require().NoError(err)
		s.True(record.Position.Suspended())
	})

	s.Run("included members are queued for removal", func() {
		s.Require().NoError(s.svc.SuspendPersonhood(s.ctx, token, ids[0:1]))

		record, err := s.svc.Person(s.ctx, ids[0])
		s.Require().NoError(err)
		s.True(record.Position.Suspended())

		status, err := s.svc.Status(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, status.PendingSuspensions)
	})

	s.Run("suspending twice is invalid", func() {
		s.ErrorIs(s.svc.SuspendPersonhood(s.ctx, token, ids[0:1]), models.ErrInvalidSuspensions)
	})

	s.Run("unknown ids are invalid", func() {
		s.ErrorIs(s.svc.SuspendPersonhood(s.ctx, token, []models.PersonalID{42}), models.ErrInvalidSuspensions)
	})

	s.Run("a failed batch changes nothing", func() {
		err := s.svc.SuspendPersonhood(s.ctx, token, []models.PersonalID{ids[1], 42})
		s.Require().ErrorIs(err, models.ErrInvalidSuspensions)

		record, err := s.svc.Person(s.ctx, ids[1])
		s.Require().NoError(err)
		s.True(record.Position.Included(), "the valid half of the batch must not stick")
	})

	s.Require().NoError(s.svc.EndMutationSession(s.ctx, token))

	status, err := s.svc.Status(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.PhaseKeyMigration, status.Phase,
		"pending removals hold the registry in the migration phase")
}

func (s *ServiceSuite) TestMigrateOnboardingKey() {
	ids := s.recognizeN(2)

	s.Require().NoError(s.svc.MigrateOnboardingKey(s.ctx, ids[0], testKey(9)))

	record, err := s.svc.Person(s.ctx, ids[0])
	s.Require().NoError(err)
	s.Equal(testKey(9), record.Key)
	s.True(record.Position.Onboarding())

	s.Run("the queue slot is swapped in place", func() {
		page, err := s.svc.QueuePage(s.ctx, 0)
		s.Require().NoError(err)
		s.Equal([]models.MemberKey{testKey(9), testKey(2)}, page)
	})

	s.Run("the old key is released", func() {
		_, err := s.svc.RecognizeNewPerson(s.ctx, testKey(1))
		s.NoError(err)
	})

	s.Run("the new key must be unused", func() {
		s.ErrorIs(s.svc.MigrateOnboardingKey(s.ctx, ids[1], testKey(9)), models.ErrKeyAlreadyInUse)
	})

	s.Run("the new key must differ", func() {
		s.ErrorIs(s.svc.MigrateOnboardingKey(s.ctx, ids[1], testKey(2)), models.ErrSameKey)
	})

	s.Run("included members take the staged path", func() {
		s.Require().NoError(s.svc.OnboardPeople(s.ctx))
		s.ErrorIs(s.svc.MigrateOnboardingKey(s.ctx, ids[0], testKey(10)), models.ErrInvalidKeyMigration)
	})
}

func (s *ServiceSuite) TestMigrateIncludedKey() {
	ids := s.recognizeN(2)
	s.Require().NoError(s.svc.OnboardPeople(s.ctx))
	s.Require().NoError(s.svc.BuildRing(s.ctx, 0, 0))

	s.Require().NoError(s.svc.MigrateIncludedKey(s.ctx, ids[0], testKey(9)))

	s.Run("the old key stays authoritative until the drain", func() {
		record, err := s.svc.Person(s.ctx, ids[0])
		s.Require().NoError(err)
		s.Equal(testKey(1), record.Key)
		s.True(record.Position.ScheduledForRemoval)
	})

	s.Run("the staged key is visible and reserved", func() {
		staged, err := s.svc.PendingMigration(s.ctx, ids[0])
		s.Require().NoError(err)
		s.Require().NotNil(staged)
		s.Equal(testKey(9), *staged)

		_, err = s.svc.RecognizeNewPerson(s.ctx, testKey(9))
		s.ErrorIs(err, models.ErrKeyAlreadyInUse)
	})

	s.Run("restaging releases the previous staged key", func() {
		s.Require().NoError(s.svc.MigrateIncludedKey(s.ctx, ids[0], testKey(8)))

		staged, err := s.svc.PendingMigration(s.ctx, ids[0])
		s.Require().NoError(err)
		s.Equal(testKey(8), *staged)

		_, err = s.svc.RecognizeNewPerson(s.ctx, testKey(9))
		s.NoError(err, "the replaced staged key must be free again")
	})

	s.Run("drains only run in the migration phase", func() {
		_, err := s.svc.MigrateKeys(s.ctx, 10)
		s.ErrorIs(err, models.ErrNoMutationSession)
	})
}

func (s *ServiceSuite) TestMigrateKeysDrain() {
	ids := s.recognizeN(2)
	s.Require().NoError(s.svc.OnboardPeople(s.ctx))
	s.Require().NoError(s.svc.BuildRing(s.ctx, 0, 0))
	s.Require().NoError(s.svc.MigrateIncludedKey(s.ctx, ids[0], testKey(9)))

	// A session round trip moves staged work into the migration phase.
	token, err := s.svc.StartMutationSession(s.ctx)
	s.Require().NoError(err)
	s.Require().NoError(s.svc.EndMutationSession(s.ctx, token))

	status, err := s.svc.Status(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.PhaseKeyMigration, status.Phase)
	s.Equal(1, status.StagedMigrations)

	drained, err := s.svc.MigrateKeys(s.ctx, 10)
	s.Require().NoError(err)
	s.Equal(1, drained)

	s.Run("the person re-enters the queue under the new key", func() {
		record, err := s.svc.Person(s.ctx, ids[0])
		s.Require().NoError(err)
		s.Equal(testKey(9), record.Key)
		s.True(record.Position.Onboarding())
	})

	s.Run("the vacated ring position awaits removal", func() {
		rings, err := s.svc.RingsWithPendingSuspensions(s.ctx)
		s.Require().NoError(err)
		s.Equal([]models.RingIndex{0}, rings)
	})

	s.Run("the old key is retired", func() {
		_, err := s.svc.RecognizeNewPerson(s.ctx, testKey(1))
		s.NoError(err)
	})

	s.Run("an empty staging queue closes the phase", func() {
		status, err := s.svc.Status(s.ctx)
		s.Require().NoError(err)
		s.Equal(models.PhaseAppendOnly, status.Phase)
		s.Equal(0, status.StagedMigrations)
	})
}

func (s *ServiceSuite) TestMigrateKeysSkipsStaleEntries() {
	ids := s.recognizeN(2)
	s.Require().NoError(s.svc.OnboardPeople(s.ctx))
	s.Require().NoError(s.svc.MigrateIncludedKey(s.ctx, ids[0], testKey(9)))

	// The person is suspended after staging; the entry is stale by the time
	// the drain runs and must release the staged key untouched.
	token, err := s.svc.StartMutationSession(s.ctx)
	s.Require().NoError(err)
	s.Require().NoError(s.svc.SuspendPersonhood(s.ctx, token, ids[0:1]))
	s.Require().NoError(s.svc.EndMutationSession(s.ctx, token))

	drained, err := s.svc.MigrateKeys(s.ctx, 10)
	s.Require().NoError(err)
	s.Equal(1, drained)

	record, err := s.svc.Person(s.ctx, ids[0])
	s.Require().NoError(err)
	s.True(record.Position.Suspended(), "a stale entry must not resurrect the person")
	s.Equal(testKey(1), record.Key)

	s.Run("the staged key is free again", func() {
		_, err := s.svc.RecognizeNewPerson(s.ctx, testKey(9))
		s.NoError(err)
	})
}

func (s *ServiceSuite) TestMigrationTargetValidation() {
	ids := s.recognizeN(1)

	s.ErrorIs(s.svc.MigrateIncludedKey(s.ctx, 42, testKey(9)), models.ErrNotPerson)
	s.ErrorIs(s.svc.MigrateIncludedKey(s.ctx, ids[0], testKey(9)), models.ErrInvalidKeyMigration,
		"onboarding members take the in-place path")

	token, err := s.svc.StartMutationSession(s.ctx)
	s.Require().NoError(err)
	s.Require().NoError(s.svc.SuspendPersonhood(s.ctx, token, ids))
	s.Require().NoError(s.svc.EndMutationSession(s.ctx, token))

	s.ErrorIs(s.svc.MigrateIncludedKey(s.ctx, ids[0], testKey(9)), models.ErrSuspended)
	s.ErrorIs(s.svc.MigrateOnboardingKey(s.ctx, ids[0], testKey(9)), models.ErrSuspended)
}
