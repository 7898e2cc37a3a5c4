package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"personring/internal/people/metrics"
	"personring/internal/people/models"
	"personring/internal/people/service"
)

// Service is the slice of the people service the scheduler drives.
type Service interface {
	Status(ctx context.Context) (service.StatusView, error)
	MigrateKeys(ctx context.Context, limit int) (int, error)
	RingsWithPendingSuspensions(ctx context.Context) ([]models.RingIndex, error)
	CanRemoveSuspendedKeys(ctx context.Context, ringIndex models.RingIndex) (bool, error)
	RemoveSuspendedKeys(ctx context.Context, ringIndex models.RingIndex) error
	ShouldMergeQueuePages(ctx context.Context) (bool, error)
	MergeQueuePages(ctx context.Context) error
	OnboardPeople(ctx context.Context) error
	ShouldBuildRing(ctx context.Context, ringIndex models.RingIndex, limit uint32) (uint32, error)
	BuildRing(ctx context.Context, ringIndex models.RingIndex, limit uint32) error
	MaxRingSize() uint32
}

// Costs assigns an abstract worst-case cost to each class of background work.
type Costs struct {
	StepBase         int64
	MigrationEntry   int64
	QueueMerge       int64
	RemovalPerMember int64
	OnboardBatch     int64
	BuildCheck       int64
	BuildPerKey      int64
}

// DefaultCosts returns the cost table used in production.
func DefaultCosts() Costs {
	return Costs{
		StepBase:         1,
		MigrationEntry:   5,
		QueueMerge:       10,
		RemovalPerMember: 1,
		OnboardBatch:     20,
		BuildCheck:       1,
		BuildPerKey:      2,
	}
}

// Scheduler drives the registry's deferred maintenance: draining staged key
// migrations, compacting rings after suspension cleanup, merging sparse queue
// pages, onboarding queued cohorts and rebuilding commitments. Each step runs
// a mandatory phase that always executes affordable state-machine work, then
// spends whatever budget is left on best-effort progress.
type Scheduler struct {
	svc     Service
	costs   Costs
	budget  int64
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a scheduler stepping svc with the given per-step budget.
func New(svc Service, budget int64, logger *slog.Logger, m *metrics.Metrics) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{
		svc:     svc,
		costs:   DefaultCosts(),
		budget:  budget,
		logger:  logger,
		metrics: m,
	}
}

// Run steps the scheduler on every tick until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Step(ctx); err != nil {
				s.logger.WarnContext(ctx, "scheduler step failed", "error", err)
			}
		}
	}
}

// Step performs one maintenance step within the configured budget.
func (s *Scheduler) Step(ctx context.Context) error {
	budget := NewBudget(s.budget)
	defer func() {
		s.metrics.ObserveStep(budget.Spent())
	}()

	budget.Consume(s.costs.StepBase)
	if err := s.mandatory(ctx, budget); err != nil {
		return err
	}
	s.bestEffort(ctx, budget)
	return nil
}

// mandatory performs the work that keeps the session state machine moving:
// one migration drain, one ring compaction and one queue page merge, each
// only when its full worst-case cost fits. Work is never started that could
// not be finished within the step.
func (s *Scheduler) mandatory(ctx context.Context, budget *Budget) error {
	status, err := s.svc.Status(ctx)
	if err != nil {
		return err
	}

	if status.Phase == models.PhaseKeyMigration && budget.TryConsume(s.costs.MigrationEntry) {
		drained, err := s.svc.MigrateKeys(ctx, 1)
		if err != nil && !benign(err) {
			return err
		}
		if drained > 0 {
			s.logger.DebugContext(ctx, "drained key migration", "count", drained)
		}
	}

	rings, err := s.svc.RingsWithPendingSuspensions(ctx)
	if err != nil {
		return err
	}
	if len(rings) > 0 {
		worstCase := s.costs.RemovalPerMember * int64(s.svc.MaxRingSize())
		if budget.CanConsume(worstCase) {
			if err := s.removeOne(ctx, budget, rings[0], worstCase); err != nil {
				return err
			}
		}
	}

	merge, err := s.svc.ShouldMergeQueuePages(ctx)
	if err != nil {
		return err
	}
	if merge && budget.TryConsume(s.costs.QueueMerge) {
		if err := s.svc.MergeQueuePages(ctx); err != nil && !benign(err) {
			return err
		}
	}
	return nil
}

// bestEffort spends the remaining budget on optional progress: further ring
// compactions, onboarding one cohort and refreshing stale commitments. Key
// migration drains are mandatory-only so that a starved budget still drains
// them at a guaranteed rate.
func (s *Scheduler) bestEffort(ctx context.Context, budget *Budget) {
	rings, err := s.svc.RingsWithPendingSuspensions(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "listing pending suspensions failed", "error", err)
		return
	}
	worstCase := s.costs.RemovalPerMember * int64(s.svc.MaxRingSize())
	for _, ringIndex := range rings {
		if !budget.CanConsume(worstCase) {
			break
		}
		if err := s.removeOne(ctx, budget, ringIndex, worstCase); err != nil {
			s.logger.WarnContext(ctx, "ring compaction failed", "ring", ringIndex, "error", err)
			return
		}
	}

	if budget.TryConsume(s.costs.OnboardBatch) {
		if err := s.svc.OnboardPeople(ctx); err != nil && !benign(err) {
			s.logger.WarnContext(ctx, "onboarding failed", "error", err)
		}
	}

	status, err := s.svc.Status(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "reading status failed", "error", err)
		return
	}
	for ringIndex := models.RingIndex(0); ringIndex <= status.CurrentRing; ringIndex++ {
		if !budget.TryConsume(s.costs.BuildCheck) {
			return
		}
		n, err := s.svc.ShouldBuildRing(ctx, ringIndex, s.svc.MaxRingSize())
		if err != nil {
			if !benign(err) {
				s.logger.WarnContext(ctx, "build check failed", "ring", ringIndex, "error", err)
			}
			continue
		}
		if !budget.TryConsume(s.costs.BuildPerKey * int64(n)) {
			return
		}
		if err := s.svc.BuildRing(ctx, ringIndex, n); err != nil && !benign(err) {
			s.logger.WarnContext(ctx, "ring build failed", "ring", ringIndex, "error", err)
		}
	}
}

func (s *Scheduler) removeOne(ctx context.Context, budget *Budget, ringIndex models.RingIndex, worstCase int64) error {
	ok, err := s.svc.CanRemoveSuspendedKeys(ctx, ringIndex)
	if err != nil || !ok {
		return err
	}
	budget.Consume(worstCase)
	if err := s.svc.RemoveSuspendedKeys(ctx, ringIndex); err != nil && !benign(err) {
		return err
	}
	return nil
}

// benign reports whether err is an ordinary "nothing to do right now" signal
// rather than a failure worth surfacing.
func benign(err error) bool {
	return errors.Is(err, models.ErrStillFresh) ||
		errors.Is(err, models.ErrIncomplete) ||
		errors.Is(err, models.ErrNoMutationSession) ||
		errors.Is(err, models.ErrInvalidSuspensions) ||
		errors.Is(err, models.ErrSuspensionsPending) ||
		errors.Is(err, models.ErrSuspensionSessionInProgress)
}
