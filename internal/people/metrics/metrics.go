package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the people module. All methods are safe
// on a nil receiver so tests can skip wiring.
type Metrics struct {
	Recognized       prometheus.Counter
	Onboarded        prometheus.Counter
	RingsBuilt       prometheus.Counter
	Suspended        prometheus.Counter
	Removed          prometheus.Counter
	KeysMigrated     prometheus.Counter
	RingsMerged      prometheus.Counter
	QueuePagesMerged prometheus.Counter

	SchedulerSteps  prometheus.Counter
	SchedulerBudget prometheus.Counter

	ActiveMembers prometheus.Gauge
}

// New creates and registers all people module metrics.
func New() *Metrics {
	return &Metrics{
		Recognized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "personring_people_recognized_total",
			Help: "Total number of people recognized into the registry",
		}),
		Onboarded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "personring_people_onboarded_total",
			Help: "Total number of keys batch-assigned from the queue into rings",
		}),
		RingsBuilt: promauto.NewCounter(prometheus.CounterOpts{
			Name: "personring_ring_builds_total",
			Help: "Total number of ring commitment builds",
		}),
		Suspended: promauto.NewCounter(prometheus.CounterOpts{
			Name: "personring_people_suspended_total",
			Help: "Total number of personhood suspensions recorded",
		}),
		Removed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "personring_keys_removed_total",
			Help: "Total number of suspended keys physically removed from rings",
		}),
		KeysMigrated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "personring_keys_migrated_total",
			Help: "Total number of staged key migrations drained",
		}),
		RingsMerged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "personring_ring_merges_total",
			Help: "Total number of ring merges",
		}),
		QueuePagesMerged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "personring_queue_page_merges_total",
			Help: "Total number of onboarding queue page merges",
		}),
		SchedulerSteps: promauto.NewCounter(prometheus.CounterOpts{
			Name: "personring_scheduler_steps_total",
			Help: "Total number of scheduler steps executed",
		}),
		SchedulerBudget: promauto.NewCounter(prometheus.CounterOpts{
			Name: "personring_scheduler_budget_spent_total",
			Help: "Total abstract cost units spent by the scheduler",
		}),
		ActiveMembers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "personring_active_members",
			Help: "Number of people currently included in rings",
		}),
	}
}

// AddRecognized records n recognitions.
func (m *Metrics) AddRecognized(n int) {
	if m != nil {
		m.Recognized.Add(float64(n))
	}
}

// AddOnboarded records n keys assigned to rings.
func (m *Metrics) AddOnboarded(n int) {
	if m != nil {
		m.Onboarded.Add(float64(n))
	}
}

// IncRingsBuilt records one commitment build.
func (m *Metrics) IncRingsBuilt() {
	if m != nil {
		m.RingsBuilt.Inc()
	}
}

// AddSuspended records n suspensions.
func (m *Metrics) AddSuspended(n int) {
	if m != nil {
		m.Suspended.Add(float64(n))
	}
}

// AddRemoved records n physical key removals.
func (m *Metrics) AddRemoved(n int) {
	if m != nil {
		m.Removed.Add(float64(n))
	}
}

// AddKeysMigrated records n drained key migrations.
func (m *Metrics) AddKeysMigrated(n int) {
	if m != nil {
		m.KeysMigrated.Add(float64(n))
	}
}

// IncRingsMerged records one ring merge.
func (m *Metrics) IncRingsMerged() {
	if m != nil {
		m.RingsMerged.Inc()
	}
}

// IncQueuePagesMerged records one queue page merge.
func (m *Metrics) IncQueuePagesMerged() {
	if m != nil {
		m.QueuePagesMerged.Inc()
	}
}

// ObserveStep records one scheduler step and the budget it consumed.
func (m *Metrics) ObserveStep(consumed int64) {
	if m != nil {
		m.SchedulerSteps.Inc()
		m.SchedulerBudget.Add(float64(consumed))
	}
}

// SetActiveMembers updates the active member gauge.
func (m *Metrics) SetActiveMembers(n uint32) {
	if m != nil {
		m.ActiveMembers.Set(float64(n))
	}
}
