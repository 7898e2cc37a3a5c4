package scheduler

// Budget meters the abstract cost a single scheduler step may spend. Work is
// only attempted when its worst-case cost still fits; a step never starts an
// action it could not afford to finish.
type Budget struct {
	limit int64
	spent int64
}

// NewBudget returns a budget allowing limit cost units.
func NewBudget(limit int64) *Budget {
	return &Budget{limit: limit}
}

// CanConsume reports whether cost units still fit.
func (b *Budget) CanConsume(cost int64) bool {
	return b.spent+cost <= b.limit
}

// TryConsume spends cost units if they fit and reports whether it did.
func (b *Budget) TryConsume(cost int64) bool {
	if !b.CanConsume(cost) {
		return false
	}
	b.spent += cost
	return true
}

// Consume spends cost units unconditionally. Used for mandatory work whose
// cost is accounted even when it pushes the step over its limit.
func (b *Budget) Consume(cost int64) {
	b.spent += cost
}

// Remaining returns the unspent portion of the budget.
func (b *Budget) Remaining() int64 {
	if b.spent >= b.limit {
		return 0
	}
	return b.limit - b.spent
}

// Spent returns the cost consumed so far.
func (b *Budget) Spent() int64 {
	return b.spent
}
