package models

import "fmt"

// PositionKind discriminates the RingPosition variants.
type PositionKind uint8

const (
	// PositionOnboarding marks a key waiting in the onboarding queue.
	PositionOnboarding PositionKind = iota
	// PositionIncluded marks a key assigned to a ring table.
	PositionIncluded
	// PositionSuspended marks a person whose key currently counts for nothing.
	PositionSuspended
)

func (k PositionKind) String() string {
	switch k {
	case PositionOnboarding:
		return "onboarding"
	case PositionIncluded:
		return "included"
	case PositionSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// RingPosition is a tagged variant describing where a person's key currently
// lives. Only the fields of the active variant are meaningful.
type RingPosition struct {
	Kind PositionKind

	// Onboarding
	QueuePage PageIndex

	// Included
	RingIndex           RingIndex
	RingPosition        uint32
	ScheduledForRemoval bool
}

// OnboardingAt returns a position on the given onboarding queue page.
func OnboardingAt(page PageIndex) RingPosition {
	return RingPosition{Kind: PositionOnboarding, QueuePage: page}
}

// IncludedAt returns a position inside a ring table.
func IncludedAt(ring RingIndex, pos uint32) RingPosition {
	return RingPosition{Kind: PositionIncluded, RingIndex: ring, RingPosition: pos}
}

// SuspendedPosition returns the suspended marker position.
func SuspendedPosition() RingPosition {
	return RingPosition{Kind: PositionSuspended}
}

// Onboarding reports whether the position is in the onboarding queue.
func (p RingPosition) Onboarding() bool { return p.Kind == PositionOnboarding }

// Included reports whether the position is inside a ring table.
func (p RingPosition) Included() bool { return p.Kind == PositionIncluded }

// Suspended reports whether the person is suspended.
func (p RingPosition) Suspended() bool { return p.Kind == PositionSuspended }

func (p RingPosition) String() string {
	switch p.Kind {
	case PositionOnboarding:
		return fmt.Sprintf("onboarding(page=%d)", p.QueuePage)
	case PositionIncluded:
		return fmt.Sprintf("included(ring=%d, position=%d, scheduled_for_removal=%t)",
			p.RingIndex, p.RingPosition, p.ScheduledForRemoval)
	default:
		return "suspended"
	}
}
