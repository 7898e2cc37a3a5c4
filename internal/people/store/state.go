// Package store holds the registry state and provides the all-or-nothing
// mutation collaborator the services rely on: every update is applied to a
// private copy and swapped in only on success, so a failed operation leaves
// no partially-visible intermediate state.
package store

import (
	"maps"
	"slices"

	"personring/internal/people/models"
)

// State is the complete registry state. All maps use value-query semantics:
// a missing entry reads as empty.
type State struct {
	// Person/key registry.
	NextPersonalID models.PersonalID
	Reserved       map[models.PersonalID]struct{}
	People         map[models.PersonalID]*models.PersonRecord
	Keys           map[models.MemberKey]models.PersonalID

	// Ring registry.
	Rings              map[models.RingIndex]*models.Ring
	CurrentRing        models.RingIndex
	PendingSuspensions map[models.RingIndex][]uint32
	ActiveMembers      uint32

	// Onboarding queue. Pages between QueueHead and QueueTail (inclusive,
	// wrapping) are live; a missing page reads as empty.
	QueuePages map[models.PageIndex][]models.MemberKey
	QueueHead  models.PageIndex
	QueueTail  models.PageIndex

	// Key migration staging.
	KeyMigrations map[models.PersonalID]models.MemberKey

	// Account bindings, account id to person.
	Accounts map[string]models.PersonalID

	// Session state machine and onboarding configuration.
	RingsState     models.RingsState
	OnboardingSize uint32
}

// NewState returns an empty registry state with the given onboarding size.
func NewState(onboardingSize uint32) *State {
	return &State{
		Reserved:           make(map[models.PersonalID]struct{}),
		People:             make(map[models.PersonalID]*models.PersonRecord),
		Keys:               make(map[models.MemberKey]models.PersonalID),
		Rings:              make(map[models.RingIndex]*models.Ring),
		PendingSuspensions: make(map[models.RingIndex][]uint32),
		QueuePages:         make(map[models.PageIndex][]models.MemberKey),
		KeyMigrations:      make(map[models.PersonalID]models.MemberKey),
		Accounts:           make(map[string]models.PersonalID),
		OnboardingSize:     onboardingSize,
	}
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	c := &State{
		NextPersonalID: s.NextPersonalID,
		Reserved:       maps.Clone(s.Reserved),
		People:         make(map[models.PersonalID]*models.PersonRecord, len(s.People)),
		Keys:           maps.Clone(s.Keys),
		Rings:          make(map[models.RingIndex]*models.Ring, len(s.Rings)),
		CurrentRing:    s.CurrentRing,
		PendingSuspensions: make(map[models.RingIndex][]uint32,
			len(s.PendingSuspensions)),
		ActiveMembers:  s.ActiveMembers,
		QueuePages:     make(map[models.PageIndex][]models.MemberKey, len(s.QueuePages)),
		QueueHead:      s.QueueHead,
		QueueTail:      s.QueueTail,
		KeyMigrations:  maps.Clone(s.KeyMigrations),
		Accounts:       maps.Clone(s.Accounts),
		RingsState:     s.RingsState,
		OnboardingSize: s.OnboardingSize,
	}
	for id, record := range s.People {
		c.People[id] = record.Clone()
	}
	for ix, ring := range s.Rings {
		c.Rings[ix] = ring.Clone()
	}
	for ix, pending := range s.PendingSuspensions {
		c.PendingSuspensions[ix] = slices.Clone(pending)
	}
	for page, keys := range s.QueuePages {
		c.QueuePages[page] = slices.Clone(keys)
	}
	return c
}

// RingAt returns the ring at the given index, creating an empty one on first
// use.
func (s *State) RingAt(ix models.RingIndex) *models.Ring {
	ring, ok := s.Rings[ix]
	if !ok {
		ring = &models.Ring{}
		s.Rings[ix] = ring
	}
	return ring
}

// QueuedKeyCount counts all keys currently held on live queue pages.
func (s *State) QueuedKeyCount() int {
	n := 0
	for page := s.QueueHead; ; page = page.Next() {
		n += len(s.QueuePages[page])
		if page == s.QueueTail {
			return n
		}
	}
}
