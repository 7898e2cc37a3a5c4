package models

import "github.com/google/uuid"

// SessionPhase enumerates the phases of the process-wide mutation state
// machine gating suspension edits and key migrations.
type SessionPhase uint8

const (
	// PhaseAppendOnly allows onboarding, building, removal and merges.
	PhaseAppendOnly SessionPhase = iota
	// PhaseMutating means a mutation session is open and suspensions may be
	// recorded against its token.
	PhaseMutating
	// PhaseKeyMigration means a closed session left staged key migrations or
	// pending suspensions, and migrations must drain before anything else.
	PhaseKeyMigration
)

func (p SessionPhase) String() string {
	switch p {
	case PhaseAppendOnly:
		return "append_only"
	case PhaseMutating:
		return "mutating"
	default:
		return "key_migration"
	}
}

// RingsState is the singleton mutation-session state. It is the system's sole
// mutual-exclusion mechanism: transitions are total functions returning the
// next state or an error, so no operation can bypass the gate.
type RingsState struct {
	Phase SessionPhase
	// Token identifies the open session while Phase is PhaseMutating.
	Token uuid.UUID
}

// AppendOnly reports whether rings may only grow right now.
func (s RingsState) AppendOnly() bool { return s.Phase == PhaseAppendOnly }

// Mutating reports whether a mutation session is open.
func (s RingsState) Mutating() bool { return s.Phase == PhaseMutating }

// KeyMigration reports whether staged key migrations are draining.
func (s RingsState) KeyMigration() bool { return s.Phase == PhaseKeyMigration }

// StartMutationSession opens a session under the given token. It fails with
// ErrSessionInProgress if any session or migration phase is already active.
func (s RingsState) StartMutationSession(token uuid.UUID) (RingsState, error) {
	if !s.AppendOnly() {
		return s, ErrSessionInProgress
	}
	return RingsState{Phase: PhaseMutating, Token: token}, nil
}

// EndMutationSession closes the open session. When staged migrations or
// pending suspensions remain the state moves to PhaseKeyMigration, otherwise
// straight back to PhaseAppendOnly.
func (s RingsState) EndMutationSession(token uuid.UUID, pendingWork bool) (RingsState, error) {
	if !s.Mutating() || s.Token != token {
		return s, ErrNoMutationSession
	}
	if pendingWork {
		return RingsState{Phase: PhaseKeyMigration}, nil
	}
	return RingsState{Phase: PhaseAppendOnly}, nil
}

// EndKeyMigration closes the migration phase once the staging queue drained.
func (s RingsState) EndKeyMigration() (RingsState, error) {
	if !s.KeyMigration() {
		return s, ErrNoMutationSession
	}
	return RingsState{Phase: PhaseAppendOnly}, nil
}
