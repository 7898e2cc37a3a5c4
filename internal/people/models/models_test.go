package models

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageIndexNext(t *testing.T) {
	assert.Equal(t, PageIndex(1), PageIndex(0).Next())
	assert.Equal(t, PageIndex(43), PageIndex(42).Next())
	assert.Equal(t, PageIndex(0), PageIndex(math.MaxUint32).Next(),
		"index space must wrap instead of overflowing")
}

func TestParseMemberKey(t *testing.T) {
	key := MemberKey{0xde, 0xad, 0xbe, 0xef}

	parsed, err := ParseMemberKey(key.String())
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	_, err = ParseMemberKey("not-hex")
	assert.Error(t, err)

	_, err = ParseMemberKey("deadbeef")
	assert.Error(t, err, "short keys must be rejected")
}

func TestMemberKeyJSONRoundTrip(t *testing.T) {
	key := MemberKey{1, 2, 3}
	raw, err := json.Marshal(key)
	require.NoError(t, err)

	var decoded MemberKey
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, key, decoded)
}

func TestPersonRecordClone(t *testing.T) {
	account := "acct-1"
	record := &PersonRecord{
		Key:      MemberKey{7},
		Position: IncludedAt(2, 5),
		Account:  &account,
	}

	clone := record.Clone()
	*clone.Account = "acct-2"
	clone.Position = SuspendedPosition()

	assert.Equal(t, "acct-1", *record.Account)
	assert.True(t, record.Position.Included())
}

func TestRingsStateTransitions(t *testing.T) {
	token := uuid.New()
	state := RingsState{}
	require.True(t, state.AppendOnly())

	t.Run("start requires append-only", func(t *testing.T) {
		open, err := state.StartMutationSession(token)
		require.NoError(t, err)
		assert.True(t, open.Mutating())
		assert.Equal(t, token, open.Token)

		_, err = open.StartMutationSession(uuid.New())
		assert.ErrorIs(t, err, ErrSessionInProgress)
	})

	t.Run("end checks the token", func(t *testing.T) {
		open, err := state.StartMutationSession(token)
		require.NoError(t, err)

		_, err = open.EndMutationSession(uuid.New(), false)
		assert.ErrorIs(t, err, ErrNoMutationSession)

		closed, err := open.EndMutationSession(token, false)
		require.NoError(t, err)
		assert.True(t, closed.AppendOnly())
	})

	t.Run("pending work enters key migration", func(t *testing.T) {
		open, err := state.StartMutationSession(token)
		require.NoError(t, err)

		migrating, err := open.EndMutationSession(token, true)
		require.NoError(t, err)
		assert.True(t, migrating.KeyMigration())

		_, err = migrating.StartMutationSession(uuid.New())
		assert.ErrorIs(t, err, ErrSessionInProgress)

		drained, err := migrating.EndKeyMigration()
		require.NoError(t, err)
		assert.True(t, drained.AppendOnly())
	})

	t.Run("end key migration requires the phase", func(t *testing.T) {
		_, err := state.EndKeyMigration()
		assert.ErrorIs(t, err, ErrNoMutationSession)
	})
}
