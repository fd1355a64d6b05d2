package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyFlowTransitions(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	flow := NewPolicyFlow("f1", EnvironmentTest, now)

	require.Error(t, flow.Transition(PolicyStatusLocked, now), "draft cannot lock")
	require.NoError(t, flow.Transition(PolicyStatusCalculated, now))
	require.NoError(t, flow.Transition(PolicyStatusLocked, now))
	require.Error(t, flow.Transition(PolicyStatusConfirmed, now), "confirm requires a pending signature")
	require.NoError(t, flow.Transition(PolicyStatusSignaturePending, now))
	require.NoError(t, flow.Transition(PolicyStatusConfirmed, now))
	require.NoError(t, flow.Transition(PolicyStatusDocumentsReady, now))
	assert.True(t, flow.Status.Terminal())
}

func TestFailedReachableFromEveryNonTerminalState(t *testing.T) {
	for status, next := range allowedTransitions {
		if len(next) == 0 {
			continue
		}
		assert.True(t, status.CanTransition(PolicyStatusFailed), status)
	}
	assert.True(t, PolicyStatusSignaturePending.CanTransition(PolicyStatusExpired))
	assert.False(t, PolicyStatusLocked.CanTransition(PolicyStatusExpired))
}

func TestSignatureExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	deadline := now.Add(10 * time.Minute)
	flow := &PolicyFlow{Status: PolicyStatusSignaturePending, SignatureExpiresAt: &deadline}

	assert.False(t, flow.SignatureExpired(now))
	assert.True(t, flow.SignatureExpired(deadline))

	flow.Status = PolicyStatusLocked
	assert.False(t, flow.SignatureExpired(deadline.Add(time.Hour)))
}

func TestEditable(t *testing.T) {
	flow := NewPolicyFlow("f1", EnvironmentTest, time.Now())
	assert.True(t, flow.Editable())

	flow.Status = PolicyStatusCalculated
	flow.LockInFlight = true
	assert.False(t, flow.Editable())

	flow.LockInFlight = false
	assert.True(t, flow.Editable())

	flow.Policy = &PolicyRecord{PolicyID: "POL-1"}
	assert.False(t, flow.Editable())
}

func TestPartyResolved(t *testing.T) {
	assert.Equal(t, InheritParty(RolePolicyHolder), Party{}.Resolved())
	assert.Equal(t, InheritParty(RoleInsured), InheritParty(RoleInsured).Resolved())

	p := ExplicitParty(Person{FirstName: "Jan", LastName: "Nowak"})
	assert.True(t, p.IsExplicit())
	assert.Equal(t, "explicit(Jan Nowak)", p.String())

	// person data without a tag is still explicit
	assert.True(t, Party{Person: &Person{FirstName: "A"}}.IsExplicit())
}

func TestOptionSelectionCodes(t *testing.T) {
	sel := OptionSelection{Term: "T36", PaymentMethod: "CARD"}
	assert.Equal(t, []string{"T36", "CARD"}, sel.Codes())
}

func TestDateJSON(t *testing.T) {
	d := NewDate(2024, time.May, 7)
	raw, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2024-05-07"`, string(raw))

	var back Date
	require.NoError(t, back.UnmarshalJSON(raw))
	assert.True(t, back.Equal(d.Time))

	require.NoError(t, back.UnmarshalJSON([]byte("null")))
	assert.True(t, back.IsZero())
}
