package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/gap-pos/internal/domain"
)

func TestDispatcher_FailingHandlerDoesNotStopOthers(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	var seen []string

	d.Subscribe(EventPolicyConfirmed, func(context.Context, Event) error {
		seen = append(seen, "first")
		return errors.New("smtp relay down")
	})
	d.Subscribe(EventPolicyConfirmed, func(context.Context, Event) error {
		seen = append(seen, "second")
		return nil
	})
	d.Subscribe(EventDocumentsReady, func(context.Context, Event) error {
		seen = append(seen, "unrelated")
		return nil
	})

	flow := domain.NewPolicyFlow("flow-1", domain.EnvironmentTest, time.Now())
	flow.Policy = &domain.PolicyRecord{PolicyID: "P-1"}

	require.NoError(t, d.Publish(context.Background(), NewEvent(EventPolicyConfirmed, flow, nil)))
	assert.Equal(t, []string{"first", "second"}, seen)
}

func TestNewEvent(t *testing.T) {
	flow := domain.NewPolicyFlow("flow-1", domain.EnvironmentProduction, time.Now())
	ev := NewEvent(EventFlowFailed, flow, FlowFailedPayload{Reason: "x"})

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "flow-1", ev.FlowID)
	assert.Empty(t, ev.PolicyID)
	assert.Equal(t, domain.EnvironmentProduction, ev.Environment)
}
