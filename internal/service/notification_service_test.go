package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/gap-pos/internal/config"
	"github.com/spec-kit/gap-pos/internal/domain"
	"github.com/spec-kit/gap-pos/internal/events"
)

func TestNotificationService_RelaysConfirmation(t *testing.T) {
	var (
		mu       sync.Mutex
		received []ConfirmationMessage
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg ConfirmationMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		mu.Lock()
		received = append(received, msg)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer hook.Close()

	dispatcher := events.NewInMemoryDispatcher(nil)
	svc := NewNotificationService(dispatcher, nil, config.NotificationConfig{EmailFrom: "policies@example.com", WebhookURL: hook.URL})
	svc.RegisterHandlers(nil)

	confirmedAt := time.Date(2026, 10, 19, 10, 5, 0, 0, time.UTC)
	flow := domain.NewPolicyFlow("flow-1", domain.EnvironmentTest, confirmedAt)
	flow.Policy = &domain.PolicyRecord{PolicyID: "POL-1", PolicyNumber: "GAP/2026/000001", Premium: 1890, ConfirmedAt: &confirmedAt}

	err := dispatcher.Publish(context.Background(), events.NewEvent(events.EventPolicyConfirmed, flow, events.PolicyConfirmedPayload{
		Policy:      *flow.Policy,
		Contact:     domain.Person{FirstName: "Anna", LastName: "Nowak", Email: "anna@example.com"},
		Calculation: domain.CalculationResult{QuoteID: "q-1", Premium: 1890, CoverageMonths: 36, MaxCoverage: 50000, VehicleValue: 150000},
	}))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "anna@example.com", received[0].To)
	assert.Equal(t, "policies@example.com", received[0].From)
	assert.Equal(t, "Anna Nowak", received[0].Recipient)
	assert.Equal(t, "GAP/2026/000001", received[0].PolicyNumber)
	assert.True(t, confirmedAt.Equal(received[0].ConfirmedAt))
	assert.Equal(t, 36, received[0].CoverageMonths)
	assert.InDelta(t, 50000.0, received[0].MaxCoverage, 0.001)
	assert.InDelta(t, 150000.0, received[0].VehicleValue, 0.001)
}

func TestNotificationService_WebhookFailureDoesNotPropagate(t *testing.T) {
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer hook.Close()

	dispatcher := events.NewInMemoryDispatcher(nil)
	svc := NewNotificationService(dispatcher, nil, config.NotificationConfig{WebhookURL: hook.URL})
	svc.RegisterHandlers(nil)

	flow := domain.NewPolicyFlow("flow-2", domain.EnvironmentTest, time.Now())
	err := dispatcher.Publish(context.Background(), events.NewEvent(events.EventFlowFailed, flow, events.FlowFailedPayload{Reason: "abandoned"}))
	assert.NoError(t, err)

	direct := svc.handleStatusEvent(context.Background(), events.NewEvent(events.EventFlowFailed, flow, nil))
	assert.Error(t, direct)
}
