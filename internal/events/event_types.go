package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/gap-pos/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventPolicyLocked       EventType = "policy_locked"
	EventSignatureRequested EventType = "signature_requested"
	EventPolicyConfirmed    EventType = "policy_confirmed"
	EventDocumentsReady     EventType = "documents_ready"
	EventFlowFailed         EventType = "flow_failed"
)

// Event represents a lifecycle event emitted by the orchestrator.
type Event struct {
	ID          string             `json:"id"`
	Type        EventType          `json:"type"`
	FlowID      string             `json:"flow_id"`
	PolicyID    string             `json:"policy_id,omitempty"`
	Environment domain.Environment `json:"environment"`
	Timestamp   time.Time          `json:"timestamp"`
	Payload     interface{}        `json:"payload"`
}

// NewEvent stamps an event for flow.
func NewEvent(eventType EventType, flow *domain.PolicyFlow, payload interface{}) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		FlowID:      flow.ID,
		PolicyID:    flow.PolicyID(),
		Environment: flow.Environment,
		Timestamp:   time.Now().UTC(),
		Payload:     payload,
	}
}

// PolicyLockedPayload payload.
type PolicyLockedPayload struct {
	PolicyNumber string  `json:"policy_number"`
	Premium      float64 `json:"premium"`
	ProductCode  string  `json:"product_code"`
}

// SignatureRequestedPayload payload.
type SignatureRequestedPayload struct {
	SignatureType domain.SignatureType `json:"signature_type"`
	ExpiresAt     time.Time            `json:"expires_at"`
	Resent        bool                 `json:"resent"`
}

// PolicyConfirmedPayload carries what the confirmation message needs.
type PolicyConfirmedPayload struct {
	Policy      domain.PolicyRecord      `json:"policy"`
	Calculation domain.CalculationResult `json:"calculation"`
	Contact     domain.Person            `json:"contact"`
}

// DocumentsReadyPayload payload.
type DocumentsReadyPayload struct {
	Documents domain.DocumentSet `json:"documents"`
}

// FlowFailedPayload payload.
type FlowFailedPayload struct {
	FromStatus domain.PolicyStatus `json:"from_status"`
	Reason     string              `json:"reason"`
}
