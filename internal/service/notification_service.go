package service

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/spec-kit/gap-pos/internal/config"
	"github.com/spec-kit/gap-pos/internal/events"
)

// ConfirmationMessage is posted to the relay webhook once a policy is confirmed.
type ConfirmationMessage struct {
	From           string    `json:"from"`
	To             string    `json:"to"`
	Recipient      string    `json:"recipient"`
	Subject        string    `json:"subject"`
	PolicyID       string    `json:"policyId"`
	PolicyNumber   string    `json:"policyNumber"`
	ProductCode    string    `json:"productCode"`
	Premium        float64   `json:"premium"`
	CoverageMonths int       `json:"coverageMonths,omitempty"`
	MaxCoverage    float64   `json:"maxCoverage,omitempty"`
	VehicleValue   float64   `json:"vehicleValue,omitempty"`
	Environment    string    `json:"environment"`
	ConfirmedAt    time.Time `json:"confirmedAt"`
}

// StatusMessage is posted for any other lifecycle event worth telling the back office about.
type StatusMessage struct {
	Event       events.EventType `json:"event"`
	FlowID      string           `json:"flowId"`
	PolicyID    string           `json:"policyId,omitempty"`
	Environment string           `json:"environment"`
	Payload     interface{}      `json:"payload"`
	Timestamp   time.Time        `json:"timestamp"`
}

// NotificationService relays lifecycle events to the configured webhook.
// Delivery failures are logged and never affect the policy.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	http       *http.Client
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		http:       &http.Client{Timeout: 10 * time.Second},
	}
}

// RegisterHandlers subscribes to events. wrap, when set, decides how handlers run.
func (n *NotificationService) RegisterHandlers(wrap func(name string, h events.EventHandler) events.EventHandler) {
	if n.dispatcher == nil {
		return
	}
	if wrap == nil {
		wrap = func(_ string, h events.EventHandler) events.EventHandler { return h }
	}
	n.dispatcher.Subscribe(events.EventPolicyConfirmed, wrap("notify-confirmed", n.handlePolicyConfirmed))
	n.dispatcher.Subscribe(events.EventPolicyLocked, wrap("notify-locked", n.handleStatusEvent))
	n.dispatcher.Subscribe(events.EventFlowFailed, wrap("notify-failed", n.handleStatusEvent))
	n.dispatcher.Subscribe(events.EventDocumentsReady, wrap("notify-documents", n.handleStatusEvent))
}

func (n *NotificationService) handlePolicyConfirmed(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.PolicyConfirmedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Info("PolicyConfirmed",
		zap.String("flow_id", event.FlowID),
		zap.String("policy_id", event.PolicyID),
		zap.String("policy_number", payload.Policy.PolicyNumber),
	)

	recipient := strings.TrimSpace(payload.Contact.Email)
	if recipient == "" {
		n.logger.Warn("confirmation has no recipient", zap.String("policy_id", event.PolicyID))
		return nil
	}
	confirmedAt := event.Timestamp
	if payload.Policy.ConfirmedAt != nil {
		confirmedAt = *payload.Policy.ConfirmedAt
	}
	msg := ConfirmationMessage{
		From:           n.cfg.EmailFrom,
		To:             recipient,
		Recipient:      payload.Contact.FullName(),
		Subject:        fmt.Sprintf("Your GAP policy %s is confirmed", payload.Policy.PolicyNumber),
		PolicyID:       payload.Policy.PolicyID,
		PolicyNumber:   payload.Policy.PolicyNumber,
		ProductCode:    payload.Policy.ProductCode,
		Premium:        payload.Policy.Premium,
		CoverageMonths: payload.Calculation.CoverageMonths,
		MaxCoverage:    payload.Calculation.MaxCoverage,
		VehicleValue:   payload.Calculation.VehicleValue,
		Environment:    string(event.Environment),
		ConfirmedAt:    confirmedAt,
	}
	return n.post(ctx, msg)
}

func (n *NotificationService) handleStatusEvent(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type), zap.String("flow_id", event.FlowID), zap.String("policy_id", event.PolicyID))
	return n.post(ctx, StatusMessage{
		Event:       event.Type,
		FlowID:      event.FlowID,
		PolicyID:    event.PolicyID,
		Environment: string(event.Environment),
		Payload:     event.Payload,
		Timestamp:   event.Timestamp,
	})
}

func (n *NotificationService) post(ctx context.Context, msg any) error {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return nil
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("notification webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification webhook returned %d", resp.StatusCode)
	}
	return nil
}
