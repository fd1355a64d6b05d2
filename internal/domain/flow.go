package domain

import (
	"fmt"
	"time"
)

// PolicyFlow is one applicant's run through calculation, lock, signature and documents.
// It is the serializable session snapshot persisted between requests. Version is
// owned by the flow store and bumped on every successful save.
type PolicyFlow struct {
	ID                 string             `json:"id"`
	Environment        Environment        `json:"environment"`
	Status             PolicyStatus       `json:"status"`
	Application        PolicyApplication  `json:"application"`
	Calculation        *CalculationResult `json:"calculation,omitempty"`
	QuoteConsumed      bool               `json:"quoteConsumed"`
	LockInFlight       bool               `json:"lockInFlight,omitempty"`
	Policy             *PolicyRecord      `json:"policy,omitempty"`
	SignatureExpiresAt *time.Time         `json:"signatureExpiresAt,omitempty"`
	Documents          *DocumentSet       `json:"documents,omitempty"`
	FailureReason      string             `json:"failureReason,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
	Version            int64              `json:"version"`
}

// NewPolicyFlow starts a draft flow bound to env.
func NewPolicyFlow(id string, env Environment, now time.Time) *PolicyFlow {
	return &PolicyFlow{
		ID:          id,
		Environment: env,
		Status:      PolicyStatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Transition moves the flow to next when the state machine allows it.
func (f *PolicyFlow) Transition(next PolicyStatus, now time.Time) error {
	if !f.Status.CanTransition(next) {
		return fmt.Errorf("transition %s -> %s not allowed", f.Status, next)
	}
	f.Status = next
	f.UpdatedAt = now
	if f.Policy != nil {
		f.Policy.Status = next
		f.Policy.UpdatedAt = now
	}
	return nil
}

// PolicyID returns the assigned policy id or "".
func (f *PolicyFlow) PolicyID() string {
	if f.Policy == nil {
		return ""
	}
	return f.Policy.PolicyID
}

// SignatureExpired reports whether the pending signature is past its validity window.
func (f *PolicyFlow) SignatureExpired(now time.Time) bool {
	return f.Status == PolicyStatusSignaturePending &&
		f.SignatureExpiresAt != nil &&
		!now.Before(*f.SignatureExpiresAt)
}

// Editable reports whether the application may still change.
func (f *PolicyFlow) Editable() bool {
	return f.Policy == nil && !f.LockInFlight &&
		(f.Status == PolicyStatusDraft || f.Status == PolicyStatusCalculated)
}
