package dto

import (
	"time"

	"github.com/spec-kit/gap-pos/internal/domain"
)

// StartFlowRequest payload. The application may be supplied later.
type StartFlowRequest struct {
	Application *domain.PolicyApplication `json:"application"`
}

// LockRequest payload.
type LockRequest struct {
	AcceptedPremium *float64 `json:"accepted_premium"`
}

// SignatureRequest payload.
type SignatureRequest struct {
	SignatureType domain.SignatureType `json:"signature_type"`
}

// ConfirmSignatureRequest payload.
type ConfirmSignatureRequest struct {
	Code string `json:"code"`
}

// FlowTokenResponse is returned once, when the flow starts.
type FlowTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// StartFlowResponse response.
type StartFlowResponse struct {
	Flow FlowResponse      `json:"flow"`
	Auth FlowTokenResponse `json:"auth"`
}

// CalculationResponse describes a quote.
type CalculationResponse struct {
	QuoteID        string    `json:"quote_id"`
	Premium        float64   `json:"premium"`
	CoverageMonths int       `json:"coverage_months"`
	MaxCoverage    float64   `json:"max_coverage"`
	VehicleValue   float64   `json:"vehicle_value"`
	CalculatedAt   time.Time `json:"calculated_at"`
}

// PolicyResponse describes the reserved policy.
type PolicyResponse struct {
	PolicyID      string               `json:"policy_id"`
	PolicyNumber  string               `json:"policy_number"`
	Status        domain.PolicyStatus  `json:"status"`
	SignatureType domain.SignatureType `json:"signature_type"`
	Premium       float64              `json:"premium"`
	Environment   domain.Environment   `json:"environment"`
	ProductCode   string               `json:"product_code"`
	HolderName    string               `json:"holder_name"`
	LockedAt      time.Time            `json:"locked_at"`
	ConfirmedAt   *time.Time           `json:"confirmed_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// DocumentResponse describes one document. Download goes through this service.
type DocumentResponse struct {
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	MimeType     string    `json:"mime_type"`
	CreatedAt    time.Time `json:"created_at"`
	Archived     bool      `json:"archived"`
	DownloadPath string    `json:"download_path"`
}

// DocumentSetResponse response.
type DocumentSetResponse struct {
	PolicyID        string             `json:"policy_id"`
	NotYetAvailable bool               `json:"not_yet_available"`
	Documents       []DocumentResponse `json:"documents"`
}

// FlowResponse is the client view of a flow.
type FlowResponse struct {
	ID                 string                   `json:"id"`
	Environment        domain.Environment       `json:"environment"`
	EnvironmentLabel   string                   `json:"environment_label"`
	Status             domain.PolicyStatus      `json:"status"`
	Application        domain.PolicyApplication `json:"application"`
	Calculation        *CalculationResponse     `json:"calculation"`
	QuoteConsumed      bool                     `json:"quote_consumed"`
	LockPending        bool                     `json:"lock_pending"`
	Policy             *PolicyResponse          `json:"policy"`
	SignatureExpiresAt *time.Time               `json:"signature_expires_at"`
	Documents          *DocumentSetResponse     `json:"documents"`
	FailureReason      string                   `json:"failure_reason,omitempty"`
	CreatedAt          time.Time                `json:"created_at"`
	UpdatedAt          time.Time                `json:"updated_at"`
}
