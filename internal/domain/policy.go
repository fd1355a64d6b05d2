package domain

import "time"

// PolicyStatus enumerates lifecycle states of a policy flow.
type PolicyStatus string

const (
	PolicyStatusDraft            PolicyStatus = "DRAFT"
	PolicyStatusCalculated       PolicyStatus = "CALCULATED"
	PolicyStatusLocked           PolicyStatus = "LOCKED"
	PolicyStatusSignaturePending PolicyStatus = "SIGNATURE_PENDING"
	PolicyStatusConfirmed        PolicyStatus = "CONFIRMED"
	PolicyStatusDocumentsReady   PolicyStatus = "DOCUMENTS_READY"
	PolicyStatusFailed           PolicyStatus = "FAILED"
	PolicyStatusExpired          PolicyStatus = "EXPIRED"
)

var allowedTransitions = map[PolicyStatus][]PolicyStatus{
	PolicyStatusDraft:            {PolicyStatusCalculated, PolicyStatusFailed},
	PolicyStatusCalculated:       {PolicyStatusCalculated, PolicyStatusDraft, PolicyStatusLocked, PolicyStatusFailed},
	PolicyStatusLocked:           {PolicyStatusSignaturePending, PolicyStatusFailed},
	PolicyStatusSignaturePending: {PolicyStatusSignaturePending, PolicyStatusConfirmed, PolicyStatusExpired, PolicyStatusFailed},
	PolicyStatusConfirmed:        {PolicyStatusDocumentsReady, PolicyStatusFailed},
	PolicyStatusDocumentsReady:   {},
	PolicyStatusFailed:           {},
	PolicyStatusExpired:          {},
}

// CanTransition reports whether next is reachable from s in one step.
func (s PolicyStatus) CanTransition(next PolicyStatus) bool {
	for _, candidate := range allowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions exist.
func (s PolicyStatus) Terminal() bool {
	return len(allowedTransitions[s]) == 0
}

// SignatureType selects how the applicant authorizes the policy.
type SignatureType string

const SignatureAuthorizedBySMS SignatureType = "AUTHORIZED_BY_SMS"

// CalculationResult is one quote. Premium and amounts are major currency units.
type CalculationResult struct {
	QuoteID        string    `json:"quoteId"`
	Premium        float64   `json:"premium"`
	CoverageMonths int       `json:"coverageMonths"`
	MaxCoverage    float64   `json:"maxCoverage"`
	VehicleValue   float64   `json:"vehicleValue"`
	CalculatedAt   time.Time `json:"calculatedAt"`
}

// PolicyRecord is the policy reserved on the underwriting service. PolicyID is never generated locally.
type PolicyRecord struct {
	PolicyID      string        `json:"policyId"`
	PolicyNumber  string        `json:"policyNumber"`
	Status        PolicyStatus  `json:"status"`
	SignatureType SignatureType `json:"signatureType"`
	Premium       float64       `json:"premium"`
	Environment   Environment   `json:"environment"`
	ProductCode   string        `json:"productCode"`
	HolderName    string        `json:"holderName"`
	HolderEmail   string        `json:"holderEmail"`
	LockedAt      time.Time     `json:"lockedAt"`
	ConfirmedAt   *time.Time    `json:"confirmedAt,omitempty"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// AuthSession is a cached upstream bearer token.
type AuthSession struct {
	Token       string      `json:"token"`
	Environment Environment `json:"environment"`
	AcquiredAt  time.Time   `json:"acquiredAt"`
	ValidUntil  time.Time   `json:"validUntil"`
}

// Usable reports whether the token may still be presented at now.
func (s *AuthSession) Usable(now time.Time) bool {
	if s == nil || s.Token == "" {
		return false
	}
	return s.ValidUntil.IsZero() || now.Before(s.ValidUntil)
}
