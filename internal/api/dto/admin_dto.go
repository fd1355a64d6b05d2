package dto

import (
	"time"

	"github.com/spec-kit/gap-pos/internal/domain"
)

// SetEnvironmentRequest payload.
type SetEnvironmentRequest struct {
	Environment string `json:"environment"`
}

// PolicyListQuery captures query filters for the operator listing.
type PolicyListQuery struct {
	Statuses    []domain.PolicyStatus
	Environment *domain.Environment
	ProductCode *string
	SearchTerm  *string
	LockedFrom  *time.Time
	LockedTo    *time.Time
	Page        int
	PageSize    int
}

// PolicyDetailResponse provides a ledger entry with its documents.
type PolicyDetailResponse struct {
	PolicyResponse
	HolderEmail string             `json:"holder_email"`
	Documents   []DocumentResponse `json:"documents"`
}

// RefreshResponse reports a portfolio refresh.
type RefreshResponse struct {
	Environment domain.Environment `json:"environment"`
	Products    int                `json:"products"`
}
