package service

import (
	"fmt"
	"net/http"

	"github.com/spec-kit/gap-pos/internal/domain"
	apperrors "github.com/spec-kit/gap-pos/pkg/util/errorutil"
)

func errEnvironmentMismatch(flowEnv, requested domain.Environment) error {
	return apperrors.NewDomainError("ENVIRONMENT_MISMATCH",
		fmt.Sprintf("flow was started against %s and cannot continue against %s", flowEnv.Label(), requested.Label()),
		http.StatusConflict,
		map[string]any{"flow_environment": flowEnv, "requested_environment": requested},
	)
}

func errInvalidTransition(status domain.PolicyStatus, action string) error {
	return apperrors.NewDomainError("INVALID_TRANSITION",
		fmt.Sprintf("cannot %s while the flow is %s", action, status),
		http.StatusConflict,
		map[string]any{"status": status, "action": action},
	)
}

func errDuplicateLock(policyID string) error {
	details := map[string]any{}
	if policyID != "" {
		details["policy_id"] = policyID
	}
	return apperrors.NewDomainError("DUPLICATE_LOCK", "a lock for this quote was already submitted", http.StatusConflict, details)
}

var errQuoteConsumed = apperrors.NewDomainError("QUOTE_CONSUMED",
	"this quote was already used for a lock attempt; calculate again before locking", http.StatusConflict, nil)

func errPremiumMismatch(accepted, quoted float64) error {
	return apperrors.NewDomainError("PREMIUM_MISMATCH",
		fmt.Sprintf("accepted premium %.2f differs from quoted premium %.2f", accepted, quoted),
		http.StatusConflict,
		map[string]any{"accepted": accepted, "quoted": quoted},
	)
}

var errSignatureExpired = apperrors.NewDomainError("SIGNATURE_EXPIRED",
	"the signature window has closed; start a new application", http.StatusGone, nil)

func errInvalidSignatureCode(cause error) error {
	return apperrors.NewDomainError("INVALID_SIGNATURE_CODE", "the confirmation code is invalid or expired", http.StatusUnprocessableEntity, nil).
		WithCause(cause)
}

func errUnknownEnvironment(err error) error {
	return apperrors.NewValidationError(err.Error(), map[string]any{"field": "environment"})
}

func errFlowNotFound(id string) error {
	return apperrors.NewNotFound("flow", map[string]any{"flow_id": id})
}

func errPolicyNotFound(id string) error {
	return apperrors.NewNotFound("policy", map[string]any{"policy_id": id})
}

var errLockInProgress = apperrors.NewDomainError("LOCK_IN_PROGRESS",
	"a lock request for this flow is still waiting on the insurer", http.StatusConflict, nil)

func errConcurrentUpdate(flowID string, cause error) error {
	return apperrors.NewDomainError("CONCURRENT_UPDATE",
		"the flow was changed by another request; reload it and retry", http.StatusConflict,
		map[string]any{"flow_id": flowID}).WithCause(cause)
}
