package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/gap-pos/internal/domain"
	"github.com/spec-kit/gap-pos/internal/environment"
	"github.com/spec-kit/gap-pos/internal/normalizer"
	"github.com/spec-kit/gap-pos/internal/retry"
	"github.com/spec-kit/gap-pos/internal/underwriting"
)

// DocumentSource lists the generated documents of a policy.
type DocumentSource interface {
	Documents(ctx context.Context, target environment.Target, policyID string) ([]underwriting.Document, error)
}

// DocumentPoller waits for asynchronous document generation.
// Only a 404 is treated as "not generated yet"; any other failure aborts at once.
type DocumentPoller struct {
	source DocumentSource
	policy retry.Policy
	logger *zap.Logger
}

// NewDocumentPoller builds a poller with a fixed delay between attempts.
func NewDocumentPoller(source DocumentSource, attempts int, delay time.Duration, logger *zap.Logger) *DocumentPoller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentPoller{
		source: source,
		policy: retry.Fixed(attempts, delay, underwriting.IsNotFound),
		logger: logger,
	}
}

// FetchDocuments returns the first successful listing, even an empty one.
// Repeated 404s yield an empty set marked NotYetAvailable and a nil error.
func (p *DocumentPoller) FetchDocuments(ctx context.Context, target environment.Target, policyID string) (domain.DocumentSet, error) {
	var docs []underwriting.Document
	err := p.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		list, err := p.source.Documents(ctx, target, policyID)
		if err != nil {
			p.logger.Debug("documents not available",
				zap.String("policy_id", policyID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}
		docs = list
		return nil
	})

	var exhausted *retry.ExhaustedError
	switch {
	case err == nil:
		return normalizer.Documents(policyID, docs), nil
	case errors.As(err, &exhausted):
		p.logger.Info("documents not yet available",
			zap.String("policy_id", policyID),
			zap.Int("attempts", exhausted.Attempts),
		)
		set := normalizer.Documents(policyID, nil)
		set.NotYetAvailable = true
		return set, nil
	default:
		return domain.DocumentSet{PolicyID: policyID}, err
	}
}
