package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/gap-pos/internal/domain"
	"github.com/spec-kit/gap-pos/internal/events"
)

// DocumentJobs is the part of the policy service the document worker drives.
type DocumentJobs interface {
	RefreshDocuments(ctx context.Context, flowID string) (*domain.PolicyFlow, error)
	ArchiveDocuments(ctx context.Context, flowID string) (int, error)
}

// StartDocumentWorker prefetches documents after confirmation and archives them once listed.
// Archiving is skipped when archive is false.
func StartDocumentWorker(runner *Runner, dispatcher events.Dispatcher, jobs DocumentJobs, archive bool, logger *zap.Logger) {
	if runner == nil || dispatcher == nil || jobs == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dispatcher.Subscribe(events.EventPolicyConfirmed, runner.Async("prefetch-documents", func(ctx context.Context, event events.Event) error {
		flow, err := jobs.RefreshDocuments(ctx, event.FlowID)
		if err != nil {
			return err
		}
		if flow.Documents != nil && flow.Documents.NotYetAvailable {
			logger.Info("documents still generating", zap.String("flow_id", event.FlowID), zap.String("policy_id", event.PolicyID))
		}
		return nil
	}))

	if !archive {
		return
	}
	dispatcher.Subscribe(events.EventDocumentsReady, runner.Async("archive-documents", func(ctx context.Context, event events.Event) error {
		n, err := jobs.ArchiveDocuments(ctx, event.FlowID)
		if n > 0 {
			logger.Info("documents archived", zap.String("policy_id", event.PolicyID), zap.Int("count", n))
		}
		return err
	}))
}
