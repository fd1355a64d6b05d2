package service

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/gap-pos/internal/config"
	"github.com/spec-kit/gap-pos/internal/domain"
	"github.com/spec-kit/gap-pos/internal/eligibility"
	"github.com/spec-kit/gap-pos/internal/environment"
	"github.com/spec-kit/gap-pos/internal/events"
	"github.com/spec-kit/gap-pos/internal/normalizer"
	"github.com/spec-kit/gap-pos/internal/repository"
	"github.com/spec-kit/gap-pos/internal/storage"
	"github.com/spec-kit/gap-pos/internal/underwriting"
	apperrors "github.com/spec-kit/gap-pos/pkg/util/errorutil"
)

// UnderwritingAPI is the part of the underwriting client the orchestrator drives.
type UnderwritingAPI interface {
	PortfolioSource
	DocumentSource
	Calculate(ctx context.Context, target environment.Target, req underwriting.CalculateRequest) (*underwriting.CalculateResponse, error)
	Lock(ctx context.Context, target environment.Target, req underwriting.LockRequest, idempotencyKey string) (*underwriting.LockResponse, error)
	StartSignature(ctx context.Context, target environment.Target, policyID string, sigType domain.SignatureType) (*underwriting.SignatureResponse, error)
	ConfirmSignature(ctx context.Context, target environment.Target, policyID, code string) (*underwriting.ConfirmSignatureResponse, error)
	Download(ctx context.Context, target environment.Target, rawURL string) (io.ReadCloser, string, error)
}

// DocumentArchive stores document copies and hands out download links.
type DocumentArchive interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// FlowRef addresses a flow from an incoming request. Environment is the client override, possibly empty.
type FlowRef struct {
	ID          string
	Environment string
}

// DocumentDownload is either a redirect to an archived copy or a proxied upstream body.
type DocumentDownload struct {
	RedirectURL string
	Body        io.ReadCloser
	ContentType string
	FileName    string
}

// PolicyService drives calculate, lock, sign, confirm and document retrieval.
type PolicyService struct {
	flows      repository.FlowRepository
	guard      repository.LockGuard
	policies   repository.PolicyRepository
	resolver   *environment.Resolver
	api        UnderwritingAPI
	portfolios *PortfolioCache
	validator  *eligibility.Validator
	poller     *DocumentPoller
	archive    DocumentArchive
	dispatcher events.Dispatcher
	logger     *zap.Logger

	session           config.SessionConfig
	signatureValidity time.Duration
	now               func() time.Time
}

// PolicyDependencies bundles collaborators of the orchestrator.
// PolicyRepo, Archive and Dispatcher are optional.
type PolicyDependencies struct {
	FlowRepo          repository.FlowRepository
	Guard             repository.LockGuard
	PolicyRepo        repository.PolicyRepository
	Resolver          *environment.Resolver
	API               UnderwritingAPI
	Portfolios        *PortfolioCache
	Validator         *eligibility.Validator
	Poller            *DocumentPoller
	Archive           DocumentArchive
	Dispatcher        events.Dispatcher
	Logger            *zap.Logger
	Session           config.SessionConfig
	SignatureValidity time.Duration
	Clock             func() time.Time
}

// NewPolicyService constructs the service.
func NewPolicyService(deps PolicyDependencies) *PolicyService {
	s := &PolicyService{
		flows:             deps.FlowRepo,
		guard:             deps.Guard,
		policies:          deps.PolicyRepo,
		resolver:          deps.Resolver,
		api:               deps.API,
		portfolios:        deps.Portfolios,
		validator:         deps.Validator,
		poller:            deps.Poller,
		archive:           deps.Archive,
		dispatcher:        deps.Dispatcher,
		logger:            deps.Logger,
		session:           deps.Session,
		signatureValidity: deps.SignatureValidity,
		now:               deps.Clock,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.validator == nil {
		s.validator = eligibility.NewValidator()
	}
	if s.guard == nil {
		s.guard = repository.NewMemoryLockGuard()
	}
	if s.portfolios == nil {
		s.portfolios = NewPortfolioCache(deps.API, s.logger)
	}
	if s.signatureValidity <= 0 {
		s.signatureValidity = 15 * time.Minute
	}
	return s
}

// Start opens a draft flow bound to the selected environment.
func (s *PolicyService) Start(ctx context.Context, envOverride string, app *domain.PolicyApplication) (*domain.PolicyFlow, error) {
	env, err := s.resolver.Select(envOverride)
	if err != nil {
		return nil, errUnknownEnvironment(err)
	}
	flow := domain.NewPolicyFlow(uuid.NewString(), env, s.now().UTC())
	if app != nil {
		flow.Application = *app
	}
	if err := s.save(ctx, flow); err != nil {
		return nil, err
	}
	s.logger.Info("flow started", zap.String("flow_id", flow.ID), zap.String("environment", string(env)))
	return flow, nil
}

// Get returns the current snapshot of a flow.
func (s *PolicyService) Get(ctx context.Context, ref FlowRef) (*domain.PolicyFlow, error) {
	flow, _, err := s.load(ctx, ref)
	return flow, err
}

// UpdateApplication replaces the application. A calculated flow drops its quote and returns to draft.
func (s *PolicyService) UpdateApplication(ctx context.Context, ref FlowRef, app domain.PolicyApplication) (*domain.PolicyFlow, error) {
	flow, _, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if flow.LockInFlight {
		return nil, errLockInProgress
	}
	if !flow.Editable() {
		return nil, errInvalidTransition(flow.Status, "edit the application")
	}

	now := s.now().UTC()
	if flow.Status == domain.PolicyStatusCalculated {
		if err := flow.Transition(domain.PolicyStatusDraft, now); err != nil {
			return nil, err
		}
	}
	flow.Application = app
	flow.Calculation = nil
	flow.QuoteConsumed = false
	flow.UpdatedAt = now

	if err := s.save(ctx, flow); err != nil {
		return nil, err
	}
	return flow, nil
}

// Calculate requests a quote. Repeating it overwrites the previous quote.
func (s *PolicyService) Calculate(ctx context.Context, ref FlowRef) (*domain.PolicyFlow, error) {
	flow, target, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if flow.Status != domain.PolicyStatusDraft && flow.Status != domain.PolicyStatusCalculated {
		return nil, errInvalidTransition(flow.Status, "calculate")
	}
	if flow.LockInFlight {
		return nil, errLockInProgress
	}

	if err := s.checkEligibility(ctx, flow.Application, target); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	resp, err := s.api.Calculate(ctx, target, normalizer.CalculateRequest(flow.Application, now))
	if err != nil {
		s.logUpstreamFailure(flow, "calculate", err)
		return nil, err
	}

	result := normalizer.CalculationResult(*resp, uuid.NewString(), now)
	flow.Calculation = &result
	flow.QuoteConsumed = false
	if err := flow.Transition(domain.PolicyStatusCalculated, now); err != nil {
		return nil, err
	}
	if err := s.save(ctx, flow); err != nil {
		return nil, err
	}
	s.logger.Info("quote calculated",
		zap.String("flow_id", flow.ID),
		zap.String("quote_id", result.QuoteID),
		zap.Float64("premium", result.Premium),
	)
	return flow, nil
}

// Lock reserves the policy at the accepted premium. It is issued at most once per quote and never retried.
func (s *PolicyService) Lock(ctx context.Context, ref FlowRef, acceptedPremium float64) (*domain.PolicyFlow, error) {
	flow, target, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if flow.Policy != nil {
		return nil, errDuplicateLock(flow.PolicyID())
	}
	if flow.Status != domain.PolicyStatusCalculated || flow.Calculation == nil {
		return nil, errInvalidTransition(flow.Status, "lock")
	}
	if flow.LockInFlight {
		return nil, errLockInProgress
	}
	if flow.QuoteConsumed {
		return nil, errQuoteConsumed
	}
	quote := *flow.Calculation
	if math.Abs(acceptedPremium-quote.Premium) >= 0.005 {
		return nil, errPremiumMismatch(acceptedPremium, quote.Premium)
	}
	if verr := s.validator.CheckSellerNode(flow.Application, target.SellerNodeCode); verr != nil {
		return nil, eligibility.ValidationErrors{*verr}
	}

	acquired, err := s.guard.Acquire(ctx, "lock:"+flow.ID+":"+quote.QuoteID, s.flowTTL())
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, errDuplicateLock("")
	}

	// The in-flight save is the point of no return: a concurrent writer that
	// loaded the flow earlier now fails its version check.
	flow.QuoteConsumed = true
	flow.LockInFlight = true
	if err := s.save(ctx, flow); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	req := normalizer.LockRequest(flow.Application, acceptedPremium, domain.SignatureAuthorizedBySMS, now)
	resp, err := s.api.Lock(ctx, target, req, quote.QuoteID)
	flow.LockInFlight = false
	if err != nil {
		s.logUpstreamFailure(flow, "lock", err)
		var malformed *underwriting.MalformedResponseError
		if errors.As(err, &malformed) {
			// The reservation may exist upstream without an id we can use.
			s.fail(ctx, flow, "lock response unreadable: "+err.Error())
		} else if serr := s.save(ctx, flow); serr != nil {
			s.logger.Error("release lock marker", zap.String("flow_id", flow.ID), zap.Error(serr))
		}
		return nil, err
	}

	holder := flow.Application.Client.PolicyHolder
	flow.Policy = &domain.PolicyRecord{
		PolicyID:      resp.PolicyID,
		PolicyNumber:  resp.PolicyNumber,
		SignatureType: domain.SignatureAuthorizedBySMS,
		Premium:       acceptedPremium,
		Environment:   flow.Environment,
		ProductCode:   flow.Application.ProductCode,
		HolderName:    holder.FullName(),
		HolderEmail:   holder.Email,
		LockedAt:      now,
	}
	if err := flow.Transition(domain.PolicyStatusLocked, now); err != nil {
		return nil, err
	}
	if err := s.save(ctx, flow); err != nil {
		s.logger.Error("store locked flow",
			zap.String("flow_id", flow.ID),
			zap.String("policy_id", resp.PolicyID),
			zap.Error(err),
		)
		return nil, err
	}

	if s.policies != nil {
		if err := s.policies.Create(ctx, flow.ID, flow.Policy); err != nil {
			s.logger.Error("persist locked policy", zap.String("policy_id", resp.PolicyID), zap.Error(err))
		}
	}
	s.publish(ctx, events.NewEvent(events.EventPolicyLocked, flow, events.PolicyLockedPayload{
		PolicyNumber: resp.PolicyNumber,
		Premium:      acceptedPremium,
		ProductCode:  flow.Application.ProductCode,
	}))
	s.logger.Info("policy locked",
		zap.String("flow_id", flow.ID),
		zap.String("policy_id", resp.PolicyID),
		zap.String("policy_number", resp.PolicyNumber),
	)
	return flow, nil
}

// InitiateSignature asks the underwriting service to send the SMS code. Calling it again resends the code.
func (s *PolicyService) InitiateSignature(ctx context.Context, ref FlowRef, sigType domain.SignatureType) (*domain.PolicyFlow, error) {
	flow, target, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if flow.Status == domain.PolicyStatusExpired {
		return nil, errSignatureExpired
	}
	if flow.Status != domain.PolicyStatusLocked && flow.Status != domain.PolicyStatusSignaturePending {
		return nil, errInvalidTransition(flow.Status, "start the signature")
	}
	if sigType == "" {
		sigType = domain.SignatureAuthorizedBySMS
	}
	resent := flow.Status == domain.PolicyStatusSignaturePending

	resp, err := s.api.StartSignature(ctx, target, flow.PolicyID(), sigType)
	if err != nil {
		s.logUpstreamFailure(flow, "signature", err)
		return nil, err
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.signatureValidity)
	if resp.ValidUntil != nil && resp.ValidUntil.After(now) {
		expiresAt = resp.ValidUntil.UTC()
	}
	flow.SignatureExpiresAt = &expiresAt
	flow.Policy.SignatureType = sigType
	if err := flow.Transition(domain.PolicyStatusSignaturePending, now); err != nil {
		return nil, err
	}
	if err := s.save(ctx, flow); err != nil {
		return nil, err
	}
	s.updatePolicy(ctx, flow)
	s.publish(ctx, events.NewEvent(events.EventSignatureRequested, flow, events.SignatureRequestedPayload{
		SignatureType: sigType,
		ExpiresAt:     expiresAt,
		Resent:        resent,
	}))
	return flow, nil
}

// ConfirmSignature submits the SMS code. A rejected code keeps the flow pending.
func (s *PolicyService) ConfirmSignature(ctx context.Context, ref FlowRef, code string) (*domain.PolicyFlow, error) {
	flow, target, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if flow.Status == domain.PolicyStatusExpired {
		return nil, errSignatureExpired
	}
	if flow.PolicyID() == "" || flow.Status != domain.PolicyStatusSignaturePending {
		return nil, errInvalidTransition(flow.Status, "confirm the signature")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperrors.NewValidationError("confirmation code is required", map[string]any{"field": "code"})
	}

	resp, err := s.api.ConfirmSignature(ctx, target, flow.PolicyID(), code)
	if err != nil {
		if ext, ok := underwriting.Rejected(err); ok && ext.StatusCode >= http.StatusBadRequest && ext.StatusCode < http.StatusInternalServerError {
			return nil, errInvalidSignatureCode(err)
		}
		s.logUpstreamFailure(flow, "confirm-signature", err)
		return nil, err
	}

	now := s.now().UTC()
	flow.Policy.ConfirmedAt = &now
	if resp.PolicyNumber != "" {
		flow.Policy.PolicyNumber = resp.PolicyNumber
	}
	if err := flow.Transition(domain.PolicyStatusConfirmed, now); err != nil {
		return nil, err
	}
	if err := s.save(ctx, flow); err != nil {
		return nil, err
	}
	s.updatePolicy(ctx, flow)

	payload := events.PolicyConfirmedPayload{Policy: *flow.Policy, Contact: flow.Application.Client.PolicyHolder}
	if flow.Calculation != nil {
		payload.Calculation = *flow.Calculation
	}
	s.publish(ctx, events.NewEvent(events.EventPolicyConfirmed, flow, payload))
	s.logger.Info("policy confirmed", zap.String("flow_id", flow.ID), zap.String("policy_id", flow.PolicyID()))
	return flow, nil
}

// FetchDocuments polls for documents of a confirmed flow.
func (s *PolicyService) FetchDocuments(ctx context.Context, ref FlowRef) (*domain.PolicyFlow, error) {
	flow, target, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.fetchDocuments(ctx, flow, target)
}

// RefreshDocuments is FetchDocuments for background callers that address a flow by id only.
func (s *PolicyService) RefreshDocuments(ctx context.Context, flowID string) (*domain.PolicyFlow, error) {
	flow, target, err := s.loadByID(ctx, flowID)
	if err != nil {
		return nil, err
	}
	return s.fetchDocuments(ctx, flow, target)
}

func (s *PolicyService) fetchDocuments(ctx context.Context, flow *domain.PolicyFlow, target environment.Target) (*domain.PolicyFlow, error) {
	if flow.Status == domain.PolicyStatusDocumentsReady {
		return flow, nil
	}
	if flow.Status != domain.PolicyStatusConfirmed {
		return nil, errInvalidTransition(flow.Status, "fetch documents")
	}

	set, err := s.poller.FetchDocuments(ctx, target, flow.PolicyID())
	if err != nil {
		s.logUpstreamFailure(flow, "documents", err)
		return nil, err
	}

	now := s.now().UTC()
	flow.Documents = &set
	flow.UpdatedAt = now
	if !set.Empty() {
		if err := flow.Transition(domain.PolicyStatusDocumentsReady, now); err != nil {
			return nil, err
		}
	}
	if err := s.save(ctx, flow); err != nil {
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, err
		}
		// Another poller stored the documents first.
		current, _, lerr := s.loadByID(ctx, flow.ID)
		if lerr == nil && current.Status == domain.PolicyStatusDocumentsReady {
			return current, nil
		}
		return nil, err
	}
	if set.Empty() {
		return flow, nil
	}

	s.updatePolicy(ctx, flow)
	if s.policies != nil {
		if err := s.policies.ReplaceDocuments(ctx, set); err != nil {
			s.logger.Error("persist documents", zap.String("policy_id", flow.PolicyID()), zap.Error(err))
		}
	}
	s.publish(ctx, events.NewEvent(events.EventDocumentsReady, flow, events.DocumentsReadyPayload{Documents: set}))
	return flow, nil
}

// ArchiveDocuments copies every not yet archived document to object storage.
func (s *PolicyService) ArchiveDocuments(ctx context.Context, flowID string) (int, error) {
	if s.archive == nil {
		return 0, nil
	}
	flow, target, err := s.loadByID(ctx, flowID)
	if err != nil {
		return 0, err
	}
	if flow.Documents == nil || flow.Documents.Empty() {
		return 0, nil
	}

	keys := map[string]string{}
	var firstErr error
	for _, doc := range flow.Documents.Documents {
		if doc.ArchiveKey != "" {
			continue
		}
		key := storage.Key(flow.Environment, flow.PolicyID(), doc)
		if err := s.archiveOne(ctx, target, key, doc); err != nil {
			s.logger.Warn("archive document", zap.String("policy_id", flow.PolicyID()), zap.String("code", doc.Code), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		keys[doc.Code] = key
	}
	archived := len(keys)
	if archived == 0 {
		return 0, firstErr
	}

	flow, err = s.storeArchiveKeys(ctx, flow, keys)
	if err != nil {
		return archived, err
	}
	if s.policies != nil {
		if err := s.policies.ReplaceDocuments(ctx, *flow.Documents); err != nil {
			s.logger.Error("persist archive keys", zap.String("policy_id", flow.PolicyID()), zap.Error(err))
		}
	}
	return archived, firstErr
}

// storeArchiveKeys writes keys onto the flow, reapplying them to a fresh copy when a concurrent save won.
func (s *PolicyService) storeArchiveKeys(ctx context.Context, flow *domain.PolicyFlow, keys map[string]string) (*domain.PolicyFlow, error) {
	const attempts = 3
	for i := 0; ; i++ {
		for j := range flow.Documents.Documents {
			doc := &flow.Documents.Documents[j]
			if key, ok := keys[doc.Code]; ok && doc.ArchiveKey == "" {
				doc.ArchiveKey = key
			}
		}
		err := s.save(ctx, flow)
		if err == nil || !errors.Is(err, repository.ErrVersionConflict) || i == attempts-1 {
			return flow, err
		}
		if flow, _, err = s.loadByID(ctx, flow.ID); err != nil {
			return nil, err
		}
		if flow.Documents == nil {
			return nil, errConcurrentUpdate(flow.ID, repository.ErrVersionConflict)
		}
	}
}

func (s *PolicyService) archiveOne(ctx context.Context, target environment.Target, key string, doc domain.Document) error {
	body, contentType, err := s.api.Download(ctx, target, doc.URL)
	if err != nil {
		return err
	}
	defer body.Close()
	if contentType == "" {
		contentType = doc.MimeType
	}
	return s.archive.Put(ctx, key, contentType, body)
}

// OpenDocument resolves a document download: the archived copy when present, otherwise the upstream body.
func (s *PolicyService) OpenDocument(ctx context.Context, ref FlowRef, code string) (*DocumentDownload, error) {
	flow, target, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if flow.Documents == nil {
		return nil, apperrors.NewNotFound("document", map[string]any{"code": code})
	}
	doc, ok := flow.Documents.Find(code)
	if !ok {
		return nil, apperrors.NewNotFound("document", map[string]any{"code": code})
	}

	if doc.ArchiveKey != "" && s.archive != nil {
		url, err := s.archive.PresignGet(ctx, doc.ArchiveKey, 15*time.Minute)
		if err == nil {
			return &DocumentDownload{RedirectURL: url, FileName: doc.Name}, nil
		}
		s.logger.Warn("presign archived document", zap.String("key", doc.ArchiveKey), zap.Error(err))
	}

	body, contentType, err := s.api.Download(ctx, target, doc.URL)
	if err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = doc.MimeType
	}
	return &DocumentDownload{Body: body, ContentType: contentType, FileName: doc.Name}, nil
}

// Abandon ends a flow. Before lock the session is simply cleared; a locked policy is marked failed
// and its upstream reservation is left as is.
func (s *PolicyService) Abandon(ctx context.Context, ref FlowRef) error {
	flow, _, err := s.load(ctx, ref)
	if err != nil {
		return err
	}
	if flow.LockInFlight {
		return errLockInProgress
	}
	if flow.Policy == nil || flow.Status.Terminal() {
		return s.flows.Delete(ctx, flow.ID)
	}
	s.fail(ctx, flow, "abandoned by applicant")
	return nil
}

func (s *PolicyService) checkEligibility(ctx context.Context, app domain.PolicyApplication, target environment.Target) error {
	if verr := s.validator.CheckSellerNode(app, target.SellerNodeCode); verr != nil {
		return eligibility.ValidationErrors{*verr}
	}
	portfolio, err := s.portfolios.Get(ctx, target, app.ProductCode)
	if err != nil {
		return err
	}
	if errs := s.validator.Validate(app, target.SellerNodeCode, portfolio); len(errs) > 0 {
		return errs
	}
	return nil
}

// load fetches a flow and rejects requests that resolve to another environment.
func (s *PolicyService) load(ctx context.Context, ref FlowRef) (*domain.PolicyFlow, environment.Target, error) {
	flow, target, err := s.loadByID(ctx, ref.ID)
	if err != nil {
		return nil, environment.Target{}, err
	}
	requested, err := s.resolver.Select(ref.Environment)
	if err != nil {
		return nil, environment.Target{}, errUnknownEnvironment(err)
	}
	if requested != flow.Environment {
		return nil, environment.Target{}, errEnvironmentMismatch(flow.Environment, requested)
	}
	return flow, target, nil
}

func (s *PolicyService) loadByID(ctx context.Context, id string) (*domain.PolicyFlow, environment.Target, error) {
	flow, err := s.flows.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, environment.Target{}, errFlowNotFound(id)
	}
	if err != nil {
		return nil, environment.Target{}, err
	}
	target, err := s.resolver.Target(flow.Environment)
	if err != nil {
		return nil, environment.Target{}, err
	}

	if now := s.now().UTC(); flow.SignatureExpired(now) {
		if err := flow.Transition(domain.PolicyStatusExpired, now); err == nil {
			flow.FailureReason = "signature window closed"
			if err := s.save(ctx, flow); err != nil {
				return nil, environment.Target{}, err
			}
			s.updatePolicy(ctx, flow)
			s.publish(ctx, events.NewEvent(events.EventFlowFailed, flow, events.FlowFailedPayload{
				FromStatus: domain.PolicyStatusSignaturePending,
				Reason:     flow.FailureReason,
			}))
		}
	}
	return flow, target, nil
}

func (s *PolicyService) fail(ctx context.Context, flow *domain.PolicyFlow, reason string) {
	from := flow.Status
	if err := flow.Transition(domain.PolicyStatusFailed, s.now().UTC()); err != nil {
		return
	}
	flow.LockInFlight = false
	flow.FailureReason = reason
	if err := s.save(ctx, flow); err != nil {
		s.logger.Error("save failed flow", zap.String("flow_id", flow.ID), zap.Error(err))
	}
	s.updatePolicy(ctx, flow)
	s.publish(ctx, events.NewEvent(events.EventFlowFailed, flow, events.FlowFailedPayload{FromStatus: from, Reason: reason}))
}

func (s *PolicyService) save(ctx context.Context, flow *domain.PolicyFlow) error {
	ttl := s.flowTTL()
	if flow.Status.Terminal() && s.session.CompletedRetention > 0 {
		ttl = s.session.CompletedRetention
	}
	err := s.flows.Save(ctx, flow, ttl)
	if errors.Is(err, repository.ErrVersionConflict) {
		return errConcurrentUpdate(flow.ID, err)
	}
	return err
}

func (s *PolicyService) flowTTL() time.Duration {
	if s.session.FlowTTL > 0 {
		return s.session.FlowTTL
	}
	return 24 * time.Hour
}

func (s *PolicyService) updatePolicy(ctx context.Context, flow *domain.PolicyFlow) {
	if s.policies == nil || flow.Policy == nil {
		return
	}
	if err := s.policies.Update(ctx, flow.Policy); err != nil {
		s.logger.Error("persist policy status", zap.String("policy_id", flow.PolicyID()), zap.Error(err))
	}
}

func (s *PolicyService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func (s *PolicyService) logUpstreamFailure(flow *domain.PolicyFlow, stage string, err error) {
	s.logger.Warn("underwriting call failed",
		zap.String("flow_id", flow.ID),
		zap.String("stage", stage),
		zap.String("status", string(flow.Status)),
		zap.Int("upstream_status", underwriting.StatusOf(err)),
		zap.Error(err),
	)
}
