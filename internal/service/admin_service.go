package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/gap-pos/internal/domain"
	"github.com/spec-kit/gap-pos/internal/environment"
	"github.com/spec-kit/gap-pos/internal/repository"
)

// SessionInspector reports the cached upstream session of an environment.
type SessionInspector interface {
	Session(ctx context.Context, env domain.Environment) (*domain.AuthSession, error)
}

// EnvironmentStatus describes the active environment to operators.
type EnvironmentStatus struct {
	Active            domain.Environment `json:"active"`
	Label             string             `json:"label"`
	APIURL            string             `json:"apiUrl"`
	SellerNodeCode    string             `json:"sellerNodeCode"`
	SessionCached     bool               `json:"sessionCached"`
	SessionValidUntil *time.Time         `json:"sessionValidUntil,omitempty"`
}

// AdminService backs the operator endpoints.
type AdminService struct {
	resolver   *environment.Resolver
	portfolios *PortfolioCache
	policies   repository.PolicyRepository
	sessions   SessionInspector
}

// AdminDependencies bundles collaborators. Policies and Sessions are optional.
type AdminDependencies struct {
	Resolver   *environment.Resolver
	Portfolios *PortfolioCache
	PolicyRepo repository.PolicyRepository
	Sessions   SessionInspector
}

// NewAdminService constructs the service.
func NewAdminService(deps AdminDependencies) *AdminService {
	return &AdminService{
		resolver:   deps.Resolver,
		portfolios: deps.Portfolios,
		policies:   deps.PolicyRepo,
		sessions:   deps.Sessions,
	}
}

// Environment returns the active environment.
func (s *AdminService) Environment(ctx context.Context) (EnvironmentStatus, error) {
	target, err := s.resolver.Target(s.resolver.Active())
	if err != nil {
		return EnvironmentStatus{}, err
	}
	status := EnvironmentStatus{
		Active:         target.Environment,
		Label:          target.Label,
		APIURL:         target.APIURL,
		SellerNodeCode: target.SellerNodeCode,
	}
	if s.sessions != nil {
		session, err := s.sessions.Session(ctx, target.Environment)
		if err == nil && session != nil && session.Usable(time.Now()) {
			status.SessionCached = true
			if !session.ValidUntil.IsZero() {
				until := session.ValidUntil
				status.SessionValidUntil = &until
			}
		}
	}
	return status, nil
}

// SwitchEnvironment changes the process-wide environment. Flows already started keep theirs.
func (s *AdminService) SwitchEnvironment(ctx context.Context, raw string) (EnvironmentStatus, error) {
	env, err := domain.ParseEnvironment(raw)
	if err != nil {
		return EnvironmentStatus{}, errUnknownEnvironment(err)
	}
	if err := s.resolver.SetActive(env); err != nil {
		return EnvironmentStatus{}, errUnknownEnvironment(err)
	}
	return s.Environment(ctx)
}

// RefreshPortfolios refetches the portfolio descriptors of an environment.
func (s *AdminService) RefreshPortfolios(ctx context.Context, envOverride string) (domain.Environment, int, error) {
	target, err := s.resolver.Resolve(envOverride)
	if err != nil {
		return "", 0, errUnknownEnvironment(err)
	}
	n, err := s.portfolios.Refresh(ctx, target)
	return target.Environment, n, err
}

// ListPolicies searches the policy ledger. Without a database the ledger is empty.
func (s *AdminService) ListPolicies(ctx context.Context, filter repository.PolicyFilter) ([]domain.PolicyRecord, error) {
	if s.policies == nil {
		return []domain.PolicyRecord{}, nil
	}
	return s.policies.ListWithFilter(ctx, filter)
}

// Policy returns one ledger entry with its documents.
func (s *AdminService) Policy(ctx context.Context, policyID string) (*domain.PolicyRecord, []domain.Document, error) {
	if s.policies == nil {
		return nil, nil, errPolicyNotFound(policyID)
	}
	record, err := s.policies.GetByPolicyID(ctx, policyID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, errPolicyNotFound(policyID)
	}
	if err != nil {
		return nil, nil, err
	}
	docs, err := s.policies.ListDocuments(ctx, policyID)
	if err != nil {
		return nil, nil, err
	}
	return record, docs, nil
}
