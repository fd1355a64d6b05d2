package service

import (
	"context"
	"strings"

	"github.com/spec-kit/gap-pos/internal/domain"
	"github.com/spec-kit/gap-pos/internal/environment"
	apperrors "github.com/spec-kit/gap-pos/pkg/util/errorutil"
)

// ReferenceAPI lists the dictionaries used to fill the application form.
type ReferenceAPI interface {
	Products(ctx context.Context, target environment.Target) ([]domain.Product, error)
	Makes(ctx context.Context, target environment.Target) ([]domain.VehicleMake, error)
	Models(ctx context.Context, target environment.Target, makeID string) ([]domain.VehicleModel, error)
}

// ReferenceService serves reference data for the environment a request resolves to.
type ReferenceService struct {
	api        ReferenceAPI
	portfolios *PortfolioCache
	resolver   *environment.Resolver
}

// NewReferenceService constructs the service.
func NewReferenceService(api ReferenceAPI, portfolios *PortfolioCache, resolver *environment.Resolver) *ReferenceService {
	return &ReferenceService{api: api, portfolios: portfolios, resolver: resolver}
}

func (s *ReferenceService) target(override string) (environment.Target, error) {
	target, err := s.resolver.Resolve(override)
	if err != nil {
		return environment.Target{}, errUnknownEnvironment(err)
	}
	return target, nil
}

// Products lists sellable products.
func (s *ReferenceService) Products(ctx context.Context, envOverride string) ([]domain.Product, error) {
	target, err := s.target(envOverride)
	if err != nil {
		return nil, err
	}
	return s.api.Products(ctx, target)
}

// Makes lists vehicle makes.
func (s *ReferenceService) Makes(ctx context.Context, envOverride string) ([]domain.VehicleMake, error) {
	target, err := s.target(envOverride)
	if err != nil {
		return nil, err
	}
	return s.api.Makes(ctx, target)
}

// Models lists the models of one make.
func (s *ReferenceService) Models(ctx context.Context, envOverride, makeID string) ([]domain.VehicleModel, error) {
	makeID = strings.TrimSpace(makeID)
	if makeID == "" {
		return nil, apperrors.NewValidationError("make is required", map[string]any{"field": "make"})
	}
	target, err := s.target(envOverride)
	if err != nil {
		return nil, err
	}
	return s.api.Models(ctx, target, makeID)
}

// Portfolio returns the cached descriptor of a product.
func (s *ReferenceService) Portfolio(ctx context.Context, envOverride, productCode string) (domain.PortfolioDescriptor, error) {
	target, err := s.target(envOverride)
	if err != nil {
		return domain.PortfolioDescriptor{}, err
	}
	return s.portfolios.Get(ctx, target, productCode)
}
