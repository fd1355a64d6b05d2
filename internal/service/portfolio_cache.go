package service

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/gap-pos/internal/domain"
	"github.com/spec-kit/gap-pos/internal/environment"
	apperrors "github.com/spec-kit/gap-pos/pkg/util/errorutil"
)

// PortfolioSource fetches every portfolio descriptor of an environment.
type PortfolioSource interface {
	Portfolios(ctx context.Context, target environment.Target) ([]domain.PortfolioDescriptor, error)
}

// PortfolioCache is a read-through cache of portfolio descriptors per environment.
// Entries never expire; Refresh replaces an environment's set.
type PortfolioCache struct {
	source PortfolioSource
	logger *zap.Logger

	mu    sync.RWMutex
	byEnv map[domain.Environment]map[string]domain.PortfolioDescriptor
	group singleflight.Group
}

// NewPortfolioCache builds an empty cache.
func NewPortfolioCache(source PortfolioSource, logger *zap.Logger) *PortfolioCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PortfolioCache{
		source: source,
		logger: logger,
		byEnv:  make(map[domain.Environment]map[string]domain.PortfolioDescriptor),
	}
}

// Get returns the descriptor of productCode, loading the environment on first use.
func (c *PortfolioCache) Get(ctx context.Context, target environment.Target, productCode string) (domain.PortfolioDescriptor, error) {
	set, err := c.load(ctx, target)
	if err != nil {
		return domain.PortfolioDescriptor{}, err
	}
	p, ok := set[productCode]
	if !ok {
		return domain.PortfolioDescriptor{}, apperrors.NewDomainError("VALIDATION_FAILED",
			fmt.Sprintf("product %q is not offered in %s", productCode, target.Label),
			http.StatusBadRequest,
			map[string]any{"field": "productCode"},
		)
	}
	return p, nil
}

// List returns all descriptors of an environment ordered by product code.
func (c *PortfolioCache) List(ctx context.Context, target environment.Target) ([]domain.PortfolioDescriptor, error) {
	set, err := c.load(ctx, target)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PortfolioDescriptor, 0, len(set))
	for _, p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductCode < out[j].ProductCode })
	return out, nil
}

// Refresh refetches an environment and returns the number of products cached.
func (c *PortfolioCache) Refresh(ctx context.Context, target environment.Target) (int, error) {
	set, err := c.fetch(ctx, target)
	if err != nil {
		return 0, err
	}
	return len(set), nil
}

func (c *PortfolioCache) load(ctx context.Context, target environment.Target) (map[string]domain.PortfolioDescriptor, error) {
	c.mu.RLock()
	set, ok := c.byEnv[target.Environment]
	c.mu.RUnlock()
	if ok {
		return set, nil
	}

	v, err, _ := c.group.Do(string(target.Environment), func() (interface{}, error) {
		c.mu.RLock()
		cached, ok := c.byEnv[target.Environment]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}
		return c.fetch(ctx, target)
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]domain.PortfolioDescriptor), nil
}

func (c *PortfolioCache) fetch(ctx context.Context, target environment.Target) (map[string]domain.PortfolioDescriptor, error) {
	list, err := c.source.Portfolios(ctx, target)
	if err != nil {
		return nil, err
	}
	set := make(map[string]domain.PortfolioDescriptor, len(list))
	for _, p := range list {
		set[p.ProductCode] = p
	}

	c.mu.Lock()
	c.byEnv[target.Environment] = set
	c.mu.Unlock()

	c.logger.Info("portfolios cached",
		zap.String("environment", string(target.Environment)),
		zap.Int("products", len(set)),
	)
	return set, nil
}
