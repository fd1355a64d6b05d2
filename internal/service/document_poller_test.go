package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/gap-pos/internal/domain"
	"github.com/spec-kit/gap-pos/internal/environment"
	"github.com/spec-kit/gap-pos/internal/underwriting"
)

type scriptedDocuments struct {
	mu      sync.Mutex
	results []error
	empty   bool
	calls   int
	at      []time.Time
}

func (s *scriptedDocuments) Documents(context.Context, environment.Target, string) ([]underwriting.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	s.at = append(s.at, time.Now())
	if i < len(s.results) && s.results[i] != nil {
		return nil, s.results[i]
	}
	if s.empty {
		return []underwriting.Document{}, nil
	}
	return []underwriting.Document{{Code: "POLICY", Name: "Policy", URL: "/files/p.pdf", MimeType: "application/pdf"}}, nil
}

var notFound = &underwriting.ExternalServiceError{Endpoint: "documents", StatusCode: http.StatusNotFound, Message: "not generated"}

func TestDocumentPoller_RetriesNotFound(t *testing.T) {
	src := &scriptedDocuments{results: []error{notFound, notFound}}
	p := NewDocumentPoller(src, 3, time.Millisecond, nil)

	set, err := p.FetchDocuments(context.Background(), environment.Target{}, "POL-1")
	require.NoError(t, err)
	assert.Equal(t, 3, src.calls)
	assert.False(t, set.NotYetAvailable)
	require.Len(t, set.Documents, 1)
	assert.Equal(t, "POL-1", set.PolicyID)
}

func TestDocumentPoller_EmptyListingEndsPolling(t *testing.T) {
	src := &scriptedDocuments{empty: true}
	p := NewDocumentPoller(src, 3, time.Millisecond, nil)

	set, err := p.FetchDocuments(context.Background(), environment.Target{}, "POL-1")
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
	assert.False(t, set.NotYetAvailable)
	assert.True(t, set.Empty())
}

func TestDocumentPoller_AttemptsAreSpacedByDelay(t *testing.T) {
	const delay = 20 * time.Millisecond
	src := &scriptedDocuments{results: []error{notFound, notFound}}
	p := NewDocumentPoller(src, 3, delay, nil)

	start := time.Now()
	set, err := p.FetchDocuments(context.Background(), environment.Target{}, "POL-1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 2*delay)
	assert.Equal(t, 3, src.calls)
	require.Len(t, src.at, 3)
	for i := 1; i < len(src.at); i++ {
		assert.GreaterOrEqual(t, src.at[i].Sub(src.at[i-1]), delay)
	}
	assert.Len(t, set.Documents, 1)
}

func TestDocumentPoller_ExhaustedIsSoftOutcome(t *testing.T) {
	src := &scriptedDocuments{results: []error{notFound, notFound, notFound}}
	p := NewDocumentPoller(src, 3, time.Millisecond, nil)

	set, err := p.FetchDocuments(context.Background(), environment.Target{}, "POL-1")
	require.NoError(t, err)
	assert.Equal(t, 3, src.calls)
	assert.True(t, set.NotYetAvailable)
	assert.True(t, set.Empty())
}

func TestDocumentPoller_OtherErrorsAbort(t *testing.T) {
	boom := &underwriting.ExternalServiceError{Endpoint: "documents", StatusCode: http.StatusInternalServerError, Message: "boom"}
	src := &scriptedDocuments{results: []error{boom}}
	p := NewDocumentPoller(src, 3, time.Millisecond, nil)

	_, err := p.FetchDocuments(context.Background(), environment.Target{}, "POL-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, 1, src.calls)
}

type countingPortfolios struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingPortfolios) Portfolios(context.Context, environment.Target) ([]domain.PortfolioDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []domain.PortfolioDescriptor{{ProductCode: "GAP_MAX"}, {ProductCode: "GAP"}}, nil
}

func TestPortfolioCache_LoadsOncePerEnvironment(t *testing.T) {
	src := &countingPortfolios{}
	cache := NewPortfolioCache(src, nil)
	ctx := context.Background()
	test := environment.Target{Environment: domain.EnvironmentTest, Label: "Test"}
	prod := environment.Target{Environment: domain.EnvironmentProduction, Label: "Production"}

	p, err := cache.Get(ctx, test, "GAP")
	require.NoError(t, err)
	assert.Equal(t, "GAP", p.ProductCode)

	_, err = cache.Get(ctx, test, "GAP_MAX")
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	list, err := cache.List(ctx, prod)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "GAP", list[0].ProductCode)
	assert.Equal(t, 2, src.calls)

	n, err := cache.Refresh(ctx, test)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, src.calls)
}

func TestPortfolioCache_UnknownProduct(t *testing.T) {
	cache := NewPortfolioCache(&countingPortfolios{}, nil)

	_, err := cache.Get(context.Background(), environment.Target{Environment: domain.EnvironmentTest}, "NOPE")
	assert.Equal(t, "VALIDATION_FAILED", errorCode(err))
}

func TestPortfolioCache_FailureIsNotCached(t *testing.T) {
	src := &countingPortfolios{err: errors.New("upstream down")}
	cache := NewPortfolioCache(src, nil)
	ctx := context.Background()
	target := environment.Target{Environment: domain.EnvironmentTest}

	_, err := cache.Get(ctx, target, "GAP")
	require.Error(t, err)

	src.err = nil
	_, err = cache.Get(ctx, target, "GAP")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}
