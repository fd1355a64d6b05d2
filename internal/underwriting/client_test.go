package underwriting

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/gap-pos/internal/domain"
	"github.com/spec-kit/gap-pos/internal/environment"
	"github.com/spec-kit/gap-pos/internal/observability"
)

type countingTokens struct {
	mu          sync.Mutex
	issued      int
	invalidated []string
}

func (c *countingTokens) Token(context.Context, environment.Target) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issued++
	return fmt.Sprintf("token-%d", c.issued), nil
}

func (c *countingTokens) Invalidate(_ context.Context, _ domain.Environment, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, token)
}

func testTarget(url string) environment.Target {
	return environment.Target{
		Environment:    domain.EnvironmentTest,
		Label:          "Test",
		BaseURL:        url,
		APIURL:         url + "/api/v1",
		Username:       "seller",
		Password:       "secret",
		SellerNodeCode: "NODE-1",
	}
}

func TestClient_ReacquiresTokenOnceAfter401(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "token-2", r.Header.Get("X-Auth-Token"))
		assert.Equal(t, "Bearer token-2", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"premium":189000,"details":{"coveragePeriod":36,"maxCoverage":5000000,"vehicleValue":15000000}}`))
	}))
	defer srv.Close()

	tokens := &countingTokens{}
	metrics := observability.NewMetrics()
	client := NewClient(srv.Client(), tokens, metrics, nil)

	resp, err := client.Calculate(context.Background(), testTarget(srv.URL), CalculateRequest{ProductCode: "GAP"})
	require.NoError(t, err)
	assert.Equal(t, MinorUnits(189000), resp.Premium)
	assert.Equal(t, 36, resp.Details.CoverageMonths)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	assert.Equal(t, 2, tokens.issued)
	assert.Equal(t, []string{"token-1"}, tokens.invalidated)
}

func TestClient_RepeatedRejectionIsAuthError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), &countingTokens{}, nil, nil)
	_, err := client.Products(context.Background(), testTarget(srv.URL))

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusForbidden, authErr.StatusCode)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestClient_ViolationsJoinedIntoMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"violations":[{"propertyPath":"vehicleSnapshot.vin","message":"is invalid"},{"propertyPath":"vehicleSnapshot.mileage","message":"is too high"}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), &countingTokens{}, nil, nil)
	_, err := client.Calculate(context.Background(), testTarget(srv.URL), CalculateRequest{})

	var ext *ExternalServiceError
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, "vehicleSnapshot.vin: is invalid; vehicleSnapshot.mileage: is too high", ext.Error())
	assert.Equal(t, http.StatusUnprocessableEntity, ext.DomainStatus())
}

func TestClient_GenericErrorKeepsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"calculation engine offline"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), &countingTokens{}, nil, nil)
	_, err := client.Calculate(context.Background(), testTarget(srv.URL), CalculateRequest{})

	var ext *ExternalServiceError
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, http.StatusInternalServerError, ext.StatusCode)
	assert.Contains(t, ext.Error(), "calculation engine offline")
	assert.Equal(t, http.StatusBadGateway, ext.DomainStatus())
}

func TestClient_MalformedSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), &countingTokens{}, nil, nil)
	_, err := client.Lock(context.Background(), testTarget(srv.URL), LockRequest{}, "quote-1")

	var malformed *MalformedResponseError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "lock", malformed.Endpoint)
}

func TestClient_LockSendsIdempotencyKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/policies/lock", r.URL.Path)
		assert.Equal(t, "quote-1", r.Header.Get("Idempotency-Key"))
		_, _ = w.Write([]byte(`{"policyId":"P-1","policyNumber":"GAP/2026/1"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), &countingTokens{}, nil, nil)
	resp, err := client.Lock(context.Background(), testTarget(srv.URL), LockRequest{Premium: 189000}, "quote-1")
	require.NoError(t, err)
	assert.Equal(t, "P-1", resp.PolicyID)
}

func TestClient_DocumentsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/policies/P-1/documents", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), &countingTokens{}, nil, nil)
	_, err := client.Documents(context.Background(), testTarget(srv.URL), "P-1")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewClient(nil, &countingTokens{}, nil, nil)
	_, err := client.Makes(context.Background(), testTarget(url))

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
}

func TestIdentityClient_Login(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		_, _ = w.Write([]byte(`{"token":"abc"}`))
	}))
	defer srv.Close()

	token, err := NewIdentityClient(srv.Client(), nil).Login(context.Background(), testTarget(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
}

func TestIdentityClient_LoginRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"bad credentials"}`))
	}))
	defer srv.Close()

	_, err := NewIdentityClient(srv.Client(), nil).Login(context.Background(), testTarget(srv.URL))

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
}

func TestClient_DownloadFromForeignHostCarriesNoCredentials(t *testing.T) {
	var apiCalls int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&apiCalls, 1)
	}))
	defer api.Close()

	var bucketCalls int32
	bucket := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&bucketCalls, 1)
		assert.Empty(t, r.Header.Get("X-Auth-Token"))
		assert.Empty(t, r.Header.Get("Authorization"))
		if n == 1 {
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.4"))
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer bucket.Close()

	tokens := &countingTokens{}
	client := NewClient(nil, tokens, nil, nil)
	target := testTarget(api.URL)

	body, contentType, err := client.Download(context.Background(), target, bucket.URL+"/signed/policy.pdf?sig=abc")
	require.NoError(t, err)
	raw, _ := io.ReadAll(body)
	_ = body.Close()
	assert.Equal(t, "%PDF-1.4", string(raw))
	assert.Equal(t, "application/pdf", contentType)

	_, _, err = client.Download(context.Background(), target, bucket.URL+"/signed/terms.pdf")
	var ext *ExternalServiceError
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, http.StatusForbidden, ext.StatusCode)

	assert.EqualValues(t, 2, atomic.LoadInt32(&bucketCalls))
	assert.Zero(t, atomic.LoadInt32(&apiCalls))
	assert.Zero(t, tokens.issued)
	assert.Empty(t, tokens.invalidated)
}

func TestClient_DownloadFromServiceHostIsAuthenticated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/policy.pdf", r.URL.Path)
		assert.Equal(t, "token-1", r.Header.Get("X-Auth-Token"))
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	tokens := &countingTokens{}
	body, _, err := NewClient(srv.Client(), tokens, nil, nil).Download(context.Background(), testTarget(srv.URL), srv.URL+"/files/policy.pdf")
	require.NoError(t, err)
	_ = body.Close()
	assert.Equal(t, 1, tokens.issued)
}

func TestAuthErrorIsNotARejection(t *testing.T) {
	wrapped := &AuthError{
		Environment: domain.EnvironmentTest,
		StatusCode:  http.StatusNotFound,
		Err:         &ExternalServiceError{Endpoint: "login", StatusCode: http.StatusNotFound},
	}
	_, rejected := Rejected(wrapped)
	assert.False(t, rejected)
	assert.False(t, IsNotFound(wrapped))
	assert.Equal(t, http.StatusNotFound, StatusOf(wrapped))

	ext, rejected := Rejected(fmt.Errorf("confirm: %w", &ExternalServiceError{Endpoint: "confirm-signature", StatusCode: http.StatusUnprocessableEntity}))
	require.True(t, rejected)
	assert.Equal(t, http.StatusUnprocessableEntity, ext.StatusCode)
}
