package underwriting

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/spec-kit/gap-pos/internal/environment"
	"github.com/spec-kit/gap-pos/internal/observability"
)

// IdentityClient performs the credential exchange against an environment's identity endpoint.
type IdentityClient struct {
	http    *http.Client
	metrics *observability.Metrics
}

// NewIdentityClient builds the login client.
func NewIdentityClient(httpClient *http.Client, metrics *observability.Metrics) *IdentityClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &IdentityClient{http: httpClient, metrics: metrics}
}

// Login exchanges the environment credentials for an opaque bearer token.
func (c *IdentityClient) Login(ctx context.Context, target environment.Target) (string, error) {
	payload, err := json.Marshal(loginRequest{Username: target.Username, Password: target.Password})
	if err != nil {
		return "", &AuthError{Environment: target.Environment, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.BaseURL+"/auth/login", bytes.NewReader(payload))
	if err != nil {
		return "", &AuthError{Environment: target.Environment, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordUpstream("login", 0, time.Since(start))
		return "", &AuthError{Environment: target.Environment, Err: &NetworkError{Endpoint: "login", Err: err}}
	}
	defer resp.Body.Close()
	c.metrics.RecordUpstream("login", resp.StatusCode, time.Since(start))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &AuthError{Environment: target.Environment, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &AuthError{Environment: target.Environment, StatusCode: resp.StatusCode, Err: parseServiceError("login", resp.StatusCode, body)}
	}

	var out loginResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &AuthError{Environment: target.Environment, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode login response: %w", err)}
	}
	token := strings.TrimSpace(out.Token)
	if token == "" {
		return "", &AuthError{Environment: target.Environment, StatusCode: resp.StatusCode, Err: errors.New("login response carried no token")}
	}
	return token, nil
}
