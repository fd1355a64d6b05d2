// Package underwriting speaks the HTTP/JSON protocol of the external GAP underwriting service.
package underwriting

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/spec-kit/gap-pos/internal/domain"
	"github.com/spec-kit/gap-pos/internal/environment"
	"github.com/spec-kit/gap-pos/internal/observability"
)

const (
	headerAuthToken      = "X-Auth-Token"
	headerIdempotencyKey = "Idempotency-Key"
	userAgent            = "gap-pos/1.0"
)

// TokenSource hands out bearer tokens per environment.
type TokenSource interface {
	Token(ctx context.Context, target environment.Target) (string, error)
	Invalidate(ctx context.Context, env domain.Environment, token string)
}

// Client calls the underwriting API on behalf of a resolved environment.
type Client struct {
	http    *http.Client
	tokens  TokenSource
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewClient wires the API client.
func NewClient(httpClient *http.Client, tokens TokenSource, metrics *observability.Metrics, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{http: httpClient, tokens: tokens, metrics: metrics, logger: logger}
}

// Calculate requests a premium quote. It does not change server state.
func (c *Client) Calculate(ctx context.Context, target environment.Target, req CalculateRequest) (*CalculateResponse, error) {
	var out CalculateResponse
	if err := c.do(ctx, target, call{endpoint: "calculate-offer", method: http.MethodPost, path: "/policies/calculate-offer", body: req}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Lock reserves a policy. Callers must never retry it after a failure.
func (c *Client) Lock(ctx context.Context, target environment.Target, req LockRequest, idempotencyKey string) (*LockResponse, error) {
	var out LockResponse
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers[headerIdempotencyKey] = idempotencyKey
	}
	if err := c.do(ctx, target, call{endpoint: "lock", method: http.MethodPost, path: "/policies/lock", body: req, headers: headers}, &out); err != nil {
		return nil, err
	}
	if out.PolicyID == "" {
		return nil, &MalformedResponseError{Endpoint: "lock", StatusCode: http.StatusOK, Err: errors.New("policyId missing")}
	}
	return &out, nil
}

// StartSignature asks the service to send the SMS code for policyID.
func (c *Client) StartSignature(ctx context.Context, target environment.Target, policyID string, sigType domain.SignatureType) (*SignatureResponse, error) {
	var out SignatureResponse
	path := "/policies/" + url.PathEscape(policyID) + "/signatures"
	body := SignatureRequest{PolicyID: policyID, Type: string(sigType)}
	if err := c.do(ctx, target, call{endpoint: "signatures", method: http.MethodPost, path: path, body: body}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmSignature submits the SMS code entered by the applicant.
func (c *Client) ConfirmSignature(ctx context.Context, target environment.Target, policyID, code string) (*ConfirmSignatureResponse, error) {
	var out ConfirmSignatureResponse
	path := "/policies/" + url.PathEscape(policyID) + "/signatures/confirm"
	body := ConfirmSignatureRequest{PolicyID: policyID, ConfirmationCode: code}
	if err := c.do(ctx, target, call{endpoint: "confirm-signature", method: http.MethodPut, path: path, body: body}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Documents lists generated documents. A 404 surfaces as ExternalServiceError.
func (c *Client) Documents(ctx context.Context, target environment.Target, policyID string) ([]Document, error) {
	var out []Document
	path := "/policies/" + url.PathEscape(policyID) + "/documents"
	if err := c.do(ctx, target, call{endpoint: "documents", method: http.MethodGet, path: path}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Products lists sellable products.
func (c *Client) Products(ctx context.Context, target environment.Target) ([]domain.Product, error) {
	var out []domain.Product
	if err := c.do(ctx, target, call{endpoint: "products", method: http.MethodGet, path: "/products"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Makes lists vehicle makes.
func (c *Client) Makes(ctx context.Context, target environment.Target) ([]domain.VehicleMake, error) {
	var out []domain.VehicleMake
	if err := c.do(ctx, target, call{endpoint: "vehicle-makes", method: http.MethodGet, path: "/vehicles/makes"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Models lists vehicle models of a make.
func (c *Client) Models(ctx context.Context, target environment.Target, makeID string) ([]domain.VehicleModel, error) {
	var out []domain.VehicleModel
	q := url.Values{}
	q.Set("makeId", makeID)
	if err := c.do(ctx, target, call{endpoint: "vehicle-models", method: http.MethodGet, path: "/vehicles/models", query: q}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Portfolios lists the portfolio descriptor of every product.
func (c *Client) Portfolios(ctx context.Context, target environment.Target) ([]domain.PortfolioDescriptor, error) {
	var out []domain.PortfolioDescriptor
	if err := c.do(ctx, target, call{endpoint: "portfolios", method: http.MethodGet, path: "/portfolios"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Download streams a document body. rawURL may be absolute or relative to the API URL.
// The caller closes the returned reader.
func (c *Client) Download(ctx context.Context, target environment.Target, rawURL string) (io.ReadCloser, string, error) {
	resp, err := c.send(ctx, target, call{endpoint: "document-download", method: http.MethodGet, path: rawURL})
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, "", parseServiceError("document-download", resp.StatusCode, body)
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

type call struct {
	endpoint string
	method   string
	path     string
	query    url.Values
	body     any
	headers  map[string]string
}

func (c *Client) do(ctx context.Context, target environment.Target, cl call, out any) error {
	resp, err := c.send(ctx, target, cl)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Endpoint: cl.endpoint, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseServiceError(cl.endpoint, resp.StatusCode, respBody)
	}
	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(respBody)) == 0 {
		return &MalformedResponseError{Endpoint: cl.endpoint, StatusCode: resp.StatusCode, Err: errors.New("empty body")}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &MalformedResponseError{Endpoint: cl.endpoint, StatusCode: resp.StatusCode, Err: err}
	}
	return nil
}

// send performs the request, re-acquiring the token and retrying exactly once on 401/403.
// Hosts other than the underwriting service get a single attempt without credentials.
func (c *Client) send(ctx context.Context, target environment.Target, cl call) (*http.Response, error) {
	var payload []byte
	if cl.body != nil {
		var err error
		payload, err = json.Marshal(cl.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", cl.endpoint, err)
		}
	}
	rawURL, authenticated, err := resolveURL(target, cl)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		var token string
		if authenticated {
			if token, err = c.tokens.Token(ctx, target); err != nil {
				return nil, err
			}
		}

		req, err := c.newRequest(ctx, cl, rawURL, payload, token)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			c.metrics.RecordUpstream(cl.endpoint, 0, time.Since(start))
			return nil, &NetworkError{Endpoint: cl.endpoint, Err: err}
		}
		c.metrics.RecordUpstream(cl.endpoint, resp.StatusCode, time.Since(start))

		if !authenticated || (resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden) {
			return resp, nil
		}

		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		c.tokens.Invalidate(ctx, target.Environment, token)
		if attempt >= 2 {
			return nil, &AuthError{Environment: target.Environment, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s rejected a fresh token", cl.endpoint)}
		}
		c.logger.Info("underwriting token rejected, re-acquiring",
			zap.String("endpoint", cl.endpoint),
			zap.String("environment", string(target.Environment)),
			zap.Int("status", resp.StatusCode),
		)
	}
}

// resolveURL expands a relative path against the API URL and reports whether the
// result belongs to the underwriting service and therefore carries the session token.
func resolveURL(target environment.Target, cl call) (string, bool, error) {
	rawURL := cl.path
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = target.APIURL + cl.path
	}
	if len(cl.query) > 0 {
		rawURL += "?" + cl.query.Encode()
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false, fmt.Errorf("build %s request: %w", cl.endpoint, err)
	}
	for _, base := range []string{target.APIURL, target.BaseURL} {
		b, err := url.Parse(base)
		if err == nil && b.Host != "" && strings.EqualFold(b.Scheme, u.Scheme) && strings.EqualFold(b.Host, u.Host) {
			return rawURL, true, nil
		}
	}
	return rawURL, false, nil
}

func (c *Client) newRequest(ctx context.Context, cl call, rawURL string, payload []byte, token string) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", cl.endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		// Endpoints disagree on which header they read; both are accepted.
		req.Header.Set(headerAuthToken, token)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range cl.headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func parseServiceError(endpoint string, status int, body []byte) error {
	out := &ExternalServiceError{Endpoint: endpoint, StatusCode: status}
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		out.Message = strings.TrimSpace(string(body))
		if len(out.Message) > 512 {
			out.Message = out.Message[:512]
		}
		return out
	}
	out.Violations = parsed.Violations
	switch {
	case parsed.Message != "":
		out.Message = parsed.Message
	case parsed.Detail != "":
		out.Message = parsed.Detail
	default:
		out.Message = parsed.Title
	}
	return out
}
