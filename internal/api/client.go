package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/guild-console/internal/config"
	"github.com/spec-kit/guild-console/internal/domain"
	apperrors "github.com/spec-kit/guild-console/pkg/util/errorutil"
)

// CredentialSource yields the bearer credential for outbound requests. An
// empty credential is a valid read; the request is simply sent anonymous
// and the backend answers 401.
type CredentialSource interface {
	Credential() (string, error)
}

// Client talks to the dashboard backend. All failures are converted to the
// DomainError taxonomy before they reach a caller; no raw transport error
// escapes.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	credentials CredentialSource
	logger      *zap.Logger
}

// NewClient builds the backend client.
func NewClient(cfg config.APIConfig, credentials CredentialSource, logger *zap.Logger) *Client {
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  &http.Client{Timeout: cfg.RequestTimeout()},
		credentials: credentials,
		logger:      logger,
	}
}

// Me asks the backend who the current credential belongs to.
func (c *Client) Me(ctx context.Context) (*domain.Identity, error) {
	var identity domain.Identity
	if err := c.getJSON(ctx, "/auth/me", &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// Guilds lists the tenants the current identity can administer, in backend
// order. The order is load-bearing for active-tenant fallback.
func (c *Client) Guilds(ctx context.Context) ([]domain.Guild, error) {
	var guilds []domain.Guild
	if err := c.getJSON(ctx, "/guilds", &guilds); err != nil {
		return nil, err
	}
	return guilds, nil
}

// Guild fetches one tenant, including the caller's permission claim for it.
func (c *Client) Guild(ctx context.Context, guildID string) (*domain.Guild, error) {
	var guild domain.Guild
	if err := c.getJSON(ctx, "/guilds/"+guildID, &guild); err != nil {
		return nil, err
	}
	return &guild, nil
}

// Logout invalidates the backend session. The local credential is deleted
// by the caller regardless of this call's outcome.
func (c *Client) Logout(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/logout", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.NewNetworkError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return c.statusError(resp)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.NewNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewNetworkError(fmt.Errorf("decode %s: %w", path, err))
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	credential, err := c.credentials.Credential()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) statusError(resp *http.Response) error {
	// Bodies are small JSON error envelopes; drain so the connection is reused.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return apperrors.NewUnauthorized("backend rejected credential")
	case resp.StatusCode == http.StatusForbidden:
		return apperrors.NewForbidden("insufficient permission")
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.NewNotFound("resource", nil)
	case resp.StatusCode >= 500:
		c.logger.Error("backend failure",
			zap.String("path", resp.Request.URL.Path),
			zap.Int("status", resp.StatusCode))
		return apperrors.NewNetworkError(fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	default:
		return apperrors.NewDomainError("REQUEST_REJECTED",
			fmt.Sprintf("backend rejected request with status %d", resp.StatusCode),
			resp.StatusCode, nil)
	}
}
