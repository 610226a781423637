// Package api is the REST client for the loop-monitoring server: project
// listing, iteration history, plans and token issuance.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// MaxPageSize is the largest page the iterations endpoint accepts.
const MaxPageSize = 500

// TokenSource supplies the bearer token for authenticated requests.
type TokenSource interface {
	Token() (string, error)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized
}

// Renewer refreshes the credential behind the TokenSource. It reports
// whether a retry with the new token is worthwhile.
type Renewer func(ctx context.Context) (bool, error)

type Client struct {
	baseURL  string
	http     *http.Client
	tokens   TokenSource
	renew    Renewer
	validate *validator.Validate
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithRenewer retries an authenticated request once after a 401 if renew
// obtained a new token.
func WithRenewer(renew Renewer) Option {
	return func(c *Client) { c.renew = renew }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 30 * time.Second},
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// do sends one request and decodes a JSON response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, authenticated bool) error {
	err := c.send(ctx, method, path, query, body, out, authenticated)
	if !authenticated || c.renew == nil || !IsUnauthorized(err) {
		return err
	}
	ok, rerr := c.renew(ctx)
	if rerr != nil {
		log.Warn().Err(rerr).Msg("could not renew access token")
		return err
	}
	if !ok {
		return err
	}
	log.Debug().Str("method", method).Str("path", path).Msg("retrying with renewed token")
	return c.send(ctx, method, path, query, body, out, authenticated)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body, out any, authenticated bool) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request body")
		}
		reader = bytes.NewReader(b)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated && c.tokens != nil {
		tok, err := c.tokens.Token()
		if err != nil {
			return errors.Wrap(err, "read access token")
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	log.Debug().Str("method", method).Str("url", u).Msg("api request")
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil && eb.Detail != nil {
			if s, ok := eb.Detail.(string); ok {
				se.Detail = s
			} else if b, err := json.Marshal(eb.Detail); err == nil {
				se.Detail = string(b)
			}
		}
		return se
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "decode %s %s response", method, path)
	}
	return nil
}

func projectPath(project string, rest ...string) string {
	parts := append([]string{"/api/projects", url.PathEscape(project)}, rest...)
	return strings.Join(parts, "/")
}

func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var out []Project
	if err := c.do(ctx, http.MethodGet, "/api/projects", nil, nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// ListIterations fetches one page of iteration summaries.
func (c *Client) ListIterations(ctx context.Context, project string, opts ListIterationsOptions) (*IterationList, error) {
	q := url.Values{}
	if opts.Status != "" {
		q.Set("status", string(opts.Status))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(min(opts.Limit, MaxPageSize)))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	var out IterationList
	if err := c.do(ctx, http.MethodGet, projectPath(project, "iterations"), q, nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// AllIterations pages through every iteration summary of a project.
func (c *Client) AllIterations(ctx context.Context, project string) ([]IterationSummary, error) {
	var all []IterationSummary
	for {
		page, err := c.ListIterations(ctx, project, ListIterationsOptions{
			Status: StatusAll,
			Limit:  MaxPageSize,
			Offset: len(all),
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page.Iterations...)
		if len(page.Iterations) == 0 || len(all) >= page.Total {
			return all, nil
		}
	}
}

func (c *Client) GetIteration(ctx context.Context, project string, number int) (*IterationDetail, error) {
	var out IterationDetail
	if err := c.do(ctx, http.MethodGet, projectPath(project, "iterations", strconv.Itoa(number)), nil, nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPlan(ctx context.Context, project string) (*Plan, error) {
	var out Plan
	if err := c.do(ctx, http.MethodGet, projectPath(project, "plan"), nil, nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (*TokenPair, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, errors.Wrap(err, "invalid login request")
	}
	var out TokenPair
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, req, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh exchanges a refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", errors.New("no refresh token")
	}
	var out accessToken
	if err := c.do(ctx, http.MethodPost, "/api/auth/refresh", nil, refreshRequest{RefreshToken: refreshToken}, &out, false); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}
