// Package pocketbase is a small client for the PocketBase REST API covering
// the record and auth endpoints the application uses.
package pocketbase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ghaggin/pbdemo/internal/model"
	"go.uber.org/zap"
)

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSource supplies the bearer token sent with each request.
type TokenSource interface {
	Token() string
}

type Client struct {
	client    httpClient
	serverURL url.URL
	tokens    TokenSource
	log       *zap.Logger
}

func NewClient(client httpClient, serverURL url.URL, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		client:    client,
		serverURL: serverURL,
		log:       log,
	}
}

// WithTokens returns a copy of c that authorizes requests with tokens.
func (c *Client) WithTokens(tokens TokenSource) *Client {
	cp := *c
	cp.tokens = tokens
	return &cp
}

// AuthResult is returned by the auth-with-* endpoints.
type AuthResult struct {
	Token  string      `json:"token"`
	Record *model.User `json:"record"`
}

type ListOptions struct {
	Sort   string
	Filter string
}

func (c *Client) AuthWithPassword(ctx context.Context, collection, identity, password string) (AuthResult, error) {
	var res AuthResult
	err := c.send(ctx, http.MethodPost, c.collectionPath(collection, "auth-with-password"), nil,
		map[string]string{
			"identity": identity,
			"password": password,
		}, &res)
	if err != nil {
		return AuthResult{}, err
	}
	return res, nil
}

func (c *Client) RequestOTP(ctx context.Context, collection, email string) (string, error) {
	var res struct {
		OTPID string `json:"otpId"`
	}
	err := c.send(ctx, http.MethodPost, c.collectionPath(collection, "request-otp"), nil,
		map[string]string{"email": email}, &res)
	if err != nil {
		return "", err
	}
	return res.OTPID, nil
}

func (c *Client) AuthWithOTP(ctx context.Context, collection, otpID, code string) (AuthResult, error) {
	var res AuthResult
	err := c.send(ctx, http.MethodPost, c.collectionPath(collection, "auth-with-otp"), nil,
		map[string]string{
			"otpId":    otpID,
			"password": code,
		}, &res)
	if err != nil {
		return AuthResult{}, err
	}
	return res, nil
}

// Create inserts a record and decodes the stored record into out.
func (c *Client) Create(ctx context.Context, collection string, fields any, out any) error {
	return c.send(ctx, http.MethodPost, c.collectionPath(collection, "records"), nil, fields, out)
}

// Update patches record id and decodes the stored record into out.
func (c *Client) Update(ctx context.Context, collection, id string, fields any, out any) error {
	return c.send(ctx, http.MethodPatch, c.collectionPath(collection, "records", id), nil, fields, out)
}

// List fetches one page of records. out must be a list envelope such as
// *model.DemoPage.
func (c *Client) List(ctx context.Context, collection string, page, perPage int, opts ListOptions, out any) error {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("perPage", strconv.Itoa(perPage))
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}
	if opts.Filter != "" {
		q.Set("filter", opts.Filter)
	}
	return c.send(ctx, http.MethodGet, c.collectionPath(collection, "records"), q, nil, out)
}

func (c *Client) collectionPath(collection string, elem ...string) *url.URL {
	return c.serverURL.JoinPath(append([]string{"api", "collections", collection}, elem...)...)
}

func (c *Client) send(ctx context.Context, method string, u *url.URL, query url.Values, body any, out any) error {
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return transportError(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", token)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("backend request failed",
			zap.String("method", method),
			zap.String("path", u.Path),
			zap.Error(err))
		return transportError(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(err)
	}

	c.log.Debug("backend request",
		zap.String("method", method),
		zap.String("path", u.Path),
		zap.Int("status", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Message: "invalid response body", Base: err}
	}
	return nil
}

func decodeError(status int, data []byte) *Error {
	e := &Error{}
	if err := json.Unmarshal(data, e); err != nil || e.Message == "" {
		e.Message = http.StatusText(status)
	}
	e.Status = status
	return e
}
