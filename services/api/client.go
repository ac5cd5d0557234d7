// Package apisvc is the HTTP client of the Masomo school API.
package apisvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/trezcool/masomo-console/core"
)

var ErrUnauthorized = errors.New("unauthorized")

const requestIDHeader = "X-Request-ID"

type (
	// TokenSource provides the bearer token of the current session.
	TokenSource interface {
		AccessToken() string
	}

	Recorder interface {
		RecordHTTPStatus(statusCode int)
	}

	Options struct {
		BaseURL    string
		Timeout    time.Duration
		RateLimit  float64 // requests per second; 0 disables limiting
		RateBurst  int
		Tokens     TokenSource
		Recorder   Recorder
		Logger     core.Logger
		HTTPClient *http.Client
	}

	Client struct {
		baseURL  string
		http     *http.Client
		limiter  *rate.Limiter
		tokens   TokenSource
		recorder Recorder
		logger   core.Logger
	}
)

// APIError is a non 2xx answer of the API.
type APIError struct {
	Status  int
	Message string
	Fields  map[string][]string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if len(e.Fields) == 0 {
		return fmt.Sprintf("api: %d %s", e.Status, msg)
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], " "))
	}
	return fmt.Sprintf("api: %d %s (%s)", e.Status, msg, strings.Join(parts, "; "))
}

// Is makes a 401 match ErrUnauthorized.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// ValidationError converts field errors to the core representation, or returns nil if there are none.
func (e *APIError) ValidationError() error {
	if len(e.Fields) == 0 {
		return nil
	}
	fields := make([]core.FieldError, 0, len(e.Fields))
	for k, msgs := range e.Fields {
		fields = append(fields, core.FieldError{Field: k, Error: strings.Join(msgs, " ")})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
	return core.NewValidationError(e, fields...)
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	c := &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		http:     httpClient,
		tokens:   opts.Tokens,
		recorder: opts.Recorder,
		logger:   opts.Logger,
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c
}

// SetTokenSource is used by the front ends once the session store exists.
func (c *Client) SetTokenSource(tokens TokenSource) {
	c.tokens = tokens
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "rate limit")
		}
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "json.Marshal()")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "http.NewRequest()")
	}
	reqID := uuid.NewString()
	req.Header.Set(requestIDHeader, reqID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if c.recorder != nil {
		c.recorder.RecordHTTPStatus(resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "reading response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeError(resp.StatusCode, data)
		if c.logger != nil && resp.StatusCode >= http.StatusInternalServerError {
			c.logger.Error(method+" "+path+" failed", apiErr, map[string]interface{}{"request_id": reqID})
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err = json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "json.Unmarshal()")
	}
	return nil
}

// maxErrorLen caps, in runes, the message kept from a non JSON error body.
const maxErrorLen = 200

// decodeError understands the `{"detail": "..."}` and `{"field": ["..."]}` error bodies of the API.
func decodeError(status int, data []byte) *APIError {
	apiErr := &APIError{Status: status}

	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &raw); err != nil {
		apiErr.Message = strings.TrimSpace(string(data))
		if msg := []rune(apiErr.Message); len(msg) > maxErrorLen {
			apiErr.Message = string(msg[:maxErrorLen])
		}
		return apiErr
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys) // "detail" wins over "error" and "message"

	for _, key := range keys {
		val := raw[key]
		var (
			str  string
			strs []string
		)
		switch {
		case json.Unmarshal(val, &str) == nil:
			strs = []string{str}
		case json.Unmarshal(val, &strs) == nil:
		default:
			continue
		}

		switch key {
		case "code":
		case "detail", "error", "message":
			if apiErr.Message == "" && len(strs) > 0 {
				apiErr.Message = strs[0]
			}
		case "non_field_errors":
			if apiErr.Message == "" && len(strs) > 0 {
				apiErr.Message = strings.Join(strs, " ")
			}
		default:
			if apiErr.Fields == nil {
				apiErr.Fields = make(map[string][]string)
			}
			apiErr.Fields[key] = strs
		}
	}
	return apiErr
}
