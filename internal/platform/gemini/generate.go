package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cognivue/cognivue-backend/internal/observability"
	"github.com/cognivue/cognivue-backend/internal/platform/logger"
)

type FailureKind string

const (
	KindServiceUnavailable FailureKind = "service_unavailable"
	KindGenerationFailed   FailureKind = "generation_failed"
)

const (
	defaultMaxAttempts = 3
	defaultBackoff     = 1 * time.Second
	DefaultTimeout     = 60 * time.Second
)

// Failure is the typed outcome of a generation that produced no usable JSON.
type Failure struct {
	Kind    FailureKind
	Details string
}

func (f *Failure) Error() string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Details)
}

// Result holds either the extracted JSON object or a Failure, never both.
type Result struct {
	Object  json.RawMessage
	Failure *Failure
}

func (r Result) OK() bool { return r.Failure == nil }

// Decode unmarshals the extracted object into v.
func (r Result) Decode(v any) error {
	if r.Failure != nil {
		return r.Failure
	}
	return json.Unmarshal(r.Object, v)
}

// Sleeper waits d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func contextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Client wraps an Endpoint with the overload retry policy and JSON
// extraction. Safe for concurrent use.
type Client struct {
	endpoint    Endpoint
	model       string
	timeout     time.Duration
	maxAttempts int
	backoff     time.Duration
	sleep       Sleeper
	log         *logger.Logger
}

type Option func(*Client)

func WithSleeper(s Sleeper) Option {
	return func(c *Client) {
		if s != nil {
			c.sleep = s
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func NewClient(endpoint Endpoint, model string, log *logger.Logger, opts ...Option) *Client {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	c := &Client{
		endpoint:    endpoint,
		model:       model,
		timeout:     DefaultTimeout,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
		sleep:       contextSleep,
		log:         log.With("client", "GenerationClient", "model", model),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Model() string { return c.model }

// Generate calls the model at most three times. Only errors whose text marks
// the service as overloaded are retried, after 1s and then 2s. A reply with
// no parsable JSON object fails immediately.
func (c *Client) Generate(ctx context.Context, req Request) Result {
	metrics := observability.Current()
	backoff := c.backoff
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		start := time.Now()
		text, err := c.call(ctx, req)
		if err == nil {
			metrics.ObserveLLMRequest(c.model, "ok", time.Since(start))
			obj, perr := ExtractJSONObject(text)
			if perr != nil {
				c.log.Warn("Model reply had no usable JSON", "attempt", attempt, "error", perr)
				return Result{Failure: &Failure{Kind: KindGenerationFailed, Details: perr.Error()}}
			}
			return Result{Object: obj}
		}

		lastErr = err
		if !IsOverloaded(err) {
			metrics.ObserveLLMRequest(c.model, "error", time.Since(start))
			c.log.Warn("Generation request failed", "attempt", attempt, "error", err)
			return Result{Failure: &Failure{Kind: KindGenerationFailed, Details: err.Error()}}
		}
		metrics.ObserveLLMRequest(c.model, "retryable", time.Since(start))
		if attempt == c.maxAttempts {
			break
		}

		c.log.Warn("Generation service overloaded, retrying",
			"attempt", attempt,
			"max_attempts", c.maxAttempts,
			"sleep", backoff.String(),
			"error", err,
		)
		metrics.IncLLMRetry(c.model)
		if serr := c.sleep(ctx, backoff); serr != nil {
			lastErr = serr
			break
		}
		backoff *= 2
	}

	c.log.Error("Generation service unavailable", "error", lastErr)
	details := "All retry attempts exhausted"
	if lastErr != nil && errors.Is(lastErr, context.Canceled) {
		details = "request cancelled"
	}
	return Result{Failure: &Failure{Kind: KindServiceUnavailable, Details: details}}
}

func (c *Client) call(ctx context.Context, req Request) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.endpoint.Call(callCtx, c.model, req)
}

// IsOverloaded reports whether err looks like a transient capacity problem.
func IsOverloaded(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "503") ||
		strings.Contains(msg, "unavailable") ||
		strings.Contains(msg, "overloaded")
}
