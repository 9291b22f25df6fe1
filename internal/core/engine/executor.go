package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/namelens/ascgate/internal/core"
	"github.com/namelens/ascgate/internal/core/auth"
	"github.com/namelens/ascgate/internal/metrics"
)

const (
	DefaultBaseURL           = "https://api.appstoreconnect.apple.com/v1"
	DefaultMaxAttempts       = 3
	DefaultBaseDelay         = time.Second
	DefaultRequestTimeout    = 30 * time.Second
	DefaultRetryAfter        = 60 * time.Second
	RequestIDHeader          = "X-Request-ID"
	maxErrorBodyInDiagnostic = 512
)

// Request describes one logical call. Path is relative to the executor's base
// URL unless it is an absolute URL. RequestID, when empty, is generated.
type Request struct {
	Method    string
	Path      string
	Query     url.Values
	Body      any
	Timeout   time.Duration
	RequestID string
}

// Response is a successful reply from the remote API.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// NoContent reports a 204 reply.
func (r *Response) NoContent() bool {
	return r != nil && r.Status == http.StatusNoContent
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if r == nil || len(r.Body) == 0 {
		return core.NewFailure(core.KindAPI, "response has no body to decode")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return core.WrapFailure(core.KindAPI, err, "decode response")
	}
	return nil
}

// Limiter admits requests.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// CredentialSource supplies bearer credentials.
type CredentialSource interface {
	Acquire(ctx context.Context) (auth.Credential, error)
}

// Executor issues requests against the remote API with local rate limiting,
// bearer credentials and bounded retries.
type Executor struct {
	BaseURL           string
	Client            *http.Client
	Limiter           Limiter
	Credentials       CredentialSource
	MaxAttempts       int
	BaseDelay         time.Duration
	Timeout           time.Duration
	DefaultRetryAfter time.Duration
	UserAgent         string
	Sleep             SleepFunc
	Logger            core.Logger
}

// Execute runs req. Each attempt first takes a rate-limit slot, then a
// credential, then goes to the network. Rate limiting (429), timeouts,
// transport errors and 5xx replies are retried up to MaxAttempts in total;
// other failures return immediately.
func (e *Executor) Execute(ctx context.Context, req Request) (*Response, error) {
	if e == nil || e.Credentials == nil {
		return nil, core.NewFailure(core.KindConfig, "executor is not configured")
	}

	target, err := e.resolve(req)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if req.Body != nil {
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return nil, core.WrapFailure(core.KindValidation, err, "encode request body")
		}
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	requestID := strings.TrimSpace(req.RequestID)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	logger := core.LoggerOrNop(e.Logger)
	schedule := e.schedule()
	attempts := e.maxAttempts()

	var last error
	for attempt := 0; attempt < attempts; attempt++ {
		if e.Limiter != nil {
			if err := e.Limiter.Acquire(ctx); err != nil {
				return nil, err
			}
		}

		cred, err := e.Credentials.Acquire(ctx)
		if err != nil {
			return nil, err
		}

		resp, err := e.attempt(ctx, method, target, payload, req.Timeout, cred.Token, requestID)
		if err == nil {
			return resp, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		last = err
		var failure *core.Failure
		if !errors.As(err, &failure) || !failure.Retryable() {
			return nil, err
		}

		// The schedule advances on every retry so the delay tracks the attempt index.
		delay := schedule.NextBackOff()
		if failure.Kind == core.KindRateLimit {
			delay = failure.RetryAfter
		}

		if attempt == attempts-1 {
			break
		}

		if failure.Kind == core.KindRateLimit {
			metrics.RecordThrottleWait("server")
		}
		metrics.RecordRetry(string(failure.Kind))
		logger.Info("Retrying API request",
			zap.String("method", method),
			zap.String("path", target.Path),
			zap.String("request_id", requestID),
			zap.Int("attempt", attempt+1),
			zap.String("reason", string(failure.Kind)),
			zap.Int("status", failure.Status),
			zap.Duration("delay", delay))

		if err := e.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, last
}

func (e *Executor) attempt(ctx context.Context, method string, target *url.URL, payload []byte, timeout time.Duration, token, requestID string) (*Response, error) {
	if timeout <= 0 {
		timeout = e.timeout()
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, method, target.String(), body)
	if err != nil {
		return nil, core.WrapFailure(core.KindValidation, err, "build request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, requestID)
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if e.UserAgent != "" {
		httpReq.Header.Set("User-Agent", e.UserAgent)
	}

	start := time.Now()
	resp, err := e.client().Do(httpReq)
	if err != nil {
		metrics.RecordRequest(method, 0, time.Since(start))
		return nil, transportFailure(attemptCtx, err, timeout)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	respBody, err := io.ReadAll(resp.Body)
	metrics.RecordRequest(method, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, transportFailure(attemptCtx, err, timeout)
	}

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return &Response{Status: resp.StatusCode, Header: resp.Header}, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if len(bytes.TrimSpace(respBody)) > 0 && !json.Valid(respBody) {
			failure := core.NewFailure(core.KindAPI, "response body is not valid JSON")
			failure.Status = resp.StatusCode
			return nil, failure
		}
		return &Response{Status: resp.StatusCode, Header: resp.Header, Body: respBody}, nil
	default:
		failure := statusFailure(resp.StatusCode, respBody)
		if failure.Kind == core.KindRateLimit {
			failure.RetryAfter = retryAfter(resp.Header, e.defaultRetryAfter())
		}
		return nil, failure
	}
}

// apiErrorDocument is the remote error envelope.
type apiErrorDocument struct {
	Errors []struct {
		Status string `json:"status"`
		Code   string `json:"code"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

func statusFailure(status int, body []byte) *core.Failure {
	message := http.StatusText(status)
	code := ""

	var doc apiErrorDocument
	if err := json.Unmarshal(body, &doc); err == nil && len(doc.Errors) > 0 {
		first := doc.Errors[0]
		code = first.Code
		switch {
		case strings.TrimSpace(first.Detail) != "":
			message = first.Detail
		case strings.TrimSpace(first.Title) != "":
			message = first.Title
		}
	} else if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
		if len(trimmed) > maxErrorBodyInDiagnostic {
			trimmed = trimmed[:maxErrorBodyInDiagnostic]
		}
		message = fmt.Sprintf("%s: %s", message, trimmed)
	}

	failure := core.NewFailure(core.KindForStatus(status), message)
	failure.Status = status
	failure.Code = code
	return failure
}

func transportFailure(attemptCtx context.Context, err error, timeout time.Duration) *core.Failure {
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) || isTimeout(err) {
		return core.WrapFailure(core.KindTimeout, err, fmt.Sprintf("request exceeded %s", timeout))
	}
	return core.WrapFailure(core.KindNetwork, err, "request failed")
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// retryAfter reads a Retry-After header given in seconds or as an HTTP date.
func retryAfter(header http.Header, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(header.Get("Retry-After"))
	if value == "" {
		return fallback
	}
	if seconds, err := time.ParseDuration(value + "s"); err == nil && seconds >= 0 {
		return seconds
	}
	if parsed, err := http.ParseTime(value); err == nil {
		if wait := time.Until(parsed); wait > 0 {
			return wait
		}
		return 0
	}
	return fallback
}

func (e *Executor) resolve(req Request) (*url.URL, error) {
	path := strings.TrimSpace(req.Path)
	if path == "" {
		return nil, core.NewFailure(core.KindValidation, "request path is required")
	}

	var target *url.URL
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		parsed, err := url.Parse(path)
		if err != nil {
			return nil, core.WrapFailure(core.KindValidation, err, "parse request url")
		}
		target = parsed
	} else {
		base, err := url.Parse(e.baseURL())
		if err != nil {
			return nil, core.WrapFailure(core.KindConfig, err, "parse base url")
		}
		rel, err := url.Parse(path)
		if err != nil {
			return nil, core.WrapFailure(core.KindValidation, err, "parse request path")
		}
		target = base.JoinPath(rel.Path)
		target.RawQuery = rel.RawQuery
	}

	if len(req.Query) > 0 {
		query := target.Query()
		for key, values := range req.Query {
			query[key] = append([]string(nil), values...)
		}
		target.RawQuery = query.Encode()
	}
	return target, nil
}

func (e *Executor) schedule() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.baseDelay()
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = time.Hour
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (e *Executor) client() *http.Client {
	if e.Client != nil {
		return e.Client
	}
	return http.DefaultClient
}

func (e *Executor) baseURL() string {
	if strings.TrimSpace(e.BaseURL) == "" {
		return DefaultBaseURL
	}
	return strings.TrimSpace(e.BaseURL)
}

func (e *Executor) maxAttempts() int {
	if e.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return e.MaxAttempts
}

func (e *Executor) baseDelay() time.Duration {
	if e.BaseDelay <= 0 {
		return DefaultBaseDelay
	}
	return e.BaseDelay
}

func (e *Executor) timeout() time.Duration {
	if e.Timeout <= 0 {
		return DefaultRequestTimeout
	}
	return e.Timeout
}

func (e *Executor) defaultRetryAfter() time.Duration {
	if e.DefaultRetryAfter <= 0 {
		return DefaultRetryAfter
	}
	return e.DefaultRetryAfter
}

func (e *Executor) sleep(ctx context.Context, d time.Duration) error {
	if e.Sleep != nil {
		return e.Sleep(ctx, d)
	}
	return Sleep(ctx, d)
}
