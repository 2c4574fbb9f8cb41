// Package publish ships finished records to the remote content store and
// keeps a ledger of the items that could not be delivered.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/course-content-pipeline/internal/observability"
	"github.com/jonathan/course-content-pipeline/internal/retry"
	"github.com/jonathan/course-content-pipeline/internal/types"
)

// Defaults for the upload retry loop.
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
	DefaultAction     = "create"
	DefaultTimeout    = 30 * time.Second
)

// Request is the JSON body posted to the publish endpoint.
type Request struct {
	Title   string `json:"title"`
	Prefix  string `json:"prefix"`
	Action  string `json:"action"`
	Content any    `json:"content"`
}

// Options configures an Uploader.
type Options struct {
	Endpoint   string
	Prefix     string
	Action     string        // default DefaultAction
	MaxRetries int           // default DefaultMaxRetries
	RetryDelay time.Duration // default DefaultRetryDelay
	HTTPClient *http.Client
	Sleep      retry.Sleeper
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// Uploader posts records to the remote content store.
type Uploader struct {
	opts Options
	log  *zap.Logger
}

// NewUploader creates an Uploader. A missing endpoint is a ConfigurationError.
func NewUploader(opts Options) (*Uploader, error) {
	if opts.Endpoint == "" {
		return nil, &types.ConfigurationError{Field: "endpoint", Message: "publish endpoint is required"}
	}
	if opts.Action == "" {
		opts.Action = DefaultAction
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	} else if opts.RetryDelay == 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Uploader{opts: opts, log: opts.Logger}, nil
}

// Upload posts one item, retrying transport failures with a fixed delay.
// It returns false once retries are exhausted and never returns an error.
func (u *Uploader) Upload(ctx context.Context, title string, content any) bool {
	body, err := json.Marshal(Request{
		Title:   title,
		Prefix:  u.opts.Prefix,
		Action:  u.opts.Action,
		Content: content,
	})
	if err != nil {
		u.log.Error("failed to encode upload body", zap.String("title", title), zap.Error(err))
		return false
	}

	policy := retry.Policy{
		MaxAttempts: u.opts.MaxRetries,
		Delay:       u.opts.RetryDelay,
		Sleep:       u.opts.Sleep,
		OnFailure: func(attempt int, err error) {
			u.opts.Metrics.ObserveUploadRetry()
			u.log.Warn("upload attempt failed",
				zap.String("title", title),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", u.opts.MaxRetries),
				zap.Error(err),
			)
		},
	}

	out := retry.Attempt(ctx, policy, func(ctx context.Context, _ int) (int, error) {
		return u.post(ctx, body)
	})
	if !out.OK() {
		u.log.Error("upload failed", zap.String("title", title), zap.Int("attempts", out.Attempts), zap.Error(out.Err))
		return false
	}
	u.log.Debug("upload succeeded", zap.String("title", title), zap.Int("status", out.Value))
	return true
}

func (u *Uploader) post(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, retry.Terminal(&types.TransportError{Message: "failed to build request", Cause: err})
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.opts.HTTPClient.Do(req)
	if err != nil {
		return 0, &types.TransportError{Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	// drain so the connection can be reused
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &types.TransportError{
			Message:    fmt.Sprintf("unexpected response %q", bytes.TrimSpace(snippet)),
			StatusCode: resp.StatusCode,
		}
	}
	return resp.StatusCode, nil
}
