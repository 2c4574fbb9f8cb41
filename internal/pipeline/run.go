// Package pipeline runs the generation loop: every key is sent through the
// preset's subtasks, each response is shape-checked and retried, and the
// merged per-key record is handed to the result store.
package pipeline

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/course-content-pipeline/internal/llm"
	"github.com/jonathan/course-content-pipeline/internal/observability"
	"github.com/jonathan/course-content-pipeline/internal/ratelimit"
	"github.com/jonathan/course-content-pipeline/internal/retry"
	"github.com/jonathan/course-content-pipeline/internal/schemas"
	"github.com/jonathan/course-content-pipeline/internal/store"
	"github.com/jonathan/course-content-pipeline/internal/types"
)

// DefaultMaxAttempts is the per-subtask attempt bound.
const DefaultMaxAttempts = 3

// ProgressEvent represents a progress update during a run
type ProgressEvent struct {
	Index   int    `json:"index"` // 1-based key position
	Key     string `json:"key"`
	Subtask string `json:"subtask,omitempty"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
}

// ProgressCallback is called when run progress occurs
type ProgressCallback func(event ProgressEvent)

// ClientFactory builds the model client. It is called lazily when a key
// needs a client and no healthy one exists.
type ClientFactory func(ctx context.Context) (llm.Client, error)

// RunOptions holds configuration for a generation run
type RunOptions struct {
	RunID       string
	Preset      *Preset
	NewClient   ClientFactory
	Store       *store.ResultStore
	Pacer       *ratelimit.Pacer // nil disables pacing
	MaxAttempts int              // default DefaultMaxAttempts
	Logger      *zap.Logger
	Metrics     *observability.Metrics

	// ExtraInstruction returns text inserted after the shared header of every
	// system instruction for key.
	ExtraInstruction func(key string) string

	// OnRecord is called after a record is handed to the store.
	OnRecord func(ctx context.Context, record *types.KeyRecord)

	OnProgress ProgressCallback
}

type runner struct {
	opts    RunOptions
	log     *zap.Logger
	client  llm.Client
	summary *types.RunSummary
}

// Run processes keys in order. Failures while processing a key are contained
// to that key; only a configuration error or context cancellation stops the
// loop. The returned summary is valid even when an error is returned.
func Run(ctx context.Context, keys []string, opts RunOptions) (*types.RunSummary, error) {
	if opts.Preset == nil {
		return nil, &types.ConfigurationError{Field: "preset", Message: "preset is required"}
	}
	if err := opts.Preset.Validate(); err != nil {
		return nil, err
	}
	if opts.NewClient == nil {
		return nil, &types.ConfigurationError{Field: "client", Message: "client factory is required"}
	}
	if opts.Store == nil {
		return nil, &types.ConfigurationError{Field: "store", Message: "result store is required"}
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}

	r := &runner{
		opts: opts,
		log:  opts.Logger.With(zap.String("run_id", opts.RunID), zap.String("preset", opts.Preset.Name)),
		summary: &types.RunSummary{
			RunID:  opts.RunID,
			Preset: opts.Preset.Name,
		},
	}
	defer r.closeClient()

	r.log.Info("run started", zap.Int("keys", len(keys)), zap.Strings("subtasks", opts.Preset.SubtaskNames()))

	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			return r.finish(), err
		}

		// paced on the 1-based index, before the key's subtasks
		if opts.Pacer != nil {
			paused, err := opts.Pacer.MaybePause(ctx, i+1)
			if paused {
				r.summary.Pauses++
				opts.Metrics.ObservePause()
			}
			if err != nil {
				return r.finish(), err
			}
		}

		if err := r.processKey(ctx, i+1, key); err != nil {
			return r.finish(), err
		}
	}

	return r.finish(), nil
}

func (r *runner) finish() *types.RunSummary {
	r.summary.PersistFailures = r.opts.Store.FailedWrites()
	r.log.Info("run completed",
		zap.Int("keys", r.summary.Keys),
		zap.Int("records", r.summary.Records),
		zap.Int("dropped", r.summary.Dropped),
		zap.Int("subtasks_succeeded", r.summary.SubtasksSucceeded),
		zap.Int("subtasks_exhausted", r.summary.SubtasksExhausted),
		zap.Int("failed_attempts", r.summary.FailedAttempts),
	)
	return r.summary
}

// processKey runs every subtask for one key. A panic or client construction
// failure drops the key. Only a configuration error is returned.
func (r *runner) processKey(ctx context.Context, index int, key string) (err error) {
	r.summary.Keys++
	log := r.log.With(zap.Int("index", index), zap.String("key", key))
	log.Info("processing key")
	r.emit(index, key, "", "processing key")

	record := types.NewKeyRecord(key)
	saved := false

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("panic while processing key", zap.Any("panic", rec))
			err = nil
			if !saved {
				r.drop(log, index, key)
			}
		}
	}()

	client, cerr := r.ensureClient(ctx)
	if cerr != nil {
		if types.IsConfiguration(cerr) {
			return cerr
		}
		log.Error("failed to create model client", zap.Error(cerr))
		r.drop(log, index, key)
		return nil
	}

	extra := ""
	if r.opts.ExtraInstruction != nil {
		extra = r.opts.ExtraInstruction(key)
	}

	for _, spec := range r.opts.Preset.Subtasks {
		result := r.runSubtask(ctx, log, client, key, spec, extra)
		r.opts.Metrics.ObserveSubtask(spec.Name, result.Status)
		if types.IsConfiguration(result.Err) {
			return result.Err
		}
		if !result.OK() {
			r.summary.SubtasksExhausted++
			log.Warn("subtask exhausted",
				zap.String("subtask", spec.Name),
				zap.Int("attempts", result.Attempts),
				zap.Error(result.Err),
			)
			r.emit(index, key, spec.Name, "subtask exhausted")
			continue
		}
		r.summary.SubtasksSucceeded++
		log.Info("subtask succeeded", zap.String("subtask", spec.Name), zap.Int("attempts", result.Attempts))
		r.emit(index, key, spec.Name, "subtask succeeded")
		record.Merge(spec.Name, result.Value)
		record.Layer(r.opts.Preset.Pad)
	}

	if record.Succeeded() == 0 {
		r.drop(log, index, key)
		return nil
	}

	r.opts.Store.Append(ctx, record)
	saved = true
	r.summary.Records++
	r.opts.Metrics.ObserveKey(true)
	log.Info("record saved", zap.Int("subtasks", record.Succeeded()), zap.Int("total_records", r.opts.Store.Len()))
	r.emit(index, key, "", "record saved")
	if r.opts.OnRecord != nil {
		r.opts.OnRecord(ctx, record)
	}
	return nil
}

// runSubtask issues attempts for spec until one decodes and passes the shape
// check or the attempt bound is reached.
func (r *runner) runSubtask(ctx context.Context, log *zap.Logger, client llm.Client, key string, spec types.SubtaskSpec, extra string) types.SubtaskResult {
	prompt := r.opts.Preset.Prompt(key)
	system := r.opts.Preset.SystemInstruction(spec, extra)
	hint := llm.SchemaHint{Root: spec.Root}

	var failures []types.SubtaskStatus
	policy := retry.Policy{
		MaxAttempts: r.opts.MaxAttempts,
		OnFailure: func(attempt int, err error) {
			status := types.AttemptStatus(err)
			failures = append(failures, status)
			r.summary.FailedAttempts++
			r.opts.Metrics.ObserveFailedAttempt(spec.Name, status)
			log.Warn("subtask attempt failed",
				zap.String("subtask", spec.Name),
				zap.Int("attempt", attempt),
				zap.String("status", string(status)),
				zap.Error(err),
			)
		},
	}

	out := retry.Attempt(ctx, policy, func(ctx context.Context, _ int) (any, error) {
		text, err := client.Complete(ctx, prompt, system, hint)
		if err != nil {
			if types.IsConfiguration(err) {
				return nil, retry.Terminal(err)
			}
			return nil, err
		}
		value, err := llm.DecodeJSON(text)
		if err != nil {
			return nil, err
		}
		if err := schemas.CheckSubtask(spec, value); err != nil {
			return nil, err
		}
		return value, nil
	})

	result := types.SubtaskResult{
		Name:     spec.Name,
		Attempts: out.Attempts,
		Failures: failures,
	}
	if out.OK() {
		result.Status = types.StatusSuccess
		result.Value = out.Value
		return result
	}
	result.Status = types.StatusExhausted
	result.Err = out.Err
	return result
}

func (r *runner) ensureClient(ctx context.Context) (llm.Client, error) {
	if r.client != nil {
		return r.client, nil
	}
	client, err := r.opts.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, errors.New("client factory returned nil client")
	}
	r.client = client
	return client, nil
}

func (r *runner) closeClient() {
	if r.client == nil {
		return
	}
	if err := r.client.Close(); err != nil {
		r.log.Warn("failed to close model client", zap.Error(err))
	}
	r.client = nil
}

func (r *runner) drop(log *zap.Logger, index int, key string) {
	r.summary.Dropped++
	r.opts.Metrics.ObserveKey(false)
	log.Warn("no content generated")
	r.emit(index, key, "", "no content generated")
}

// emit calls the progress callback if configured
func (r *runner) emit(index int, key, subtask, message string) {
	if r.opts.OnProgress != nil {
		r.opts.OnProgress(ProgressEvent{
			Index:   index,
			Key:     key,
			Subtask: subtask,
			Message: message,
			RunID:   r.opts.RunID,
		})
	}
}
