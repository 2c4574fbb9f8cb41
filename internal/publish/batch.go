package publish

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/course-content-pipeline/internal/ratelimit"
	"github.com/jonathan/course-content-pipeline/internal/store"
	"github.com/jonathan/course-content-pipeline/internal/types"
)

// Item is one unit of an upload batch.
type Item struct {
	Index   int // 1-based position reported in the ledger; 0 means batch position
	Title   string
	Content any
}

// ItemsFromRecords turns results into upload items titled by their key.
func ItemsFromRecords(records []*types.KeyRecord) []Item {
	items := make([]Item, len(records))
	for i, rec := range records {
		items[i] = Item{Title: rec.Key, Content: rec.Content()}
	}
	return items
}

// ItemsFromLedger turns ledger entries back into items, keeping their
// original batch positions.
func ItemsFromLedger(entries []types.FailureRecord) []Item {
	items := make([]Item, len(entries))
	for i, e := range entries {
		items[i] = Item{Index: e.Index, Title: e.Title, Content: e.Content}
	}
	return items
}

// BatchOptions configures UploadBatch.
type BatchOptions struct {
	LedgerPath string              // where the failure ledger is written
	Throttle   *ratelimit.Throttle // nil disables request pacing
}

// UploadBatch uploads items in order. A failed item never stops the batch;
// it is recorded in the returned ledger, which is written to LedgerPath once
// every item has been attempted. An error is returned only when the context
// is cancelled or the ledger cannot be written.
func (u *Uploader) UploadBatch(ctx context.Context, items []Item, opts BatchOptions) (*types.UploadSummary, *store.FailureLedger, error) {
	ledger := &store.FailureLedger{}
	summary := &types.UploadSummary{Items: len(items), Ledger: opts.LedgerPath}

	var runErr error
	for i, item := range items {
		index := item.Index
		if index == 0 {
			index = i + 1
		}

		if err := opts.Throttle.Wait(ctx); err != nil {
			runErr = err
			break
		}

		delivered := u.Upload(ctx, item.Title, item.Content)
		u.opts.Metrics.ObserveUpload(delivered)
		if !delivered {
			ledger.Add(index, item.Title, item.Content)
			continue
		}
		summary.Succeeded++
	}
	summary.Failed = ledger.Len()

	u.log.Info(fmt.Sprintf("upload completed with %d %s", ledger.Len(), plural(ledger.Len(), "failure", "failures")),
		zap.Int("items", summary.Items),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
	)

	if opts.LedgerPath != "" {
		if err := ledger.Save(opts.LedgerPath); err != nil {
			u.log.Error("failed to write failure ledger", zap.String("path", opts.LedgerPath), zap.Error(err))
			if runErr == nil {
				runErr = err
			}
		} else if ledger.Len() > 0 {
			u.log.Info("failed uploads saved", zap.String("path", opts.LedgerPath), zap.Int("count", ledger.Len()))
		}
	}
	return summary, ledger, runErr
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
