package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/course-content-pipeline/internal/config"
	"github.com/jonathan/course-content-pipeline/internal/observability"
	"github.com/jonathan/course-content-pipeline/internal/publish"
	"github.com/jonathan/course-content-pipeline/internal/ratelimit"
	"github.com/jonathan/course-content-pipeline/internal/store"
	"github.com/jonathan/course-content-pipeline/internal/types"
)

var uploadCommand = &cobra.Command{
	Use:   "upload [results-file]",
	Short: "Publish generated records to the content endpoint",
	Long: `Uploads every record of a results file, in order, retrying each one. Items that
still fail are written to the failure ledger once the batch is done.

With --from-ledger the entries of a previous ledger are uploaded instead and a
fresh ledger of the remaining failures is written.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUploadCmd,
}

var (
	uploadEndpoint   string
	uploadPrefix     string
	uploadAction     string
	uploadRetries    int
	uploadRetryDelay time.Duration
	uploadRPS        float64
	uploadLedger     string
	uploadFromLedger string
	uploadMetrics    string
)

func init() {
	uploadCommand.Flags().StringVar(&uploadEndpoint, "endpoint", "", "Content endpoint URL")
	uploadCommand.Flags().StringVar(&uploadPrefix, "prefix", "", "Prefix sent with every item")
	uploadCommand.Flags().StringVar(&uploadAction, "action", "", "Action sent with every item (default create)")
	uploadCommand.Flags().IntVar(&uploadRetries, "max-retries", 0, "Attempts per item")
	uploadCommand.Flags().DurationVar(&uploadRetryDelay, "retry-delay", 0, "Delay between attempts of one item")
	uploadCommand.Flags().Float64Var(&uploadRPS, "rps", 0, "Maximum requests per second (0 = unlimited)")
	uploadCommand.Flags().StringVar(&uploadLedger, "ledger", "", "Failure ledger to write (default failed_uploads.json)")
	uploadCommand.Flags().StringVar(&uploadFromLedger, "from-ledger", "", "Re-upload the entries of this failure ledger")
	uploadCommand.Flags().StringVar(&uploadMetrics, "metrics-file", "", "Write upload metrics to this Prometheus textfile")

	rootCmd.AddCommand(uploadCommand)
}

func runUploadCmd(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	flags := cmd.Flags()

	if flags.Changed("endpoint") {
		cfg.Upload.Endpoint = uploadEndpoint
	}
	if flags.Changed("prefix") {
		cfg.Upload.Prefix = uploadPrefix
	}
	if flags.Changed("action") {
		cfg.Upload.Action = uploadAction
	}
	if flags.Changed("max-retries") {
		cfg.Upload.MaxRetries = uploadRetries
	}
	if flags.Changed("retry-delay") {
		cfg.Upload.RetryDelay = uploadRetryDelay
	}
	if flags.Changed("rps") {
		cfg.Upload.RPS = uploadRPS
	}
	if flags.Changed("ledger") {
		cfg.Upload.LedgerPath = uploadLedger
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.Textfile = uploadMetrics
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if uploadFromLedger == "" && len(args) == 0 {
		args = []string{cfg.Generation.ResultsPath}
	}
	items, err := loadUploadItems(args, uploadFromLedger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = upload(ctx, cfg, items, os.Stdout)
	return err
}

// loadUploadItems reads the batch either from a ledger or a results file.
func loadUploadItems(args []string, ledgerPath string) ([]publish.Item, error) {
	if ledgerPath != "" {
		entries, err := store.LoadLedger(ledgerPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load ledger: %w", err)
		}
		return publish.ItemsFromLedger(entries), nil
	}
	records, err := store.LoadResults(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}
	return publish.ItemsFromRecords(records), nil
}

// upload publishes items and writes the failure ledger.
func upload(ctx context.Context, cfg *config.Config, items []publish.Item, out io.Writer) (*types.UploadSummary, error) {
	if err := cfg.RequireEndpoint(); err != nil {
		return nil, err
	}

	// a configured zero means no delay; the uploader reads zero as its default
	retryDelay := cfg.Upload.RetryDelay
	if retryDelay == 0 {
		retryDelay = -1
	}

	metrics := observability.NewMetrics()
	uploader, err := publish.NewUploader(publish.Options{
		Endpoint:   cfg.Upload.Endpoint,
		Prefix:     cfg.Upload.Prefix,
		Action:     cfg.Upload.Action,
		MaxRetries: cfg.Upload.MaxRetries,
		RetryDelay: retryDelay,
		Logger:     logger,
		Metrics:    metrics,
	})
	if err != nil {
		return nil, err
	}

	summary, ledger, err := uploader.UploadBatch(ctx, items, publish.BatchOptions{
		LedgerPath: cfg.Upload.LedgerPath,
		Throttle:   ratelimit.NewThrottle(cfg.Upload.RPS),
	})
	if summary != nil {
		observability.NewPrinter(out).PrintUploadSummary(summary, ledger.Entries())
	}
	if cfg.Metrics.Textfile != "" {
		if werr := metrics.WriteTextfile(cfg.Metrics.Textfile); werr != nil {
			logger.Warn("failed to write metrics", zap.String("path", cfg.Metrics.Textfile), zap.Error(werr))
		}
	}
	return summary, err
}
