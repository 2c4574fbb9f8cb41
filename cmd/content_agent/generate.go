package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/course-content-pipeline/internal/config"
	"github.com/jonathan/course-content-pipeline/internal/db"
	"github.com/jonathan/course-content-pipeline/internal/ingestion"
	"github.com/jonathan/course-content-pipeline/internal/llm"
	"github.com/jonathan/course-content-pipeline/internal/observability"
	"github.com/jonathan/course-content-pipeline/internal/pipeline"
	"github.com/jonathan/course-content-pipeline/internal/ratelimit"
	"github.com/jonathan/course-content-pipeline/internal/store"
	"github.com/jonathan/course-content-pipeline/internal/types"
)

var generateCommand = &cobra.Command{
	Use:   "generate <keys-file-or-dir>...",
	Short: "Generate content for every key in the given sources",
	Long: `Reads keys from .csv, .json, .txt, .xlsx or .html sources, runs every subtask of the
selected preset for each key and rewrites the results file after every key.

A pause_generation file next to a source stops the run before it starts.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerateCmd,
}

var (
	genPreset      string
	genSubtasks    string
	genResults     string
	genColumn      string
	genDocuments   bool
	genMaxAttempts int
	genModel       string
	genModelPreset string
	genAPIKey      string
	genDatabaseURL string
	genMetrics     string
)

func init() {
	generateCommand.Flags().StringVarP(&genPreset, "preset", "p", "", "Subtask preset: "+strings.Join(pipeline.PresetNames(), ", "))
	generateCommand.Flags().StringVar(&genSubtasks, "subtasks", "", "YAML file defining a custom subtask preset (overrides --preset)")
	generateCommand.Flags().StringVarP(&genResults, "results", "o", "", "Results file, rewritten after every key")
	generateCommand.Flags().StringVar(&genColumn, "column", "", "Tabular column holding the keys (default Keyword, then the first column)")
	generateCommand.Flags().BoolVar(&genDocuments, "documents", false, "Treat each text or HTML file as one key")
	generateCommand.Flags().IntVar(&genMaxAttempts, "max-attempts", 0, "Attempts per subtask")
	generateCommand.Flags().StringVar(&genModel, "model", "", "Model name")
	generateCommand.Flags().StringVar(&genModelPreset, "model-preset", "", "Model generation preset: "+strings.Join(llm.Presets(), ", "))

	// API key can be passed as a flag, or read from env var GEMINI_API_KEY
	generateCommand.Flags().StringVar(&genAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")

	// Database URL for the optional results mirror
	generateCommand.Flags().StringVar(&genDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	generateCommand.Flags().StringVar(&genMetrics, "metrics-file", "", "Write run metrics to this Prometheus textfile")

	rootCmd.AddCommand(generateCommand)
}

// newModelClient builds the model client used by generation runs.
var newModelClient = func(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	llmConfig, err := llm.NewConfig(cfg.Model.Name, cfg.Model.Preset)
	if err != nil {
		return nil, err
	}
	return llm.NewGeminiClient(ctx, llmConfig, cfg.Model.APIKey)
}

func runGenerateCmd(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	flags := cmd.Flags()

	// Only override if the flag was explicitly set
	if flags.Changed("preset") {
		cfg.Generation.Preset = genPreset
	}
	if flags.Changed("subtasks") {
		cfg.Generation.SubtasksFile = genSubtasks
	}
	if flags.Changed("results") {
		cfg.Generation.ResultsPath = genResults
	}
	if flags.Changed("column") {
		cfg.Generation.KeyColumn = genColumn
	}
	if flags.Changed("documents") {
		cfg.Generation.DocumentsMode = genDocuments
	}
	if flags.Changed("max-attempts") {
		cfg.Generation.MaxAttempts = genMaxAttempts
	}
	if flags.Changed("model") {
		cfg.Model.Name = genModel
	}
	if flags.Changed("model-preset") {
		cfg.Model.Preset = genModelPreset
	}
	if flags.Changed("api-key") {
		cfg.Model.APIKey = genAPIKey
	}
	if flags.Changed("db-url") {
		cfg.DatabaseURL = genDatabaseURL
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.Textfile = genMetrics
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	preset, err := resolvePreset(cfg)
	if err != nil {
		return err
	}
	_, err = generate(ctx, cfg, preset, args, generateHooks{}, os.Stdout)
	return err
}

// resolvePreset returns the custom YAML preset when configured, else the
// named built-in preset.
func resolvePreset(cfg *config.Config) (*pipeline.Preset, error) {
	if cfg.Generation.SubtasksFile != "" {
		return pipeline.LoadPresetFile(cfg.Generation.SubtasksFile)
	}
	return pipeline.LoadPreset(cfg.Generation.Preset)
}

// generateHooks carries preset-specific callbacks into a run.
type generateHooks struct {
	ExtraInstruction func(key string) string
	OnRecord         func(ctx context.Context, record *types.KeyRecord)
}

// generate loads keys from paths and runs preset over them. A paused source
// is not an error: the run is skipped and a nil summary returned.
func generate(ctx context.Context, cfg *config.Config, preset *pipeline.Preset, paths []string, hooks generateHooks, out io.Writer) (*types.RunSummary, error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}

	mode := ingestion.ModeLines
	if cfg.Generation.DocumentsMode {
		mode = ingestion.ModeDocuments
	}
	source := ingestion.Source{Paths: paths, Column: cfg.Generation.KeyColumn, Mode: mode}
	keys, err := source.Load()
	if errors.Is(err, ingestion.ErrPaused) {
		logger.Info("generation paused, pause flag present", zap.Strings("sources", paths))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load keys: %w", err)
	}

	runID := uuid.New()
	metrics := observability.NewMetrics()

	var (
		summary *types.RunSummary
		runErr  error
		mirror  store.Mirror
	)
	if cfg.DatabaseURL != "" {
		database, err := openMirror(ctx, cfg.DatabaseURL, runID, preset.Name, cfg.Model.Name, len(keys))
		if err != nil {
			return nil, err
		}
		defer database.Close()
		mirror = db.NewRunMirror(database, runID)
		defer func() {
			// ctx may already be cancelled
			if err := database.CompleteRun(context.Background(), runID, runStatus(runErr), summary); err != nil {
				logger.Warn("failed to complete database run", zap.Error(err))
			}
		}()
	}

	results := store.NewResultStore(cfg.Generation.ResultsPath, mirror, logger)
	summary, runErr = pipeline.Run(ctx, keys, pipeline.RunOptions{
		RunID:  runID.String(),
		Preset: preset,
		NewClient: func(ctx context.Context) (llm.Client, error) {
			return newModelClient(ctx, cfg)
		},
		Store:            results,
		Pacer:            ratelimit.NewPacer(cfg.Generation.PaceInterval, cfg.Generation.PaceDuration, logger),
		MaxAttempts:      cfg.Generation.MaxAttempts,
		Logger:           logger,
		Metrics:          metrics,
		ExtraInstruction: hooks.ExtraInstruction,
		OnRecord:         hooks.OnRecord,
		OnProgress: func(event pipeline.ProgressEvent) {
			logger.Debug(event.Message, zap.Int("index", event.Index), zap.String("key", event.Key), zap.String("subtask", event.Subtask))
		},
	})

	if summary != nil {
		observability.NewPrinter(out).PrintRunSummary(summary)
	}
	if cfg.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warn("failed to write metrics", zap.String("path", cfg.Metrics.Textfile), zap.Error(err))
		}
	}
	return summary, runErr
}

func openMirror(ctx context.Context, url string, runID uuid.UUID, preset, model string, keys int) (*db.DB, error) {
	database, err := db.Connect(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := database.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, err
	}
	if err := database.CreateRun(ctx, runID, preset, model, keys); err != nil {
		database.Close()
		return nil, err
	}
	logger.Info("mirroring results to database", zap.String("run_id", runID.String()))
	return database, nil
}

func runStatus(runErr error) string {
	if runErr != nil {
		return db.RunStatusFailed
	}
	return db.RunStatusCompleted
}
