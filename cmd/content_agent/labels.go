package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/course-content-pipeline/internal/config"
	"github.com/jonathan/course-content-pipeline/internal/labels"
	"github.com/jonathan/course-content-pipeline/internal/observability"
	"github.com/jonathan/course-content-pipeline/internal/pipeline"
	"github.com/jonathan/course-content-pipeline/internal/prompts"
	"github.com/jonathan/course-content-pipeline/internal/types"
)

var labelsCommand = &cobra.Command{
	Use:   "labels",
	Short: "Label student questions and inspect the label universe",
}

var labelsGenerateCommand = &cobra.Command{
	Use:   "generate <questions-file-or-dir>...",
	Short: "Label every question, preferring labels that already exist",
	Long: `Runs the label preset over every question. Labels accepted so far are included in
each prompt so the model reuses them; newly accepted pairs are appended to the
label file after each question.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLabelsGenerateCmd,
}

var labelsShowCommand = &cobra.Command{
	Use:   "show",
	Short: "Print the distinct categories and topics in the label file",
	Args:  cobra.NoArgs,
	RunE:  runLabelsShowCmd,
}

var (
	labelsPath    string
	labelsResults string
	labelsAPIKey  string
)

func init() {
	labelsCommand.PersistentFlags().StringVar(&labelsPath, "labels", "", "Label file (default labels.json)")
	labelsGenerateCommand.Flags().StringVarP(&labelsResults, "results", "o", "", "Results file, rewritten after every question")
	labelsGenerateCommand.Flags().StringVar(&labelsAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")

	labelsCommand.AddCommand(labelsGenerateCommand, labelsShowCommand)
	rootCmd.AddCommand(labelsCommand)
}

func runLabelsGenerateCmd(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	if cmd.Flags().Changed("labels") {
		cfg.Labels.Path = labelsPath
	}
	if cmd.Flags().Changed("results") {
		cfg.Generation.ResultsPath = labelsResults
	}
	if cmd.Flags().Changed("api-key") {
		cfg.Model.APIKey = labelsAPIKey
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err := generateLabels(ctx, cfg, args)
	return err
}

// generateLabels runs the label preset with the label file feeding prompts
// and collecting accepted pairs.
func generateLabels(ctx context.Context, cfg *config.Config, paths []string) (*labels.Store, error) {
	preset, err := pipeline.LoadPreset(pipeline.PresetLabel)
	if err != nil {
		return nil, err
	}
	template, err := prompts.Get("label.json", "existing_labels")
	if err != nil {
		return nil, err
	}
	labelStore, err := labels.Open(cfg.Labels.Path)
	if err != nil {
		return nil, err
	}

	hooks := generateHooks{
		ExtraInstruction: func(key string) string {
			text, err := labelStore.Instruction(template)
			if err != nil {
				logger.Warn("failed to render existing labels", zap.String("key", key), zap.Error(err))
			}
			return text
		},
		OnRecord: func(_ context.Context, record *types.KeyRecord) {
			changed, err := labelStore.Accept(record.Results[pipeline.PresetLabel])
			if err != nil {
				logger.Error("failed to save label file", zap.String("path", cfg.Labels.Path), zap.Error(err))
				return
			}
			if changed {
				logger.Info("label recorded", zap.String("key", record.Key), zap.Int("labels", len(labelStore.Pairs())))
			}
		},
	}

	if _, err := generate(ctx, cfg, preset, paths, hooks, os.Stdout); err != nil {
		return labelStore, err
	}
	return labelStore, nil
}

func runLabelsShowCmd(cmd *cobra.Command, _ []string) error {
	cfg := appConfig
	if cmd.Flags().Changed("labels") {
		cfg.Labels.Path = labelsPath
	}
	labelStore, err := labels.Open(cfg.Labels.Path)
	if err != nil {
		return err
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintLabelSet(labelStore.Universe())
	return nil
}
