package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	anyworld "github.com/anythingworld/anything-world-go"
	"github.com/anythingworld/anything-world-go/internal/config"
	"github.com/anythingworld/anything-world-go/internal/history"
	"github.com/anythingworld/anything-world-go/internal/tui"
)

var (
	animateName         string
	animateType         string
	animateSymmetric    bool
	animateAutoRotate   bool
	animateExtraFormats bool
	animateNoWait       bool
	animateWatch        bool
	animateRetries      int
)

var animateCmd = &cobra.Command{
	Use:   "animate <files-dir>",
	Short: "Upload a model and animate it",
	Long:  "Uploads the asset files in the given directory (or a single file), enqueues them for animation, and waits for the result unless --no-wait is set.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnimate,
}

func init() {
	animateCmd.Flags().StringVar(&animateName, "model-name", "", "name for the uploaded model (required)")
	animateCmd.Flags().StringVar(&animateType, "model-type", "", "model type, e.g. \"cat\" (default: auto-classify)")
	animateCmd.Flags().BoolVar(&animateSymmetric, "symmetric", true, "model geometry is left/right symmetric")
	animateCmd.Flags().BoolVar(&animateAutoRotate, "auto-rotate", true, "let the server fix the model's orientation")
	animateCmd.Flags().BoolVar(&animateExtraFormats, "extra-formats", false, "wait for the extra output formats (.gltf, .dae) too")
	animateCmd.Flags().BoolVar(&animateNoWait, "no-wait", false, "submit and exit without polling")
	animateCmd.Flags().BoolVar(&animateWatch, "watch", false, "render an inline spinner while waiting")
	animateCmd.Flags().IntVar(&animateRetries, "retries", 0, "retry transient status-check failures this many times")
	animateCmd.MarkFlagRequired("model-name")
	rootCmd.AddCommand(animateCmd)
}

func runAnimate(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	client, err := buildClient(cfg, logger)
	if err != nil {
		logger.Error("failed to build client", "error", err)
		os.Exit(1)
	}
	store := openHistory(cfg, logger)
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	receipt, err := client.Animate(ctx, anyworld.AnimateRequest{
		FilesDir:   args[0],
		ModelName:  animateName,
		ModelType:  animateType,
		Symmetric:  animateSymmetric,
		AutoRotate: animateAutoRotate,
	})
	if err != nil {
		logger.Error("animate submission failed", "error", err)
		os.Exit(1)
	}
	if err := store.Record(receipt.ModelID, animateName, history.KindAnimate); err != nil {
		logger.Warn("could not record submission", "error", err)
	}
	fmt.Printf("submitted: %s\n", receipt.ModelID)

	if animateNoWait {
		return nil
	}

	model, err := waitForModel(ctx, client, store, waitSpec{
		modelID:      receipt.ModelID,
		kind:         history.KindAnimate,
		extraFormats: animateExtraFormats,
		retries:      animateRetries,
		watch:        animateWatch,
		cfg:          cfg,
		logger:       logger,
	})
	if err != nil {
		reportPollFailure(logger, err)
		os.Exit(1)
	}

	fmt.Printf("done: %s (stage %s)\n", model.ID, model.Stage)
	if url := model.Model.MeshURL("glb"); url != "" {
		fmt.Printf("glb: %s\n", url)
	}
	return nil
}

// waitSpec bundles everything waitForModel needs to run one poll.
type waitSpec struct {
	modelID      string
	kind         string
	extraFormats bool
	retries      int
	watch        bool
	cfg          *config.Config
	logger       *slog.Logger
}

// waitForModel polls a submission to completion (spinner view or plain
// verbose logging) and records the outcome in the history store.
func waitForModel(ctx context.Context, client *anyworld.Client, store *history.Store, spec waitSpec) (*anyworld.Model, error) {
	check := statusFuncFor(client, spec.kind, spec.retries, spec.logger)
	done := doneFor(spec.kind, spec.extraFormats)
	base := pollConfig(spec.cfg, !spec.watch)
	base.Done = done

	var model *anyworld.Model
	var err error
	if spec.watch {
		model, err = tui.Watch(ctx, spec.modelID, func(ctx context.Context, progress func(int, string, time.Duration)) (*anyworld.Model, error) {
			pcfg := base
			pcfg.Verbose = false
			pcfg.Progress = progress
			return anyworld.NewPoller(check, pcfg, spec.logger).Wait(ctx, spec.modelID)
		})
	} else {
		model, err = anyworld.NewPoller(check, base, spec.logger).Wait(ctx, spec.modelID)
	}

	recordOutcome(store, spec, model, err)
	return model, err
}

// recordOutcome maps a poll result onto the history store.
func recordOutcome(store *history.Store, spec waitSpec, model *anyworld.Model, err error) {
	switch {
	case err == nil && model != nil:
		store.UpdateStage(spec.modelID, model.Stage, string(anyworld.StatusDone))
	case err != nil:
		var failed *anyworld.AnimationFailedError
		var timeout *anyworld.PollTimeoutError
		if errors.As(err, &failed) {
			store.UpdateStage(spec.modelID, failed.Stage, string(anyworld.StatusFailed))
		} else if errors.As(err, &timeout) && timeout.LastStage != "" {
			store.UpdateStage(spec.modelID, timeout.LastStage, string(anyworld.StatusProcessing))
		}
	}
}

func reportPollFailure(logger *slog.Logger, err error) {
	var failed *anyworld.AnimationFailedError
	var timeout *anyworld.PollTimeoutError
	switch {
	case errors.As(err, &failed):
		logger.Error("remote pipeline failed", "model_id", failed.ModelID, "stage", failed.Stage)
	case errors.As(err, &timeout):
		logger.Error("gave up waiting", "model_id", timeout.ModelID, "elapsed", timeout.Elapsed.String(), "last_stage", timeout.LastStage)
	default:
		logger.Error("polling failed", "error", err)
	}
}
