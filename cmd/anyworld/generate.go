package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	anyworld "github.com/anythingworld/anything-world-go"
	"github.com/anythingworld/anything-world-go/internal/config"
	"github.com/anythingworld/anything-world-go/internal/history"
)

var (
	generateRefine    bool
	generatePublic    bool
	generateTraining  bool
	generateAnimate   bool
	generateImageName string
	generateNoWait    bool
	generateWatch     bool
	generateRetries   int
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate 3D models from text or images",
}

var generateTextCmd = &cobra.Command{
	Use:   "text <prompt>",
	Short: "Generate a 3D model from a text prompt",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGenerateText,
}

var generateImageCmd = &cobra.Command{
	Use:   "image <file>",
	Short: "Generate a 3D model from a source image",
	Args:  cobra.ExactArgs(1),
	RunE:  runGenerateImage,
}

func init() {
	generateCmd.PersistentFlags().BoolVar(&generatePublic, "public", false, "allow the generated model to be public")
	generateCmd.PersistentFlags().BoolVar(&generateTraining, "allow-training", false, "allow the model to be used for service improvements")
	generateCmd.PersistentFlags().BoolVar(&generateAnimate, "animate", false, "also run the generated model through the animate pipeline")
	generateCmd.PersistentFlags().BoolVar(&generateNoWait, "no-wait", false, "submit and exit without polling")
	generateCmd.PersistentFlags().BoolVar(&generateWatch, "watch", false, "render an inline spinner while waiting")
	generateCmd.PersistentFlags().IntVar(&generateRetries, "retries", 0, "retry transient status-check failures this many times")

	generateTextCmd.Flags().BoolVar(&generateRefine, "refine-prompt", true, "let the server rewrite the prompt before generating")
	generateImageCmd.Flags().StringVar(&generateImageName, "model-name", "", "name for the generated model (required)")
	generateImageCmd.MarkFlagRequired("model-name")

	generateCmd.AddCommand(generateTextCmd)
	generateCmd.AddCommand(generateImageCmd)
	rootCmd.AddCommand(generateCmd)
}

func runGenerateText(cmd *cobra.Command, args []string) error {
	req := anyworld.TextRequest{
		Prompt:                strings.Join(args, " "),
		RefinePrompt:          generateRefine,
		CanBePublic:           generatePublic,
		CanUseForImprovements: generateTraining,
	}
	return runGenerate(req.Prompt, func(ctx context.Context, client *anyworld.Client) (*anyworld.Receipt, error) {
		return client.GenerateFromText(ctx, req)
	})
}

func runGenerateImage(cmd *cobra.Command, args []string) error {
	req := anyworld.ImageRequest{
		FilePath:              args[0],
		ModelName:             generateImageName,
		CanBePublic:           generatePublic,
		CanUseForImprovements: generateTraining,
	}
	return runGenerate(req.ModelName, func(ctx context.Context, client *anyworld.Client) (*anyworld.Receipt, error) {
		return client.GenerateFromImage(ctx, req)
	})
}

// runGenerate is the shared submit-record-wait flow for both generate forms.
func runGenerate(name string, submit func(ctx context.Context, client *anyworld.Client) (*anyworld.Receipt, error)) error {
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

	receipt, err := submit(ctx, client)
	if err != nil {
		logger.Error("generate submission failed", "error", err)
		os.Exit(1)
	}
	if err := store.Record(receipt.ModelID, name, history.KindGenerate); err != nil {
		logger.Warn("could not record submission", "error", err)
	}
	fmt.Printf("submitted: %s\n", receipt.ModelID)

	if generateNoWait {
		return nil
	}

	model, err := waitForModel(ctx, client, store, waitSpec{
		modelID: receipt.ModelID,
		kind:    history.KindGenerate,
		retries: generateRetries,
		watch:   generateWatch,
		cfg:     cfg,
		logger:  logger,
	})
	if err != nil {
		reportPollFailure(logger, err)
		os.Exit(1)
	}
	fmt.Printf("generated: %s (stage %s)\n", model.ID, model.Stage)

	if !generateAnimate {
		if url := model.Model.MeshURL("glb"); url != "" {
			fmt.Printf("glb: %s\n", url)
		}
		return nil
	}

	// Second leg: push the generated mesh through the animate pipeline.
	animated, err := animateGeneratedModel(ctx, client, store, model, cfg, logger)
	if err != nil {
		reportPollFailure(logger, err)
		os.Exit(1)
	}
	fmt.Printf("animated: %s (stage %s)\n", animated.ID, animated.Stage)
	if url := animated.Model.MeshURL("glb"); url != "" {
		fmt.Printf("glb: %s\n", url)
	}
	return nil
}

// animateGeneratedModel downloads the generated mesh, submits it for
// animation, records it, and waits for the result.
func animateGeneratedModel(ctx context.Context, client *anyworld.Client, store *history.Store, generated *anyworld.Model, cfg *config.Config, logger *slog.Logger) (*anyworld.Model, error) {
	receipt, err := client.AnimateGenerated(ctx, generated)
	if err != nil {
		return nil, err
	}
	if err := store.Record(receipt.ModelID, generated.Name, history.KindAnimate); err != nil {
		logger.Warn("could not record submission", "error", err)
	}
	fmt.Printf("submitted for animation: %s\n", receipt.ModelID)

	return waitForModel(ctx, client, store, waitSpec{
		modelID: receipt.ModelID,
		kind:    history.KindAnimate,
		retries: generateRetries,
		watch:   generateWatch,
		cfg:     cfg,
		logger:  logger,
	})
}
