package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/anythingworld/anything-world-go/internal/history"
)

var (
	jobsExtraFormats bool
	jobsRetries      int
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and resume recorded submissions",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded submissions",
	RunE:  runJobsList,
}

var jobsRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Check every non-terminal submission once and update its status",
	RunE:  runJobsRefresh,
}

var jobsWatchCmd = &cobra.Command{
	Use:   "watch <model-id>",
	Short: "Poll a submission to completion with a live spinner",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsWatch,
}

func init() {
	jobsWatchCmd.Flags().BoolVar(&jobsExtraFormats, "extra-formats", false, "wait for the extra output formats (.gltf, .dae) too")
	jobsWatchCmd.Flags().IntVar(&jobsRetries, "retries", 0, "retry transient status-check failures this many times")
	jobsRefreshCmd.Flags().IntVar(&jobsRetries, "retries", 0, "retry transient status-check failures this many times")
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsRefreshCmd)
	jobsCmd.AddCommand(jobsWatchCmd)
	rootCmd.AddCommand(jobsCmd)
}

func runJobsList(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	store := openHistory(cfg, logger)
	defer store.Close()

	entries, err := store.List()
	if err != nil {
		logger.Error("failed to list submissions", "error", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		fmt.Println("no submissions recorded")
		return nil
	}

	fmt.Printf("%-26s %-20s %-9s %-11s %-30s %s\n", "MODEL ID", "NAME", "KIND", "STATUS", "STAGE", "SUBMITTED")
	for _, e := range entries {
		stage := e.Stage
		if stage == "" {
			stage = "-"
		}
		fmt.Printf("%-26s %-20s %-9s %-11s %-30s %s\n",
			e.ModelID, e.Name, e.Kind, e.Status, stage,
			e.SubmittedAt.Local().Format(time.DateTime))
	}
	return nil
}

// runJobsRefresh performs one status sweep over the non-terminal
// submissions, sequentially, with a polite pause between requests.
func runJobsRefresh(cmd *cobra.Command, args []string) error {
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

	pending, err := store.Pending()
	if err != nil {
		logger.Error("failed to load pending submissions", "error", err)
		os.Exit(1)
	}
	if len(pending) == 0 {
		fmt.Println("nothing to refresh")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for i, entry := range pending {
		if ctx.Err() != nil {
			return nil
		}

		check := statusFuncFor(client, entry.Kind, jobsRetries, logger)
		model, err := check(ctx, entry.ModelID)
		if err != nil {
			logger.Error("status check failed", "model_id", entry.ModelID, "error", err)
			continue
		}

		status := model.Status(doneFor(entry.Kind, false))
		if err := store.UpdateStage(entry.ModelID, model.Stage, string(status)); err != nil {
			logger.Error("failed to update submission", "model_id", entry.ModelID, "error", err)
			continue
		}
		logger.Info("refreshed submission",
			"model_id", entry.ModelID,
			"kind", entry.Kind,
			"stage", model.Stage,
			"status", status,
		)

		// Small sleep between requests to be polite, except after the last one.
		if i < len(pending)-1 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(1 * time.Second):
			}
		}
	}
	return nil
}

func runJobsWatch(cmd *cobra.Command, args []string) error {
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

	modelID := args[0]
	entry, err := store.Get(modelID)
	if errors.Is(err, sql.ErrNoRows) {
		// Unknown locally is fine; assume the animate pipeline and record it.
		entry = history.Entry{ModelID: modelID, Kind: history.KindAnimate}
		if err := store.Record(modelID, modelID, history.KindAnimate); err != nil {
			logger.Warn("could not record submission", "error", err)
		}
	} else if err != nil {
		logger.Error("failed to read history", "model_id", modelID, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	model, err := waitForModel(ctx, client, store, waitSpec{
		modelID:      modelID,
		kind:         entry.Kind,
		extraFormats: jobsExtraFormats,
		retries:      jobsRetries,
		watch:        true,
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
