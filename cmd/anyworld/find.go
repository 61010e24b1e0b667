package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	anyworld "github.com/anythingworld/anything-world-go"
)

var findByName bool

var findCmd = &cobra.Command{
	Use:   "find <query>",
	Short: "Search the model catalog",
	Long:  "Searches the model catalog with fuzzy matching, or looks up an exact model name with --name.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFind,
}

func init() {
	findCmd.Flags().BoolVar(&findByName, "name", false, "treat the query as an exact model name")
	rootCmd.AddCommand(findCmd)
}

func runFind(cmd *cobra.Command, args []string) error {
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	query := strings.Join(args, " ")
	var results []anyworld.SearchResult
	if findByName {
		results, err = client.FindByName(ctx, query)
	} else {
		results, err = client.Find(ctx, query)
	}
	if err != nil {
		logger.Error("search failed", "query", query, "error", err)
		os.Exit(1)
	}

	if len(results) == 0 {
		fmt.Println("no models found")
		return nil
	}
	for _, r := range results {
		line := fmt.Sprintf("%-26s %-14s %s", r.Name, r.Type, r.ID)
		if len(r.ThemeCategories) > 0 {
			line += "  [" + strings.Join(r.ThemeCategories, ", ") + "]"
		}
		fmt.Println(line)
	}
	return nil
}
