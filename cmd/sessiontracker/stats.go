package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/goodtune/sessiontracker/internal/config"
	"github.com/goodtune/sessiontracker/internal/session"
	"github.com/goodtune/sessiontracker/internal/users"
)

var statsCmd = &cobra.Command{
	Use:   "stats [USER_ID...]",
	Short: "Show session metrics per user",
	Long:  `Compute session duration metrics for the given users, or for every user when none are named.`,
	Example: `  sessiontracker stats
  sessiontracker -c config.yaml stats alice bob`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	logger := quietLogger()
	checker := users.NewChecker(store.Users(), users.Config{}, logger)
	service := session.NewService(store.Sessions(), checker, session.Config{
		DailyBudget: cfg.Sessions.Budget(),
	}, logger)

	ids := args
	if len(ids) == 0 {
		list, err := checker.List(ctx)
		if err != nil {
			return err
		}
		for _, u := range list {
			ids = append(ids, u.ID)
		}
	}

	for _, id := range ids {
		m, err := service.Metrics(ctx, id)
		if err != nil {
			return fmt.Errorf("metrics for %s: %w", id, err)
		}
		printMetrics(m)
	}

	return nil
}

// printMetrics prints one user's metrics with colors
func printMetrics(m session.Metrics) {
	cyan := color.New(color.FgCyan, color.Bold)
	yellow := color.New(color.FgYellow)

	fmt.Println()
	_, _ = cyan.Printf("User:       %s\n", m.UserID)
	fmt.Printf("Sessions:   %d", m.Count)
	if m.Open > 0 {
		_, _ = yellow.Printf(" (%d open)", m.Open)
	}
	fmt.Println()
	fmt.Printf("Average:    %s\n", formatDuration(m.Average))
	fmt.Printf("Minimum:    %s\n", formatDuration(m.Min))
	fmt.Printf("Maximum:    %s\n", formatDuration(m.Max))
	fmt.Printf("Median:     %s\n", formatDuration(m.Median))
	fmt.Printf("Max gap:    %s\n", formatDuration(m.MaxGap))
}

// formatDuration renders d rounded to the second.
func formatDuration(d time.Duration) string {
	return d.Round(time.Second).String()
}
