package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"trade-journal-go/internal/client"
	"trade-journal-go/internal/config"
	"trade-journal-go/internal/logger"
)

// report prints the optimization report for a user from a running server.
//
//	report <userId>
func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: report <userId>")
		os.Exit(2)
	}
	userID := os.Args[1]

	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rc := client.NewRestClient(cfg.Client, log)
	if _, err := rc.Health(ctx); err != nil {
		log.Fatal("Journal API is not reachable", zap.String("base_url", cfg.Client.BaseURL), zap.Error(err))
	}

	report, err := rc.Optimize(ctx, userID)
	if err != nil {
		log.Fatal("Failed to fetch optimization report", zap.String("user_id", userID), zap.Error(err))
	}

	fmt.Printf("Optimization report for %s\n\n", userID)
	fmt.Println("Underperforming strategies:")
	if len(report.UnderperformingStrategies) == 0 {
		fmt.Println("  none")
	}
	for _, id := range report.UnderperformingStrategies {
		fmt.Printf("  - %s\n", id)
	}

	fmt.Println("\nRisk analysis:")
	for _, r := range report.RiskAnalysis {
		fmt.Printf("  %-6s avg outcome %10.2f over %d trades\n", r.RiskLevel, r.AvgOutcome, r.Count)
	}
	fmt.Printf("\nRisk correlation: %.4f\n", report.RiskCorrelation)

	fmt.Println("\nSuggestions:")
	for _, s := range report.Suggestions {
		fmt.Printf("  * %s\n", s)
	}
}
