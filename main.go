package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/xiaot623/planweave/internal/adapter/llm"
	"github.com/xiaot623/planweave/internal/config"
	"github.com/xiaot623/planweave/internal/repository"
	"github.com/xiaot623/planweave/internal/service"
	transport "github.com/xiaot623/planweave/internal/transport/http"
	"github.com/xiaot623/planweave/policy"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "planweave",
		Short: "Agent orchestration engine",
		Long:  "Planweave executes LLM agents as recursive, observable runs over a JSON-RPC surface.",
		RunE:  runServe,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the JSON-RPC server",
		RunE:  runServe,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the engine version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()
	cfg := config.Load()

	log.Printf("Starting orchestration engine...")
	log.Printf("Port: %d", cfg.Port)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("Model: %s", cfg.ModelName)

	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer db.Close()

	caller := llm.NewCaller(cfg)

	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		return fmt.Errorf("failed to initialize policy engine: %w", err)
	}

	svc := service.New(db, caller, cfg, policyEngine)

	if _, err := svc.EnsureBootstrapAgent(ctx); err != nil {
		return fmt.Errorf("failed to ensure bootstrap agent: %w", err)
	}
	if _, err := svc.EnsureMainRouter(ctx); err != nil {
		return fmt.Errorf("failed to ensure main router: %w", err)
	}
	if cfg.SeedAgentsFile != "" {
		if err := svc.LoadSeedAgents(ctx, cfg.SeedAgentsFile); err != nil {
			log.Printf("WARN: failed to load seed agents: %v", err)
		}
	}

	server := transport.NewServer(svc)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("JSON-RPC server started on port %d", cfg.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}
	log.Println("Engine stopped")
	return nil
}
