package main

import (
	"fmt"
	"net"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/de-tools/compliance-engine/pkg/runtime/app"
	"github.com/de-tools/compliance-engine/pkg/server"
	"github.com/de-tools/compliance-engine/pkg/services/config"
)

var cfgPath string

func main() {
	var rootCmd = &cobra.Command{
		Use:   "web",
		Short: "Start the web server for the compliance engine",
		RunE:  runServer,
	}

	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "",
		"Path to the configuration file (COMPLIANCE_* environment variables apply either way)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Error loading .env file: %v\n", err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := zerolog.New(os.Stdout).Level(cfg.LogLevel()).With().Timestamp().Logger()
	ctx := logger.WithContext(cmd.Context())

	a, err := app.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize compliance engine: %w", err)
	}
	defer a.Close()

	if err := a.Mirrors.Init(ctx); err != nil {
		return fmt.Errorf("failed to resume mirrors: %w", err)
	}

	if cfgPath != "" {
		logger.Info().Msgf("Configuration found at `%s` successfully loaded.", cfgPath)
	}

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	api := server.NewWebAPI(server.Config{
		Addr: addr,
		Dependencies: server.Dependencies{
			Invoker: a.Engine,
			Events:  a.Events,
			Audits:  a.Audits,
			Mirrors: a.Mirrors,
			Metrics: a.Metrics,
			Logger:  logger,
		},
	})

	return api.Start()
}
