package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/de-tools/compliance-engine/pkg/runtime/app"
	"github.com/de-tools/compliance-engine/pkg/runtime/terminal"
	"github.com/de-tools/compliance-engine/pkg/runtime/terminal/commands"
	"github.com/de-tools/compliance-engine/pkg/services/config"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cli := terminal.NewCLI(terminal.Options{
		Open: func(ctx context.Context, configPath string) (*commands.Runtime, error) {
			cfg, err := config.Load(configPath)
			if err != nil {
				return nil, err
			}
			zerolog.SetGlobalLevel(cfg.LogLevel())

			a, err := app.Build(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return a.Runtime(), nil
		},
		Output: os.Stdout,
	})

	if err := cli.ExecuteContext(logger.WithContext(context.Background())); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
