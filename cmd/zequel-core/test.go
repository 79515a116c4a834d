package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/zequel-labs/zequel/internal/core/domain"
	"github.com/zequel-labs/zequel/internal/lifecycle"
	"github.com/zequel-labs/zequel/internal/status"
	"github.com/zequel-labs/zequel/internal/tunnel"
)

func testConnectionCommand() *cli.Command {
	return &cli.Command{
		Name:      "test-connection",
		Usage:     "Probe a connection config (JSON file or '-' for stdin) and print the result",
		ArgsUsage: "<config.json>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("expected exactly one argument: the config file")
			}
			return testConnection(ctx, cmd.Args().First())
		},
	}
}

func testConnection(ctx context.Context, path string) error {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	var cfg domain.ConnectionConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	tunnels := tunnel.NewManager(logger)
	defer tunnels.CloseAll()
	manager := lifecycle.NewManager(tunnels, status.NewLogSink(logger), logger)

	result := manager.TestConnection(ctx, cfg)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if !result.Success {
		return cli.Exit("", 1)
	}
	return nil
}
