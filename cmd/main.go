package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/The-Promised-Neverland/tsb/internal/checksum"
	"github.com/The-Promised-Neverland/tsb/internal/config"
	"github.com/The-Promised-Neverland/tsb/internal/daemon"
	"github.com/The-Promised-Neverland/tsb/internal/sender"
	"github.com/The-Promised-Neverland/tsb/internal/service"
	"github.com/The-Promised-Neverland/tsb/internal/tunnel"
	"github.com/The-Promised-Neverland/tsb/pkg/logger"
	"github.com/fatih/color"
	kardianos "github.com/kardianos/service"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg *config.Config
	root := &cobra.Command{
		Use:           "tsb",
		Short:         "Send a file to another machine over a public tunnel",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = config.New()
			logger.Init(cfg.LogFile(), logger.ParseLevel(cfg.LogLevel()))
		},
	}
	root.AddCommand(
		newReceiveCmd(&cfg),
		newSendCmd(&cfg),
		newServiceCmd(&cfg),
		&cobra.Command{
			Use:   "version",
			Short: "Print the tsb version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), "tsb", version)
			},
		},
	)
	return root
}

func newManager(cfg *config.Config) (*daemon.DaemonManager, error) {
	prov, err := tunnel.New(cfg)
	if err != nil {
		return nil, err
	}
	app := daemon.NewApplication(cfg, service.NewService(cfg), prov, os.Stdout)
	return daemon.NewDaemonManager(cfg, app), nil
}

func newReceiveCmd(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "receive",
		Short: "Start a receiver and print its public URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := newManager(*cfg)
			if err != nil {
				return err
			}
			if err := manager.Run(); err != nil {
				logger.Log.Error("Receiver failed", "err", err)
				return err
			}
			return nil
		},
	}
}

func newSendCmd(cfg **config.Config) *cobra.Command {
	var chunkSize int
	var hashAlgo string
	cmd := &cobra.Command{
		Use:   "send <file> <url>",
		Short: "Send a file to a running receiver",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := sender.OptionsFromConfig(*cfg)
			if err != nil {
				return err
			}
			if chunkSize > 0 {
				opts.ChunkSize = chunkSize
			}
			if hashAlgo != "" {
				if opts.HashAlgorithm, err = checksum.ParseAlgorithm(hashAlgo); err != nil {
					return err
				}
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, err := sender.New(opts).Send(ctx, args[1], args[0])
			if err != nil {
				var incomplete *sender.IncompleteError
				if errors.As(err, &incomplete) {
					logger.Log.Error("Receiver did not confirm the transfer", "status", incomplete.Body)
				}
				return err
			}
			color.New(color.FgGreen, color.Bold).Fprintf(cmd.OutOrStdout(),
				"✅ Sent %s (%d bytes in %d chunks, %s)\n", res.Filename, res.Bytes, res.Chunks, res.Duration.Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "chunk size in bytes (default from TSB_CHUNK_SIZE)")
	cmd.Flags().StringVar(&hashAlgo, "hash", "", "checksum algorithm: md5 or blake3 (default from TSB_HASH_ALGO)")
	return cmd
}

func newServiceCmd(cfg **config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the receiver as an OS service",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "install",
			Short: "Install and start the receiver service",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				manager, err := newManager(*cfg)
				if err != nil {
					return err
				}
				if err := manager.InstallDaemon(); err != nil {
					return err
				}
				logger.Log.Info("✅ Service installed")
				return nil
			},
		},
		&cobra.Command{
			Use:   "uninstall",
			Short: "Stop and remove the receiver service",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				manager, err := newManager(*cfg)
				if err != nil {
					return err
				}
				if err := manager.UninstallDaemon(); err != nil {
					return err
				}
				logger.Log.Info("✅ Service uninstalled")
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the receiver service status",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				manager, err := newManager(*cfg)
				if err != nil {
					return err
				}
				status, err := manager.Status()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), serviceStatusText(status))
				return nil
			},
		},
	)
	return cmd
}

func serviceStatusText(status kardianos.Status) string {
	switch status {
	case kardianos.StatusRunning:
		return "running"
	case kardianos.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
