package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/steward-ai/steward/internal/agent"
	"github.com/steward-ai/steward/internal/config"
	"github.com/steward-ai/steward/internal/workflows"
)

const defaultConfigPath = "steward.yaml"

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == defaultConfigPath {
			// No config file is fine for a first run.
			return config.Default(), nil
		}
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func buildChatCmd() *cobra.Command {
	var (
		configPath string
		channel    string
		message    string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant",
		Long: `Chat with the assistant on a named channel.

Without --message an interactive session reads lines from stdin; each line is
one turn. Channel history, facts, and summaries persist across sessions.`,
		Example: `  # Interactive session
  steward chat

  # One-shot turn
  steward chat --message "What time is it in Sydney?"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if message != "" {
				return runTurn(cmd.Context(), a, channel, message)
			}
			return runInteractive(cmd.Context(), a, channel)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	cmd.Flags().StringVar(&channel, "channel", "cli", "Channel name scoping the conversation history")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Run a single turn with this message and exit")
	return cmd
}

func runInteractive(ctx context.Context, a *app, channel string) error {
	fmt.Println("Steward ready. Ctrl-D to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := runTurn(ctx, a, channel, line); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

// runTurn streams one turn to stdout: answer text incrementally, tool
// activity as bracketed markers.
func runTurn(ctx context.Context, a *app, channel, message string) error {
	events, err := a.loop.RunTurnStream(ctx, channel, message, nil)
	if err != nil {
		return err
	}

	streamed := false
	for ev := range events {
		switch ev.Type {
		case agent.EventText:
			streamed = true
			fmt.Print(ev.Text)
		case agent.EventToolStart:
			fmt.Fprintf(os.Stderr, "[%s...]\n", ev.ToolName)
		case agent.EventToolEnd:
			status := "ok"
			if ev.Result != nil && !ev.Result.Success {
				status = "failed"
			}
			fmt.Fprintf(os.Stderr, "[%s %s]\n", ev.ToolName, status)
		case agent.EventDone:
			if !streamed {
				fmt.Print(ev.Text)
			}
			fmt.Println()
		case agent.EventError:
			return ev.Err
		}
	}
	return nil
}

func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the background service",
		Long: `Run scheduled workflows and, if enabled, the Prometheus metrics endpoint.

Graceful shutdown on SIGINT/SIGTERM drains in-flight workflow runs and the
background memory queue before exiting.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return runServe(cmd.Context(), a)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	return cmd
}

func runServe(ctx context.Context, a *app) error {
	a.scheduler.Start()
	a.logger.Info("scheduler started", "workflows", len(a.cfg.Workflows.Entries))

	var metricsServer *http.Server
	if a.cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux}
		go func() {
			a.logger.Info("metrics endpoint listening", "addr", a.cfg.Metrics.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		a.logger.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("metrics server shutdown", "error", err)
		}
	}
	return nil
}

func buildWorkflowsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflows",
		Short: "Inspect and run configured workflows",
	}
	cmd.AddCommand(buildWorkflowsListCmd(), buildWorkflowsRunCmd())
	return cmd
}

func buildWorkflowsListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if len(cfg.Workflows.Entries) == 0 {
				fmt.Println("No workflows configured.")
				return nil
			}
			for _, wf := range cfg.Workflows.Entries {
				fmt.Printf("%-24s %-16s %d steps\n", wf.Name, wf.Schedule, len(wf.Steps))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	return cmd
}

func buildWorkflowsRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run <name>",
		Short: "Run one configured workflow immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, entry := range cfg.Workflows.Entries {
				if entry.Name != args[0] {
					continue
				}
				wfs, err := workflows.FromConfig([]config.WorkflowConfig{entry})
				if err != nil {
					return err
				}
				results := a.scheduler.RunWorkflow(wfs[0])
				for _, r := range results {
					name := r.Step.Subagent + "__" + r.Step.Action
					switch {
					case r.Skipped:
						fmt.Printf("skipped  %s\n", name)
					case r.Result.Success:
						fmt.Printf("ok       %s\n", name)
					default:
						fmt.Printf("failed   %s: %s\n", name, r.Result.Error)
					}
				}
				return nil
			}
			return fmt.Errorf("workflow %q is not configured", args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	return cmd
}
