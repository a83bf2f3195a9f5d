package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"kthgpt/internal/daemon"
	"kthgpt/internal/logging"
	"kthgpt/internal/preflight"
	"kthgpt/internal/stage"
	"kthgpt/internal/store"
	"kthgpt/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the processing worker in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context(), ctx, skipPreflight)
		},
	}

	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Start without checking directories and backends")
	return cmd
}

func runWorker(cmdCtx context.Context, ctx *commandContext, skipPreflight bool) error {
	if ctx == nil {
		return errors.New("command context is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if !skipPreflight {
		if failed := preflight.Failed(preflight.RunAll(signalCtx, cfg)); len(failed) > 0 {
			details := make([]string, 0, len(failed))
			for _, result := range failed {
				logger.Error("preflight check failed",
					logging.String(logging.FieldEventType, "preflight_failed"),
					logging.String("check", result.Name),
					logging.String("detail", result.Detail),
				)
				details = append(details, result.Name+": "+result.Detail)
			}
			return fmt.Errorf("preflight failed: %s", strings.Join(details, "; "))
		}
	}

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}

	stack, err := newProcessingStack(signalCtx, cfg, st, logger)
	if err != nil {
		_ = st.Close()
		return err
	}

	if notReady := stage.NotReady(stack.orchestrator.HealthCheck(signalCtx)); len(notReady) > 0 {
		_ = stack.Close()
		_ = st.Close()
		details := make([]string, 0, len(notReady))
		for _, h := range notReady {
			details = append(details, h.Name+": "+h.Detail)
		}
		return fmt.Errorf("stages not ready: %s", strings.Join(details, "; "))
	}

	manager := workflow.NewManager(cfg, stack.backend, stack.orchestrator, st, logger)
	d, err := daemon.New(cfg, st, stack, logger, manager)
	if err != nil {
		_ = stack.Close()
		_ = st.Close()
		return err
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("kthgpt worker shutting down", logging.String(logging.FieldEventType, "daemon_stopping"))
	d.Stop()
	return nil
}
