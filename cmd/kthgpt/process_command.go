package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"kthgpt/internal/config"
	"kthgpt/internal/services"
	"kthgpt/internal/store"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var lang string

	cmd := &cobra.Command{
		Use:   "process <public-id>",
		Short: "Queue a lecture for download, transcription, and summarization",
		Long: "Starts a new processing attempt for the lecture and queues its first stage.\n" +
			"A running `kthgpt run` worker picks the job up.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				lecture, err := findLecture(cmd.Context(), st, args[0], lang)
				if err != nil {
					return err
				}
				stack, err := newProcessingStack(cmd.Context(), cfg, st, logger)
				if err != nil {
					return err
				}
				defer stack.Close()

				attempt, err := stack.orchestrator.StartProcessing(cmd.Context(), lecture)
				if errors.Is(err, services.ErrConflict) {
					return fmt.Errorf("lecture %s is already being processed", lecture.PublicID)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued lecture %s (attempt #%d, %s backend)\n",
					lecture.PublicID, attempt.ID, cfg.Dispatch.Backend)
				return nil
			})
		},
	}

	addLanguageFlag(cmd, &lang)
	return cmd
}
