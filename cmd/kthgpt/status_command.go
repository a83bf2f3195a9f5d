package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"kthgpt/internal/analysis"
	"kthgpt/internal/config"
	"kthgpt/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var lang string

	cmd := &cobra.Command{
		Use:   "status [public-id]",
		Short: "Show a lecture's processing state, or totals across lectures",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				out := cmd.OutOrStdout()
				colorize := isTerminal(out)
				if len(args) == 0 {
					stats, err := st.Stats(cmd.Context())
					if err != nil {
						return err
					}
					rows := make([][]string, 0, len(stats))
					for _, state := range store.AllStates() {
						rows = append(rows, []string{stateLabel(state), strconv.Itoa(stats[state])})
					}
					writeTable(out, []column{col("State"), num("Lectures")}, rows)
					return nil
				}

				lecture, err := findLecture(cmd.Context(), st, args[0], lang)
				if err != nil {
					return err
				}
				snapshot, err := analysis.NewMachine(st).Snapshot(cmd.Context(), lecture.ID)
				if err != nil {
					return err
				}
				for _, line := range renderSectionHeader("Lecture "+lecture.PublicID, colorize) {
					fmt.Fprintln(out, line)
				}
				for _, line := range snapshotLines(lecture, snapshot, colorize) {
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}

	addLanguageFlag(cmd, &lang)
	return cmd
}

func snapshotLines(lecture *store.Lecture, snapshot analysis.Snapshot, colorize bool) []string {
	kind := stateKind(snapshot.State, snapshot.Progress)
	stateText := fmt.Sprintf("%s at %d%%", stateLabel(snapshot.State), snapshot.Progress)
	lines := []string{renderStatusLine("State", kind, stateText, colorize)}
	if snapshot.AnalysisID != 0 {
		lines = append(lines, renderStatusLine("Attempt", statusInfo, "#"+strconv.FormatInt(snapshot.AnalysisID, 10), colorize))
	}
	if snapshot.FailureReason != "" {
		lines = append(lines, renderStatusLine("Failure", statusError, snapshot.FailureReason, colorize))
	}
	summaryKind, summaryText := statusWarn, "not yet available"
	if lecture.SummaryText != "" {
		summaryKind, summaryText = statusOK, "available"
	}
	lines = append(lines, renderStatusLine("Summary", summaryKind, summaryText, colorize))
	return lines
}
