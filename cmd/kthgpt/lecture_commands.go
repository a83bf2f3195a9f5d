package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"kthgpt/internal/config"
	"kthgpt/internal/language"
	"kthgpt/internal/store"
)

func newLectureCommand(ctx *commandContext) *cobra.Command {
	lectureCmd := &cobra.Command{
		Use:   "lecture",
		Short: "Manage lectures",
	}
	lectureCmd.AddCommand(newLectureAddCommand(ctx))
	lectureCmd.AddCommand(newLectureListCommand(ctx))
	return lectureCmd
}

func newLectureAddCommand(ctx *commandContext) *cobra.Command {
	var lang string
	var title string

	cmd := &cobra.Command{
		Use:   "add <public-id>",
		Short: "Register a lecture by its public playback id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := language.Parse(lang)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				lecture, err := st.CreateLecture(cmd.Context(), args[0], parsed.String(), title)
				if errors.Is(err, store.ErrLectureExists) {
					return fmt.Errorf("lecture %s (%s) is already registered", args[0], parsed)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added lecture %s (%s) as #%d\n", lecture.PublicID, parsed.DisplayName(), lecture.ID)
				return nil
			})
		},
	}

	addLanguageFlag(cmd, &lang)
	cmd.Flags().StringVarP(&title, "title", "t", "", "Human readable title")
	return cmd
}

func newLectureListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered lectures with their processing state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				lectures, err := st.ListLectures(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(lectures) == 0 {
					fmt.Fprintln(out, "No lectures registered")
					return nil
				}
				rows := make([][]string, 0, len(lectures))
				for _, lecture := range lectures {
					current, err := st.CurrentAnalysis(cmd.Context(), lecture.ID)
					if err != nil {
						return err
					}
					state, progress := store.StateIdle, 0
					if current != nil {
						state, progress = current.State, current.Progress
					}
					rows = append(rows, []string{
						strconv.FormatInt(lecture.ID, 10),
						lecture.PublicID,
						lecture.Language,
						lecture.Title,
						stateLabel(state),
						fmt.Sprintf("%d%%", progress),
						yesNo(lecture.SummaryText != ""),
					})
				}
				writeTable(out, []column{
					num("ID"), col("Public ID"), col("Lang"), col("Title"),
					col("State"), num("Progress"), col("Summary"),
				}, rows)
				return nil
			})
		},
	}
}
