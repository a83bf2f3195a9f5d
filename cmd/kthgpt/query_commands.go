package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"kthgpt/internal/config"
	"kthgpt/internal/query"
	"kthgpt/internal/store"
	"kthgpt/internal/textutil"
)

const historyQueryWidth = 60

func newQueryCommand(ctx *commandContext) *cobra.Command {
	var lang string
	var override bool

	cmd := &cobra.Command{
		Use:   "query <public-id> <question...>",
		Short: "Ask a question about a summarized lecture",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				service := newQueryService(cfg, st, newLLMClient(cfg, logger), logger)
				answer, err := service.AnswerRequest(cmd.Context(), query.Request{
					PublicID: args[0],
					Language: lang,
					Query:    strings.Join(args[1:], " "),
					Override: override,
				})
				if err != nil {
					return errors.New(query.UserMessage(err))
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, answer.Response)
				if answer.Cached {
					fmt.Fprintf(cmd.ErrOrStderr(), "(cached answer #%d; use --override to ask again)\n", answer.QueryID)
				}
				return nil
			})
		},
	}

	addLanguageFlag(cmd, &lang)
	cmd.Flags().BoolVar(&override, "override", false, "Ignore any cached answer and ask the backend again")
	return cmd
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var lang string
	var limit int

	cmd := &cobra.Command{
		Use:   "history <public-id>",
		Short: "List questions asked about a lecture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				lecture, err := findLecture(cmd.Context(), st, args[0], lang)
				if err != nil {
					return err
				}
				queries, err := st.ListQueries(cmd.Context(), lecture.ID, limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(queries) == 0 {
					fmt.Fprintf(out, "No questions asked about %s yet\n", lecture.PublicID)
					return nil
				}
				rows := make([][]string, 0, len(queries))
				for _, q := range queries {
					rows = append(rows, []string{
						strconv.FormatInt(q.ID, 10),
						q.CreatedAt.Local().Format("2006-01-02 15:04"),
						textutil.Truncate(q.QueryString, historyQueryWidth),
						yesNo(q.Answered()),
					})
				}
				writeTable(out, []column{num("ID"), col("Asked"), col("Question"), col("Answered")}, rows)
				return nil
			})
		},
	}

	addLanguageFlag(cmd, &lang)
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of questions to show (0 for all)")
	return cmd
}
