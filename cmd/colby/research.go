package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmbish04/gh-bot/internal/application"
	"github.com/jmbish04/gh-bot/internal/domain/model"
)

func newResearchCmd() *cobra.Command {
	var (
		limit    int
		minScore float64
	)

	cmd := &cobra.Command{
		Use:   "research",
		Short: "Run one research sweep and print the top projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeDB(db)

			provider := application.NewGitHubClientProvider(newClientBuilder(cfg))
			if !provider.HasClient() {
				return application.ErrNoCredentials
			}
			textGen, err := newTextGenerator(cfg)
			if err != nil {
				return err
			}

			research := newResearchService(cfg, provider, db, textGen)
			if err := research.Sweep(cmd.Context()); err != nil {
				return fmt.Errorf("research sweep: %w", err)
			}

			projects, err := research.Results(cmd.Context(), minScore, limit)
			if err != nil {
				return err
			}
			run := research.Status()
			fmt.Fprintf(cmd.OutOrStdout(), "%d queries, %d discovered, %d summarized\n\n", run.Queries, run.Discovered, run.Summarized)
			return printProjects(cmd.OutOrStdout(), projects)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of projects to print")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "only print projects scoring at least this much")
	return cmd
}

func printProjects(w io.Writer, projects []model.Project) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tSTARS\tPROJECT\tLANGUAGE\tDESCRIPTION")
	for _, p := range projects {
		fmt.Fprintf(tw, "%.2f\t%d\t%s\t%s\t%s\n", p.Score, p.Stars, p.FullName, p.Language, truncate(p.Description, 60))
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
