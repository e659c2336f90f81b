package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	sqliteadapter "github.com/jmbish04/gh-bot/internal/adapter/driven/sqlite"
	"github.com/jmbish04/gh-bot/internal/domain/model"
	"github.com/jmbish04/gh-bot/internal/domain/port/driven"
)

func newLedgerCmd() *cobra.Command {
	var filter driven.CommandFilter

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Print recent command records",
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

			records, err := sqliteadapter.NewCommandRepo(db).List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printLedger(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().StringVar(&filter.Repo, "repo", "", "only records for owner/repo")
	cmd.Flags().StringVar(&filter.Author, "author", "", "only records by this GitHub login")
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "maximum records to print")
	return cmd
}

var statusColors = map[model.CommandStatus]*color.Color{
	model.CommandStatusQueued:    color.New(color.FgHiBlack),
	model.CommandStatusWorking:   color.New(color.FgYellow),
	model.CommandStatusCompleted: color.New(color.FgGreen),
	model.CommandStatusFailed:    color.New(color.FgRed, color.Bold),
}

// printLedger writes one line per record. Status is the last column so color
// escapes do not skew the alignment.
func printLedger(w io.Writer, records []model.CommandRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "no commands recorded")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tPULL REQUEST\tAUTHOR\tCOMMAND\tSTATUS")
	for _, rec := range records {
		status := string(rec.Status)
		if c, ok := statusColors[rec.Status]; ok {
			status = c.Sprint(status)
		}
		if rec.ErrorMessage != "" {
			status += " " + color.New(color.Faint).Sprint(rec.ErrorMessage)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s#%d\t%s\t%s\t%s\n",
			rec.ID,
			rec.CreatedAt.Local().Format("2006-01-02 15:04"),
			rec.Repo, rec.PRNumber,
			rec.Author,
			rec.Command,
			status,
		)
	}
	return tw.Flush()
}
