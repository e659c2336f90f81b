package main

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmbish04/gh-bot/internal/application"
	"github.com/jmbish04/gh-bot/internal/domain/model"
)

// parseResult is what a comment body yields before any GitHub call.
type parseResult struct {
	Triggers    []string        `json:"triggers"`
	Commands    []model.Command `json:"commands"`
	Suggestions []string        `json:"suggestions"`
}

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [comment text]",
		Short: "Show the triggers, commands and suggestions found in a comment",
		Long:  "Parses the given text, or standard input when no argument is given, the way an incoming comment is parsed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := strings.Join(args, " ")
			if len(args) == 0 {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				body = string(raw)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(parseComment(body))
		},
	}
}

func parseComment(body string) parseResult {
	triggers := application.ExtractTriggers(body)

	res := parseResult{
		Triggers:    triggers,
		Commands:    application.ParseColbyCommands(triggers),
		Suggestions: application.ExtractSuggestions(body),
	}
	if res.Commands == nil {
		res.Commands = []model.Command{}
	}
	if res.Suggestions == nil {
		res.Suggestions = []string{}
	}
	return res
}
