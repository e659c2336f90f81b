package application

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/jmbish04/gh-bot/internal/domain/model"
)

const (
	colbyPrefix      = "/colby"
	applyTrigger     = "/apply"
	summarizeTrigger = "/summarize"
)

// triggerPattern finds the start of every command trigger in a comment body.
var triggerPattern = regexp.MustCompile(`(?i)/(colby|apply|summarize)\b`)

// commandPhrase maps a normalized phrase prefix to a command. Order matters:
// longer phrases sharing a prefix with shorter ones must come first.
type commandPhrase struct {
	phrase  string
	command model.CommandName
}

var commandPhrases = []commandPhrase{
	{"create issue", model.CommandCreateIssue},
	{"create an issue", model.CommandCreateIssue},
	{"open issue", model.CommandCreateIssue},
	{"extract suggestions to issues", model.CommandExtractSuggestionsToIssues},
	{"extract suggestions to issue", model.CommandExtractSuggestionsToIssues},
	{"extract suggestions", model.CommandExtractSuggestions},
	{"extract suggestion", model.CommandExtractSuggestions},
	{"bookmark this suggestion", model.CommandBookmarkSuggestion},
	{"bookmark suggestion", model.CommandBookmarkSuggestion},
	{"bookmark", model.CommandBookmarkSuggestion},
	{"implement", model.CommandImplement},
	{"apply", model.CommandImplement},
	{"help", model.CommandHelp},
}

// ExtractTriggers returns the lower-cased command triggers found in body, in
// order of appearance. A /colby trigger runs to the next trigger or the end of
// its line; /apply and /summarize are returned bare.
func ExtractTriggers(body string) []string {
	body = normalizeNewlines(body)
	locs := triggerPattern.FindAllStringIndex(body, -1)

	var starts []int
	for _, loc := range locs {
		if loc[0] > 0 {
			prev := rune(body[loc[0]-1])
			if unicode.IsLetter(prev) || unicode.IsDigit(prev) || prev == '/' || prev == '_' || prev == '.' {
				continue
			}
		}
		starts = append(starts, loc[0])
	}

	triggers := make([]string, 0, len(starts))
	for i, start := range starts {
		end := len(body)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		if nl := strings.IndexByte(body[start:end], '\n'); nl >= 0 {
			end = start + nl
		}

		text := normalizeTrigger(body[start:end])
		switch {
		case strings.HasPrefix(text, applyTrigger):
			text = applyTrigger
		case strings.HasPrefix(text, summarizeTrigger):
			text = summarizeTrigger
		}
		triggers = append(triggers, text)
	}

	return triggers
}

// IsColbyTrigger reports whether trigger is a /colby command.
func IsColbyTrigger(trigger string) bool {
	t := normalizeTrigger(trigger)
	return t == colbyPrefix || strings.HasPrefix(t, colbyPrefix+" ")
}

// IsApplyTrigger reports whether trigger is the legacy /apply command.
func IsApplyTrigger(trigger string) bool {
	return normalizeTrigger(trigger) == applyTrigger
}

// IsSummarizeTrigger reports whether trigger is the legacy /summarize command.
func IsSummarizeTrigger(trigger string) bool {
	return normalizeTrigger(trigger) == summarizeTrigger
}

// ParseColbyCommand maps a raw trigger to a canonical command. It strips the
// /colby prefix, matches the remaining phrase against the known commands and
// infers arguments from the phrase. Unmatched input yields CommandUnknown.
func ParseColbyCommand(trigger string) model.Command {
	text := normalizeTrigger(trigger)
	rest := strings.TrimSpace(strings.TrimPrefix(text, colbyPrefix))
	rest = strings.TrimRight(rest, ".!?,;:")

	cmd := model.Command{Name: model.CommandUnknown, Trigger: text}
	for _, p := range commandPhrases {
		if rest == p.phrase || strings.HasPrefix(rest, p.phrase+" ") {
			cmd.Name = p.command
			break
		}
	}

	if cmd.Name == model.CommandCreateIssue {
		cmd.Args.AssignToCopilot = strings.Contains(rest, "assign to copilot") ||
			strings.Contains(rest, "assign copilot") ||
			strings.Contains(rest, "assigned to copilot")
	}

	return cmd
}

// ParseColbyCommands parses every /colby trigger in order, skipping legacy ones.
func ParseColbyCommands(triggers []string) []model.Command {
	var cmds []model.Command
	for _, t := range triggers {
		if IsColbyTrigger(t) {
			cmds = append(cmds, ParseColbyCommand(t))
		}
	}
	return cmds
}

func normalizeTrigger(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
