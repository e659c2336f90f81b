package web

import (
	"fmt"
	"strings"
	"time"

	vm "github.com/jmbish04/gh-bot/internal/adapter/driving/web/viewmodel"
	"github.com/jmbish04/gh-bot/internal/domain/model"
)

const displayTimeLayout = "2006-01-02 15:04 UTC"

func formatDisplayTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(displayTimeLayout)
}

func toCommandRowViewModel(rec model.CommandRecord) vm.CommandRowViewModel {
	return vm.CommandRowViewModel{
		ID:          rec.ID,
		Repository:  rec.Repo,
		PRNumber:    rec.PRNumber,
		PRURL:       fmt.Sprintf("https://github.com/%s/pull/%d", rec.Repo, rec.PRNumber),
		Author:      rec.Author,
		Command:     strings.ReplaceAll(string(rec.Command), "_", " "),
		Status:      string(rec.Status),
		StatusClass: "status-" + string(rec.Status),
		Error:       rec.ErrorMessage,
		PromptHTML:  RenderMarkdown(rec.PromptGenerated),
		CreatedAt:   formatDisplayTime(rec.CreatedAt),
	}
}

func toOperationRowViewModel(op model.OperationProgress) vm.OperationRowViewModel {
	steps := ""
	if op.StepsTotal > 0 {
		steps = fmt.Sprintf("%d/%d", op.StepsCompleted, op.StepsTotal)
	}
	return vm.OperationRowViewModel{
		OperationID:     op.OperationID,
		Type:            op.OperationType,
		Repository:      op.Repo,
		PRNumber:        op.PRNumber,
		Status:          string(op.Status),
		StatusClass:     "status-" + string(op.Status),
		CurrentStep:     op.CurrentStep,
		ProgressPercent: min(max(op.ProgressPercent, 0), 100),
		Steps:           steps,
		UpdatedAt:       formatDisplayTime(op.UpdatedAt),
	}
}

func toBestPracticeViewModel(bp model.BestPractice) vm.BestPracticeViewModel {
	return vm.BestPracticeViewModel{
		Repository:     bp.Repo,
		PRNumber:       bp.PRNumber,
		FilePath:       bp.FilePath,
		Category:       bp.Category,
		Status:         string(bp.Status),
		SuggestionHTML: RenderSuggestion(bp.Suggestion),
	}
}

func toResearchViewModel(run model.ResearchRun, projects []model.Project) *vm.ResearchViewModel {
	rows := make([]vm.ProjectViewModel, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, vm.ProjectViewModel{
			FullName:    p.FullName,
			URL:         p.URL,
			Description: p.Description,
			Language:    p.Language,
			Stars:       p.Stars,
			Score:       fmt.Sprintf("%.2f", p.Score),
			SummaryHTML: RenderMarkdown(p.Summary),
		})
	}
	return &vm.ResearchViewModel{
		InProgress: run.InProgress,
		LastRun:    formatDisplayTime(run.FinishedAt),
		Discovered: run.Discovered,
		Summarized: run.Summarized,
		LastError:  run.LastError,
		Projects:   rows,
	}
}
