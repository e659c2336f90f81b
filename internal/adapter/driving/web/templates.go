package web

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	vm "github.com/jmbish04/gh-bot/internal/adapter/driving/web/viewmodel"
)

var esc = templ.EscapeString[string]

// Layout wraps body in the HTML document shell.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		head := `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">` +
			`<meta name="viewport" content="width=device-width, initial-scale=1">` +
			`<title>` + esc(title) + `</title>` +
			`<link rel="stylesheet" href="/static/colby.css"></head><body>`
		if _, err := io.WriteString(w, head); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}

// Dashboard renders the ledger, live operations, bookmarks and research results.
func Dashboard(data vm.DashboardViewModel) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder

		b.WriteString(`<header><h1>Colby</h1></header><main>`)
		writeOperations(&b, data.Operations)
		writeCommands(&b, data.Commands)
		writeBestPractices(&b, data.BestPractices)
		if data.Research != nil {
			writeResearch(&b, data.Research, data.CSRFToken)
		}
		b.WriteString(`</main>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

func writeOperations(b *strings.Builder, ops []vm.OperationRowViewModel) {
	b.WriteString(`<section id="operations"><h2>Operations</h2>`)
	if len(ops) == 0 {
		b.WriteString(`<p class="empty">No operations yet.</p></section>`)
		return
	}
	b.WriteString(`<table><thead><tr><th>Operation</th><th>Pull request</th><th>Status</th><th>Step</th><th>Progress</th><th>Updated</th></tr></thead><tbody>`)
	for _, op := range ops {
		fmt.Fprintf(b,
			`<tr><td><code>%s</code> %s</td><td>%s#%d</td><td class="%s">%s</td><td>%s</td>`+
				`<td><progress max="100" value="%d"></progress> %s</td><td>%s</td></tr>`,
			esc(op.OperationID), esc(op.Type), esc(op.Repository), op.PRNumber,
			esc(op.StatusClass), esc(op.Status), esc(op.CurrentStep),
			op.ProgressPercent, esc(op.Steps), esc(op.UpdatedAt))
	}
	b.WriteString(`</tbody></table></section>`)
}

func writeCommands(b *strings.Builder, cmds []vm.CommandRowViewModel) {
	b.WriteString(`<section id="commands"><h2>Commands</h2>`)
	if len(cmds) == 0 {
		b.WriteString(`<p class="empty">No commands yet.</p></section>`)
		return
	}
	b.WriteString(`<table><thead><tr><th>#</th><th>Pull request</th><th>Author</th><th>Command</th><th>Status</th><th>Created</th></tr></thead><tbody>`)
	for _, c := range cmds {
		fmt.Fprintf(b,
			`<tr><td>%d</td><td><a href="%s">%s#%d</a></td><td>%s</td><td>%s</td><td class="%s">%s</td><td>%s</td></tr>`,
			c.ID, esc(c.PRURL), esc(c.Repository), c.PRNumber, esc(c.Author), esc(c.Command),
			esc(c.StatusClass), esc(c.Status), esc(c.CreatedAt))
		if c.Error != "" {
			fmt.Fprintf(b, `<tr class="detail"><td></td><td colspan="5" class="error">%s</td></tr>`, esc(c.Error))
		}
		if c.PromptHTML != "" {
			fmt.Fprintf(b, `<tr class="detail"><td></td><td colspan="5"><details><summary>Prompt</summary><div class="markdown">%s</div></details></td></tr>`, c.PromptHTML)
		}
	}
	b.WriteString(`</tbody></table></section>`)
}

func writeBestPractices(b *strings.Builder, items []vm.BestPracticeViewModel) {
	b.WriteString(`<section id="best-practices"><h2>Bookmarked suggestions</h2>`)
	if len(items) == 0 {
		b.WriteString(`<p class="empty">Nothing bookmarked yet.</p></section>`)
		return
	}
	for _, bp := range items {
		fmt.Fprintf(b,
			`<article><h3>%s#%d <small>%s</small></h3><p><span class="tag">%s</span> <span class="tag">%s</span></p><pre class="diff">%s</pre></article>`,
			esc(bp.Repository), bp.PRNumber, esc(bp.FilePath), esc(bp.Category), esc(bp.Status), bp.SuggestionHTML)
	}
	b.WriteString(`</section>`)
}

func writeResearch(b *strings.Builder, r *vm.ResearchViewModel, csrf string) {
	b.WriteString(`<section id="research"><h2>Research</h2><p>`)
	switch {
	case r.InProgress:
		b.WriteString(`Sweep in progress.`)
	case r.LastRun != "":
		fmt.Fprintf(b, `Last sweep %s: %d discovered, %d summarized.`, esc(r.LastRun), r.Discovered, r.Summarized)
	default:
		b.WriteString(`No sweep has run yet.`)
	}
	b.WriteString(`</p>`)
	if r.LastError != "" {
		fmt.Fprintf(b, `<p class="error">%s</p>`, esc(r.LastError))
	}
	fmt.Fprintf(b,
		`<form method="post" action="/app/research/run"><input type="hidden" name="csrf_token" value="%s"><button type="submit">Run sweep</button></form>`,
		esc(csrf))

	for _, p := range r.Projects {
		fmt.Fprintf(b,
			`<article><h3><a href="%s">%s</a> <small>&#9733; %d &middot; %s &middot; score %s</small></h3><p>%s</p>`,
			esc(p.URL), esc(p.FullName), p.Stars, esc(p.Language), esc(p.Score), esc(p.Description))
		if p.SummaryHTML != "" {
			fmt.Fprintf(b, `<div class="markdown">%s</div>`, p.SummaryHTML)
		}
		b.WriteString(`</article>`)
	}
	b.WriteString(`</section>`)
}
