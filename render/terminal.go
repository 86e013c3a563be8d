// Package render formats pipeline responses for a terminal or an HTML page.
package render

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sentinel-zero/sentinel/rag"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	metaStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	answerStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	telemetryStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Foreground(lipgloss.Color("8")).Padding(0, 1)
	scoreStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

var scoreRe = regexp.MustCompile(`(?:^|\D)(\d{1,2})\s*/\s*10\s*$`)

// Score extracts the trailing X/10 score of an evaluation.
func Score(answer string) (int, bool) {
	answer = strings.TrimSpace(answer)
	if i := strings.LastIndex(answer, "\n"); i >= 0 {
		answer = answer[i+1:]
	}
	m := scoreRe.FindStringSubmatch(strings.TrimSpace(strings.Trim(answer, "*_ ")))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n > 10 {
		return 0, false
	}
	return n, true
}

// Terminal renders responses with lipgloss. Width zero leaves lines unwrapped.
type Terminal struct {
	Width         int
	ShowTelemetry bool
}

// Response renders an answer, its routing metadata and, if enabled, the
// retrieved context it was grounded on.
func (t Terminal) Response(mode rag.Mode, resp rag.Response) string {
	var b strings.Builder

	title := "Sentinel Zero"
	if mode == rag.ModeEvaluate {
		title += " · essay evaluation"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	meta := "Intent: " + string(resp.Intent)
	if len(resp.Entities) > 0 {
		meta += " | Entities: " + strings.Join(resp.Entities, ", ")
	}
	b.WriteString(metaStyle.Render(meta))
	b.WriteString("\n")

	b.WriteString(t.box(answerStyle).Render(strings.TrimSpace(resp.FinalAnswer)))
	b.WriteString("\n")

	if mode == rag.ModeEvaluate {
		if score, ok := Score(resp.FinalAnswer); ok {
			b.WriteString(scoreStyle.Render(fmt.Sprintf("Score: %d/10", score)))
			b.WriteString("\n")
		}
	}

	if t.ShowTelemetry {
		b.WriteString(t.Telemetry(resp.Context))
	}
	return b.String()
}

// Telemetry renders the retrieved context block.
func (t Terminal) Telemetry(context string) string {
	return metaStyle.Render("Engine telemetry") + "\n" + t.box(telemetryStyle).Render(context) + "\n"
}

// Error renders a failed invocation, naming the failing stage kind.
func (t Terminal) Error(err error) string {
	kind := rag.KindOf(err)
	if kind == "" {
		return errorStyle.Render("error") + " " + err.Error() + "\n"
	}
	return errorStyle.Render(string(kind)+" error") + " " + err.Error() + "\n"
}

func (t Terminal) box(s lipgloss.Style) lipgloss.Style {
	if t.Width > 0 {
		return s.Width(t.Width)
	}
	return s
}
