// Package display renders run summaries and plans for the terminal.
package display

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/amarra-project/amarra/pkg/models"
)

const (
	regionWidth = 14
	typeWidth   = 20
	nameWidth   = 24
	stateWidth  = 14
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Padding(0, 1)
	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)
	changedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))
	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))
	failedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))
	detailStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			PaddingLeft(4)
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)
	footerStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("241")).
			Padding(0, 1)
)

// RenderSummary renders the outcome of a run, one row per resource,
// with the attribute changes underneath each changed row.
func RenderSummary(s *models.Summary) string {
	var b strings.Builder

	title := fmt.Sprintf("Document %s", s.DocumentName)
	if s.CheckMode {
		title += " (plan)"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	b.WriteString(renderRow(headerStyle, "REGION", "TYPE", "NAME", "RESULT"))
	b.WriteString("\n")

	var changed, failed int
	for _, res := range s.Results {
		b.WriteString(renderRow(
			cellStyle,
			res.Region,
			string(res.Type),
			res.Name,
			statusCell(res, s.CheckMode),
		))
		b.WriteString("\n")

		switch {
		case res.Err != nil:
			failed++
			b.WriteString(detailStyle.Render(res.Err.Error()))
			b.WriteString("\n")
		case res.Result != nil && res.Result.Changed:
			changed++
			for _, c := range res.Result.Changes {
				b.WriteString(detailStyle.Render(
					fmt.Sprintf("~ %s: %s -> %s", c.Field, orNone(c.Before), orNone(c.After)),
				))
				b.WriteString("\n")
			}
			b.WriteString(renderOutputs(res.Result.Output))
		}
	}

	verb := "changed"
	if s.CheckMode {
		verb = "would change"
	}
	b.WriteString(footerStyle.Render(fmt.Sprintf(
		"%d resources, %d %s, %d failed", len(s.Results), changed, verb, failed,
	)))
	b.WriteString("\n")
	return b.String()
}

func statusCell(res models.ResourceResult, checkMode bool) string {
	switch {
	case res.Err != nil:
		return failedStyle.Render("failed")
	case res.Result != nil && res.Result.Changed:
		if checkMode {
			return changedStyle.Render("would change")
		}
		return changedStyle.Render("changed")
	default:
		return okStyle.Render("ok")
	}
}

func renderRow(style lipgloss.Style, region, typ, name, status string) string {
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		style.Width(regionWidth).Render(region),
		style.Width(typeWidth).Render(typ),
		style.Width(nameWidth).Render(name),
		style.Width(stateWidth).Render(status),
	)
}

func renderOutputs(outputs map[string]interface{}) string {
	if len(outputs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(outputs))
	for k := range outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(detailStyle.Render(fmt.Sprintf("%s = %v", k, outputs[k])))
		b.WriteString("\n")
	}
	return b.String()
}

func orNone(v string) string {
	if v == "" || v == "<nil>" {
		return "(none)"
	}
	return v
}
