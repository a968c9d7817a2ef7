// Package render turns an escalation into the markdown comment posted to
// the remote ticket. Pure and deterministic: identical input yields
// identical output.
package render

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/zulandar/handoff/internal/escalation"
	"github.com/zulandar/handoff/internal/models"
)

const markdownTemplate = `## Support Escalation{{if .L2Team}} — {{.L2Team}}{{end}}

**Ticket:** {{.TicketRef}}

### Problem Summary
{{.ProblemSummary}}
{{if .Checklist}}
### Troubleshooting Checklist
{{range .Checklist}}- [{{if .Checked}}x{{else}} {{end}}] {{.Text}}
{{end}}{{end}}{{if .CurrentStatus}}
### Current Status
{{.CurrentStatus}}
{{end}}{{if .NextSteps}}
### Requested Next Steps
{{.NextSteps}}
{{end}}{{if .LLMSummary}}
### AI Summary{{if .LLMConfidence}} (confidence: {{.LLMConfidence}}){{end}}
{{.LLMSummary}}
{{end}}`

var tmpl = template.Must(template.New("escalation").Parse(markdownTemplate))

type templateData struct {
	TicketRef      string
	ProblemSummary string
	Checklist      []models.ChecklistItem
	CurrentStatus  string
	NextSteps      string
	LLMSummary     string
	LLMConfidence  string
	L2Team         string
}

// Markdown renders the escalation, with the optional template contributing
// the L2 team heading.
func Markdown(esc *models.Escalation, escTemplate *models.Template) (string, error) {
	data := templateData{
		TicketRef:      esc.TicketRef,
		ProblemSummary: esc.ProblemSummary,
		Checklist:      escalation.ParseChecklist(esc.Checklist),
		CurrentStatus:  esc.CurrentStatus,
		NextSteps:      esc.NextSteps,
	}
	if esc.LLMSummary != nil {
		data.LLMSummary = *esc.LLMSummary
	}
	if esc.LLMConfidence != nil {
		data.LLMConfidence = *esc.LLMConfidence
	}
	if escTemplate != nil && escTemplate.L2Team != nil {
		data.L2Team = *escTemplate.L2Team
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	return strings.TrimRight(b.String(), "\n") + "\n", nil
}
