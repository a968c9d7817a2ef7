// Package llm summarizes troubleshooting work for L2 handoff using an
// OpenAI-compatible chat endpoint (Ollama by default).
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/zulandar/handoff/internal/models"
)

// defaultTimeout bounds one completion call.
const defaultTimeout = 30 * time.Second

// completeFunc produces one completion for a prompt, enabling test mocks.
type completeFunc func(ctx context.Context, model, prompt string) (string, error)

// SummaryResult is the output of a summarization call.
type SummaryResult struct {
	Summary          string
	Confidence       string // High, Medium or Low
	ConfidenceReason string
}

// Client talks to an OpenAI-compatible chat endpoint.
type Client struct {
	model    string
	timeout  time.Duration
	complete completeFunc
}

// Opts holds parameters for creating a Client.
type Opts struct {
	Endpoint string // e.g. http://localhost:11434/v1
	Model    string // e.g. llama3.1
	APIKey   string // ignored by Ollama but required by the protocol
	Timeout  time.Duration
	// For testing: inject a completion function instead of a real client.
	Complete completeFunc
}

// New creates a Client.
func New(opts Opts) (*Client, error) {
	if opts.Model == "" {
		return nil, fmt.Errorf("llm: model is required")
	}
	c := &Client{
		model:    opts.Model,
		timeout:  opts.Timeout,
		complete: opts.Complete,
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.complete == nil {
		if opts.Endpoint == "" {
			return nil, fmt.Errorf("llm: endpoint is required")
		}
		apiKey := opts.APIKey
		if apiKey == "" {
			apiKey = "ollama"
		}
		api := openai.NewClient(
			option.WithBaseURL(opts.Endpoint),
			option.WithAPIKey(apiKey),
		)
		c.complete = func(ctx context.Context, model, prompt string) (string, error) {
			resp, err := api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
				Model: openai.ChatModel(model),
				Messages: []openai.ChatCompletionMessageParamUnion{
					openai.UserMessage(prompt),
				},
			})
			if err != nil {
				return "", err
			}
			if len(resp.Choices) == 0 {
				return "", fmt.Errorf("empty completion")
			}
			return resp.Choices[0].Message.Content, nil
		}
	}
	return c, nil
}

// Summarize generates a structured handoff summary from the problem
// statement and troubleshooting checklist. Confidence is a local heuristic
// over the checklist, not a model output.
func (c *Client) Summarize(ctx context.Context, problem string, checklist []models.ChecklistItem) (*SummaryResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt := buildPrompt(problem, checklist)
	summary, err := c.complete(callCtx, c.model, prompt)
	if err != nil {
		return nil, fmt.Errorf("llm: summarize: %w", err)
	}

	confidence, reason := calculateConfidence(checklist)
	return &SummaryResult{
		Summary:          strings.TrimSpace(summary),
		Confidence:       confidence,
		ConfidenceReason: reason,
	}, nil
}

// buildPrompt renders the checklist as markdown checkboxes inside the
// summarization instructions.
func buildPrompt(problem string, checklist []models.ChecklistItem) string {
	var checklistText strings.Builder
	for _, item := range checklist {
		checkbox := "[ ]"
		if item.Checked {
			checkbox = "[x]"
		}
		fmt.Fprintf(&checklistText, "- %s %s\n", checkbox, item.Text)
	}

	return fmt.Sprintf(`You are summarizing troubleshooting steps for an L2 support engineer.

Given the following problem and checklist of troubleshooting steps, generate a structured summary.

Problem: %s

Troubleshooting checklist:
%s
Generate output in exactly this format:

✓ Completed steps:
- [step description]

✗ Steps not attempted:
- [step description]

? Recommendations for L2:
- [what L2 should investigate next]

Keep it concise. Only include steps from the checklist above. Do not invent steps.`,
		problem, checklistText.String())
}

// calculateConfidence rates the handoff quality from checklist coverage.
// High: 5+ items with 60%+ checked. Medium: 3-4 items, or 5+ items under
// 60%. Low: fewer than 3 items.
func calculateConfidence(checklist []models.ChecklistItem) (string, string) {
	total := len(checklist)
	if total == 0 {
		return "Low", "No troubleshooting steps provided"
	}

	checked := 0
	for _, item := range checklist {
		if item.Checked {
			checked++
		}
	}
	percentage := float64(checked) / float64(total) * 100

	switch {
	case total >= 5 && percentage >= 60:
		return "High", fmt.Sprintf("Based on %d checklist items, %d completed (%.0f%%)", total, checked, percentage)
	case total >= 5:
		return "Medium", fmt.Sprintf("Based on %d checklist items, only %d completed (%.0f%%)", total, checked, percentage)
	case total >= 3:
		return "Medium", fmt.Sprintf("Based on %d checklist items, %d completed (%.0f%%)", total, checked, percentage)
	default:
		return "Low", fmt.Sprintf("Only %d checklist items provided", total)
	}
}
