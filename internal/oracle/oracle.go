package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/vinayprograms/pilot/internal/logging"
)

// Action kinds.
const (
	ActionCommand = "command"
	ActionCode    = "code"
	ActionMessage = "message"
)

// Action is the discriminated decision returned for a step. Exactly one
// of Command, Code, or Text is meaningful, selected by Kind.
type Action struct {
	Kind      string `json:"kind"`
	Command   string `json:"command,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`
	Code      string `json:"code,omitempty"`
	Text      string `json:"text,omitempty"`
}

// StepContext is the engine's view of the run handed to the Oracle for
// one decision. All strings arrive already redacted.
type StepContext struct {
	Goal      string
	Step      string
	Completed []string
	Failures  []string
}

// Verification is the structured post-run fulfillment judgment.
type Verification struct {
	Passed bool     `json:"passed"`
	Issues []string `json:"issues,omitempty"`
}

// Oracle turns plan steps into concrete actions by consulting a model
// provider. It owns prompt construction and response parsing; callers
// own what to do with the result.
type Oracle struct {
	provider Provider
	log      *logging.Logger
}

// New creates an Oracle on top of a provider.
func New(provider Provider, log *logging.Logger) *Oracle {
	if log == nil {
		log = logging.New()
	}
	return &Oracle{provider: provider, log: log.WithComponent("oracle")}
}

// NextAction asks for the single next action for the step at the cursor.
func (o *Oracle) NextAction(ctx context.Context, sc StepContext) (*Action, error) {
	resp, err := o.chat(ctx, buildActionPrompt(sc))
	if err != nil {
		return nil, err
	}
	return parseAction(resp.Content)
}

// Recover asks for a one-shot recovery action after a step failure. The
// caller retries the same step with the result; it never advances the
// cursor.
func (o *Oracle) Recover(ctx context.Context, sc StepContext, failure string) (*Action, error) {
	resp, err := o.chat(ctx, buildRecoveryPrompt(sc, failure))
	if err != nil {
		return nil, err
	}
	return parseAction(resp.Content)
}

// Reassess asks for a revised version of the remaining (unexecuted)
// steps after repeated failure. A parse or transport error leaves the
// caller's plan untouched.
func (o *Oracle) Reassess(ctx context.Context, goal string, remaining, failures []string) ([]string, error) {
	resp, err := o.chat(ctx, buildReassessPrompt(goal, remaining, failures))
	if err != nil {
		return nil, err
	}
	return parseSteps(resp.Content)
}

// Verify asks for an advisory fulfillment judgment over the completed
// run. The verdict never reopens the loop.
func (o *Oracle) Verify(ctx context.Context, goal string, transcript []string) (*Verification, error) {
	resp, err := o.chat(ctx, buildVerifyPrompt(goal, transcript))
	if err != nil {
		return nil, err
	}
	return parseVerification(resp.Content)
}

func (o *Oracle) chat(ctx context.Context, prompt string) (*ChatResponse, error) {
	resp, err := o.provider.Chat(ctx, ChatRequest{
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, err
	}
	if resp.Content == "" {
		return nil, fmt.Errorf("empty response from provider")
	}
	return resp, nil
}

// parseAction extracts a discriminated action from model output.
func parseAction(content string) (*Action, error) {
	jsonStr := extractJSON(content)
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON action in response")
	}

	var action Action
	if err := json.Unmarshal([]byte(jsonStr), &action); err != nil {
		return nil, fmt.Errorf("invalid action JSON: %w", err)
	}

	switch action.Kind {
	case ActionCommand:
		if strings.TrimSpace(action.Command) == "" {
			return nil, fmt.Errorf("command action with empty command")
		}
	case ActionCode:
		if strings.TrimSpace(action.Code) == "" {
			return nil, fmt.Errorf("code action with empty code")
		}
	case ActionMessage:
		if strings.TrimSpace(action.Text) == "" {
			return nil, fmt.Errorf("message action with empty text")
		}
	default:
		return nil, fmt.Errorf("unrecognized action kind %q", action.Kind)
	}

	return &action, nil
}

// parseSteps extracts the revised step list from a reassessment reply.
func parseSteps(content string) ([]string, error) {
	jsonStr := extractJSON(content)
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON in reassessment response")
	}

	var parsed struct {
		Steps []string `json:"steps"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return nil, fmt.Errorf("invalid reassessment JSON: %w", err)
	}

	var steps []string
	for _, s := range parsed.Steps {
		if strings.TrimSpace(s) != "" {
			steps = append(steps, strings.TrimSpace(s))
		}
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("reassessment produced no steps")
	}
	return steps, nil
}

// parseVerification extracts the structured verdict.
func parseVerification(content string) (*Verification, error) {
	jsonStr := extractJSON(content)
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON in verification response")
	}

	var v Verification
	if err := json.Unmarshal([]byte(jsonStr), &v); err != nil {
		return nil, fmt.Errorf("invalid verification JSON: %w", err)
	}
	return &v, nil
}

// extractJSON finds and returns a JSON object from text that may contain
// markdown fences or other surrounding content.
func extractJSON(content string) string {
	// First try: look for ```json code block
	jsonBlockRe := regexp.MustCompile("(?s)```json\\s*\\n?(.*?)\\n?```")
	if matches := jsonBlockRe.FindStringSubmatch(content); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	// Second try: look for ``` code block (no language specified)
	codeBlockRe := regexp.MustCompile("(?s)```\\s*\\n?(.*?)\\n?```")
	if matches := codeBlockRe.FindStringSubmatch(content); len(matches) > 1 {
		candidate := strings.TrimSpace(matches[1])
		if strings.HasPrefix(candidate, "{") {
			return candidate
		}
	}

	// Third try: find raw JSON object
	start := strings.Index(content, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	for i := start; i < len(content); i++ {
		switch content[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}

	return ""
}

func buildActionPrompt(sc StepContext) string {
	var sb strings.Builder
	if sc.Goal != "" {
		sb.WriteString(fmt.Sprintf("Overall goal: %s\n\n", sc.Goal))
	}
	sb.WriteString(fmt.Sprintf("Current step: %s\n", sc.Step))
	writeHistory(&sb, sc)
	sb.WriteString("\nDecide the single next action for the current step.\n")
	sb.WriteString(actionFormatInstruction)
	return sb.String()
}

func buildRecoveryPrompt(sc StepContext, failure string) string {
	var sb strings.Builder
	if sc.Goal != "" {
		sb.WriteString(fmt.Sprintf("Overall goal: %s\n\n", sc.Goal))
	}
	sb.WriteString(fmt.Sprintf("The step %q just failed:\n%s\n", sc.Step, failure))
	writeHistory(&sb, sc)
	sb.WriteString("\nPropose one recovery action that would let this same step succeed. Do not skip ahead.\n")
	sb.WriteString(actionFormatInstruction)
	return sb.String()
}

func buildReassessPrompt(goal string, remaining, failures []string) string {
	var sb strings.Builder
	if goal != "" {
		sb.WriteString(fmt.Sprintf("Overall goal: %s\n\n", goal))
	}
	sb.WriteString("Repeated failures suggest the remaining plan is wrong.\n\nRemaining steps:\n")
	for i, s := range remaining {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, s))
	}
	if len(failures) > 0 {
		sb.WriteString("\nRecent failures:\n")
		for _, f := range failures {
			sb.WriteString(fmt.Sprintf("- %s\n", f))
		}
	}
	sb.WriteString("\nRewrite the remaining steps so the goal can still be reached. ")
	sb.WriteString("Respond with a JSON object containing these fields:\n- steps (array of step descriptions, in order)\n")
	sb.WriteString("\nProvide only the JSON object, no additional text.")
	return sb.String()
}

func buildVerifyPrompt(goal string, transcript []string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Goal: %s\n\nExecution transcript:\n", goal))
	for _, line := range transcript {
		sb.WriteString(fmt.Sprintf("- %s\n", line))
	}
	sb.WriteString("\nJudge whether the goal was fulfilled. ")
	sb.WriteString("Respond with a JSON object containing these fields:\n- passed (boolean)\n- issues (array of strings, empty when passed)\n")
	sb.WriteString("\nProvide only the JSON object, no additional text.")
	return sb.String()
}

func writeHistory(sb *strings.Builder, sc StepContext) {
	if len(sc.Completed) > 0 {
		sb.WriteString("\nCompleted so far:\n")
		for _, c := range sc.Completed {
			sb.WriteString(fmt.Sprintf("- %s\n", c))
		}
	}
	if len(sc.Failures) > 0 {
		sb.WriteString("\nRecent failures:\n")
		for _, f := range sc.Failures {
			sb.WriteString(fmt.Sprintf("- %s\n", f))
		}
	}
}

const systemPrompt = `You are the execution planner for an automated operations assistant. For each plan step you decide exactly one action and respond with JSON only. Secret values appear as {{TYPE_N}} placeholders; use them verbatim and never guess their contents. The caller enforces its own safety policy, so never ask for confirmation.`

const actionFormatInstruction = `Respond with a JSON object in one of these forms:
- {"kind": "command", "command": "<shell command>", "reasoning": "<why>"}
- {"kind": "code", "code": "<code or file content>"}
- {"kind": "message", "text": "<informational note when nothing needs to run>"}

Provide only the JSON object, no additional text.`
