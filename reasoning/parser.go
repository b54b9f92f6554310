// Package reasoning implements the reasoning-trace parser (C2): it turns
// free-text model output into structured tool calls and a final answer.
package reasoning

import (
	"regexp"
	"strings"

	"github.com/agent0/coevolve/core"
)

var (
	toolPrefix      = regexp.MustCompile(`(?i)^\s*tool\s*:\s*(.*)$`)
	toolInputPrefix = regexp.MustCompile(`(?i)^\s*tool\s*input\s*:\s*(.*)$`)
	answerPrefix    = regexp.MustCompile(`(?i)^\s*answer\s*:\s*(.*)$`)
)

// Parser is a pure, stateless implementation of core.Parser.
type Parser struct{}

func NewParser() *Parser { return &Parser{} }

// Parse extracts tool calls and the final answer from text. It never
// aborts on a malformed pair: it records a ParseError and keeps going.
func (p *Parser) Parse(text string) core.ParseResult {
	lines := strings.Split(text, "\n")

	var result core.ParseResult
	var pendingTool string
	var haveTool bool
	lastAnswerLine := -1

	for i, line := range lines {
		if m := answerPrefix.FindStringSubmatch(line); m != nil {
			lastAnswerLine = i
			continue
		}

		if m := toolPrefix.FindStringSubmatch(line); m != nil {
			if haveTool {
				result.Errors = append(result.Errors, core.ParseError{
					Line:   i,
					Reason: "Tool: without a matching ToolInput: for the previous call",
				})
			}
			pendingTool = strings.TrimSpace(m[1])
			haveTool = true
			continue
		}

		if m := toolInputPrefix.FindStringSubmatch(line); m != nil {
			if !haveTool {
				result.Errors = append(result.Errors, core.ParseError{
					Line:   i,
					Reason: "ToolInput: without a preceding Tool:",
				})
				continue
			}
			result.ToolCalls = append(result.ToolCalls, core.ToolCall{
				StepID: core.NewToolCallID(),
				Tool:   pendingTool,
				Input:  strings.TrimSpace(m[1]),
			})
			haveTool = false
			pendingTool = ""
			continue
		}

		// Thought: lines and any other continuation line are informational
		// only; they neither open nor close a Tool:/ToolInput: pair.
	}

	if haveTool {
		result.Errors = append(result.Errors, core.ParseError{
			Line:   len(lines) - 1,
			Reason: "Tool: without a matching ToolInput:",
		})
	}

	if lastAnswerLine >= 0 {
		m := answerPrefix.FindStringSubmatch(lines[lastAnswerLine])
		parts := []string{strings.TrimSpace(m[1])}
		for _, l := range lines[lastAnswerLine+1:] {
			trimmed := strings.TrimSpace(l)
			if trimmed == "" {
				continue
			}
			parts = append(parts, trimmed)
		}
		result.Answer = strings.TrimSpace(strings.Join(parts, " "))
	}

	return result
}

var _ core.Parser = (*Parser)(nil)
