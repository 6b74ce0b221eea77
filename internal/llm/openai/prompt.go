package openai

import (
	"fmt"
	"strings"

	"quality-backend/internal/llm"
)

// Message represents an OpenAI chat message.
type Message struct {
	Role    string
	Content string
}

const (
	systemPrompt = "You are a static analysis triage engine. Respond with JSON only. No markdown. " +
		`Output must match {"verdict":"FIXED|FALSE_POSITIVE|NEEDS_REVIEW","explanation":string,"patch":string}.`
	developerPrompt = "Decide whether the reported issue is a real defect. " +
		"Use FIXED when you can propose a unified diff that removes it, FALSE_POSITIVE when the rule does not apply, " +
		"NEEDS_REVIEW otherwise. Keep the explanation under 80 words."
	systemPromptFixJSON = "You are a JSON repair tool. Return only valid JSON that matches the schema exactly."
)

// BuildPrompt creates the chat messages for one issue.
func BuildPrompt(input llm.IssueInput) []Message {
	return []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "developer", Content: developerPrompt},
		{Role: "user", Content: buildUserPrompt(input)},
	}
}

func buildFixPrompt(raw []byte) []Message {
	return []Message{
		{Role: "system", Content: systemPromptFixJSON},
		{Role: "developer", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf("Fix this JSON to match the schema exactly. Output JSON only:\n%s", string(raw))},
	}
}

func buildUserPrompt(in llm.IssueInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyzer: %s\nRule: %s\nSeverity: %s\nType: %s\nFile: %s\n", in.Analyzer, in.Rule, in.Severity, in.Type, in.FilePath)
	switch {
	case in.StartLine != nil && in.EndLine != nil:
		fmt.Fprintf(&b, "Lines: %d-%d\n", *in.StartLine, *in.EndLine)
	case in.StartLine != nil:
		fmt.Fprintf(&b, "Line: %d\n", *in.StartLine)
	}
	fmt.Fprintf(&b, "Message: %s", in.Message)
	return b.String()
}
