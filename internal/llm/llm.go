package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Client abstracts LLM providers that propose fixes for reported issues.
type Client interface {
	SuggestFix(ctx context.Context, input IssueInput) (Suggestion, error)
}

// IssueInput is the issue context sent to the model.
type IssueInput struct {
	IssueID   string
	Analyzer  string
	Rule      string
	Severity  string
	Type      string
	FilePath  string
	StartLine *int
	EndLine   *int
	Message   string
}

// Verdict is the model's judgement of an issue.
type Verdict string

const (
	VerdictFixed         Verdict = "FIXED"
	VerdictFalsePositive Verdict = "FALSE_POSITIVE"
	VerdictNeedsReview   Verdict = "NEEDS_REVIEW"
)

// Suggestion is the structured model output.
type Suggestion struct {
	Verdict     Verdict `json:"verdict"`
	Explanation string  `json:"explanation"`
	Patch       string  `json:"patch,omitempty"`
	Model       string  `json:"model,omitempty"`
}

// ErrInvalidOutput marks model output that does not match the suggestion schema.
var ErrInvalidOutput = errors.New("invalid LLM output")

// ParseSuggestion decodes and validates raw model output.
func ParseSuggestion(raw []byte) (Suggestion, error) {
	var s Suggestion
	if err := json.Unmarshal(raw, &s); err != nil {
		return Suggestion{}, fmt.Errorf("%w: %s", ErrInvalidOutput, err.Error())
	}
	s.Verdict = Verdict(strings.ToUpper(strings.TrimSpace(string(s.Verdict))))
	switch s.Verdict {
	case VerdictFixed, VerdictFalsePositive, VerdictNeedsReview:
	case "":
		return Suggestion{}, fmt.Errorf("%w: verdict is required", ErrInvalidOutput)
	default:
		return Suggestion{}, fmt.Errorf("%w: unknown verdict %q", ErrInvalidOutput, s.Verdict)
	}
	s.Explanation = strings.TrimSpace(s.Explanation)
	if s.Explanation == "" {
		return Suggestion{}, fmt.Errorf("%w: explanation is required", ErrInvalidOutput)
	}
	return s, nil
}

// ErrNotImplemented is returned by the placeholder client.
var ErrNotImplemented = errors.New("LLM not implemented")

// PlaceholderClient is used when no provider is configured.
type PlaceholderClient struct{}

// SuggestFix returns ErrNotImplemented.
func (PlaceholderClient) SuggestFix(ctx context.Context, input IssueInput) (Suggestion, error) {
	_ = ctx
	_ = input
	return Suggestion{}, ErrNotImplemented
}
