// Package conversation owns the per-session refinement state: the seed
// prompts, the feedback framing, and the follow-up budget.
package conversation

import (
	"errors"
	"strings"

	_ "embed"

	"github.com/spigell/resume-forge/internal/ai"
)

var (
	// ErrEmptyInput is returned when the resume text or job description is blank.
	ErrEmptyInput = errors.New("resume text and job description must not be empty")
	// ErrInvalidFeedback is returned for empty or whitespace-only feedback.
	ErrInvalidFeedback = errors.New("feedback must not be empty")
	// ErrBudgetExhausted is returned when no follow-up refinements remain.
	ErrBudgetExhausted = errors.New("follow-up budget exhausted")
)

// DefaultMaxFollowups caps refinement cycles per session.
const DefaultMaxFollowups = 5

//go:embed prompts/system.md
var systemPrompt string

//go:embed prompts/transform.md
var transformTemplate string

//go:embed prompts/feedback.md
var feedbackTemplate string

// Budget tracks how many follow-up refinements a session has consumed.
type Budget struct {
	Used int
	Max  int
}

// NewBudget returns a fresh budget with the default cap.
func NewBudget() Budget {
	return Budget{Max: DefaultMaxFollowups}
}

// Consume spends one unit of the budget. The budget is left unchanged when
// exhausted.
func (b *Budget) Consume() error {
	if b.Used >= b.Max {
		return ErrBudgetExhausted
	}
	b.Used++
	return nil
}

// Remaining reports how many refinements are left.
func (b Budget) Remaining() int {
	if b.Used >= b.Max {
		return 0
	}
	return b.Max - b.Used
}

// Seed builds the two-message conversation that anchors all subsequent
// refinement turns: the system persona followed by the transformation
// instructions embedding both inputs verbatim. Deterministic for identical
// inputs.
func Seed(resumeText, jobDescription string) (ai.History, error) {
	if strings.TrimSpace(resumeText) == "" || strings.TrimSpace(jobDescription) == "" {
		return nil, ErrEmptyInput
	}

	instructions := strings.ReplaceAll(transformTemplate, "{{JOB_DESCRIPTION}}", jobDescription)
	instructions = strings.ReplaceAll(instructions, "{{RESUME_TEXT}}", resumeText)

	return ai.History{
		{Role: ai.RoleSystem, Content: strings.TrimSpace(systemPrompt)},
		{Role: ai.RoleUser, Content: instructions},
	}, nil
}

// WrapFeedback turns free-text feedback into the fixed instructional framing
// that demands a complete rewrite rather than an incremental patch.
func WrapFeedback(feedback string) (string, error) {
	if strings.TrimSpace(feedback) == "" {
		return "", ErrInvalidFeedback
	}

	return strings.ReplaceAll(feedbackTemplate, "{{FEEDBACK}}", strings.TrimSpace(feedback)), nil
}
