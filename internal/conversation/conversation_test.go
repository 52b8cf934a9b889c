package conversation

import (
	"errors"
	"strings"
	"testing"

	"github.com/spigell/resume-forge/internal/ai"
)

const (
	testResume = "Jane Doe, Software Engineer at Acme 2019-2022"
	testJob    = "Senior Backend Engineer, Go, Kubernetes"
)

func TestSeedShape(t *testing.T) {
	t.Parallel()

	history, err := Seed(testResume, testJob)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history))
	}

	if history[0].Role != ai.RoleSystem {
		t.Fatalf("expected system role first, got %q", history[0].Role)
	}

	if history[1].Role != ai.RoleUser {
		t.Fatalf("expected user role second, got %q", history[1].Role)
	}

	if !strings.Contains(history[1].Content, testResume) {
		t.Fatal("seed prompt missing resume text")
	}

	if !strings.Contains(history[1].Content, testJob) {
		t.Fatal("seed prompt missing job description")
	}

	for _, marker := range []string{
		"### PROFESSIONAL EXPERIENCE",
		"### TECHNICAL PROJECTS",
		"### TECHNICAL SKILLS",
		"### EDUCATION",
	} {
		if !strings.Contains(history[1].Content, marker) {
			t.Fatalf("seed prompt missing section marker %q", marker)
		}
	}
}

func TestSeedDeterministic(t *testing.T) {
	t.Parallel()

	first, err := Seed(testResume, testJob)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := Seed(testResume, testJob)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("histories differ in length: %d vs %d", len(first), len(second))
	}

	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("message %d differs between identical seeds", i)
		}
	}
}

func TestSeedEmptyInputs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		resume string
		job    string
	}{
		{name: "empty resume", resume: "", job: testJob},
		{name: "empty job", resume: testResume, job: ""},
		{name: "whitespace resume", resume: "   \n", job: testJob},
		{name: "both empty", resume: "", job: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Seed(tt.resume, tt.job); !errors.Is(err, ErrEmptyInput) {
				t.Fatalf("expected ErrEmptyInput, got %v", err)
			}
		})
	}
}

func TestWrapFeedback(t *testing.T) {
	t.Parallel()

	wrapped, err := WrapFeedback("emphasize leadership experience")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(wrapped, "emphasize leadership experience") {
		t.Fatal("wrapped message missing the feedback text")
	}

	if !strings.Contains(wrapped, "COMPLETE updated resume") {
		t.Fatal("wrapped message missing the full-rewrite framing")
	}
}

func TestWrapFeedbackRejectsBlank(t *testing.T) {
	t.Parallel()

	for _, feedback := range []string{"", "   ", "\n\t"} {
		if _, err := WrapFeedback(feedback); !errors.Is(err, ErrInvalidFeedback) {
			t.Fatalf("expected ErrInvalidFeedback for %q, got %v", feedback, err)
		}
	}
}

func TestBudgetConsume(t *testing.T) {
	t.Parallel()

	budget := NewBudget()
	if budget.Max != DefaultMaxFollowups {
		t.Fatalf("expected max %d, got %d", DefaultMaxFollowups, budget.Max)
	}

	for i := 0; i < DefaultMaxFollowups; i++ {
		if err := budget.Consume(); err != nil {
			t.Fatalf("consume %d: unexpected error: %v", i+1, err)
		}
	}

	if budget.Used != DefaultMaxFollowups {
		t.Fatalf("expected used %d, got %d", DefaultMaxFollowups, budget.Used)
	}

	// The sixth attempt fails and leaves the counter untouched.
	if err := budget.Consume(); !errors.Is(err, ErrBudgetExhausted) {
		t.Fatalf("expected ErrBudgetExhausted, got %v", err)
	}

	if budget.Used != DefaultMaxFollowups {
		t.Fatalf("exhausted consume mutated the budget: %d", budget.Used)
	}

	if budget.Remaining() != 0 {
		t.Fatalf("expected 0 remaining, got %d", budget.Remaining())
	}
}
