// Package pipeline drives a resume through the two-stage transformation
// (content rewrite, then LaTeX formatting), saves and compiles the result,
// and applies budgeted follow-up refinements on top of the same conversation.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	_ "embed"

	"github.com/spigell/resume-forge/internal/ai"
	"github.com/spigell/resume-forge/internal/conversation"
	"github.com/spigell/resume-forge/internal/extract"
	"github.com/spigell/resume-forge/internal/latex"
	"github.com/spigell/resume-forge/internal/logger"

	"go.uber.org/zap"
)

// State names the stage a session is currently in. A session moves forward
// only; Failed is terminal.
type State string

const (
	StateIdle             State = "idle"
	StateExtracting       State = "extracting"
	StateTransforming     State = "transforming"
	StateFormatting       State = "formatting"
	StateCompiling        State = "compiling"
	StateDone             State = "done"
	StateAwaitingFeedback State = "awaiting_feedback"
	StateRefining         State = "refining"
	StateFailed           State = "failed"
)

const (
	// The rewrite stage keeps some creative slack; the formatting stage
	// runs colder so the template survives intact.
	transformTemperature = 0.6
	transformMaxTokens   = 8000
	formatTemperature    = 0.3
	formatMaxTokens      = 8000

	DefaultOutputPath = "updated_resume.tex"
)

//go:embed prompts/format_system.md
var formatSystemPrompt string

//go:embed prompts/format.md
var formatTemplate string

// compiler is the slice of latex.Compiler the session needs.
type compiler interface {
	Compile(ctx context.Context, texPath string, cleanup bool) (bool, string, error)
}

// Inputs carries the two session inputs. Paths win over inline text; the
// resume may be a PDF or a plain text file, the job description likewise.
type Inputs struct {
	ResumePath string
	ResumeText string
	JobPath    string
	JobText    string
}

// Config controls output placement and compilation.
type Config struct {
	// OutputPath is where the .tex file lands. Defaults to DefaultOutputPath.
	OutputPath string
	// Template is the LaTeX skeleton handed to the formatting stage.
	// Empty means the built-in template.
	Template string
	// CompilePDF enables the pdflatex step.
	CompilePDF bool
	// Cleanup removes compilation byproducts after a successful run.
	Cleanup bool
	// MaxFollowups overrides the default refinement budget when positive.
	MaxFollowups int
}

// Result is what a completed run (or refinement) produced. PDFPath is empty
// when compilation was skipped or produced no artifact.
type Result struct {
	Content  string
	Document string
	TexPath  string
	PDFPath  string
}

// Session owns one resume transformation from raw inputs to compiled
// document, plus the follow-up budget. Not safe for concurrent use.
type Session struct {
	client   ai.Client
	compiler compiler
	log      *zap.Logger
	config   Config

	state   State
	history ai.History
	budget  conversation.Budget
	content string
	result  Result
}

// New builds an idle session around the given chat client.
func New(client ai.Client, config Config, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}

	if config.OutputPath == "" {
		config.OutputPath = DefaultOutputPath
	}

	if config.Template == "" {
		config.Template = latex.DefaultTemplate()
	}

	budget := conversation.NewBudget()
	if config.MaxFollowups > 0 {
		budget.Max = config.MaxFollowups
	}

	return &Session{
		client:   client,
		compiler: latex.NewCompiler(log),
		log:      log,
		config:   config,
		state:    StateIdle,
		budget:   budget,
	}
}

func (s *Session) State() State { return s.state }

// History returns the refinement conversation accumulated so far.
func (s *Session) History() ai.History { return s.history }

// Budget reports the follow-up budget.
func (s *Session) Budget() conversation.Budget { return s.budget }

// Content returns the latest transformed resume content.
func (s *Session) Content() string { return s.content }

// Run executes the full pipeline once: extract, transform, format, save,
// compile. It may be called on an idle session only.
func (s *Session) Run(ctx context.Context, in Inputs) (Result, error) {
	if s.state != StateIdle {
		return Result{}, fmt.Errorf("session already started (state %s)", s.state)
	}

	s.state = StateExtracting

	resumeText, err := resolveInput(in.ResumePath, in.ResumeText)
	if err != nil {
		return Result{}, s.fail("extracting resume", err)
	}

	jobDescription, err := resolveInput(in.JobPath, in.JobText)
	if err != nil {
		return Result{}, s.fail("reading job description", err)
	}

	s.log.Info("extracted session inputs",
		zap.Int("resume_chars", len(resumeText)),
		zap.Int("job_description_chars", len(jobDescription)),
	)

	s.state = StateTransforming

	history, err := conversation.Seed(resumeText, jobDescription)
	if err != nil {
		return Result{}, s.fail("seeding conversation", err)
	}

	s.log.Info("transforming resume content", zap.String(logger.FieldStage, string(s.state)))

	reply, err := s.chat(ctx, history, ai.ChatOptions{
		Temperature: transformTemperature,
		MaxTokens:   transformMaxTokens,
	})
	if err != nil {
		return Result{}, s.fail("transforming resume content", err)
	}

	s.history = history.Append(ai.RoleAssistant, reply)
	s.content = reply

	if err := s.produce(ctx); err != nil {
		return Result{}, err
	}

	s.state = StateDone
	return s.result, nil
}

// Refine spends one unit of the follow-up budget on a conversation-aware
// rewrite, then re-formats and re-compiles. Invalid feedback and an
// exhausted budget are recoverable: the session stays ready for another
// attempt and neither the history nor the budget moves.
func (s *Session) Refine(ctx context.Context, feedback string) (Result, error) {
	if s.state != StateDone && s.state != StateAwaitingFeedback {
		return Result{}, fmt.Errorf("nothing to refine yet (state %s)", s.state)
	}

	s.state = StateAwaitingFeedback

	wrapped, err := conversation.WrapFeedback(feedback)
	if err != nil {
		return Result{}, err
	}

	if err := s.budget.Consume(); err != nil {
		return Result{}, err
	}

	s.state = StateRefining
	s.log.Info("refining resume content",
		zap.Int("followups_used", s.budget.Used),
		zap.Int("followups_remaining", s.budget.Remaining()),
	)

	next := s.history.Append(ai.RoleUser, wrapped)

	reply, err := s.chat(ctx, next, ai.ChatOptions{
		Temperature: transformTemperature,
		MaxTokens:   transformMaxTokens,
	})
	if err != nil {
		return Result{}, s.fail("refining resume content", err)
	}

	s.history = next.Append(ai.RoleAssistant, reply)
	s.content = reply

	if err := s.produce(ctx); err != nil {
		return Result{}, err
	}

	s.state = StateAwaitingFeedback
	return s.result, nil
}

// produce runs the shared tail of every cycle: format the current content
// into LaTeX, save it, and optionally compile.
func (s *Session) produce(ctx context.Context) error {
	s.state = StateFormatting
	s.log.Info("formatting content into latex", zap.String(logger.FieldStage, string(s.state)))

	prompt := strings.ReplaceAll(formatTemplate, "{{TRANSFORMED_CONTENT}}", s.content)
	prompt = strings.ReplaceAll(prompt, "{{LATEX_TEMPLATE}}", s.config.Template)

	// Formatting is deliberately conversation-free: a fresh two-message
	// exchange keeps the refinement history about content only.
	document, err := s.chat(ctx, ai.History{
		{Role: ai.RoleSystem, Content: strings.TrimSpace(formatSystemPrompt)},
		{Role: ai.RoleUser, Content: prompt},
	}, ai.ChatOptions{
		Temperature: formatTemperature,
		MaxTokens:   formatMaxTokens,
	})
	if err != nil {
		return s.fail("formatting to latex", err)
	}

	s.state = StateCompiling

	texPath, err := latex.Save(document, s.config.OutputPath)
	if err != nil {
		return s.fail("saving latex output", err)
	}

	s.result = Result{
		Content:  s.content,
		Document: document,
		TexPath:  texPath,
	}

	if !s.config.CompilePDF {
		return nil
	}

	ok, pdfPath, err := s.compiler.Compile(ctx, texPath, s.config.Cleanup)
	if err != nil {
		return s.fail("compiling pdf", err)
	}

	if ok {
		s.result.PDFPath = pdfPath
	}

	return nil
}

func (s *Session) chat(ctx context.Context, history ai.History, opts ai.ChatOptions) (string, error) {
	reply, err := s.client.Chat(ctx, history, opts)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(reply), nil
}

func (s *Session) fail(stage string, err error) error {
	s.state = StateFailed
	wrapped := fmt.Errorf("%s: %w", stage, err)
	s.log.Error("pipeline failed", zap.String(logger.FieldStage, stage), zap.Error(err))

	return wrapped
}

// resolveInput prefers a file path over inline text so the CLI can pass
// either without caring which one the user supplied.
func resolveInput(path, text string) (string, error) {
	if path != "" {
		return extract.FromFile(path)
	}

	return text, nil
}
