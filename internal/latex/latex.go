// Package latex saves the generated document and drives the external pdflatex
// tool to produce the final PDF artifact.
package latex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	_ "embed"

	"go.uber.org/zap"
)

var (
	// ErrToolNotFound means pdflatex is not installed or not on PATH.
	ErrToolNotFound = errors.New("pdflatex not found in PATH; install a LaTeX distribution " +
		"(Linux: texlive-latex-base, macOS: MacTeX, Windows: MiKTeX)")
	// ErrCompileTimeout means a compilation pass exceeded its bounded wait.
	ErrCompileTimeout = errors.New("pdf compilation timed out")
)

const (
	defaultTool    = "pdflatex"
	defaultTimeout = 60 * time.Second
)

// Intermediate files pdflatex leaves next to the document. Safe to delete
// after a successful run.
var byproductExtensions = []string{".log", ".aux", ".out", ".synctex.gz", ".fdb_latexmk", ".fls"}

//go:embed template.tex
var defaultTemplate string

// DefaultTemplate returns the built-in LaTeX resume template skeleton.
func DefaultTemplate() string {
	return defaultTemplate
}

// LoadTemplate reads a custom template from disk.
func LoadTemplate(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading latex template %q: %w", path, err)
	}
	return string(data), nil
}

// Compiler wraps the external LaTeX tool.
type Compiler struct {
	// Tool is the compiler binary name. Empty means pdflatex.
	Tool string
	// Timeout bounds each compilation pass. Zero means 60s.
	Timeout time.Duration

	logger *zap.Logger
}

// NewCompiler returns a Compiler with package defaults.
func NewCompiler(logger *zap.Logger) *Compiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{logger: logger}
}

// Save writes the document to path, normalizing the extension to .tex and
// creating parent directories as needed. Existing content is overwritten.
// Returns the normalized path.
func Save(content, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("output path is required")
	}

	if filepath.Ext(path) != ".tex" {
		path = strings.TrimSuffix(path, filepath.Ext(path)) + ".tex"
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", fmt.Errorf("creating output directory %q: %w", dir, err)
		}
	}

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("writing latex file %q: %w", path, err)
	}

	return path, nil
}

// Compile runs the tool twice on the document: the first pass resolves forward
// references, the second finalizes them. The tool cannot do both in one pass,
// so two invocations are required for a correct document. A missing PDF after
// both passes is a recoverable outcome, reported as (false, "") without error.
// With cleanup enabled, intermediate byproducts are removed best-effort after
// a successful run.
func (c *Compiler) Compile(ctx context.Context, texPath string, cleanup bool) (bool, string, error) {
	tool := c.Tool
	if tool == "" {
		tool = defaultTool
	}

	if _, err := exec.LookPath(tool); err != nil {
		return false, "", fmt.Errorf("%w: %v", ErrToolNotFound, err)
	}

	if _, err := os.Stat(texPath); err != nil {
		return false, "", fmt.Errorf("latex file %q: %w", texPath, err)
	}

	workDir := filepath.Dir(texPath)
	filename := filepath.Base(texPath)

	// Two sequential passes over the same input, both required.
	for pass := 1; pass <= 2; pass++ {
		c.logger.Debug("running compilation pass",
			zap.Int("pass", pass),
			zap.String("tool", tool),
			zap.String("file", filename),
		)

		if err := c.runPass(ctx, tool, workDir, filename); err != nil {
			if errors.Is(err, ErrCompileTimeout) {
				return false, "", fmt.Errorf("pass %d: %w", pass, err)
			}
			// pdflatex exits non-zero on recoverable warnings too; the
			// artifact check below decides the outcome.
			c.logger.Debug("compilation pass reported errors",
				zap.Int("pass", pass),
				zap.Error(err),
			)
		}
	}

	pdfPath := strings.TrimSuffix(texPath, ".tex") + ".pdf"
	if _, err := os.Stat(pdfPath); err != nil {
		c.logger.Warn("pdf was not produced, the latex document is still usable",
			zap.String("latex_file", texPath),
		)
		return false, "", nil
	}

	if cleanup {
		CleanupByproducts(texPath)
	}

	return true, pdfPath, nil
}

func (c *Compiler) runPass(ctx context.Context, tool, workDir, filename string) error {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	passCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(passCtx, tool, "-interaction=nonstopmode", filename)
	cmd.Dir = workDir

	output, err := cmd.CombinedOutput()
	if err != nil {
		if passCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w after %s", ErrCompileTimeout, timeout)
		}
		return fmt.Errorf("%s: %w: %s", tool, err, lastLines(string(output), 5))
	}

	return nil
}

// CleanupByproducts removes the intermediate files sharing the document's base
// name. Deletion errors are swallowed; cleanup never fails the pipeline.
func CleanupByproducts(texPath string) {
	base := strings.TrimSuffix(texPath, ".tex")
	for _, ext := range byproductExtensions {
		_ = os.Remove(base + ext)
	}
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
