// Package pdf extracts metadata and text from PDF files with the poppler
// command-line tools (pdfinfo, pdftotext).
package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/kailas-cloud/papershelf/internal/domain"
	"github.com/kailas-cloud/papershelf/internal/domain/paper"
)

const (
	toolInfo = "pdfinfo"
	toolText = "pdftotext"
)

// ErrPDFToolNotFound is returned when the poppler tools are not installed.
var ErrPDFToolNotFound = errors.New("pdftotext/pdfinfo not found in PATH (install poppler)")

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%s: %s: %w", name, strings.TrimSpace(string(exitErr.Stderr)), err)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Parser reads PDF files from the local filesystem.
type Parser struct {
	runner CommandRunner
	check  func() error
}

// New creates a parser that shells out to the poppler tools found in PATH.
func New() *Parser {
	return &Parser{runner: execRunner{}, check: CheckAvailable}
}

// NewWithRunner creates a parser with a custom runner. The runner is
// trusted to provide the tools, so no PATH lookup is done.
func NewWithRunner(r CommandRunner) *Parser {
	return &Parser{runner: r, check: func() error { return nil }}
}

// CheckAvailable reports whether pdfinfo and pdftotext are in PATH.
func CheckAvailable() error {
	for _, tool := range []string{toolInfo, toolText} {
		if _, err := exec.LookPath(tool); err != nil {
			return ErrPDFToolNotFound
		}
	}
	return nil
}

// InstallInstructions returns platform hints for installing the poppler tools.
func InstallInstructions() string {
	return `pdftotext and pdfinfo are part of poppler:
  macOS:         brew install poppler
  Debian/Ubuntu: apt install poppler-utils
  Fedora:        dnf install poppler-utils
  Alpine:        apk add poppler-utils`
}

// HealthCheck reports tool availability.
func (p *Parser) HealthCheck(_ context.Context) error {
	return p.check()
}

// Extract reads the document information dictionary of the PDF at path.
// Missing title and author fall back to the file name and "Unknown".
func (p *Parser) Extract(ctx context.Context, path string) (paper.Metadata, error) {
	out, err := p.run(ctx, path, toolInfo, "-enc", "UTF-8", path)
	if err != nil {
		return paper.Metadata{}, err
	}
	return parseInfo(out, path), nil
}

// ExtractText returns the text of every page, each followed by a newline.
func (p *Parser) ExtractText(ctx context.Context, path string) (string, error) {
	out, err := p.run(ctx, path, toolText, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return "", err
	}

	// pdftotext terminates every page with a form feed.
	pages := strings.Split(string(out), "\f")
	if len(pages) > 0 && pages[len(pages)-1] == "" {
		pages = pages[:len(pages)-1]
	}

	var sb strings.Builder
	sb.Grow(len(out) + len(pages))
	for _, page := range pages {
		sb.WriteString(page)
		sb.WriteByte('\n')
	}
	return strings.ToValidUTF8(sb.String(), ""), nil
}

func (p *Parser) run(ctx context.Context, path, tool string, args ...string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: PDF file not found: %s", domain.ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrValidation, path)
	}

	if err := p.check(); err != nil {
		return nil, err
	}

	out, err := p.runner.Run(ctx, tool, args...)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, ErrPDFToolNotFound
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s failed: %w", tool, errors.Join(err, ctxErr))
		}
		return nil, fmt.Errorf("%w: %s failed: %w", domain.ErrValidation, tool, err)
	}
	return out, nil
}

// parseInfo reads "Key: value" lines as printed by pdfinfo.
func parseInfo(out []byte, path string) paper.Metadata {
	m := paper.Metadata{Path: path}

	// No line length limit: Keywords and Subject can be arbitrarily long.
	for line := range strings.Lines(string(out)) {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "Title":
			m.Title = value
		case "Author":
			m.Author = value
		case "Subject":
			m.Subject = value
		case "Keywords":
			m.Keywords = value
		case "Creator":
			m.Creator = value
		case "Producer":
			m.Producer = value
		case "Pages":
			if n, err := strconv.Atoi(value); err == nil {
				m.PageCount = n
			}
		}
	}

	return m.WithDefaults()
}
