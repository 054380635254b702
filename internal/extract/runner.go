package extract

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// PDFTool is the external binary used for PDF text extraction.
const PDFTool = "pdftotext"

// ErrPDFToolNotFound is returned when pdftotext is not on PATH.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH; " + InstallInstructions())

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements CommandRunner. Stderr is folded into the error on failure.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		if name == PDFTool {
			return nil, ErrPDFToolNotFound
		}
		return nil, err
	}

	cmd := exec.CommandContext(ctx, name, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// CheckAvailable reports whether pdftotext can be found.
func CheckAvailable() error {
	if _, err := exec.LookPath(PDFTool); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions tells the user how to get pdftotext.
func InstallInstructions() string {
	return "install pdftotext from poppler: brew install poppler (macOS) or apt install poppler-utils (Debian/Ubuntu)"
}
