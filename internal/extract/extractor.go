// Package extract turns source documents into a single line of plain text.
//
// PDFs go through pdftotext, which separates pages with form feeds. Pages
// are joined with one space and every line break becomes a space, so the
// output never contains a newline. Layout is read in single-column order;
// multi-column pages may interleave.
package extract

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/curia-rag/curia/internal/errors"
)

// ErrNoExtractableText is returned when every page of a document is blank,
// typically a scanned PDF without a text layer. Match it with errors.Is.
var ErrNoExtractableText = errors.New(errors.ErrCodeNoExtractableText, "document contains no extractable text", nil)

// pageBreak is the page separator pdftotext emits.
const pageBreak = "\f"

var textExtensions = map[string]bool{
	".txt":      true,
	".text":     true,
	".md":       true,
	".markdown": true,
}

// Extractor pulls text out of PDF and plain-text documents.
type Extractor struct {
	runner CommandRunner
}

// New returns an Extractor that shells out to pdftotext.
func New() *Extractor {
	return NewWithRunner(ExecRunner{})
}

// NewWithRunner returns an Extractor using runner for pdftotext.
func NewWithRunner(runner CommandRunner) *Extractor {
	return &Extractor{runner: runner}
}

// Supports reports whether path has an extension the extractor reads.
func (e *Extractor) Supports(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".pdf" || textExtensions[ext]
}

// Extract returns the normalized text of the document at path.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", openError(path, err)
	}
	_ = f.Close()

	var pages []string
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		pages, err = e.pdfPages(ctx, path)
	} else {
		pages, err = textPages(path)
	}
	if err != nil {
		return "", err
	}

	text := Normalize(pages)
	if text == "" {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), ErrNoExtractableText)
	}
	return text, nil
}

func (e *Extractor) pdfPages(ctx context.Context, path string) ([]string, error) {
	out, err := e.runner.Run(ctx, PDFTool, "-enc", "UTF-8", path, "-")
	if err != nil {
		if stderrors.Is(err, ErrPDFToolNotFound) {
			return nil, errors.New(errors.ErrCodeDependencyMissing, "pdftotext is required to read PDF files", err).
				WithSuggestion(InstallInstructions())
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.New(errors.ErrCodeFileRead, fmt.Sprintf("pdftotext failed for %s", filepath.Base(path)), err).
			WithDetail("file", path)
	}
	return strings.Split(string(out), pageBreak), nil
}

func textPages(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, openError(path, err)
	}
	return strings.Split(string(data), pageBreak), nil
}

// Normalize drops blank pages, joins the rest with a single space and
// replaces every line break with a space. Invalid UTF-8 is dropped.
func Normalize(pages []string) string {
	kept := make([]string, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p) == "" {
			continue
		}
		kept = append(kept, p)
	}

	text := strings.Join(kept, " ")
	text = strings.ToValidUTF8(text, "")
	text = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(text)
	return strings.TrimSpace(text)
}

func openError(path string, err error) error {
	code := errors.ErrCodeFileRead
	switch {
	case stderrors.Is(err, fs.ErrNotExist):
		code = errors.ErrCodeFileNotFound
	case stderrors.Is(err, fs.ErrPermission):
		code = errors.ErrCodeFilePermission
	}
	return errors.New(code, fmt.Sprintf("cannot open %s", path), err).WithDetail("file", path)
}
