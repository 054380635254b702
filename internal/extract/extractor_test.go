package extract

import (
	"context"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curia-rag/curia/internal/errors"
)

// mockRunner is a test double for CommandRunner.
type mockRunner struct {
	output []byte
	err    error

	calls [][]string
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.calls = append(m.calls, append([]string{name}, args...))
	return m.output, m.err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtract_PDF_JoinsPagesWithoutNewlines(t *testing.T) {
	// Given: pdftotext output with three pages, one of them blank
	dir := t.TempDir()
	path := writeFile(t, dir, "case.pdf", "%PDF-1.4 fake")
	runner := &mockRunner{output: []byte("JUDGMENT OF THE COURT\nParfums Marcel Rochas\n\f \n\fsecond page\r\nends here\n\f")}

	// When: extracting
	text, err := NewWithRunner(runner).Extract(context.Background(), path)

	// Then: pages are joined with a space and no newline survives
	require.NoError(t, err)
	assert.Equal(t, "JUDGMENT OF THE COURT Parfums Marcel Rochas  second page ends here", text)
	assert.NotContains(t, text, "\n")
	assert.NotContains(t, text, "\r")
	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"pdftotext", "-enc", "UTF-8", path, "-"}, runner.calls[0])
}

func TestExtract_PDF_AllPagesEmpty_ReturnsNoExtractableText(t *testing.T) {
	// Given: a scanned PDF with no text layer
	path := writeFile(t, t.TempDir(), "scan.pdf", "%PDF-1.4 fake")
	runner := &mockRunner{output: []byte("\f\n\f  \f")}

	// When: extracting
	_, err := NewWithRunner(runner).Extract(context.Background(), path)

	// Then: the content error is distinct from I/O errors
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, ErrNoExtractableText))
	assert.Equal(t, errors.ErrCodeNoExtractableText, errors.GetCode(err))
	assert.Contains(t, err.Error(), "scan.pdf")
}

func TestExtract_MissingFile_PropagatesIOError(t *testing.T) {
	runner := &mockRunner{}

	_, err := NewWithRunner(runner).Extract(context.Background(), filepath.Join(t.TempDir(), "gone.pdf"))

	require.Error(t, err)
	assert.True(t, stderrors.Is(err, fs.ErrNotExist))
	assert.Equal(t, errors.ErrCodeFileNotFound, errors.GetCode(err))
	assert.False(t, stderrors.Is(err, ErrNoExtractableText))
	assert.Empty(t, runner.calls, "pdftotext must not run for a missing file")
}

func TestExtract_RunnerFailure(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.pdf", "not a pdf")
	runner := &mockRunner{err: stderrors.New("Syntax Error: Couldn't find trailer dictionary")}

	_, err := NewWithRunner(runner).Extract(context.Background(), path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdftotext failed")
	assert.Equal(t, errors.ErrCodeFileRead, errors.GetCode(err))
}

func TestExtract_ToolMissing_IsDependencyError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.pdf", "%PDF")
	runner := &mockRunner{err: ErrPDFToolNotFound}

	_, err := NewWithRunner(runner).Extract(context.Background(), path)

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDependencyMissing, errors.GetCode(err))
	ce, ok := errors.As(err)
	require.True(t, ok)
	assert.Contains(t, ce.Suggestion, "poppler")
}

func TestExtract_TextFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "notes.md", "# Title\n\nfirst line\nsecond line\n")
	runner := &mockRunner{}

	text, err := NewWithRunner(runner).Extract(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "# Title  first line second line", text)
	assert.Empty(t, runner.calls)
}

func TestExtract_EmptyTextFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty.txt", "\n\n  \n")

	_, err := NewWithRunner(&mockRunner{}).Extract(context.Background(), path)

	assert.True(t, stderrors.Is(err, ErrNoExtractableText))
}

func TestNormalize_NeverContainsNewlines(t *testing.T) {
	inputs := [][]string{
		{"a\nb", "c\r\nd", "e\rf"},
		{"\n\n", "x\n"},
		{"line one\n\nline two\n\n\n"},
	}
	for _, pages := range inputs {
		out := Normalize(pages)
		assert.False(t, strings.ContainsAny(out, "\r\n"), "got %q", out)
	}
}

func TestNormalize_DropsInvalidUTF8(t *testing.T) {
	assert.Equal(t, "ab", Normalize([]string{"a\xffb"}))
}

func TestSupports(t *testing.T) {
	e := New()
	assert.True(t, e.Supports("x.pdf"))
	assert.True(t, e.Supports("X.PDF"))
	assert.True(t, e.Supports("notes.txt"))
	assert.True(t, e.Supports("README.md"))
	assert.False(t, e.Supports("image.png"))
	assert.False(t, e.Supports("noext"))
}

func TestInstallInstructions(t *testing.T) {
	instructions := InstallInstructions()
	assert.Contains(t, instructions, "brew install poppler")
	assert.Contains(t, instructions, "apt install poppler-utils")
	assert.Contains(t, ErrPDFToolNotFound.Error(), "pdftotext")
}
