package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/curia-rag/curia/internal/ollama"
	"github.com/curia-rag/curia/internal/output"
)

// CheckStatus is the outcome of one check.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

var statusNames = [...]string{"pass", "warn", "fail"}

func (s CheckStatus) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// MarshalText makes the status a lowercase name in JSON.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CheckResult is one line of the doctor report.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical reports a failed required check.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

func (r CheckResult) degraded() bool {
	return r.Status != StatusPass && !r.IsCritical()
}

// Summary values of Report.Status.
const (
	SummaryReady    = "ready"
	SummaryWarnings = "ready_with_warnings"
	SummaryFailed   = "failed"
)

// Report is the outcome of RunAll.
type Report struct {
	Status string        `json:"status"`
	Checks []CheckResult `json:"checks"`
}

// NewReport summarizes checks. Any critical check fails the report; any
// other non-passing check downgrades it to ready_with_warnings.
func NewReport(checks []CheckResult) Report {
	r := Report{Status: SummaryReady, Checks: checks}
	for _, c := range checks {
		switch {
		case c.IsCritical():
			r.Status = SummaryFailed
		case c.degraded() && r.Status == SummaryReady:
			r.Status = SummaryWarnings
		}
	}
	return r
}

// Failed reports whether curia cannot run.
func (r Report) Failed() bool {
	return r.Status == SummaryFailed
}

// Print renders the report for a terminal. Details, such as install
// hints, are shown only when verbose is set.
func (r Report) Print(w io.Writer, verbose bool) {
	out := output.New(w)
	out.Heading("curia system check")
	out.Newline()

	for _, c := range r.Checks {
		line := fmt.Sprintf("%-18s %s", c.Name, c.Message)
		switch {
		case c.Status == StatusPass:
			out.Success(line)
		case c.IsCritical():
			out.Error(line)
		default:
			out.Warning(line)
		}
		if verbose && c.Details != "" {
			out.Status("", "   "+c.Details)
		}
	}

	out.Newline()
	var failed, warned int
	for _, c := range r.Checks {
		if c.IsCritical() {
			failed++
		} else if c.degraded() {
			warned++
		}
	}
	out.KeyValue("status", strings.ToUpper(r.Status))
	if failed > 0 || warned > 0 {
		out.KeyValue("problems", fmt.Sprintf("%d failed, %d warning(s)", failed, warned))
	}
}

// ModelLister is the part of the Ollama client the model checks need.
type ModelLister interface {
	Host() string
	ListModels(ctx context.Context) ([]ollama.ModelInfo, error)
}

// Paths are the directories the checks inspect.
type Paths struct {
	DataDir string
	DBDir   string
}

// Checker runs the checks.
type Checker struct {
	models     ModelLister
	embedModel string
	llmModel   string

	supports func(name string) bool
	lookPath func(file string) (string, error)
}

type Option func(*Checker)

// WithOllama enables the Ollama checks. An empty llm skips the language
// model check.
func WithOllama(models ModelLister, embedModel, llm string) Option {
	return func(c *Checker) {
		c.models = models
		c.embedModel = embedModel
		c.llmModel = llm
	}
}

// WithSupports decides which files in the data directory count as documents.
func WithSupports(fn func(name string) bool) Option {
	return func(c *Checker) { c.supports = fn }
}

func New(opts ...Option) *Checker {
	c := &Checker{lookPath: exec.LookPath}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs the local checks, then the Ollama checks when configured.
func (c *Checker) RunAll(ctx context.Context, paths Paths) Report {
	checks := []CheckResult{
		c.CheckDataDir(paths.DataDir),
		c.CheckWritePermissions(paths.DBDir),
		c.CheckDiskSpace(paths.DBDir),
		c.CheckFileDescriptors(),
		c.CheckPDFTool(),
	}
	if c.models != nil {
		checks = append(checks, c.CheckOllama(ctx)...)
	}
	return NewReport(checks)
}

// CheckDataDir counts the indexable documents in path.
func (c *Checker) CheckDataDir(path string) CheckResult {
	res := CheckResult{Name: "data_dir", Required: true, Details: path}

	entries, err := os.ReadDir(path)
	switch {
	case os.IsNotExist(err):
		res.Status = StatusFail
		res.Message = path + " does not exist"
		return res
	case err != nil:
		res.Status = StatusFail
		res.Message = fmt.Sprintf("cannot read %s: %v", path, err)
		return res
	}

	n := 0
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if c.supports == nil || c.supports(e.Name()) {
			n++
		}
	}

	if n == 0 {
		res.Status = StatusWarn
		res.Message = "no documents to index"
		return res
	}
	res.Status = StatusPass
	res.Message = fmt.Sprintf("%d document(s)", n)
	return res
}

// CheckWritePermissions creates the database directory if needed and
// writes a probe file into it.
func (c *Checker) CheckWritePermissions(path string) CheckResult {
	res := CheckResult{Name: "write_permissions", Required: true, Details: path}

	if err := os.MkdirAll(path, 0o755); err != nil {
		res.Status = StatusFail
		res.Message = fmt.Sprintf("cannot create %s: %v", path, err)
		return res
	}

	probe, err := os.CreateTemp(path, ".curia-probe-*")
	if err != nil {
		res.Status = StatusFail
		res.Message = fmt.Sprintf("permission denied: %v", err)
		return res
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)

	res.Status = StatusPass
	res.Message = "writable"
	return res
}

// CheckPDFTool looks for pdftotext. Without it only text documents index,
// so a miss is a warning.
func (c *Checker) CheckPDFTool() CheckResult {
	res := CheckResult{Name: "pdftotext"}

	bin, err := c.lookPath("pdftotext")
	if err != nil {
		res.Status = StatusWarn
		res.Message = "not found; PDF documents will fail to extract"
		res.Details = "install poppler: brew install poppler (macOS) or apt install poppler-utils (Debian/Ubuntu)"
		return res
	}
	res.Status = StatusPass
	res.Message = filepath.Clean(bin)
	return res
}
