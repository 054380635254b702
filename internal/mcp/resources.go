package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/curia-rag/curia/internal/index"
	"github.com/curia-rag/curia/internal/ledger"
)

// MaxResourceSize is the maximum extracted text returned for one document (1MB).
const MaxResourceSize = 1024 * 1024

// Library locates the indexed documents served as resources.
type Library struct {
	DataDir    string
	LedgerPath string
	Extractor  index.Extractor
}

// RegisterDocuments registers every document recorded in the ledger as a
// file:// resource whose content is the document's extracted text. It can be
// called again after a rebuild to pick up new documents.
func (s *Server) RegisterDocuments(ctx context.Context, lib Library) (int, error) {
	if lib.Extractor == nil {
		return 0, fmt.Errorf("extractor is required to serve documents")
	}

	l, err := ledger.Load(lib.LedgerPath)
	if err != nil {
		return 0, err
	}

	names := make([]string, 0, len(l))
	for name := range l {
		names = append(names, name)
	}
	sort.Strings(names)

	s.mu.Lock()
	s.documents = &lib
	s.mu.Unlock()

	for _, name := range names {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		s.mcp.AddResource(&mcp.Resource{
			Name:        name,
			URI:         documentURI(name),
			Description: fmt.Sprintf("Extracted text of %s", name),
			MIMEType:    "text/plain",
		}, s.makeDocumentHandler(name))
	}

	s.logger.Info("mcp_resources_registered", slog.Int("count", len(names)))
	return len(names), nil
}

func documentURI(name string) string {
	return "file://" + name
}

func (s *Server) makeDocumentHandler(name string) mcp.ResourceHandler {
	return func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return s.readDocument(ctx, name)
	}
}

// readDocument extracts the current text of an indexed document.
func (s *Server) readDocument(ctx context.Context, name string) (*mcp.ReadResourceResult, error) {
	if !isValidName(name) {
		return nil, NewInvalidParamsError(fmt.Sprintf("invalid document name: %s", name))
	}

	s.mu.RLock()
	lib := s.documents
	s.mu.RUnlock()
	if lib == nil {
		return nil, NewResourceNotFoundError(documentURI(name))
	}

	path := filepath.Join(lib.DataDir, name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, &MCPError{
				Code:    ErrCodeFileNotFound,
				Message: fmt.Sprintf("document not found: %s", name),
			}
		}
		return nil, MapError(err)
	}

	text, err := lib.Extractor.Extract(ctx, path)
	if err != nil {
		return nil, MapError(err)
	}
	if len(text) > MaxResourceSize {
		text = text[:MaxResourceSize]
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      documentURI(name),
				MIMEType: "text/plain",
				Text:     text,
			},
		},
	}, nil
}

// isValidName accepts plain file names inside the data directory only.
func isValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if filepath.IsAbs(name) || strings.ContainsAny(name, `/\`) {
		return false
	}
	// Windows drive letters
	if len(name) >= 2 && name[1] == ':' {
		return false
	}
	return true
}
