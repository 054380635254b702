package mcp

import (
	"fmt"
	"strings"

	"github.com/curia-rag/curia/internal/index"
)

// FormatRetrieveResults formats retrieved passages as markdown.
func FormatRetrieveResults(query string, results []index.Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No passages found for \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Passages for \"%s\"\n\n", query)
	fmt.Fprintf(&sb, "Found %d passage", len(results))
	if len(results) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, r := range results {
		formatPassage(&sb, i+1, r)
	}
	return sb.String()
}

// FormatAnswer formats a generated answer followed by its sources.
func FormatAnswer(ans *index.Answer) string {
	if ans == nil {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(ans.Text))
	sb.WriteString("\n")
	if len(ans.Sources) == 0 {
		return sb.String()
	}

	sb.WriteString("\n## Sources\n\n")
	for i, r := range ans.Sources {
		formatPassage(&sb, i+1, r)
	}
	return sb.String()
}

// FormatStatus formats index status as a markdown list.
func FormatStatus(st IndexStatusOutput) string {
	var sb strings.Builder
	sb.WriteString("## Index Status\n\n")
	fmt.Fprintf(&sb, "- **Collection:** %s\n", st.Collection)
	fmt.Fprintf(&sb, "- **Chunks:** %d\n", st.Records)
	fmt.Fprintf(&sb, "- **Documents:** %d\n", st.LedgerFiles)
	fmt.Fprintf(&sb, "- **Embedding model:** %s\n", st.EmbedModel)
	if st.LLMModel != "" {
		fmt.Fprintf(&sb, "- **Language model:** %s\n", st.LLMModel)
	}
	fmt.Fprintf(&sb, "- **Top K:** %d\n", st.TopK)
	if st.Indexing {
		sb.WriteString("\nA rebuild is in progress; results may not include the newest documents yet.\n")
	}
	return sb.String()
}

func formatPassage(sb *strings.Builder, num int, r index.Result) {
	fmt.Fprintf(sb, "### %d. %s #%d (score: %.2f)\n\n", num, r.Source, r.Seq, r.Score)
	for _, line := range strings.Split(strings.TrimSpace(r.Text), "\n") {
		sb.WriteString("> ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}
