package index

import (
	"fmt"
	"strings"
)

const qaTemplate = `Context information is below.
---------------------
%s
---------------------
Given the context information and not prior knowledge, answer the query.
Query: %s
Answer: `

// BuildPrompt formats retrieved chunks and the question into the prompt sent
// to the language model. Each chunk is preceded by its source file.
func BuildPrompt(question string, results []Result) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, fmt.Sprintf("%s: %s\n\n%s", MetaSource, r.Source, r.Text))
	}
	return fmt.Sprintf(qaTemplate, strings.Join(blocks, "\n\n"), strings.TrimSpace(question))
}
