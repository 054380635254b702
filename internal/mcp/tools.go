package mcp

import "github.com/curia-rag/curia/internal/index"

// RetrieveInput defines the input schema for the retrieve tool.
type RetrieveInput struct {
	Query string `json:"query" jsonschema:"the text to find similar passages for"`
}

// RetrieveOutput defines the output schema for the retrieve tool.
type RetrieveOutput struct {
	Results []PassageOutput `json:"results" jsonschema:"passages ordered from most to least similar"`
}

// PassageOutput is one retrieved chunk.
type PassageOutput struct {
	Source string  `json:"source" jsonschema:"document file name the passage comes from"`
	Seq    int     `json:"seq" jsonschema:"position of the passage within its document, starting at 0"`
	Text   string  `json:"text" jsonschema:"passage text"`
	Score  float32 `json:"score" jsonschema:"cosine similarity to the query"`
}

// QueryInput defines the input schema for the query tool.
type QueryInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the indexed documents"`
}

// QueryOutput defines the output schema for the query tool.
type QueryOutput struct {
	Answer  string          `json:"answer" jsonschema:"the generated answer"`
	Sources []PassageOutput `json:"sources" jsonschema:"passages the answer was grounded on"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	Collection  string `json:"collection" jsonschema:"vector collection name"`
	Records     int    `json:"records" jsonschema:"number of stored chunks"`
	LedgerFiles int    `json:"ledger_files" jsonschema:"number of documents recorded as indexed"`
	EmbedModel  string `json:"embed_model" jsonschema:"embedding model name"`
	LLMModel    string `json:"llm_model,omitempty" jsonschema:"language model used by the query tool"`
	TopK        int    `json:"top_k" jsonschema:"passages retrieved per query"`

	// Indexing is true while a background rebuild is running under `curia serve --watch`.
	Indexing bool `json:"indexing"`
}

func toStatusOutput(st *index.Status, indexing bool) IndexStatusOutput {
	return IndexStatusOutput{
		Collection:  st.Collection,
		Records:     st.Records,
		LedgerFiles: st.LedgerFiles,
		EmbedModel:  st.EmbedModel,
		LLMModel:    st.LLMModel,
		TopK:        st.TopK,
		Indexing:    indexing,
	}
}

func toPassages(results []index.Result) []PassageOutput {
	out := make([]PassageOutput, len(results))
	for i, r := range results {
		out[i] = PassageOutput{Source: r.Source, Seq: r.Seq, Text: r.Text, Score: r.Score}
	}
	return out
}
