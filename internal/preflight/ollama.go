package preflight

import (
	"context"
	"fmt"

	"github.com/curia-rag/curia/internal/ollama"
)

// CheckOllama checks that the Ollama host answers and that the configured
// models are installed. The embedding model is required; the language model
// only blocks query and chat.
func (c *Checker) CheckOllama(ctx context.Context) []CheckResult {
	reach := CheckResult{
		Name:     "ollama",
		Required: true,
		Details:  c.models.Host(),
	}

	ctx, cancel := context.WithTimeout(ctx, ollama.ConnectTimeout)
	defer cancel()

	models, err := c.models.ListModels(ctx)
	if err != nil {
		reach.Status = StatusFail
		reach.Message = fmt.Sprintf("not reachable at %s", c.models.Host())
		reach.Details = err.Error()
		return []CheckResult{reach}
	}
	reach.Status = StatusPass
	reach.Message = fmt.Sprintf("%d model(s) installed", len(models))

	results := []CheckResult{reach, checkModel("embed_model", models, c.embedModel, true)}
	if c.llmModel != "" {
		results = append(results, checkModel("llm", models, c.llmModel, false))
	}
	return results
}

func checkModel(check string, models []ollama.ModelInfo, name string, required bool) CheckResult {
	result := CheckResult{
		Name:     check,
		Required: required,
	}

	actual, ok := ollama.MatchModel(models, name)
	if !ok {
		result.Status = StatusFail
		if !required {
			result.Status = StatusWarn
		}
		result.Message = fmt.Sprintf("%s is not installed", name)
		result.Details = fmt.Sprintf("run: ollama pull %s", name)
		return result
	}

	result.Status = StatusPass
	result.Message = actual
	return result
}
