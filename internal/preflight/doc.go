// Package preflight backs `curia doctor`: it checks the data and database
// directories, pdftotext and the Ollama models before a build.
//
//	checker := preflight.New(preflight.WithOllama(client, "all-minilm:l6-v2", "initium/law_model"))
//	report := checker.RunAll(ctx, preflight.Paths{DataDir: "data/raw", DBDir: "data/databases"})
//	report.Print(os.Stdout, false)
//	if report.Failed() {
//	    // exit non-zero
//	}
package preflight
