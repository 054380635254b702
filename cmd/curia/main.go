// Package main provides the entry point for the curia CLI.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/curia-rag/curia/cmd/curia/cmd"
)

func main() {
	// A missing .env is normal.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
