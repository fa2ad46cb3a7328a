// Command extract runs the invoice extraction on a local PDF and
// prints the structured result, without touching the database. Useful
// for checking the prompt against a new invoice layout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/mcardoso/agronota/internal/config"
	"github.com/mcardoso/agronota/internal/extract"
	"github.com/mcardoso/agronota/internal/gemini"
	"github.com/mcardoso/agronota/internal/logger"
)

func main() {
	pdfPath := flag.String("pdf", "", "Path to the invoice PDF")
	flag.Parse()

	log := logger.New()
	if *pdfPath == "" {
		log.Fatal().Msg("Usage: extract -pdf <file.pdf>")
	}

	cfg := config.Load()
	if !cfg.HasGeminiKey() {
		log.Fatal().Msg("GEMINI_API_KEY is required")
	}

	pdf, err := os.ReadFile(*pdfPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *pdfPath).Msg("Failed to read PDF")
	}

	client := gemini.NewClient(cfg, log)
	extractor := extract.New(client, gemini.NewInvoker(log), log)

	invoice, err := extractor.ExtractPDF(context.Background(), pdf)
	if err != nil {
		log.Fatal().Err(err).Msg("Extraction failed")
	}

	out, err := json.MarshalIndent(invoice, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode result")
	}
	fmt.Println(string(out))
}
