package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"dcf_engine/pkg/core/config"
	"dcf_engine/pkg/core/ingest"
	"dcf_engine/pkg/core/llm"
	"dcf_engine/pkg/core/pipeline"
	"dcf_engine/pkg/core/store"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, assuming environment variables are set.")
	}

	var (
		configPath = flag.String("config", "", "path to a YAML config file (built-in defaults when empty)")
		ticker     = flag.String("ticker", "", "override the company ticker")
		offline    = flag.String("offline", "", "run from a saved snapshot JSON instead of Yahoo Finance")
		override   = flag.String("override", "", "corrected-data file applied over the acquired statements")
		noRender   = flag.Bool("no-render", false, "skip workbook and report rendering")
		save       = flag.Bool("save", false, "persist the run to Postgres (DATABASE_URL)")
		narrate    = flag.Bool("narrate", true, "generate the analyst narrative when GEMINI_API_KEY is set")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config %s: %v", *configPath, err)
		}
		cfg = loaded
	}
	cfg.ApplyEnv()
	if *ticker != "" {
		cfg.Company.Ticker = *ticker
	}

	fmt.Printf("🚀 DCF Valuation Engine starting for %s...\n", cfg.Company.Ticker)

	var source ingest.DataSource
	if *offline != "" {
		fmt.Printf("📂 Offline mode: replaying %s\n", *offline)
		source = ingest.NewFileSource(*offline, "")
	} else {
		source = ingest.NewYahooClient()
	}

	var opts []pipeline.Option
	if *override != "" {
		cs, err := ingest.LoadCorrections(*override)
		if err != nil {
			log.Fatalf("Failed to load corrections %s: %v", *override, err)
		}
		opts = append(opts, pipeline.WithCorrections(cs))
	}
	if *offline == "" {
		// Online runs leave a snapshot behind so they can be replayed.
		opts = append(opts, pipeline.WithSnapshotSaver(store.NewSnapshotCache(cfg.Paths.RawDir)))
	}
	if *noRender {
		opts = append(opts, pipeline.WithoutRender())
	}

	ctx := context.Background()
	if *save {
		if err := store.InitDB(ctx); err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer store.Close()
		opts = append(opts, pipeline.WithRunStore(store.NewRunRepo()))
	}
	if *narrate {
		if p := llm.FromEnv(cfg.Narrative.Model); p != nil {
			opts = append(opts, pipeline.WithNarrator(p))
		} else {
			fmt.Println("GEMINI_API_KEY not set, skipping the analyst narrative")
		}
	}

	runner := pipeline.New(cfg, source, opts...)
	art, err := runner.Run(ctx)
	if err != nil {
		log.Fatalf("Pipeline failed: %v", err)
	}

	if art.Audit != nil && !art.Audit.Passed {
		fmt.Fprintf(os.Stderr, "Audit failed with %d error(s); see %s\n", art.Audit.ErrorCount, art.MarkdownPath)
		os.Exit(1)
	}
}
