// Command ingest loads PDF files or URLs into the document store from the
// command line, without going through the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"

	"docgraph/internal/models"
	"docgraph/pkg/chunker"
	"docgraph/pkg/classify"
	"docgraph/pkg/config"
	"docgraph/pkg/ingest"
	"docgraph/pkg/llm"
	"docgraph/pkg/logx"
	"docgraph/pkg/ontology"
	"docgraph/pkg/registry"
	"docgraph/pkg/scrape"
	"docgraph/pkg/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <file.pdf|directory|url> ...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*configPath, *debug, flag.Args()); err != nil {
		color.Red("ingest: %v", err)
		os.Exit(1)
	}
}

func run(configPath string, debug bool, args []string) error {
	godotenv.Load()

	if debug {
		logx.SetDebug(true, nil)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %s", e.Error())
		}
		return fmt.Errorf("invalid configuration (%d errors)", len(errs))
	}

	ctx := context.Background()

	ont, err := ontology.NewManager(cfg.Ontology.BasePath)
	if err != nil {
		return err
	}
	model, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		return err
	}
	chunks, err := store.New(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer chunks.Close()

	docs, err := registry.Open(cfg.Registry.Path)
	if err != nil {
		return err
	}
	defer docs.Close()

	pipeline := ingest.NewPipeline(
		classify.New(model, ont),
		chunker.New(cfg.Chunker, ont),
		model, chunks, docs,
		scrape.New(cfg.Ingest),
	)

	targets, err := expandTargets(args)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return fmt.Errorf("no PDF files or URLs to ingest")
	}

	bar := progressbar.NewOptions(len(targets),
		progressbar.OptionSetDescription("ingesting"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	var failures int
	for _, target := range targets {
		resp, err := ingestOne(ctx, pipeline, target)
		bar.Add(1)
		if err != nil {
			failures++
			color.Red("✗ %s: %v", target, err)
			continue
		}
		color.Green("✓ %s: %s/%s, %d chunks (id %s)",
			resp.Filename, resp.Classification.Domain,
			resp.Classification.DocumentType, resp.ChunksCreated, resp.DocumentID)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d targets failed", failures, len(targets))
	}
	color.Green("ingested %d documents", len(targets))
	return nil
}

func ingestOne(ctx context.Context, pipeline *ingest.Pipeline, target string) (*models.UploadResponse, error) {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return pipeline.IngestURL(ctx, target)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return nil, err
	}
	return pipeline.IngestPDF(ctx, filepath.Base(target), data)
}

// expandTargets resolves directories to the PDF files inside them; files and
// URLs pass through.
func expandTargets(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
			out = append(out, arg)
			continue
		}

		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}

		matches, err := filepath.Glob(filepath.Join(arg, "*.pdf"))
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)
	}
	return out, nil
}
