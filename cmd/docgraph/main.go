// Command docgraph runs the document intelligence API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"docgraph/pkg/agent"
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
	"docgraph/server"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	addr := flag.String("addr", "", "listen address override")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if err := run(*configPath, *addr, *debug); err != nil {
		color.Red("docgraph: %v", err)
		os.Exit(1)
	}
}

func run(configPath, addr string, debug bool) error {
	godotenv.Load()

	if debug {
		logx.SetDebug(true, nil)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %s", e.Error())
		}
		return fmt.Errorf("invalid configuration (%d errors)", len(errs))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	queryAgent, err := agent.NewQueryAgent(model, chunks, docs, ont, cfg.Agent)
	if err != nil {
		return err
	}
	comparisonAgent, err := agent.NewComparisonAgent(model, chunks, docs, ont, cfg.Agent)
	if err != nil {
		return err
	}

	srv := server.New(cfg.Server, pipeline, queryAgent, comparisonAgent, docs, chunks, ont)
	return srv.Run(ctx)
}
