// kairos-cli drives the KAIROS engine directly from the command line,
// without going through kairosd's HTTP surface.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/kairos-dev/kairos/internal/config"
	"github.com/kairos-dev/kairos/internal/embedding"
	"github.com/kairos-dev/kairos/internal/engine"
	"github.com/kairos-dev/kairos/internal/kv"
	"github.com/kairos-dev/kairos/internal/memory"
	"github.com/kairos-dev/kairos/internal/proof"
	"github.com/kairos-dev/kairos/internal/proofengine"
	"github.com/kairos-dev/kairos/internal/proofstore"
	"github.com/kairos-dev/kairos/internal/vectorstore"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: kairos-cli [-config-dir DIR] <search|begin|next|attest|mint|update|delete> [-h for subcommand flags]")
	flag.PrintDefaults()
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	space := flag.String("space", "", "Space id to operate in (defaults to DEFAULT_SPACE_ID)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}
	command := flag.Arg(0)
	args := flag.Args()[1:]

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: could not load %s: %v", envPath, err)
	}

	ctx := context.Background()
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}
	eng, err := buildEngine(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}

	if err := dispatch(ctx, eng, command, args, *space); err != nil {
		log.Fatalf("%s: %v", command, err)
	}
}

func buildEngine(ctx context.Context, cfg *config.Config) (*engine.Engine, error) {
	vs, err := vectorstore.NewQdrantStore(cfg.VectorStore.URL, cfg.VectorStore.Collection, cfg.VectorStore.APIKey)
	if err != nil {
		return nil, fmt.Errorf("connect to vector store: %w", err)
	}
	if err := vs.EnsureCollection(ctx, cfg.Embedding.Dim); err != nil {
		return nil, fmt.Errorf("ensure vector collection: %w", err)
	}
	embedder := embedding.NewHTTPClient(cfg.Embedding.URL, cfg.Embedding.Model, cfg.Embedding.Dim)
	kvStore, err := kv.NewRedisStore(cfg.KV.URL, cfg.KV.Prefix)
	if err != nil {
		return nil, fmt.Errorf("connect to key/value store: %w", err)
	}

	mem := memory.New(vs, embedder, kvStore)
	proofStore := proofstore.New(kvStore, int64(config.ProofTTL.Seconds()))
	proofEngine := proofengine.New(proofStore, embedder, cfg.CommentSemanticThreshold, int64(cfg.MaxRetries))
	return engine.New(mem, proofEngine, proofStore, cfg), nil
}

func dispatch(ctx context.Context, eng *engine.Engine, command string, args []string, space string) error {
	switch command {
	case "search":
		fs := flag.NewFlagSet("search", flag.ExitOnError)
		query := fs.String("query", "", "natural language query")
		fs.Parse(args)
		resp, err := eng.Search(ctx, *query, space)
		return printJSON(resp, err)

	case "begin":
		fs := flag.NewFlagSet("begin", flag.ExitOnError)
		uri := fs.String("uri", "", "kairos://mem/<uuid> to begin")
		fs.Parse(args)
		resp, err := eng.Begin(ctx, *uri, space)
		return printJSON(resp, err)

	case "next":
		fs := flag.NewFlagSet("next", flag.ExitOnError)
		uri := fs.String("uri", "", "kairos://mem/<uuid> of the current step")
		solutionFile := fs.String("solution", "", "path to a JSON-encoded proof.Solution, or - for stdin")
		fs.Parse(args)
		solution, err := readSolution(*solutionFile)
		if err != nil {
			return err
		}
		resp, err := eng.Next(ctx, *uri, solution, space)
		return printJSON(resp, err)

	case "attest":
		fs := flag.NewFlagSet("attest", flag.ExitOnError)
		uri := fs.String("uri", "", "kairos://mem/<uuid> to rate")
		outcome := fs.String("outcome", "", "success or failure")
		message := fs.String("message", "", "usage context")
		modelID := fs.String("model-id", "", "rating agent's model id")
		fs.Parse(args)
		resp, err := eng.Attest(ctx, *uri, *outcome, *message, nil, *modelID, space)
		return printJSON(resp, err)

	case "mint":
		fs := flag.NewFlagSet("mint", flag.ExitOnError)
		file := fs.String("file", "-", "markdown file to mint, or - for stdin")
		modelID := fs.String("model-id", "", "authoring agent's model id")
		force := fs.Bool("force-update", false, "replace an existing chain with the same label")
		fs.Parse(args)
		markdown, err := readFile(*file)
		if err != nil {
			return err
		}
		resp, err := eng.Mint(ctx, markdown, *modelID, *force, space)
		return printJSON(resp, err)

	case "update":
		fs := flag.NewFlagSet("update", flag.ExitOnError)
		uri := fs.String("uri", "", "kairos://mem/<uuid> to update")
		label := fs.String("label", "", "new label (empty to leave unchanged)")
		text := fs.String("text", "", "new body text (empty to leave unchanged)")
		fs.Parse(args)
		item := engine.UpdateItem{URI: *uri}
		if *label != "" {
			item.Label = label
		}
		if *text != "" {
			item.Text = text
		}
		resp, err := eng.Update(ctx, []engine.UpdateItem{item}, space)
		return printJSON(resp, err)

	case "delete":
		fs := flag.NewFlagSet("delete", flag.ExitOnError)
		uris := fs.String("uris", "", "comma-separated kairos://mem/<uuid> list")
		fs.Parse(args)
		resp, err := eng.Delete(ctx, strings.Split(*uris, ","), space)
		return printJSON(resp, err)

	default:
		usage()
		os.Exit(2)
		return nil
	}
}

func readFile(path string) (string, error) {
	if path == "-" {
		data, err := os.ReadFile("/dev/stdin")
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

func readSolution(path string) (*proof.Solution, error) {
	if path == "" {
		return nil, nil
	}
	data, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("read solution: %w", err)
	}
	var solution proof.Solution
	if err := json.Unmarshal([]byte(data), &solution); err != nil {
		return nil, fmt.Errorf("parse solution: %w", err)
	}
	return &solution, nil
}

func printJSON(resp any, err error) error {
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
