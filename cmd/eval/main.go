// Command eval runs the golden dataset against a live vexora engine and
// reports retrieval/generation metrics: a timestamped run directory, a
// JSON report alongside a human-readable summary table, and a
// non-zero exit on any uncaught failure.
//
// Usage:
//
//	go run ./cmd/eval --env .env --label nightly --evaluate-generation
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	vexora "github.com/PeterKuehne/vexora-sub003"
	"github.com/PeterKuehne/vexora-sub003/adapters/relstore"
	"github.com/PeterKuehne/vexora-sub003/eval"
)

func main() {
	os.Exit(run())
}

func run() int {
	envPath := flag.String("env", "", "Path to a .env file to load before reading environment variables")
	label := flag.String("label", "", "Label to record against this run")
	evaluateGeneration := flag.Bool("evaluate-generation", true, "Score groundedness/relevance/key-facts coverage of each generated answer with word-overlap heuristics")
	outputFile := flag.String("output", "", "Path to also write the JSON report (default: inside the run directory only)")
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	if *envPath != "" {
		if err := godotenv.Load(*envPath); err != nil {
			log.Warn().Err(err).Str("path", *envPath).Msg("could not load env file, continuing with existing environment")
		}
	}

	runDir := createRunDir()
	log.Info().Str("dir", runDir).Msg("run directory")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	cfg := vexora.LoadConfig()
	engine, err := vexora.New(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("creating engine")
		return 1
	}
	defer engine.Close()

	store := eval.NewStore(engine.Pool())
	queries, err := store.LoadGoldenQueries(ctx)
	if err != nil {
		log.Error().Err(err).Msg("loading golden dataset")
		return 1
	}
	if len(queries) == 0 {
		log.Error().Msg("golden dataset is empty, nothing to evaluate")
		return 1
	}
	log.Info().Int("count", len(queries)).Msg("loaded golden queries")

	runner := eval.NewRunner(vexora.EvalPipeline{Engine: engine}, store)
	runLabel := *label
	if runLabel == "" {
		runLabel = time.Now().UTC().Format(time.RFC3339)
	}

	result, err := runner.Run(ctx, queries, eval.RunOptions{
		Label:              runLabel,
		PrivilegedIdentity: relstore.UserContext{UserID: "eval-harness", Role: "admin"},
		EvaluateGeneration: *evaluateGeneration,
	})
	if err != nil {
		log.Error().Err(err).Msg("evaluation run failed")
		if result != nil {
			writeJSON(filepath.Join(runDir, "eval-report.json"), result)
		}
		return 1
	}

	reportPath := filepath.Join(runDir, "eval-report.json")
	writeJSON(reportPath, result)
	log.Info().Str("path", reportPath).Msg("report written")
	if *outputFile != "" {
		writeJSON(*outputFile, result)
	}

	printSummary(result)
	return 0
}

func createRunDir() string {
	ts := time.Now().UTC().Format("2006-01-02_15-04-05")
	dir := filepath.Join("evals", "runs", ts)
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Fatal().Err(err).Msg("creating run directory")
	}
	return dir
}

func writeJSON(path string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("marshaling report")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("writing report")
	}
}

func printSummary(run *eval.EvaluationRun) {
	fmt.Println("=== Evaluation Summary ===")
	fmt.Printf("  run:    %s\n", run.ID)
	fmt.Printf("  label:  %s\n", run.Label)
	fmt.Printf("  status: %s\n", run.Status)
	fmt.Println()
	fmt.Printf("  %-20s P@1     P@5     R@20    MRR     Grounded  Latency\n", "category")
	for cat, m := range run.CategoryMetrics {
		fmt.Printf("  %-20s %.3f   %.3f   %.3f   %.3f   %.3f     %.0fms\n",
			cat, m.PrecisionAtK[1], m.PrecisionAtK[5], m.RecallAtK[20], m.MRR, m.Groundedness, m.LatencyMs)
	}
	fmt.Println()
	overall := run.Aggregate
	fmt.Printf("  %-20s %.3f   %.3f   %.3f   %.3f   %.3f     %.0fms\n",
		"TOTAL", overall.PrecisionAtK[1], overall.PrecisionAtK[5], overall.RecallAtK[20], overall.MRR, overall.Groundedness, overall.LatencyMs)

	errCount := 0
	for _, r := range run.Results {
		if r.Error != "" {
			errCount++
		}
	}
	if errCount > 0 {
		fmt.Printf("\n  %d/%d queries errored\n", errCount, len(run.Results))
	}
}
