package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/tidewater/bmc/internal/config"
	"github.com/tidewater/bmc/internal/evals"
	"github.com/tidewater/bmc/internal/extractor"
	"github.com/tidewater/bmc/internal/provider"
	"go.uber.org/zap"
)

func main() {
	cfgPath := flag.String("config", "configs/bmc.json", "config file path")
	casesPath := flag.String("cases", "internal/evals/testdata/memory_cases.json", "labeled cases file")
	useJudge := flag.Bool("judge", false, "score with the LLM judge in addition to fact overlap")
	timeout := flag.Duration("timeout", 90*time.Second, "per-case timeout")
	flag.Parse()

	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fatal("load config: %v", err)
	}

	router := provider.NewRouter(logger)
	for _, pc := range cfg.Providers {
		provCfg := provider.Config{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey,
			Extra: pc.Extra,
		}
		switch pc.Type {
		case "openai":
			router.Register(provider.NewOpenAIProvider(provCfg, logger))
		case "anthropic":
			router.Register(provider.NewAnthropicProvider(provCfg, logger))
		}
	}
	if cfg.Roles.Extractor.Provider != "" {
		router.Bind(provider.RoleExtractor, cfg.Roles.Extractor.Provider)
	}
	if cfg.Roles.Judge.Provider != "" {
		router.Bind(provider.RoleJudge, cfg.Roles.Judge.Provider)
	}

	cases, err := evals.LoadCases(*casesPath)
	if err != nil {
		fatal("load cases: %v", err)
	}
	fmt.Printf("Running %d extraction cases from %s\n", len(cases), *casesPath)

	ex := extractor.New(router, cfg.Roles.Extractor.Model, logger)
	var judge *evals.Judge
	if *useJudge {
		judge = evals.NewJudge(router, cfg.Roles.Judge.Model, logger)
	}

	var sumP, sumR, sumF float64
	failures := 0
	for _, c := range cases {
		fmt.Printf("\n=== %s: %s\n", c.ID, c.Description)

		existing, err := c.Existing()
		if err != nil {
			fmt.Printf("  SKIP: bad existing memory: %v\n", err)
			failures++
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		res, err := ex.Extract(ctx, existing, c.Conversation)
		if err != nil {
			cancel()
			fmt.Printf("  FAIL: extraction error: %v\n", err)
			failures++
			continue
		}

		m := evals.FactOverlap(c.ExpectedFacts, res.Updated)
		sumP += m.Precision
		sumR += m.Recall
		sumF += m.F1
		fmt.Printf("  overlap: precision=%.2f recall=%.2f f1=%.2f (tp=%d fp=%d fn=%d)\n",
			m.Precision, m.Recall, m.F1, m.TP, m.FP, m.FN)
		if m.Recall < 1.0 {
			fmt.Printf("  expected: %v\n", c.ExpectedFacts)
			fmt.Printf("  extracted: %v\n", evals.FlattenFacts(res.Updated))
		}

		if judge != nil {
			existingJSON, _ := json.Marshal(existing)
			extractedJSON, _ := json.Marshal(res.Updated)
			verdict, jErr := judge.Evaluate(ctx, c.Conversation, string(existingJSON), string(extractedJSON))
			if jErr != nil {
				fmt.Printf("  judge: error: %v\n", jErr)
			} else {
				jm := verdict.Metrics()
				fmt.Printf("  judge: precision=%.2f recall=%.2f f1=%.2f\n", jm.Precision, jm.Recall, jm.F1)
				for _, miss := range verdict.MissedFacts {
					fmt.Printf("  judge missed: %s\n", miss)
				}
				for _, hall := range verdict.HallucinatedFacts {
					fmt.Printf("  judge hallucinated: %s\n", hall)
				}
			}
		}
		cancel()
	}

	scored := len(cases) - failures
	if scored > 0 {
		fmt.Printf("\n=== Summary: %d/%d cases scored\n", scored, len(cases))
		fmt.Printf("  mean precision=%.2f recall=%.2f f1=%.2f\n",
			sumP/float64(scored), sumR/float64(scored), sumF/float64(scored))
	}
	if failures > 0 {
		os.Exit(1)
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
