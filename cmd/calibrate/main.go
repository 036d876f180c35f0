package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/forage/config"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	target := flag.Float64("target", 0.9, "Target probability of surviving to the horizon")
	state := flag.Int("state", 0, "Reserve at t=0 the target applies to (0 = forward.init_state)")
	fieldList := flag.String("fields", FieldProbFood, "Comma-separated patch fields to tune (prob_food, prob_pred)")
	fixList := flag.String("fix", "0", "Comma-separated patch indices to hold fixed")
	anchor := flag.Float64("anchor", 0.01, "Weight pulling parameters towards the base config")
	maxEvals := flag.Int("max-evals", 400, "Maximum number of evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if *outputDir == "" {
		log.Fatal("--output is required")
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	if err := config.Init(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	baseCfg := config.Cfg()

	if *state == 0 {
		*state = baseCfg.Forward.InitState
	}
	fixed, err := parseIndices(*fixList)
	if err != nil {
		log.Fatalf("bad -fix: %v", err)
	}

	params, err := NewParamVector(baseCfg, strings.Split(*fieldList, ","), fixed)
	if err != nil {
		log.Fatalf("bad parameters: %v", err)
	}
	objective, err := NewObjective(params, baseCfg, *state, *target, *anchor)
	if err != nil {
		log.Fatalf("bad objective: %v", err)
	}

	dim := params.Dim()
	start := params.Defaults()

	baseSurvival, err := objective.Survival(start)
	if err != nil {
		log.Fatalf("base config does not run: %v", err)
	}

	logFile, err := os.Create(filepath.Join(*outputDir, "calibrate_log.csv"))
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()

	logWriter := csv.NewWriter(logFile)
	defer logWriter.Flush()

	header := []string{"eval", "objective", "survival"}
	for _, spec := range params.Specs {
		header = append(header, spec.Name)
	}
	logWriter.Write(header)

	evalCount := 0
	bestObjective := math.Inf(1)
	var bestParams []float64
	startTime := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			raw := params.Clamp(x)
			value := objective.Evaluate(raw)
			evalCount++

			if value < bestObjective {
				bestObjective = value
				bestParams = raw
			}

			row := []string{strconv.Itoa(evalCount), fmt.Sprintf("%.8f", value), fmt.Sprintf("%.6f", objective.LastSurvival())}
			for _, v := range raw {
				row = append(row, fmt.Sprintf("%.6f", v))
			}
			logWriter.Write(row)
			return value
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      0,
	}

	popSize := *population
	if popSize == 0 {
		popSize = 4 + int(3*math.Log(float64(dim)))
	}
	method := &optimize.CmaEsChol{
		InitStepSize: 0.2,
		Population:   popSize,
	}

	fmt.Printf("Calibrating %d parameters for survival %.3f at state %d (base config gives %.3f)\n",
		dim, *target, *state, baseSurvival)

	result, err := optimize.Minimize(problem, start, settings, method)
	if err != nil {
		log.Printf("optimization ended: %v", err)
	}
	if bestParams == nil && result != nil {
		bestParams = params.Clamp(result.X)
	}
	if bestParams == nil {
		log.Fatal("no evaluations completed")
	}

	bestSurvival, err := objective.Survival(bestParams)
	if err != nil {
		log.Fatalf("best parameters do not run: %v", err)
	}

	fmt.Printf("\nCalibration complete after %d evaluations in %s\n", evalCount, time.Since(startTime).Round(time.Millisecond))
	fmt.Printf("Survival: %.6f (target %.6f)\n", bestSurvival, *target)
	fmt.Println("\nBest parameters:")
	for i, spec := range params.Specs {
		fmt.Printf("  %s: %.6f (was %.6f)\n", spec.Name, bestParams[i], spec.Default)
	}

	bestCfg, err := baseCfg.Clone()
	if err != nil {
		log.Fatalf("failed to copy config: %v", err)
	}
	if err := params.ApplyToConfig(bestCfg, bestParams); err != nil {
		log.Fatalf("failed to apply best parameters: %v", err)
	}
	configOutPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		log.Printf("failed to write best config: %v", err)
	} else {
		fmt.Printf("\nBest config saved to: %s\n", configOutPath)
	}
}

// parseIndices parses a comma-separated list of patch indices.
func parseIndices(s string) (map[int]bool, error) {
	out := make(map[int]bool)
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		i, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out[i] = true
	}
	return out, nil
}
