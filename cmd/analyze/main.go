// Command analyze runs a one-shot analysis for a ticker and prints the
// result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"marketflow/internal/engine"
	"marketflow/internal/logging"
	"marketflow/internal/marketdata"
	"marketflow/internal/params"
)

func main() {
	ticker := flag.String("ticker", "", "ticker symbol to analyze (required)")
	timeframes := flag.String("timeframes", "", "comma-separated interval:period pairs, e.g. 1d:60d,1h:30d")
	paramsFile := flag.String("params", "", "path to an analysis parameters JSON file")
	apiKey := flag.String("api-key", os.Getenv("POLYGON_API_KEY"), "Polygon API key")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall analysis timeout")
	signalsOnly := flag.Bool("signals-only", false, "print only the signal summary")
	flag.Parse()

	if *ticker == "" {
		fmt.Fprintln(os.Stderr, "usage: analyze -ticker SYMBOL [-timeframes 1d:60d,...] [-params file.json]")
		os.Exit(2)
	}

	logger := logging.New(&logging.Config{Level: "WARN", Output: "stderr", Component: "analyze", JSONFormat: false})
	logging.SetDefault(logger)

	analysisParams, err := loadParams(*paramsFile)
	if err != nil {
		fatal("invalid parameters: %v", err)
	}

	tfs, err := parseTimeframes(*timeframes)
	if err != nil {
		fatal("invalid timeframes: %v", err)
	}

	provider := marketdata.NewPolygonProvider(*apiKey, logger)
	facade := engine.NewFacade(analysisParams, provider, nil, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var output interface{}
	if *signalsOnly {
		output, err = facade.GetSignals(ctx, *ticker, tfs)
	} else {
		output, err = facade.AnalyzeTicker(ctx, *ticker, tfs)
	}
	if err != nil {
		fatal("analysis failed: %v", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		fatal("failed to encode result: %v", err)
	}
}

func loadParams(path string) (*params.Parameters, error) {
	if path != "" {
		return params.LoadFile(path)
	}
	return params.New(nil)
}

// parseTimeframes parses "1d:60d,1h:30d" into timeframe structs. An empty
// input selects the configured defaults.
func parseTimeframes(s string) ([]marketdata.Timeframe, error) {
	if s == "" {
		return nil, nil
	}
	var tfs []marketdata.Timeframe
	for _, pair := range strings.Split(s, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("malformed timeframe %q, want interval:period", pair)
		}
		tfs = append(tfs, marketdata.Timeframe{Interval: parts[0], Period: parts[1]})
	}
	return tfs, nil
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
