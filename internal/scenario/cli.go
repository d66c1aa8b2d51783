package scenario

import (
	"os"
	"strings"
)

// ParseNames splits a comma separated scenario list, dropping blanks.
func ParseNames(csv string) []string {
	var names []string
	for _, n := range strings.Split(csv, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// ShowHelp prints usage information for the scenario tool.
func ShowHelp() {
	var b strings.Builder
	b.WriteString(`Coachmatch Scenario Runner
==========================

Plays client and trainer journeys against a running coachmatch server and
checks the stage every pair ends in.

Usage:
  go run ./cmd/scenarios [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -rounds int
        Times each scenario runs, each with a fresh client (default 10)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 10s)
  -journey-wait duration
        How long to wait for journey projection (default 5s)
  -only string
        Comma separated scenario names (default: all)
  -verbose
        Log every passing run
  -help
        Show this help message

Scenarios:
`)
	for _, s := range All() {
		b.WriteString("  " + s.Name + "\n")
	}
	b.WriteString(`
Examples:
  go run ./cmd/scenarios -rounds 100 -workers 16
  go run ./cmd/scenarios -only shortlist_capacity,redelivery -verbose
`)
	_, _ = os.Stdout.WriteString(b.String())
}
