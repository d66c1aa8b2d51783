package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/coachmatch/internal/scenario"
	"github.com/okian/coachmatch/pkg/logger"
)

const (
	defaultRounds      = 10
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 10 * time.Second
	defaultJourneyWait = 5 * time.Second
	defaultRunTimeout  = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		rounds      = flag.Int("rounds", defaultRounds, "Times each scenario runs, each with a fresh client")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		journeyWait = flag.Duration("journey-wait", defaultJourneyWait, "How long to wait for journey projection")
		only        = flag.String("only", "", "Comma separated scenario names")
		verbose     = flag.Bool("verbose", false, "Log every passing run")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		scenario.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	_, err := scenario.Run(ctx, &scenario.Config{
		BaseURL:     *baseURL,
		Rounds:      *rounds,
		Workers:     *workers,
		Timeout:     *timeout,
		JourneyWait: *journeyWait,
		Only:        scenario.ParseNames(*only),
		Verbose:     *verbose,
	})
	if err != nil {
		os.Stderr.WriteString("scenario run failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
