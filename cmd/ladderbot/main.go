package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"ladderbot/internal/bootstrap"
	"ladderbot/internal/config"
)

var (
	// Version information (set via build flags)
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file (empty runs on defaults)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config path] [sim|live]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("ladderbot version %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	mode, err := modeFromArgs(flag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	app, err := bootstrap.NewApp(*configPath, mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}

	app.Logger.Info("Starting ladderbot", "version", version, "config", *configPath)
	if err := app.Run(); err != nil {
		os.Exit(1)
	}
}

// modeFromArgs reads the optional positional mode token.
func modeFromArgs(args []string) (string, error) {
	switch len(args) {
	case 0:
		return "", nil
	case 1:
		mode := strings.ToLower(args[0])
		if mode != config.ModeSim && mode != config.ModeLive {
			return "", fmt.Errorf("unknown mode %q", args[0])
		}
		return mode, nil
	default:
		return "", fmt.Errorf("expected at most one mode argument, got %d", len(args))
	}
}
