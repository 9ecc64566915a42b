package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/maemo32/awgserver/config"
	"github.com/maemo32/awgserver/lifecycle"
	"github.com/maemo32/awgserver/logging"
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - AWG frame-list player and peripheral control server.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: awgserverd [options]\n")
		pflag.PrintDefaults()
	}

	var help = pflag.BoolP("help", "h", false, "Display help text.")
	defaults := config.Defaults()
	flags := config.BindFlags(pflag.CommandLine, defaults)
	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(1)
	}

	cfg := defaults
	if flags.ConfigFile != "" {
		if err := config.LoadYAML(&cfg, flags.ConfigFile); err != nil {
			fmt.Fprintf(os.Stderr, "awgserverd: %v\n", err)
			os.Exit(1)
		}
	}
	flags.Apply(&cfg)
	cfg.Normalize()

	var logWriter *os.File = os.Stderr
	if cfg.LogPattern != "" {
		name, err := logging.LogFilePath(cfg.LogPattern)
		if err != nil {
			fmt.Fprintf(os.Stderr, "awgserverd: log file pattern: %v\n", err)
			os.Exit(1)
		}
		path := name
		if cfg.LogDir != "" {
			path = filepath.Join(cfg.LogDir, name)
		}
		f, err := logging.OpenLogFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "awgserverd: open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logWriter = f
	}
	logger := logging.New(logWriter, cfg.LogLevel)

	backend, err := lifecycle.NewBackend(cfg)
	if err != nil {
		logger.Errorf("awgserverd: %v", err)
		os.Exit(1)
	}

	orch := lifecycle.New(cfg, backend, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(orch.Run(ctx))
}
