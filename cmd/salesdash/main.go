package main

import (
	"fmt"
	"os"

	"github.com/TFMV/salesdash/config"
	"github.com/TFMV/salesdash/pipeline"
	"go.uber.org/zap"
)

func main() {
	arguments, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing arguments: %v\n\n%s", err, config.Usage)
		os.Exit(1)
	}
	if h, _ := arguments.Bool("--help"); h {
		fmt.Print(config.Usage)
		os.Exit(0)
	}
	if v, _ := arguments.Bool("--version"); v {
		fmt.Println("salesdash version " + config.Version)
		os.Exit(0)
	}

	cfg, err := config.FromOpts(arguments)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// A load failure is logged by Run and still exits zero.
	if _, err := pipeline.Run(cfg, logger, os.Stdout); err != nil {
		logger.Fatal("Pipeline failed", zap.Error(err))
	}
}

// newLogger builds a production logger at the configured level.
func newLogger(cfg config.Config) (*zap.Logger, error) {
	lvl, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}
