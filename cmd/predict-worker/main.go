package main

import (
	"fmt"
	"os"

	"github.com/paysentry/fraud-engine/internal/adapters/inference"
	"github.com/paysentry/fraud-engine/internal/config"
	"github.com/paysentry/fraud-engine/internal/logging"
	"github.com/paysentry/fraud-engine/internal/mlmodel"
)

// predict-worker answers exactly one prediction request on stdin/stdout.
// Logs go to stderr, which the engine surfaces as warnings.
func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		fmt.Fprintf(os.Stdout, "{\"error\":%q}\n", err.Error())
		return
	}

	logger := logging.NewWithWriter(os.Stderr, cfg.LogLevel, "text")
	load := func() (mlmodel.Model, error) {
		return mlmodel.Load(cfg.ModelPath)
	}

	if err := inference.Serve(os.Stdin, os.Stdout, load, logger); err != nil {
		logger.Error("Failed to write reply", "error", err)
		os.Exit(1)
	}
}
