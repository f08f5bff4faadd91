// Command cyberguide runs CyberGuide from a terminal: index documents, query
// the knowledge base, ask the expert and take training scenarios.
package main

import (
	"os"

	"github.com/DerMichael0408/CyberGuide/internal/app"
	"github.com/DerMichael0408/CyberGuide/internal/config"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	// keep the terminal clean; the log file still gets everything
	cfg.LogConsoleJSON = false

	log, err := app.NewLogger(cfg)
	if err != nil {
		log = zap.NewNop()
	}
	defer func() { _ = log.Sync() }()

	root := newRootCmd(func() config.Config { return cfg }, log)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
