package main

import (
	"os"

	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/pkg/logger_i"
	"github.com/spf13/cobra"
)

// Version is set via ldflags at build time.
var Version = "dev"

var logger = logger_i.NewLogger("main")

type rootOptions struct {
	configFile string
	logLevel   string
	settings   config.Settings
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "hybridrag",
		Short:         "Hybrid retrieval and conversational context engine for support documentation",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "yaml config file (default ./hybridrag.yaml if present)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override LOG_LEVEL")

	root.AddCommand(
		newServeCmd(opts),
		newIngestCmd(opts),
		newSearchCmd(opts),
		newMCPCmd(opts),
	)
	return root
}

// load reads settings and configures logging. MCP speaks on stdout so its logs go to stderr.
func (o *rootOptions) load(cmd *cobra.Command) error {
	s, err := config.Load(o.configFile)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		s.LogLevel = o.logLevel
	}
	out := os.Stdout
	if cmd.Name() != "serve" {
		out = os.Stderr
	}
	logger_i.Init(logger_i.Options{Level: s.LogLevel, Format: s.LogFormat, Output: out})
	for _, w := range s.Warnings() {
		logger.Warn("configuration warning", "warning", w)
	}
	o.settings = s
	return nil
}
