package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/akolanti/HybridRAG/internal/mcpserver"
	"github.com/spf13/cobra"
)

func newMCPCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve search over the Model Context Protocol on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, root.settings, buildOptions{})
			if err != nil {
				return err
			}
			a.warm(ctx)
			if a.memory != nil {
				a.memory.Start(ctx)
				defer a.memory.Close()
			}
			return mcpserver.New(a.rag, a.sessions, root.settings.SessionContextPairs, Version).Serve(ctx)
		},
	}
}
