package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/akolanti/HybridRAG/internal/memory"
	"github.com/akolanti/HybridRAG/internal/rag"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

func heading(s string) string { return headingStyle.Render(s) }

func dim(s string) string { return dimStyle.Render(s) }

func newSearchCmd(root *rootOptions) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run one hybrid search and print the ranked results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := buildApp(ctx, root.settings, buildOptions{})
			if err != nil {
				return err
			}
			a.warm(ctx)
			resp, err := a.rag.Search(ctx, strings.Join(args, " "), sessionID)
			if err != nil {
				return err
			}
			printSearch(cmd.OutOrStdout(), resp)
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id whose history is attached")
	return cmd
}

func printSearch(out io.Writer, resp rag.SearchResponse) {
	fmt.Fprintf(out, "%s %q\n", heading("Query"), resp.Query)
	if resp.RewrittenQuery != "" {
		fmt.Fprintf(out, "%s %q\n", dim("rewritten to"), resp.RewrittenQuery)
	}
	if len(resp.Degraded) > 0 {
		fmt.Fprintln(out, warnStyle.Render("degraded: "+strings.Join(resp.Degraded, ", ")))
	}
	if len(resp.Results) == 0 {
		fmt.Fprintln(out, dim("no results"))
	}
	for i, r := range resp.Results {
		methods := make([]string, len(r.MatchedMethods))
		for j, m := range r.MatchedMethods {
			methods[j] = string(m)
		}
		fmt.Fprintf(out, "\n%d. %s\n", i+1, heading(r.Title))
		fmt.Fprintf(out, "   %s\n", r.SourceURL)
		fmt.Fprintf(out, "   %s %s\n",
			scoreStyle.Render(fmt.Sprintf("score %.3f", r.Score)),
			dim(fmt.Sprintf("vector %.3f keyword %.3f [%s]", r.VectorScore, r.KeywordScore, strings.Join(methods, ","))))
		fmt.Fprintf(out, "   %s\n", snippet(r.Text, 200))
	}
	if len(resp.MemoryContext) > 0 {
		fmt.Fprintf(out, "\n%s\n%s\n", heading("Memory context"), memory.FormatContext(resp.MemoryContext))
	}
}

func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
