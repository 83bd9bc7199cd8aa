// Package rewriter expands under specified queries before retrieval. Rewriting is best effort:
// every strategy returns the original query when it cannot do better.
package rewriter

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/internal/domain/ragErrors"
	"github.com/akolanti/HybridRAG/internal/rag/llm"
	"github.com/akolanti/HybridRAG/pkg/logger_i"
	"gopkg.in/yaml.v3"
)

var logger = logger_i.NewLogger("rewriter")

type Rewriter interface {
	Rewrite(ctx context.Context, query string) string
}

// New picks the strategy once at startup.
func New(s config.Settings, provider llm.Provider) (Rewriter, error) {
	if !s.EnableQueryEnhancement {
		return Passthrough{}, nil
	}
	dict := builtinAcronyms()
	if s.AcronymFile != "" {
		extra, err := LoadDictionary(s.AcronymFile)
		if err != nil {
			return nil, err
		}
		for k, v := range extra {
			dict[k] = v
		}
	}
	acronyms := NewAcronym(dict)

	switch s.QueryRewriter {
	case "llm":
		if provider == nil {
			logger.Warn("llm rewriter requested without a provider, using acronym expansion")
			return acronyms, nil
		}
		return NewLLM(provider), nil
	default:
		return acronyms, nil
	}
}

type Passthrough struct{}

func (Passthrough) Rewrite(_ context.Context, query string) string { return query }

// LoadDictionary reads a yaml map of acronym to expansion.
func LoadDictionary(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read acronym file: %w", err)
	}
	dict := map[string]string{}
	if err := yaml.Unmarshal(raw, &dict); err != nil {
		return nil, fmt.Errorf("parse acronym file %s: %w", path, err)
	}
	return dict, nil
}

func builtinAcronyms() map[string]string {
	return map[string]string{
		"SSO":   "single sign-on",
		"SAML":  "Security Assertion Markup Language",
		"SCIM":  "System for Cross-domain Identity Management",
		"IdP":   "identity provider",
		"MFA":   "multi-factor authentication",
		"RBAC":  "role-based access control",
		"ABAC":  "attribute-based access control",
		"PII":   "personally identifiable information",
		"API":   "application programming interface",
		"SDK":   "software development kit",
		"CLI":   "command line interface",
		"ETL":   "extract, transform, load",
		"BI":    "business intelligence",
		"DQ":    "data quality",
		"DW":    "data warehouse",
		"GDPR":  "General Data Protection Regulation",
		"JDBC":  "Java Database Connectivity",
		"OAuth": "open authorization",
	}
}

var wordPattern = regexp.MustCompile(`[A-Za-z][A-Za-z0-9]*`)

type Acronym struct {
	dict map[string]string
}

func NewAcronym(dict map[string]string) *Acronym {
	return &Acronym{dict: dict}
}

// Rewrite expands each known acronym once, whole word and case sensitive: "SSO" becomes
// "SSO (single sign-on)". An acronym whose expansion is already in the query is left alone.
func (a *Acronym) Rewrite(_ context.Context, query string) string {
	lower := strings.ToLower(query)
	done := make(map[string]bool)
	var b strings.Builder
	last := 0
	for _, loc := range wordPattern.FindAllStringIndex(query, -1) {
		word := query[loc[0]:loc[1]]
		expansion, ok := a.dict[word]
		if !ok || done[word] || strings.Contains(lower, strings.ToLower(expansion)) {
			continue
		}
		if strings.HasPrefix(query[loc[1]:], " (") {
			continue
		}
		done[word] = true
		b.WriteString(query[last:loc[1]])
		b.WriteString(" (")
		b.WriteString(expansion)
		b.WriteString(")")
		last = loc[1]
	}
	if last == 0 {
		return query
	}
	b.WriteString(query[last:])
	return b.String()
}

const rewritePrompt = `Rewrite the following customer support question into a precise search query for technical documentation.
Expand abbreviations and acronyms, keep product and connector names unchanged, do not answer the question.
Respond with the rewritten query only.

Question: %s`

// LLM asks the completion provider for a fuller phrasing. A failed or empty completion leaves
// the query untouched.
type LLM struct {
	provider llm.Provider
}

func NewLLM(provider llm.Provider) *LLM {
	return &LLM{provider: provider}
}

func (l *LLM) Rewrite(ctx context.Context, query string) string {
	out, err := l.provider.Complete(ctx, llm.CompletionRequest{
		Prompt:      fmt.Sprintf(rewritePrompt, query),
		Temperature: 0,
		MaxTokens:   128,
	})
	if err == nil {
		out = strings.Trim(strings.TrimSpace(out), "\"'`")
		if out != "" {
			return out
		}
		err = llm.ErrEmptyCompletion
	}
	logger.WithTrace(ctx).Warn("query rewrite failed, keeping the original query", "error", ragErrors.Wrap(ragErrors.ErrRewriteFailed, err))
	return query
}
