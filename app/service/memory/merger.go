package memory

import (
	"context"
	"strings"

	"donna/app/client/llm"
)

// Merger combines a new fact with an existing near-duplicate into one value.
type Merger interface {
	Merge(ctx context.Context, existing, incoming string) (string, error)
}

const mergePromptTemplate = `Merge these two related memories into one coherent piece:

Existing: {existing}
New: {new}

Provide only the merged result, keeping the most current and accurate information:`

type LLMMerger struct {
	client llm.Client
}

var _ Merger = (*LLMMerger)(nil)

func NewLLMMerger(client llm.Client) *LLMMerger {
	return &LLMMerger{client: client}
}

func (m *LLMMerger) Merge(ctx context.Context, existing, incoming string) (string, error) {
	prompt := llm.RenderTemplate(mergePromptTemplate, map[string]string{
		"existing": existing,
		"new":      incoming,
	})

	result, err := m.client.Complete(ctx, prompt, 500, 0.3)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(result), nil
}

// fallbackMerge is used when the merger fails; it keeps both values visible.
func fallbackMerge(existing, incoming string) string {
	return existing + " (Updated: " + incoming + ")"
}
