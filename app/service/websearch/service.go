package websearch

import (
	"context"
	"strings"

	"github.com/samber/do"
	"github.com/samber/oops"
	"github.com/tmc/langchaingo/tools"
	"github.com/tmc/langchaingo/tools/duckduckgo"
)

const (
	maxResults = 5
	userAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// Service answers web queries through DuckDuckGo. No API key required;
// failures degrade to an empty answer.
type Service struct {
	tool tools.Tool
}

func New(_ *do.Injector) (*Service, error) {
	tool, err := duckduckgo.New(maxResults, userAgent)
	if err != nil {
		return nil, oops.Wrapf(err, "failed to create search tool")
	}

	return NewService(tool), nil
}

func NewService(tool tools.Tool) *Service {
	return &Service{tool: tool}
}

func (s *Service) Search(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", oops.Errorf("empty search query")
	}

	result, err := s.tool.Call(ctx, query)
	if err != nil {
		return "", oops.Wrapf(err, "search failed")
	}

	return strings.TrimSpace(result), nil
}
