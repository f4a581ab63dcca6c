package embedding

import (
	"context"
	"net/http"
	"time"

	"donna/app/config"

	"github.com/samber/oops"
	"github.com/sashabaranov/go-openai"
)

// Provider converts text into vectors. Implementations must be
// deterministic for a given model version.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float64, error)

	// ModelVersion identifies the embedding model. Vectors produced under
	// different versions are never compared against each other.
	ModelVersion() string
}

type OpenAIProvider struct {
	client *openai.Client
	model  string
}

var _ Provider = (*OpenAIProvider)(nil)

func NewOpenAIProvider(cfg config.EmbeddingConfig) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(cfg.Token)

	clientConfig.BaseURL = cfg.BaseURL
	clientConfig.HTTPClient = &http.Client{
		Timeout: 30 * time.Second,
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
	}
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, oops.Wrapf(err, "failed to create embedding")
	}

	if len(resp.Data) == 0 {
		return nil, oops.Errorf("no embedding returned")
	}

	embedding32 := resp.Data[0].Embedding
	embedding64 := make([]float64, len(embedding32))
	for i, v := range embedding32 {
		embedding64[i] = float64(v)
	}

	return embedding64, nil
}

func (p *OpenAIProvider) ModelVersion() string {
	return p.model
}
