package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// VertexClient calls Gemini on Vertex AI. Per-request API keys are ignored;
// the client authenticates with application default credentials.
type VertexClient struct {
	client    *genai.Client
	modelName string
}

func NewVertexClient(ctx context.Context, projectID, location, modelName string) (*VertexClient, error) {
	if projectID == "" || location == "" {
		return nil, fmt.Errorf("project and location are required for Vertex AI")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Vertex AI client: %w", err)
	}
	return &VertexClient{client: client, modelName: modelName}, nil
}

func (v *VertexClient) DefaultModel() string { return v.modelName }

func (v *VertexClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	model := req.Model
	if model == "" {
		model = v.modelName
	}

	temp := req.Temperature
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		Temperature:       &temp,
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	contents := []*genai.Content{genai.NewContentFromText(req.User, genai.RoleUser)}
	res, err := v.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("vertex generate content: %w", err)
	}

	text := strings.TrimSpace(res.Text())
	if text == "" {
		return nil, ErrEmptyCompletion
	}
	out := &Completion{Text: text, Model: model}
	if res.UsageMetadata != nil {
		out.TotalTokens = int64(res.UsageMetadata.TotalTokenCount)
	}
	return out, nil
}
