// Package reasoning implements the engine's CausalReasoner port on Gemini.
// Calls are best-effort by contract: the caller bounds them with a deadline
// and treats every error as "no causal data".
package reasoning

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"github.com/dvloznov/creator-ledger/internal/domain"
	"github.com/dvloznov/creator-ledger/internal/engine"
)

// DefaultModelName is the Gemini model used for causal reconstruction.
const DefaultModelName = "gemini-2.5-flash"

// GeminiReasoner calls Gemini to explain a week-over-week revenue swing.
type GeminiReasoner struct {
	model string
}

// NewGeminiReasoner creates a reasoner. An empty model selects
// DefaultModelName.
func NewGeminiReasoner(model string) *GeminiReasoner {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiReasoner{model: model}
}

// causalResponse is the strict-JSON shape the prompt demands.
type causalResponse struct {
	PlatformBehaviour   string `json:"platform_behaviour"`
	CreatorBehaviour    string `json:"creator_behaviour"`
	ExternalTiming      string `json:"external_timing"`
	HistoricalAnalogues string `json:"historical_analogues"`
}

// ReconstructCause implements engine.CausalReasoner.
func (g *GeminiReasoner) ReconstructCause(ctx context.Context, req engine.CausalRequest) (*domain.CausalReconstruction, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("ReconstructCause: create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: buildCausalPrompt(req)},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("ReconstructCause: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("ReconstructCause: empty response from model")
	}

	var parsed causalResponse
	if err := json.Unmarshal([]byte(cleanModelJSON(rawText)), &parsed); err != nil {
		return nil, fmt.Errorf("ReconstructCause: unmarshal JSON: %w", err)
	}

	return &domain.CausalReconstruction{
		PlatformBehaviour:   parsed.PlatformBehaviour,
		CreatorBehaviour:    parsed.CreatorBehaviour,
		ExternalTiming:      parsed.ExternalTiming,
		HistoricalAnalogues: parsed.HistoricalAnalogues,
	}, nil
}
