package reasoning

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/creator-ledger/internal/domain"
	"github.com/dvloznov/creator-ledger/internal/engine"
)

func TestBuildCausalPrompt(t *testing.T) {
	req := engine.CausalRequest{
		UserID:        "user-1",
		Platform:      "youtube",
		WeekStart:     time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		PrevWeekTotal: 1000,
		CurrWeekTotal: 400,
		ChangePercent: -60,
		RecentTransactions: []domain.Transaction{
			{Platform: "youtube", Category: "ad_revenue", Amount: 120.50, Date: time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC)},
		},
	}

	prompt := buildCausalPrompt(req)

	for _, want := range []string{
		"youtube",
		"$1000.00",
		"$400.00",
		"-60.0%",
		"2025-06-02",
		"2025-06-04",
		"platform_behaviour",
		"creator_behaviour",
		"external_timing",
		"historical_analogues",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildCausalPromptWithoutSample(t *testing.T) {
	prompt := buildCausalPrompt(engine.CausalRequest{
		Platform:      "twitch",
		WeekStart:     time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		PrevWeekTotal: 100,
		CurrWeekTotal: 200,
		ChangePercent: 100,
	})
	if strings.Contains(prompt, "Recent transactions") {
		t.Error("prompt lists a transaction section without any transactions")
	}
}

func TestCleanModelJSON(t *testing.T) {
	body := `{"platform_behaviour": "fee change", "creator_behaviour": "none", "external_timing": "none", "historical_analogues": "none"}`

	tests := []struct {
		name string
		raw  string
	}{
		{"bare object", body},
		{"leading whitespace", "\n\n  " + body + "  \n"},
		{"json fence", "```json\n" + body + "\n```"},
		{"plain fence", "```\n" + body + "\n```"},
		{"prose around object", "Here is the analysis:\n" + body + "\nHope this helps."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cleanModelJSON(tt.raw)
			var parsed causalResponse
			if err := json.Unmarshal([]byte(got), &parsed); err != nil {
				t.Fatalf("cleaned output does not parse: %v\noutput: %s", err, got)
			}
			if parsed.PlatformBehaviour != "fee change" {
				t.Errorf("unexpected parsed content: %+v", parsed)
			}
		})
	}
}
