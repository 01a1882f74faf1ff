package reasoning

import (
	"fmt"
	"strings"

	"github.com/dvloznov/creator-ledger/internal/engine"
)

// buildCausalPrompt renders the forensic prompt for one week-over-week
// swing. The model must answer with strict JSON matching causalResponse.
func buildCausalPrompt(req engine.CausalRequest) string {
	var b strings.Builder

	b.WriteString("You are a revenue forensics analyst for online creators.\n\n")
	b.WriteString(fmt.Sprintf("Analyze this revenue anomaly on %s:\n\n", req.Platform))
	b.WriteString(fmt.Sprintf("Previous week revenue: $%.2f\n", req.PrevWeekTotal))
	b.WriteString(fmt.Sprintf("Current week revenue: $%.2f\n", req.CurrWeekTotal))
	b.WriteString(fmt.Sprintf("Change: %.1f%%\n", req.ChangePercent))
	b.WriteString(fmt.Sprintf("Week starting: %s\n\n", req.WeekStart.Format("2006-01-02")))

	if len(req.RecentTransactions) > 0 {
		b.WriteString("Recent transactions (newest first):\n")
		for _, t := range req.RecentTransactions {
			b.WriteString(fmt.Sprintf("- %s | %s | %s | $%.2f\n",
				t.Date.Format("2006-01-02"), t.Platform, t.Category, t.Amount))
		}
		b.WriteString("\n")
	}

	b.WriteString("Provide a forensic analysis across these four layers:\n")
	b.WriteString("1. Platform behaviour (fees, payout timing, policy changes)\n")
	b.WriteString("2. Creator behaviour (posting frequency, pricing changes, content type)\n")
	b.WriteString("3. External timing (seasonality, holidays, market events)\n")
	b.WriteString("4. Historical patterns (similar events from this creator's data)\n\n")
	b.WriteString("Be specific and data-driven. No speculation.\n\n")

	b.WriteString("Output STRICT JSON only (no comments, no extra text).\n")
	b.WriteString("Return a single JSON object with these string fields:\n")
	b.WriteString("- \"platform_behaviour\"\n")
	b.WriteString("- \"creator_behaviour\"\n")
	b.WriteString("- \"external_timing\"\n")
	b.WriteString("- \"historical_analogues\"\n\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Output must begin with \"{\" and end with \"}\".\n")

	return b.String()
}

// cleanModelJSON strips Markdown fences and surrounding junk the model may
// emit despite the instructions, keeping only the outermost JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = s[start : end+1]
			s = strings.TrimSpace(s)
		}
	}

	return s
}
