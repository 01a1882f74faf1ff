package notionsync

import (
	"github.com/jomei/notionapi"

	infra "github.com/dvloznov/creator-ledger/internal/infra/bigquery"
)

// insightTypeLabels are the Select option names in the Notion insights
// database, one per insight_type.
var insightTypeLabels = map[string]string{
	"cashflow_forecast":  "Cashflow Forecast",
	"concentration_risk": "Concentration Risk",
	"anomaly_detection":  "Anomaly",
	"pricing_suggestion": "Pricing Suggestion",
}

// InsightToNotionProperties converts a stored insight row to Notion page
// properties. The Insight ID title property keys idempotent syncs.
func InsightToNotionProperties(row *infra.InsightRow) notionapi.Properties {
	props := notionapi.Properties{
		"Insight ID": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: row.InsightID,
					},
				},
			},
		},
		"Title": notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: row.Title,
					},
				},
			},
		},
		"Confidence": notionapi.NumberProperty{
			Number: row.Confidence,
		},
		"Detected": notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: (*notionapi.Date)(&row.CreatedTS),
			},
		},
	}

	label := insightTypeLabels[row.InsightType]
	if label == "" {
		label = row.InsightType
	}
	props["Type"] = notionapi.SelectProperty{
		Select: notionapi.Option{
			Name: label,
		},
	}

	if row.Description != "" {
		// Notion caps rich text content at 2000 characters.
		desc := row.Description
		if len(desc) > 2000 {
			desc = desc[:2000]
		}
		props["Description"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: desc,
					},
				},
			},
		}
	}

	return props
}

// extractInsightID reads the Insight ID title property back off a Notion
// page, returning "" when the page has no usable title.
func extractInsightID(page notionapi.Page) string {
	prop, ok := page.Properties["Insight ID"]
	if !ok {
		return ""
	}
	title, ok := prop.(*notionapi.TitleProperty)
	if !ok || len(title.Title) == 0 {
		return ""
	}
	return title.Title[0].PlainText
}
