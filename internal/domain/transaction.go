package domain

import (
	"time"
)

// Transaction represents one revenue transaction for a creator, as read from
// the transaction store. The engine treats amounts as gross revenue (not net
// of platform fees) and never mutates these records.
type Transaction struct {
	UserID      string
	Platform    string    // e.g. "youtube", "patreon"
	Category    string    // e.g. "membership", "ad_revenue"
	Amount      float64   // currency units, non-negative
	Date        time.Time // transaction_date
	Description string    // optional free text from the platform
}
