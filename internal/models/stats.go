package models

import "time"

// StatsResponse is the derived, read-only reporting view over the complaints
// table. It has no write path.
type StatsResponse struct {
	Total                 int64            `json:"total"`
	Resolved              int64            `json:"resolved"`
	CompletionRate        float64          `json:"completion_rate"`
	AverageResolutionDays float64          `json:"average_resolution_days"`
	ByStatus              map[string]int64 `json:"by_status"`
	ByServiceType         map[string]int64 `json:"by_service_type"`
	LastCalculated        time.Time        `json:"last_calculated"`
}
