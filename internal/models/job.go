package models

// Sentinels substituted when a card has no value for a field.
const (
	LinkUnavailable     = "N/A"
	DescriptionNotFound = "No description found"
)

// Job is one extracted listing, in the field naming shared by every exporter.
type Job struct {
	Title       string `json:"Job Title"`
	Company     string `json:"Company"`
	Link        string `json:"Link"`
	Description string `json:"Full Description"`
}
