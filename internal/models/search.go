package models

// SearchParams captures the normalized search inputs used by scrapers.
type SearchParams struct {
	Query  string
	Region string
	Limit  int
}
