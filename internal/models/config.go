package models

import "time"

// ScraperConfig contains runtime options shared by scrapers.
type ScraperConfig struct {
	Origin            string
	NavigationTimeout time.Duration
	CardTimeout       time.Duration
	BlockCheck        bool
	BlockMarkers      []string
}
