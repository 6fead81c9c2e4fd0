package scraper

import (
	"strings"
	"testing"

	"github.com/jimezsa/indeedhub/internal/models"
)

func TestBuildIndeedURL(t *testing.T) {
	params := defaultParams()
	params.Query = "web developer"
	params.Region = "British Columbia"

	url := buildIndeedURL("https://ca.indeed.com/", params)
	want := "https://ca.indeed.com/jobs?q=web+developer&l=British+Columbia"
	if url != want {
		t.Fatalf("buildIndeedURL() = %q, want %q", url, want)
	}
}

func TestBuildIndeedURLEscapesQuery(t *testing.T) {
	params := defaultParams()
	params.Query = "  C++ & Go  "
	params.Region = "Vancouver, BC"

	url := buildIndeedURL("", params)
	if !strings.HasPrefix(url, DefaultOrigin+"/jobs?") {
		t.Fatalf("expected default origin, got %s", url)
	}
	if !containsAll(url, []string{"q=C%2B%2B+%26+Go", "l=Vancouver%2C+BC"}) {
		t.Fatalf("unexpected indeed url: %s", url)
	}
}

func TestNormalizeSpace(t *testing.T) {
	input := "  hello  \n world  "
	got := normalizeSpace(input)
	if got != "hello world" {
		t.Fatalf("expected normalized text, got %q", got)
	}
}

func TestMaxResults(t *testing.T) {
	if got := maxResults(0); got != DefaultMaxResults {
		t.Fatalf("maxResults(0) = %d, want %d", got, DefaultMaxResults)
	}
	if got := maxResults(5); got != 5 {
		t.Fatalf("maxResults(5) = %d, want 5", got)
	}
	if got := maxResults(50); got != DefaultMaxResults {
		t.Fatalf("maxResults(50) = %d, want %d", got, DefaultMaxResults)
	}
}

func defaultParams() models.SearchParams { return models.SearchParams{} }

func containsAll(value string, parts []string) bool {
	for _, part := range parts {
		if !strings.Contains(value, part) {
			return false
		}
	}
	return true
}
