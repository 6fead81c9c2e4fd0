package scraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Page titles served by interstitial challenge pages.
var challengeTitles = []string{
	"just a moment",
	"attention required",
}

const challengeFrames = `iframe[src*="challenges.cloudflare.com"], iframe[src*="hcaptcha.com"], iframe[src*="recaptcha"]`

func absoluteURL(base string, href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}

func normalizeSpace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

func foldText(value string) string {
	return cases.Fold().String(norm.NFKC.String(value))
}

// detectBlock reports the first blocking marker found in a page, matched case-insensitively
// against the raw content, then challenge page titles and embedded challenge frames.
func detectBlock(content string, markers []string) (string, bool) {
	folded := foldText(content)
	for _, marker := range markers {
		marker = foldText(strings.TrimSpace(marker))
		if marker == "" {
			continue
		}
		if strings.Contains(folded, marker) {
			return marker, true
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", false
	}
	title := foldText(normalizeSpace(doc.Find("title").First().Text()))
	for _, challenge := range challengeTitles {
		if strings.Contains(title, challenge) {
			return challenge, true
		}
	}
	if doc.Find(challengeFrames).Length() > 0 {
		return "challenge frame", true
	}
	return "", false
}
