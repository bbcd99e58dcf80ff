// Package extract builds plain-text notification bodies from feed item HTML.
// The item title is prepended unless it is already near-duplicated by the
// content, judged by a sliding-window Levenshtein similarity.
package extract

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/microcosm-cc/bluemonday"
)

const similarRatio = 0.9

var (
	stripPolicy = bluemonday.StrictPolicy()
	imgAltRe    = regexp.MustCompile(`<img[^>]*\balt=['"]([^'"]*)['"]`)
	breakRe     = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</div>|</li>`)
)

// Run converts item HTML to plain text, prepends the title unless it is
// redundant with the content, and truncates the result to maxSize runes with
// a trailing ellipsis marker.
func Run(title, content string, maxSize int) string {
	text := htmlToText(content)

	final := text
	if !similar(title, text) {
		final = title + "\r\n" + text
	}
	final = strings.TrimSpace(final)

	runes := []rune(final)
	if len(runes) < maxSize {
		return final
	}
	return string(runes[:maxSize]) + "..."
}

// htmlToText flattens HTML into notification-friendly plain text. Anchors are
// neutralized so link text does not read as flowing prose, and image alt
// attributes surface as bracketed text.
func htmlToText(content string) string {
	cleaned := strings.ReplaceAll(content, "<a href", "<div ignore")
	cleaned = strings.ReplaceAll(cleaned, "</a>", "</div>")
	cleaned = imgAltRe.ReplaceAllString(cleaned, "[${1}]<img")
	cleaned = breakRe.ReplaceAllString(cleaned, "\n")
	return html.UnescapeString(stripPolicy.Sanitize(cleaned))
}

// similar reports whether the title is close enough to some window of the
// content to be redundant
func similar(title, content string) bool {
	return partialRatio(title, strings.ReplaceAll(content, "\r\n", "")) > similarRatio
}

// partialRatio slides the shorter string across the longer one and returns
// the best normalized similarity over all windows
func partialRatio(s1, s2 string) float64 {
	minStr, maxStr := []rune(s1), []rune(s2)
	if len(maxStr) < len(minStr) {
		minStr, maxStr = maxStr, minStr
	}

	best := 0.0
	for i := 0; i <= len(maxStr)-len(minStr); i++ {
		window := maxStr[i : i+len(minStr)]
		if r := ratio(string(minStr), string(window)); r > best {
			best = r
		}
	}

	return best
}

// ratio is 1 minus the Levenshtein distance between the alphanumeric
// skeletons of the two strings, normalized over their combined length
func ratio(s1, s2 string) float64 {
	if s1 == "" || s2 == "" {
		return 0
	}
	l := len([]rune(s1)) + len([]rune(s2))
	dist := levenshtein.ComputeDistance(cleanString(s1), cleanString(s2))
	return 1 - float64(dist)/float64(l)
}

// cleanString keeps letters and digits, mapping everything else to spaces
func cleanString(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)
	return strings.Trim(cleaned, " ")
}
