package extract

import (
	"regexp"
	"strings"

	"github.com/higaso4186/ir-articles/pkg/core/schema"
)

// UnknownCompany is the shared fallback label when no name can be derived.
const UnknownCompany = "不明企業"

// Legal-entity suffix patterns, Japanese corporate forms first. Longest
// match on a page wins.
var legalSuffixPatterns = []*regexp.Regexp{
	regexp.MustCompile(`([^、\n]+株式会社)`),
	regexp.MustCompile(`([^、\n]+有限会社)`),
	regexp.MustCompile(`([^、\n]+合資会社)`),
	regexp.MustCompile(`([^、\n]+合名会社)`),
	regexp.MustCompile(`([^、\n]+Inc\.)`),
	regexp.MustCompile(`([^、\n]+Corp\.)`),
	regexp.MustCompile(`([^、\n]+Ltd\.)`),
}

var leadingDate = regexp.MustCompile(`^(?:[0-9０-９]{4})年\s*\d{1,2}月\s*\d{1,2}日\s*`)

// CompanyName scans the first 5 pages for a name carrying a legal-entity
// suffix. This heuristic is independent of Common's candidate and is
// canonical for metadata and guidance text; both fall back to the same
// label so downstream prose never diverges on the unknown case.
func CompanyName(pages []schema.Page) string {
	for _, p := range head(pages, 5) {
		for _, pattern := range legalSuffixPatterns {
			matches := pattern.FindAllStringSubmatch(p.Text, -1)
			if len(matches) == 0 {
				continue
			}
			longest := ""
			for _, m := range matches {
				if len(m[1]) > len(longest) {
					longest = m[1]
				}
			}
			name := strings.TrimSpace(longest)
			name = leadingDate.ReplaceAllString(name, "")
			if len([]rune(name)) > 3 {
				return name
			}
		}
	}
	return UnknownCompany
}
