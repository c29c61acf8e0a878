// Package article assembles the final Markdown article from the generated
// sections, prunes degenerate tables, and scores the result against the
// quality gate.
package article

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/higaso4186/ir-articles/pkg/core/config"
	"github.com/higaso4186/ir-articles/pkg/core/prompt"
	"github.com/higaso4186/ir-articles/pkg/core/schema"
	"github.com/higaso4186/ir-articles/pkg/core/utils"
)

// Footer closes every published article.
const Footer = `---

**▼新着記事をTwitterでお届けします**
・Twitter: https://twitter.com/corp_analysis_lab

気に入ってくださった方は、noteから「スキ」「フォロー」をお願いします。`

// Assemble concatenates overview, slot sections with their image tags, the
// investment judgment and the fixed footer.
func Assemble(overview string, slots []schema.SlotResult, investment string) string {
	var sections []string
	for _, slot := range slots {
		sections = append(sections, fmt.Sprintf("## %s\n\n%s\n", slot.Title, slot.Content))
		for _, img := range slot.Images {
			sections = append(sections, fmt.Sprintf("![%s](%s)\n", slot.Title, img))
		}
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s\n\n%s\n",
		utils.CleanMarkdown(overview),
		strings.Join(sections, "\n"),
		utils.CleanMarkdown(investment),
		Footer)
}

// FillTemplate renders an article layout template, substituting the
// generated sections for {{KEY}} placeholders. Unmatched placeholders are
// removed.
func FillTemplate(tpl string, overview string, slots []schema.SlotResult, investment string) string {
	values := map[string]string{
		"OVERVIEW":   utils.CleanMarkdown(overview),
		"INVESTMENT": utils.CleanMarkdown(investment),
		"FOOTER":     Footer,
	}
	for i, slot := range slots {
		values[fmt.Sprintf("SLOT%d", i+1)] = slot.Content
	}
	return prompt.FillTemplate(tpl, values)
}

var tableSeparatorPattern = regexp.MustCompile(`^\|[\s:\-|]+\|?$`)

// hasDigit reports whether s contains an ASCII or full-width digit.
func hasDigit(s string) bool {
	for _, r := range s {
		if (r >= '0' && r <= '9') || (r >= '０' && r <= '９') {
			return true
		}
	}
	return false
}

// Postprocess prunes degenerate Markdown tables: tables whose body has no
// rows, and tables whose body contains no numeric content. Running it on
// its own output changes nothing.
func Postprocess(text string) string {
	lines := strings.Split(text, "\n")
	var out []string

	for i := 0; i < len(lines); {
		if !isTableLine(lines[i]) {
			out = append(out, lines[i])
			i++
			continue
		}
		start := i
		for i < len(lines) && isTableLine(lines[i]) {
			i++
		}
		block := lines[start:i]
		if keepTable(block) {
			out = append(out, block...)
		}
	}
	return strings.Join(out, "\n")
}

func isTableLine(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "|")
}

// keepTable requires at least one body row past header+separator and some
// digit in the body.
func keepTable(block []string) bool {
	if len(block) < 3 {
		return false
	}
	body := block[2:]
	if !tableSeparatorPattern.MatchString(strings.TrimSpace(block[1])) {
		// Not a well-formed table; leave it alone.
		return true
	}
	rows := 0
	digits := false
	for _, row := range body {
		if strings.TrimSpace(row) == "" {
			continue
		}
		rows++
		if hasDigit(row) {
			digits = true
		}
	}
	return rows > 0 && digits
}

// Citation markers the gate recognizes: (P12), （P12） and ページ 12 forms.
var citationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\(\s*[PpＰ]\s*\d+\s*\)`),
	regexp.MustCompile(`（\s*[PpＰ]\s*\d+\s*）`),
	regexp.MustCompile(`ページ\s*\d+`),
}

var figurePattern = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)

// CheckQuality scores the article against the gate thresholds. It never
// blocks; callers decide what to do with failed checks.
func CheckQuality(text string, gate config.GateThresholds) schema.QualityChecks {
	chars := utils.CountCharacters(text)

	citations := 0
	for _, p := range citationPatterns {
		citations += len(p.FindAllString(text, -1))
	}

	tables := countTables(text)
	figures := len(figurePattern.FindAllString(text, -1))

	return schema.QualityChecks{
		CharacterCount:         chars,
		CharCountOK:            chars >= gate.MinCharacters && chars <= gate.MaxCharacters,
		CitationCount:          citations,
		CitationRequirementMet: citations >= gate.MinCitations,
		TableCount:             tables,
		TableRequirementMet:    tables >= gate.MinTables,
		FigureCount:            figures,
		FigureRequirementMet:   figures >= gate.MinFigures,
	}
}

func countTables(text string) int {
	lines := strings.Split(text, "\n")
	count := 0
	for i := 0; i < len(lines); {
		if !isTableLine(lines[i]) {
			i++
			continue
		}
		start := i
		for i < len(lines) && isTableLine(lines[i]) {
			i++
		}
		if i-start >= 2 && tableSeparatorPattern.MatchString(strings.TrimSpace(lines[start+1])) {
			count++
		}
	}
	return count
}
