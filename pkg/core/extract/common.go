// Package extract derives structured facts from noisy per-page disclosure
// text. All heuristics are regex driven and fail open: a missing pattern
// yields a nil field, never an error.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/higaso4186/ir-articles/pkg/core/schema"
)

// jpNum matches numeric tokens in half-width or full-width form with
// optional thousands separators.
const jpNum = `[0-9０-９,，\.]+`

var (
	companyPattern = regexp.MustCompile(`(株式会社[^\s　]+)`)

	periodJP = regexp.MustCompile(`(\d{4})年\s*(\d{1,2})月期\s*第?(\d)四半期`)
	periodFY = regexp.MustCompile(`(?i)FY\s?(\d{4}).{0,5}Q\s?([1-4])`)

	// Ordered: table position defines priority among overlapping hits.
	accountingStandards = []struct {
		Pattern *regexp.Regexp
		Label   string
	}{
		{regexp.MustCompile(`(?i)IFRS`), "IFRS"},
		{regexp.MustCompile(`国際会計基準`), "IFRS"},
		{regexp.MustCompile(`(?i)日本基準|日本会計基準|J-GAAP|JGAAP`), "JGAAP"},
		{regexp.MustCompile(`(?i)US[-\s]?GAAP|米国会計基準`), "US-GAAP"},
	}

	usdToken = regexp.MustCompile(`\bUSD\b`)
	jpyToken = regexp.MustCompile(`\bJPY\b`)

	kpiPatterns = []struct {
		Key     string
		Pattern *regexp.Regexp
	}{
		// The label-to-number gap is lazy so the capture lands on the first
		// numeric token after the label, not the tail of it.
		{schema.KPIRevenue, regexp.MustCompile(`(?i)(売上高|売上収益|Revenue)[^\n]{0,20}?(` + jpNum + `)`)},
		{schema.KPIOperatingIncome, regexp.MustCompile(`(?i)(営業利益|営業損益|Operating\s*income)[^\n]{0,20}?(` + jpNum + `)`)},
		{schema.KPIEBITDA, regexp.MustCompile(`(?i)(EBITDA|EBITDA等?)[^\n]{0,20}?(` + jpNum + `)`)},
	}

	segmentLine  = regexp.MustCompile(`(?P<name>[A-Za-z\x{30A0}-\x{30FF}一-龥ー]{2,20})[^\n]{0,10}?(` + jpNum + `)`)
	numberTokens = regexp.MustCompile(jpNum)

	fullwidthDigits = strings.NewReplacer(
		"０", "0", "１", "1", "２", "2", "３", "3", "４", "4",
		"５", "5", "６", "6", "７", "7", "８", "8", "９", "9",
		"，", ",",
	)
)

// Common extracts company name, fiscal period, accounting standard,
// currency/unit, KPI values and segments from the page list. Pure function
// of its input; identical pages yield identical results.
func Common(pages []schema.Page) schema.CommonInfo {
	company, _ := findCompanyName(pages)
	fiscalYear, periodLabel := findPeriod(pages)
	standard := findAccountingStandard(pages)
	currency, unit := findCurrencyUnit(pages)

	return schema.CommonInfo{
		CompanyName:        company,
		FiscalYear:         fiscalYear,
		PeriodLabel:        periodLabel,
		AccountingStandard: standard,
		Currency:           currency,
		Unit:               unit,
		KPIs:               findKPIs(pages, unit),
		Segments:           findSegments(pages, unit),
	}
}

func head(pages []schema.Page, n int) []schema.Page {
	if len(pages) < n {
		return pages
	}
	return pages[:n]
}

func findCompanyName(pages []schema.Page) (*string, []int) {
	for _, p := range head(pages, 3) {
		if m := companyPattern.FindStringSubmatch(p.Text); m != nil {
			return schema.StrPtr(m[1]), []int{p.Page}
		}
	}
	// Fallback: first non-empty line, truncated to 50 runes.
	for _, p := range head(pages, 2) {
		for _, line := range strings.Split(p.Text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if r := []rune(line); len(r) > 50 {
				line = string(r[:50])
			}
			return schema.StrPtr(line), []int{p.Page}
		}
	}
	return nil, nil
}

func findPeriod(pages []schema.Page) (*string, *string) {
	for _, p := range head(pages, 5) {
		if m := periodJP.FindStringSubmatch(p.Text); m != nil {
			year, q := m[1], m[3]
			return schema.StrPtr(year), schema.StrPtr("FY" + year + " Q" + q)
		}
		if m := periodFY.FindStringSubmatch(p.Text); m != nil {
			year, q := m[1], m[2]
			return schema.StrPtr(year), schema.StrPtr("FY" + year + " Q" + q)
		}
	}
	return nil, nil
}

func findAccountingStandard(pages []schema.Page) *string {
	for _, p := range head(pages, 5) {
		for _, std := range accountingStandards {
			if std.Pattern.MatchString(p.Text) {
				return schema.StrPtr(std.Label)
			}
		}
	}
	return nil
}

// findCurrencyUnit scans unit markers in priority order: an explicit
// millions marker beats thousands beats a bare currency marker. A foreign
// currency ticker token is treated as USD at million scale.
func findCurrencyUnit(pages []schema.Page) (*string, *string) {
	for _, p := range head(pages, 5) {
		t := p.Text
		switch {
		case strings.Contains(t, "百万円"):
			return schema.StrPtr("JPY"), schema.StrPtr("million")
		case strings.Contains(t, "千円"):
			return schema.StrPtr("JPY"), schema.StrPtr("thousand")
		case strings.Contains(t, "円"):
			return schema.StrPtr("JPY"), schema.StrPtr("one")
		case usdToken.MatchString(t):
			return schema.StrPtr("USD"), schema.StrPtr("million")
		case jpyToken.MatchString(t):
			return schema.StrPtr("JPY"), schema.StrPtr("million")
		}
	}
	return nil, nil
}

// UnitScale returns the multiplier a display unit applies to printed
// figures. Unknown or empty units scale by 1.
func UnitScale(unit *string) int64 {
	if unit == nil {
		return 1
	}
	switch *unit {
	case "million":
		return 1_000_000
	case "thousand":
		return 1_000
	}
	return 1
}

// NormalizeNumber converts a possibly full-width numeric token with
// thousands separators into a base-unit integer.
func NormalizeNumber(s string, unit *string) (int64, error) {
	s = fullwidthDigits.Replace(s)
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(f) * UnitScale(unit), nil
}

func findKPIs(pages []schema.Page, unit *string) map[string]schema.KPIValue {
	result := make(map[string]schema.KPIValue, len(kpiPatterns))
	for _, kp := range kpiPatterns {
		found := false
		for _, p := range head(pages, 8) {
			m := kp.Pattern.FindStringSubmatch(p.Text)
			if m == nil {
				continue
			}
			num, err := NormalizeNumber(m[2], unit)
			if err != nil {
				continue
			}
			result[kp.Key] = schema.KPIValue{Value: schema.Int64Ptr(num), PageCitations: []int{p.Page}}
			found = true
			break
		}
		if !found {
			result[kp.Key] = schema.KPIValue{Value: nil, PageCitations: []int{}}
		}
	}
	return result
}

func findSegments(pages []schema.Page, unit *string) []schema.SegmentEntry {
	var segs []schema.SegmentEntry
	seen := make(map[string]bool)
	for _, p := range head(pages, 10) {
		for _, line := range strings.Split(p.Text, "\n") {
			if !strings.Contains(line, "セグメント") && !strings.Contains(strings.ToLower(line), "segment") {
				continue
			}
			m := segmentLine.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			name := strings.TrimSpace(m[1])
			if seen[name] {
				continue
			}
			seen[name] = true

			var revenue *int64
			if nums := numberTokens.FindAllString(line, -1); len(nums) > 0 {
				if v, err := NormalizeNumber(nums[len(nums)-1], unit); err == nil {
					revenue = schema.Int64Ptr(v)
				}
			}
			segs = append(segs, schema.SegmentEntry{
				Name:          name,
				Revenue:       revenue,
				PageCitations: []int{p.Page},
			})
			if len(segs) >= 3 {
				return segs
			}
		}
	}
	return segs
}
