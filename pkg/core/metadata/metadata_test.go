package metadata

import (
	"reflect"
	"strings"
	"testing"

	"github.com/higaso4186/ir-articles/pkg/core/extract"
	"github.com/higaso4186/ir-articles/pkg/core/schema"
)

func TestInferIndustryOrder(t *testing.T) {
	// Page text hits both テクノロジー and 製造 keywords; the earlier table
	// entry must win.
	pages := []schema.Page{{Page: 1, Text: "クラウドサービスと製造の複合事業"}}
	got := InferIndustry(schema.CommonInfo{}, pages)
	if got != "テクノロジー" {
		t.Errorf("industry = %q, want テクノロジー", got)
	}
}

func TestInferIndustryFromSegments(t *testing.T) {
	common := schema.CommonInfo{
		Segments: []schema.SegmentEntry{{Name: "物流ソリューション"}},
	}
	got := InferIndustry(common, []schema.Page{{Page: 1, Text: "一般的な説明"}})
	if got != "物流・インフラ" {
		t.Errorf("industry = %q, want 物流・インフラ", got)
	}
}

func TestInferIndustryUnknown(t *testing.T) {
	got := InferIndustry(schema.CommonInfo{}, []schema.Page{{Page: 1, Text: "特徴のない文章"}})
	if got != UnknownIndustry {
		t.Errorf("industry = %q, want %q", got, UnknownIndustry)
	}
}

func TestFormatAmount(t *testing.T) {
	jpyMillion := schema.CommonInfo{
		Currency: schema.StrPtr("JPY"),
		Unit:     schema.StrPtr("million"),
	}
	usdMillion := schema.CommonInfo{
		Currency: schema.StrPtr("USD"),
		Unit:     schema.StrPtr("million"),
	}

	cases := []struct {
		name   string
		value  *int64
		common schema.CommonInfo
		want   string
	}{
		{"nil value", nil, jpyMillion, "数値未取得"},
		{"jpy integral millions", schema.Int64Ptr(1_234_000_000), jpyMillion, "¥1,234百円"},
		{"jpy fractional millions", schema.Int64Ptr(1_234_500_000), jpyMillion, "¥1,234.50百円"},
		{"usd millions", schema.Int64Ptr(5_000_000), usdMillion, "$5百"},
		{"bare units", schema.Int64Ptr(1234), schema.CommonInfo{Currency: schema.StrPtr("JPY"), Unit: schema.StrPtr("one")}, "¥1,234円"},
		{"no currency metadata", schema.Int64Ptr(42), schema.CommonInfo{}, "42"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatAmount(tc.value, tc.common); got != tc.want {
				t.Errorf("FormatAmount = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFormatAmountRoundTrip(t *testing.T) {
	// Re-parsing the digits of a formatted amount must recover the
	// base-unit value.
	cases := []struct {
		value  int64
		common schema.CommonInfo
	}{
		{1_234_000_000, schema.CommonInfo{Currency: schema.StrPtr("JPY"), Unit: schema.StrPtr("million")}},
		{5_000_000, schema.CommonInfo{Currency: schema.StrPtr("USD"), Unit: schema.StrPtr("million")}},
		{500_000, schema.CommonInfo{Currency: schema.StrPtr("JPY"), Unit: schema.StrPtr("thousand")}},
		{1234, schema.CommonInfo{Currency: schema.StrPtr("JPY"), Unit: schema.StrPtr("one")}},
	}

	notNumeric := func(r rune) bool {
		return (r < '0' || r > '9') && r != ',' && r != '.'
	}
	for _, tc := range cases {
		formatted := FormatAmount(schema.Int64Ptr(tc.value), tc.common)
		token := strings.TrimFunc(formatted, notNumeric)
		got, err := extract.NormalizeNumber(token, tc.common.Unit)
		if err != nil {
			t.Errorf("NormalizeNumber(%q) error: %v", token, err)
			continue
		}
		if got != tc.value {
			t.Errorf("round trip %q -> %d, want %d", formatted, got, tc.value)
		}
	}
}

func TestBuildKPISummarySkipsMissing(t *testing.T) {
	common := schema.CommonInfo{
		Currency: schema.StrPtr("JPY"),
		Unit:     schema.StrPtr("million"),
		KPIs: map[string]schema.KPIValue{
			schema.KPIRevenue:         {Value: schema.Int64Ptr(1_000_000_000)},
			schema.KPIOperatingIncome: {Value: nil},
			schema.KPIEBITDA:          {Value: nil},
		},
	}
	got := BuildKPISummary(common)
	want := "売上高: ¥1,000百円"
	if got != want {
		t.Errorf("summary = %q, want %q", got, want)
	}
}

func TestBuildDeterministic(t *testing.T) {
	common := schema.CommonInfo{
		PeriodLabel: schema.StrPtr("FY2025 Q1"),
		Currency:    schema.StrPtr("JPY"),
		Unit:        schema.StrPtr("million"),
		KPIs: map[string]schema.KPIValue{
			schema.KPIRevenue: {Value: schema.Int64Ptr(1_000_000_000)},
		},
		Segments: []schema.SegmentEntry{
			{Name: "クラウド", Revenue: schema.Int64Ptr(600_000_000)},
		},
	}
	pages := []schema.Page{{Page: 1, Text: "クラウド事業の決算"}}

	first := Build(common, pages, "サンプル株式会社")
	second := Build(common, pages, "サンプル株式会社")
	if !reflect.DeepEqual(first, second) {
		t.Error("Build should be deterministic for identical inputs")
	}

	if first.Industry != "テクノロジー" {
		t.Errorf("industry = %q, want テクノロジー", first.Industry)
	}
	if len(first.SlotGuidance) != 5 {
		t.Fatalf("slot guidance entries = %d, want 5", len(first.SlotGuidance))
	}
	if !strings.Contains(first.SlotGuidance[1], "サンプル株式会社") {
		t.Error("slot 1 guidance should mention the company name")
	}
	if !strings.Contains(first.SlotGuidance[2], "クラウド") {
		t.Error("slot 2 guidance should mention the segment")
	}
	if !reflect.DeepEqual(first.SegmentKeywords, []string{"クラウド"}) {
		t.Errorf("segment keywords = %v", first.SegmentKeywords)
	}
	if first.OverviewGuidance == "" || first.InvestmentGuidance == "" {
		t.Error("guidance strings should not be empty")
	}
}

func TestBuildUnknownFallbacks(t *testing.T) {
	meta := Build(schema.CommonInfo{KPIs: map[string]schema.KPIValue{}}, nil, "不明企業")
	if !strings.Contains(meta.OverviewGuidance, "期間情報不明") {
		t.Error("overview guidance should carry the unknown-period label")
	}
	if !strings.Contains(meta.SlotGuidance[1], "最新決算") {
		t.Error("slot guidance should fall back to 最新決算")
	}
}
