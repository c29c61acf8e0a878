// Package metadata derives the per-run analytical context from extracted
// facts: industry classification, formatted KPI/segment summaries and the
// guidance strings that steer each generation step.
package metadata

import (
	"fmt"
	"strings"

	"github.com/higaso4186/ir-articles/pkg/core/schema"
)

// IndustryPatterns maps industry labels to trigger keywords. Table order is
// significant: the first matching label wins.
var IndustryPatterns = []struct {
	Label    string
	Keywords []string
}{
	{"テクノロジー", []string{"saas", "クラウド", "itサービス", "ソフトウェア", "プラットフォーム", "dx"}},
	{"小売・EC", []string{"小売", "ec", "通販", "店舗", "eコマース", "チャネル"}},
	{"製造", []string{"製造", "生産", "工場", "ものづくり"}},
	{"物流・インフラ", []string{"物流", "配送", "倉庫", "インフラ", "供給網"}},
	{"金融", []string{"金融", "銀行", "証券", "保険", "資産運用"}},
	{"不動産", []string{"不動産", "賃貸", "物件", "開発"}},
	{"医療・ヘルスケア", []string{"医療", "ヘルスケア", "製薬", "バイオ", "臨床"}},
	{"エネルギー", []string{"エネルギー", "発電", "電力", "ガス", "再生可能"}},
}

// UnknownIndustry is the default label when no pattern matches.
const UnknownIndustry = "業界不明"

var unitLabels = map[string]string{
	"million":  "百", // 百万円・百万ドル等
	"thousand": "千",
	"one":      "",
}

var currencySymbols = map[string]string{
	"JPY": "¥",
	"USD": "$",
}

var kpiLabels = []struct {
	Key   string
	Label string
}{
	{schema.KPIRevenue, "売上高"},
	{schema.KPIOperatingIncome, "営業利益"},
	{schema.KPIEBITDA, "EBITDA"},
}

// InferIndustry classifies the document by matching the ordered keyword
// table against the first 6 pages' lowercased text and, independently,
// against segment names.
func InferIndustry(common schema.CommonInfo, pages []schema.Page) string {
	var sb strings.Builder
	for i, p := range pages {
		if i >= 6 {
			break
		}
		sb.WriteString(p.Text)
		sb.WriteString("\n")
	}
	searchable := strings.ToLower(sb.String())

	for _, entry := range IndustryPatterns {
		for _, kw := range entry.Keywords {
			lowered := strings.ToLower(kw)
			if strings.Contains(searchable, lowered) {
				return entry.Label
			}
			for _, seg := range common.Segments {
				if strings.Contains(strings.ToLower(seg.Name), lowered) {
					return entry.Label
				}
			}
		}
	}
	return UnknownIndustry
}

// FormatAmount reconstructs a human-readable amount from a base-unit value
// and the document's declared display unit/currency. A nil value formats to
// the fixed unavailable sentinel.
func FormatAmount(value *int64, common schema.CommonInfo) string {
	if value == nil {
		return "数値未取得"
	}
	unit := "one"
	if common.Unit != nil {
		unit = *common.Unit
	}
	currency := ""
	if common.Currency != nil {
		currency = *common.Currency
	}
	symbol := currencySymbols[currency]

	var divisor int64 = 1
	switch unit {
	case "million":
		divisor = 1_000_000
	case "thousand":
		divisor = 1_000
	}

	var formatted string
	if *value%divisor == 0 {
		formatted = groupDigits(*value / divisor)
	} else {
		formatted = groupFloat(float64(*value)/float64(divisor), 2)
	}

	suffix := ""
	if strings.EqualFold(currency, "JPY") {
		suffix = "円"
	}
	return symbol + formatted + unitLabels[unit] + suffix
}

// groupDigits renders an integer with thousands separators.
func groupDigits(v int64) string {
	s := fmt.Sprintf("%d", v)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	return out
}

func groupFloat(v float64, decimals int) string {
	s := fmt.Sprintf("%.*f", decimals, v)
	dot := strings.IndexByte(s, '.')
	intPart, frac := s[:dot], s[dot:]
	neg := strings.HasPrefix(intPart, "-")
	if neg {
		intPart = intPart[1:]
	}
	var parts []string
	for len(intPart) > 3 {
		parts = append([]string{intPart[len(intPart)-3:]}, parts...)
		intPart = intPart[:len(intPart)-3]
	}
	parts = append([]string{intPart}, parts...)
	out := strings.Join(parts, ",") + frac
	if neg {
		out = "-" + out
	}
	return out
}

// BuildKPISummary concatenates formatted KPI labels, skipping missing
// values.
func BuildKPISummary(common schema.CommonInfo) string {
	var fragments []string
	for _, kl := range kpiLabels {
		kpi, ok := common.KPIs[kl.Key]
		if !ok || kpi.Value == nil {
			continue
		}
		fragments = append(fragments, kl.Label+": "+FormatAmount(kpi.Value, common))
	}
	return strings.Join(fragments, " / ")
}

// BuildSegmentHighlights renders one line per segment.
func BuildSegmentHighlights(common schema.CommonInfo) []string {
	var highlights []string
	for _, seg := range common.Segments {
		amount := "数値未取得"
		if seg.Revenue != nil {
			amount = FormatAmount(seg.Revenue, common)
		}
		highlights = append(highlights, seg.Name+": "+amount)
	}
	return highlights
}

func orUnknownPeriod(meta *schema.Metadata, fallback string) string {
	if meta.PeriodLabel != nil && *meta.PeriodLabel != "" {
		return *meta.PeriodLabel
	}
	if meta.FiscalYear != nil && *meta.FiscalYear != "" {
		return *meta.FiscalYear
	}
	return fallback
}

func buildSlotGuidance(meta *schema.Metadata) map[int]string {
	company := meta.CompanyName
	if company == "" {
		company = "対象企業"
	}
	industry := meta.Industry
	period := orUnknownPeriod(meta, "最新決算")
	kpiSummary := meta.KPISummary
	if kpiSummary == "" {
		kpiSummary = "主要KPI情報は限定的です。"
	}
	segmentText := "セグメント情報が限定的"
	if len(meta.Segments) > 0 {
		segmentText = strings.Join(capSlice(meta.Segments, 4), "、")
	}
	segmentDetailText := segmentText
	if len(meta.SegmentDescriptions) > 0 {
		segmentDetailText = strings.Join(capSlice(meta.SegmentDescriptions, 4), " / ")
	}

	guidance := make(map[int]string, 5)
	guidance[1] = fmt.Sprintf(
		"%s（業界: %s、期間: %s）の業績を、売上・利益の変動要因、前年同期比、計画との差異の観点で詳細に評価してください。"+
			"主要KPI: %s。数値を引用し、セグメント間の寄与度や一過性要因があれば必ず触れてください。",
		company, industry, period, kpiSummary)
	guidance[2] = fmt.Sprintf(
		"事業セグメント構成: %s。各セグメントの成長率・利益率・顧客動向を比較し、資源配分の妥当性や重点施策を明示してください。"+
			"共通費配賦やセグメント間シナジーにも言及し、定量的指標があれば引用してください。",
		segmentDetailText)
	guidance[3] = "財務健全性を流動性、自己資本比率、キャッシュフロー創出力の観点で分析し、債務返済能力や投資余力を評価してください。" +
		"BS・PL・CFの該当箇所から数値を引用し、レバレッジ指標や資金繰り上のリスクも整理してください。"
	guidance[4] = fmt.Sprintf(
		"%s業界の競争環境を踏まえ、経営戦略・成長戦略・中期計画の実現可能性を検証してください。"+
			"主要セグメント: %s。技術投資、M&A、サステナビリティ対応などの取り組みと、その成果指標を紐付けて解説してください。",
		industry, segmentText)
	guidance[5] = "マクロ・競争・オペレーショナル・法規制の各リスクを網羅し、決算資料内の記載と外部環境の示唆を統合してください。" +
		"発生可能性と影響度を明示し、緩和策や残存リスクを定量的に示せる箇所があれば引用してください。"
	return guidance
}

func capSlice(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// Build derives the full metadata record from extracted facts. Deterministic
// given its inputs; the quality-checks record is appended by the
// orchestrator after article assembly.
func Build(common schema.CommonInfo, pages []schema.Page, companyName string) schema.Metadata {
	meta := schema.Metadata{
		CompanyName:         companyName,
		Industry:            InferIndustry(common, pages),
		PeriodLabel:         common.PeriodLabel,
		FiscalYear:          common.FiscalYear,
		AccountingStandard:  common.AccountingStandard,
		Currency:            common.Currency,
		Unit:                common.Unit,
		KPISummary:          BuildKPISummary(common),
		SegmentDescriptions: BuildSegmentHighlights(common),
		MetricKeywords:      []string{"売上高", "営業利益", "営業利益率", "EBITDA", "経常利益"},
		PromptVersions:      map[string]string{},
	}
	for _, seg := range common.Segments {
		meta.Segments = append(meta.Segments, seg.Name)
	}
	meta.SegmentKeywords = meta.Segments

	period := orUnknownPeriod(&meta, "期間情報不明")
	kpiPart := meta.KPISummary
	if kpiPart == "" {
		kpiPart = "主要KPI情報が取得できていません。"
	}
	meta.OverviewGuidance = fmt.Sprintf(
		"%s（業界: %s、期間: %s）の決算概要を、主要トピック3〜4項目に整理してください。"+
			"可能な限り数値と引用ページを併記し、%sを踏まえたトーンで記述してください。",
		companyName, meta.Industry, period, kpiPart)
	meta.InvestmentGuidance = fmt.Sprintf(
		"業界: %s、期間: %s。"+
			"バリュエーションやリスク・リターンのバランスを定量・定性両面から評価し、投資判断を明確に提示してください。",
		meta.Industry, period)
	meta.SlotGuidance = buildSlotGuidance(&meta)
	return meta
}
