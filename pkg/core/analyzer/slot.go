// Package analyzer runs the five analysis slots of the article pipeline.
// Each slot is a row in Definitions rather than its own type; a slot binds
// a prompt, a keyword set for page relevance, and a fallback context used
// when no prompt repository is available.
package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/higaso4186/ir-articles/pkg/core/llm"
	"github.com/higaso4186/ir-articles/pkg/core/prompt"
	"github.com/higaso4186/ir-articles/pkg/core/schema"
)

// Source of extra relevance keywords pulled from metadata.
type extraKeywords int

const (
	extraNone extraKeywords = iota
	extraMetric
	extraSegment
)

// Definition describes one analysis slot.
type Definition struct {
	Number      int
	Name        string
	Description string
	Keywords    []string
	extra       extraKeywords
	contextFunc func(meta *schema.Metadata) string
}

const relevantPageLimit = 5

// Definitions lists the five slots in execution order.
var Definitions = []Definition{
	{
		Number:      1,
		Name:        "業績分析",
		Description: "売上・利益のYoY/QoQ/計画差異と主要ドライバーを精査",
		Keywords:    []string{"売上", "利益", "収益", "業績", "前年", "増減"},
		extra:       extraMetric,
		contextFunc: func(meta *schema.Metadata) string {
			return fmt.Sprintf(
				"%s（業界: %s、期間: %s）の決算資料を基に、売上・利益および主要KPIのYoY・QoQ・計画差異を差額と比率で整理してください。"+
					"主要KPI: %s。価格/数量/ミックス/コスト要因でマージンブリッジを組み立て、固定費・変動費・一過性費用を切り分けてください。"+
					"トップ3ドライバーの寄与金額と寄与率を算出し、根拠ページを( Pxx )形式で必ず引用してください。持続性や逆風要因も定量指標とともに整理してください。",
				companyOf(meta), industryOf(meta), periodOf(meta), kpiSummaryOf(meta))
		},
	},
	{
		Number:      2,
		Name:        "セグメント分析",
		Description: "セグメント別の差異分析と戦略連動を精査",
		Keywords:    []string{"セグメント", "事業", "売上構成", "business", "segment"},
		extra:       extraSegment,
		contextFunc: func(meta *schema.Metadata) string {
			return fmt.Sprintf(
				"%sの主要セグメント（%s）について、売上高・営業利益・利益率・構成比のYoY/QoQ/計画差異を差額と比率で比較し、主因を定量的に整理してください。"+
					"顧客KPIやチャネル/地域別の動向を示し、共通費配賦やシナジー/カニバリの影響をページ番号付きで解説してください。"+
					"戦略KPIやマイルストンとの連動度を明示し、成長セグメントと停滞セグメントそれぞれの打ち手とリスク/機会を整理してください。",
				companyOf(meta), segmentTextOf(meta))
		},
	},
	{
		Number:      3,
		Name:        "財務健全性",
		Description: "資本構成とキャッシュフローの健全性を検証",
		Keywords:    []string{"自己資本", "キャッシュフロー", "負債", "財務", "資本", "財政状態"},
		extra:       extraNone,
		contextFunc: func(meta *schema.Metadata) string {
			return fmt.Sprintf(
				"%s（期間: %s）の財務健全性を、流動性・自己資本比率・キャッシュフロー創出力の観点で分析してください。"+
					"有利子負債の推移、財務レバレッジ、配当・投資方針にも触れ、関連ページと数値を引用してください。",
				companyOf(meta), periodOf(meta))
		},
	},
	{
		Number:      4,
		Name:        "戦略・展望",
		Description: "戦略KPIと資本配分・競争優位を多面的に評価",
		Keywords:    []string{"戦略", "施策", "成長", "中期計画", "展望", "重点"},
		extra:       extraSegment,
		contextFunc: func(meta *schema.Metadata) string {
			return fmt.Sprintf(
				"%s（業界: %s）の中期戦略と重点施策を、戦略テーマ×KGI/KPI、達成タイムライン、進捗度で整理してください。"+
					"主要セグメント: %s。Capex/M&A/R&D/人材投資の規模と回収指標、ESG施策、マイルストン、カタリストをページ番号付きで解説してください。"+
					"市場シェア・競合比較・シナリオ別アウトルックを定量化し、成功/失敗の分岐要因とモニタリング指標を提示してください。",
				companyOf(meta), industryOf(meta), segmentTextOf(meta))
		},
	},
	{
		Number:      5,
		Name:        "リスク・注記",
		Description: "リスクスコアとモニタリング計画を体系化",
		Keywords: []string{
			"リスク", "為替", "原材料", "需給", "コスト", "規制",
			"法令", "不確実性", "サプライ", "災害", "競争",
		},
		extra: extraNone,
		contextFunc: func(meta *schema.Metadata) string {
			return fmt.Sprintf(
				"%s（業界: %s）の主要リスクを、マクロ・競争・オペレーション・法規制/コンプラ・財務の5分類で整理し、発生可能性・影響度・残存リスクをスコアリングしてください。"+
					"各リスクの緩和策と進捗、モニタリング指標・責任部門・頻度、外部環境/規制動向の感応度、BCP・サイバー対策・内部統制との関連をページ番号付きで解説してください。"+
					"トリガーイベントごとの対応フローと投資家が注視すべきチェックポイントを提示してください。",
				companyOf(meta), industryOf(meta))
		},
	},
}

// Analyze runs one slot: build the prompt, call the client, and pick the
// citation pages and image references. Generation errors propagate so the
// caller can substitute a placeholder result.
func (d Definition) Analyze(ctx context.Context, pages []schema.Page, client llm.Client, loader *prompt.Loader, meta *schema.Metadata) (schema.SlotResult, error) {
	var (
		text string
		err  error
	)
	if loader != nil {
		var p string
		p, err = loader.CreateSlotPrompt(d.Number, pages, meta)
		if err == nil {
			text, err = client.GenerateAnalysis(ctx, p)
		}
	} else {
		text, err = client.GenerateAnalysis(ctx, d.fallbackPrompt(pages, meta))
	}
	if err != nil {
		return schema.SlotResult{}, fmt.Errorf("slot %d analysis failed: %w", d.Number, err)
	}

	relevant := d.relevantPages(pages, meta)
	images := make([]string, 0, 2)
	for _, p := range relevant {
		if len(images) == 2 {
			break
		}
		images = append(images, fmt.Sprintf("images/p%03d.png", p))
	}

	return schema.SlotResult{
		Title:         d.Name,
		Content:       text,
		RelevantPages: relevant,
		Images:        images,
	}, nil
}

// fallbackPrompt is the self-contained prompt used when no prompt
// repository is wired: slot context plus a digest of the first 10 pages.
func (d Definition) fallbackPrompt(pages []schema.Page, meta *schema.Metadata) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(d.contextFunc(meta))
	b.WriteString("\n\n以下の決算書テキストを分析してください。\n\n")
	limit := len(pages)
	if limit > 10 {
		limit = 10
	}
	for _, p := range pages[:limit] {
		fmt.Fprintf(&b, "--- ページ %d ---\n%s\n\n", p.Page, p.Text)
	}
	b.WriteString("分析結果は以下の形式で出力してください。\n")
	b.WriteString("- 分析概要: [具体的な分析概要]\n")
	b.WriteString("- 重要なポイント: [重要なポイントを箇条書きで]\n")
	b.WriteString("- 関連ページ: [関連するページ番号]\n")
	b.WriteString("- 画像候補: [関連する画像のページ番号]\n")
	return b.String()
}

// relevantPages scans pages in order for any slot keyword (plus metadata
// keywords for the slot's extra source), capped at relevantPageLimit.
func (d Definition) relevantPages(pages []schema.Page, meta *schema.Metadata) []int {
	terms := make([]string, 0, len(d.Keywords)+4)
	for _, kw := range d.Keywords {
		terms = append(terms, strings.ToLower(kw))
	}
	if meta != nil {
		var extras []string
		switch d.extra {
		case extraMetric:
			extras = meta.MetricKeywords
		case extraSegment:
			extras = meta.SegmentKeywords
		}
		for _, kw := range extras {
			terms = append(terms, strings.ToLower(kw))
		}
	}

	relevant := make([]int, 0, relevantPageLimit)
	for _, page := range pages {
		text := strings.ToLower(page.Text)
		for _, term := range terms {
			if term != "" && strings.Contains(text, term) {
				relevant = append(relevant, page.Page)
				break
			}
		}
		if len(relevant) == relevantPageLimit {
			break
		}
	}
	return relevant
}

func companyOf(meta *schema.Metadata) string {
	if meta == nil || meta.CompanyName == "" {
		return "不明企業"
	}
	return meta.CompanyName
}

func industryOf(meta *schema.Metadata) string {
	if meta == nil || meta.Industry == "" {
		return "業界不明"
	}
	return meta.Industry
}

func periodOf(meta *schema.Metadata) string {
	if meta == nil {
		return "対象期間不明"
	}
	if meta.PeriodLabel != nil && *meta.PeriodLabel != "" {
		return *meta.PeriodLabel
	}
	if meta.FiscalYear != nil && *meta.FiscalYear != "" {
		return *meta.FiscalYear
	}
	return "対象期間不明"
}

func kpiSummaryOf(meta *schema.Metadata) string {
	if meta == nil || meta.KPISummary == "" {
		return "主要KPI情報が取得できていません"
	}
	return meta.KPISummary
}

func segmentTextOf(meta *schema.Metadata) string {
	if meta == nil || len(meta.Segments) == 0 {
		return "セグメント情報が限定的"
	}
	segs := meta.Segments
	if len(segs) > 4 {
		segs = segs[:4]
	}
	return strings.Join(segs, "、")
}
