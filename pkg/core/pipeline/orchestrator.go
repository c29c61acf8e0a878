// Package pipeline orchestrates the end-to-end article run: ingest the
// disclosure, extract common facts, derive metadata, run the analysis
// slots, generate the investment judgment, assemble the article and
// persist every intermediate artifact.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/higaso4186/ir-articles/pkg/core/analyzer"
	"github.com/higaso4186/ir-articles/pkg/core/article"
	"github.com/higaso4186/ir-articles/pkg/core/config"
	"github.com/higaso4186/ir-articles/pkg/core/extract"
	"github.com/higaso4186/ir-articles/pkg/core/llm"
	"github.com/higaso4186/ir-articles/pkg/core/metadata"
	"github.com/higaso4186/ir-articles/pkg/core/pagesource"
	"github.com/higaso4186/ir-articles/pkg/core/prompt"
	"github.com/higaso4186/ir-articles/pkg/core/schema"
	"github.com/higaso4186/ir-articles/pkg/core/store"
	"github.com/higaso4186/ir-articles/pkg/core/utils"
)

// RunArchiver persists a finished run. Absence of an archiver is fine; the
// file artifacts remain authoritative.
type RunArchiver interface {
	Save(ctx context.Context, result *schema.PipelineResult) error
}

// Orchestrator wires the page source, the generation client, the prompt
// repository and the optional run archive.
type Orchestrator struct {
	src    pagesource.Source
	client llm.Client
	loader *prompt.Loader
	cfg    *config.Config
	repo   RunArchiver
}

// NewOrchestrator creates an orchestrator with all required dependencies.
// loader may be nil; slots then fall back to self-contained prompts.
func NewOrchestrator(src pagesource.Source, client llm.Client, loader *prompt.Loader, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		src:    src,
		client: client,
		loader: loader,
		cfg:    cfg,
	}
}

// SetArchiver injects a run archive (e.g. for testing).
func (o *Orchestrator) SetArchiver(repo RunArchiver) {
	o.repo = repo
}

type runPaths struct {
	root      string
	images    string
	extracted string
	outputs   string
	logs      string
}

func ensureDirs(root string) (runPaths, error) {
	p := runPaths{
		root:      root,
		images:    filepath.Join(root, "images"),
		extracted: filepath.Join(root, "extracted"),
		outputs:   filepath.Join(root, "outputs"),
		logs:      filepath.Join(root, "logs"),
	}
	for _, dir := range []string{p.images, p.extracted, p.outputs, p.logs} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return p, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return p, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Run executes the full pipeline for one disclosure document. Only
// ingestion and extraction failures are fatal; a failing generation step
// (overview, slot, investment) is replaced by a placeholder section and
// the run continues.
func (o *Orchestrator) Run(ctx context.Context, docPath string, outdir string) (*schema.PipelineResult, error) {
	start := time.Now()
	fmt.Printf("Starting article pipeline for %s...\n", docPath)

	paths, err := ensureDirs(outdir)
	if err != nil {
		return nil, fmt.Errorf("ingestion failed: %w", err)
	}

	srcData, err := os.ReadFile(docPath)
	if err != nil {
		return nil, fmt.Errorf("ingestion failed: %w", err)
	}
	ext := filepath.Ext(docPath)
	if ext == "" {
		ext = ".pdf"
	}
	if err := os.WriteFile(filepath.Join(outdir, "source"+ext), srcData, 0o644); err != nil {
		return nil, fmt.Errorf("ingestion failed: %w", err)
	}

	fileHash, err := o.src.SHA256File(docPath)
	if err != nil {
		return nil, fmt.Errorf("ingestion failed: %w", err)
	}
	pagesCount, err := o.src.RenderPagesToImages(docPath, paths.images, 200)
	if err != nil {
		return nil, fmt.Errorf("ingestion failed: %w", err)
	}
	pages, err := o.src.ExtractTextPerPage(docPath)
	if err != nil {
		return nil, fmt.Errorf("ingestion failed: %w", err)
	}
	if err := pagesource.SaveJSONL(pages, filepath.Join(paths.extracted, "pages.jsonl")); err != nil {
		return nil, fmt.Errorf("ingestion failed: %w", err)
	}

	common := extract.Common(pages)
	if err := writeJSON(filepath.Join(paths.extracted, "common.json"), common); err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}

	companyName := extract.CompanyName(pages)
	built := metadata.Build(common, pages, companyName)
	meta := &built

	var costRecords []schema.UsageRecord
	recordUsage := func(step string, promptFile string) schema.UsageRecord {
		entry := schema.UsageRecord{Step: step, Model: o.client.ModelName()}
		if usage := o.client.LastUsage(); usage != nil {
			entry.Tokens = *usage
		}
		if promptFile != "" && o.loader != nil {
			version := o.loader.Version(promptFile)
			entry.PromptFile = promptFile
			entry.PromptVersion = version
			meta.PromptVersions[step] = version
		}
		costRecords = append(costRecords, entry)
		return entry
	}

	fmt.Println("概要セクションを生成中...")
	overview, err := o.generateOverview(ctx, pages, meta)
	if err != nil {
		fmt.Printf("Overview generation raised an error: %v\n", err)
		overview = fmt.Sprintf("生成エラー: %v", err)
	}
	recordUsage("overview", prompt.OverviewFile)
	if err := writeJSON(filepath.Join(paths.extracted, "overview.json"), map[string]string{"content": overview}); err != nil {
		fmt.Printf("Warning: %v\n", err)
	}

	slotResults := make([]schema.SlotResult, 0, len(analyzer.Definitions))
	for _, def := range analyzer.Definitions {
		fmt.Printf("Analyzing slot %d (%s)...\n", def.Number, def.Name)
		result, err := def.Analyze(ctx, pages, o.client, o.loader, meta)
		if err != nil {
			fmt.Printf("Slot %d raised an error: %v\n", def.Number, err)
			result = schema.SlotResult{
				Title:         def.Name,
				Content:       fmt.Sprintf("分析エラー: %v", err),
				RelevantPages: []int{},
				Images:        []string{},
			}
		}
		slotFile, _ := prompt.SlotFilename(def.Number)
		entry := recordUsage(fmt.Sprintf("slot%d", def.Number), slotFile)
		result.PromptFile = slotFile
		result.PromptVersion = entry.PromptVersion
		slotResults = append(slotResults, result)
	}
	if err := writeJSON(filepath.Join(paths.extracted, "slot_results.json"), slotResults); err != nil {
		fmt.Printf("Warning: %v\n", err)
	}

	fmt.Println("Generating investment section...")
	investment, err := o.generateInvestment(ctx, companyName, meta, slotResults)
	if err != nil {
		fmt.Printf("Investment generation raised an error: %v\n", err)
		investment = fmt.Sprintf("生成エラー: %v", err)
	}
	recordUsage("investment", prompt.InvestmentFile)
	if err := writeJSON(filepath.Join(paths.extracted, "investment.json"), map[string]string{"content": investment}); err != nil {
		fmt.Printf("Warning: %v\n", err)
	}

	fmt.Println("最終記事を整形中...")
	finalArticle := article.Assemble(overview, slotResults, investment)
	finalArticle = article.Postprocess(finalArticle)

	checks := article.CheckQuality(finalArticle, o.cfg.QualityGate)
	o.reportQuality(checks)
	meta.QualityChecks = &checks
	if err := writeJSON(filepath.Join(paths.extracted, "metadata.json"), meta); err != nil {
		fmt.Printf("Warning: %v\n", err)
	}

	wordCount := len(strings.Fields(finalArticle))
	charCount := utils.CountCharacters(finalArticle)

	var totals schema.TokenUsage
	for _, record := range costRecords {
		totals.Add(record.Tokens)
	}
	costSummary := schema.CostSummary{
		Model:  o.client.ModelName(),
		Calls:  costRecords,
		Totals: totals,
	}

	imagesUsed := countDistinctPages(slotResults)
	result := &schema.PipelineResult{
		CompanyName: companyName,
		Filename:    filepath.Base(docPath),
		DocID:       fileHash[:12],
		Pages:       pagesCount,
		Common:      common,
		Metadata:    *meta,
		Article: schema.ArticleResult{
			Content:            finalArticle,
			WordCount:          wordCount,
			CharacterCount:     charCount,
			Overview:           overview,
			SlotResults:        slotResults,
			InvestmentJudgment: investment,
			TotalImages:        imagesUsed,
			TokenUsage:         costSummary,
		},
	}

	if err := writeJSON(filepath.Join(paths.extracted, "result.json"), result); err != nil {
		fmt.Printf("Warning: %v\n", err)
	}
	if err := os.WriteFile(filepath.Join(paths.outputs, "article.md"), []byte(finalArticle), 0o644); err != nil {
		fmt.Printf("Warning: failed to write article.md: %v\n", err)
	}
	if err := writeJSON(filepath.Join(paths.outputs, "cost.json"), costSummary); err != nil {
		fmt.Printf("Warning: %v\n", err)
	}
	if err := os.WriteFile(filepath.Join(paths.outputs, "log.md"), []byte(auditLog(result)), 0o644); err != nil {
		fmt.Printf("Warning: failed to write log.md: %v\n", err)
	}

	runlog := schema.RunLog{
		RunID:          uuid.New().String(),
		TS:             time.Now().Unix(),
		FileHash:       fileHash,
		Pages:          pagesCount,
		Outdir:         filepath.ToSlash(outdir),
		AIProvider:     o.cfg.Provider,
		WordCount:      wordCount,
		CharacterCount: charCount,
		Industry:       meta.Industry,
		ImagesUsed:     imagesUsed,
		SlotsProcessed: len(slotResults),
		Tokens:         totals,
	}
	if err := writeJSON(filepath.Join(paths.logs, "run.json"), runlog); err != nil {
		fmt.Printf("Warning: %v\n", err)
	}

	o.archive(ctx, result)

	fmt.Printf("Pipeline completed for %s in %v\n", companyName, time.Since(start))
	return result, nil
}

func (o *Orchestrator) generateOverview(ctx context.Context, pages []schema.Page, meta *schema.Metadata) (string, error) {
	var p string
	var err error
	if o.loader != nil {
		p, err = o.loader.CreateOverviewPrompt(pages, meta)
		if err != nil {
			return "", err
		}
	} else {
		p = fallbackOverviewPrompt(pages, meta)
	}
	return o.client.GenerateArticle(ctx, p)
}

// fallbackOverviewPrompt keeps the pipeline usable without a prompt
// directory.
func fallbackOverviewPrompt(pages []schema.Page, meta *schema.Metadata) string {
	var b strings.Builder
	b.WriteString("以下の決算書テキストから、記事冒頭に掲載する概要を作成してください。数値と要点を3〜4項目に整理してください。\n\n")
	limit := len(pages)
	if limit > 10 {
		limit = 10
	}
	for _, p := range pages[:limit] {
		fmt.Fprintf(&b, "--- ページ %d ---\n%s\n\n", p.Page, p.Text)
	}
	if meta != nil && meta.OverviewGuidance != "" {
		b.WriteString("## 補足指示\n" + meta.OverviewGuidance + "\n")
	}
	return b.String()
}

func (o *Orchestrator) generateInvestment(ctx context.Context, companyName string, meta *schema.Metadata, slots []schema.SlotResult) (string, error) {
	var template string
	if o.loader != nil {
		loaded, err := o.loader.Load(prompt.InvestmentFile)
		if err != nil {
			return "", err
		}
		template = loaded
	} else {
		template = "以下の分析結果を統合し、投資判断セクションを作成してください。"
	}

	var summary strings.Builder
	for _, slot := range slots {
		fmt.Fprintf(&summary, "### %s\n%s\n\n", slot.Title, slot.Content)
	}

	period := "期間情報不明"
	if meta.PeriodLabel != nil && *meta.PeriodLabel != "" {
		period = *meta.PeriodLabel
	} else if meta.FiscalYear != nil && *meta.FiscalYear != "" {
		period = *meta.FiscalYear
	}
	segments := strings.Join(limitStrings(meta.Segments, 5), ", ")
	if segments == "" {
		segments = "セグメント情報が取得できていません"
	}
	kpiSummary := meta.KPISummary
	if kpiSummary == "" {
		kpiSummary = "主要KPI情報が取得できていません"
	}

	p := fmt.Sprintf(`
%s

## 企業プロファイル
- 企業名: %s
- 業界: %s
- 会計期間: %s
- 主要KPI: %s
- 主なセグメント: %s

## 分析結果の要約
%s

%s
`, template, companyName, meta.Industry, period, kpiSummary, segments, summary.String(), meta.InvestmentGuidance)

	return o.client.GenerateArticle(ctx, p)
}

func (o *Orchestrator) reportQuality(checks schema.QualityChecks) {
	if !checks.CharCountOK {
		fmt.Printf("Warning: character count %d outside gate [%d, %d]\n",
			checks.CharacterCount, o.cfg.QualityGate.MinCharacters, o.cfg.QualityGate.MaxCharacters)
	}
	if !checks.CitationRequirementMet {
		fmt.Printf("Warning: only %d page citations (minimum %d)\n",
			checks.CitationCount, o.cfg.QualityGate.MinCitations)
	}
	if !checks.TableRequirementMet {
		fmt.Printf("Warning: only %d tables (minimum %d)\n",
			checks.TableCount, o.cfg.QualityGate.MinTables)
	}
	if !checks.FigureRequirementMet {
		fmt.Printf("Warning: only %d figures (minimum %d)\n",
			checks.FigureCount, o.cfg.QualityGate.MinFigures)
	}
}

// archive pushes the run summary to the database when configured. Failures
// never fail the run.
func (o *Orchestrator) archive(ctx context.Context, result *schema.PipelineResult) {
	if o.repo == nil {
		if o.cfg.DatabaseURL == "" {
			return
		}
		if err := store.InitDB(ctx, o.cfg.DatabaseURL); err != nil {
			fmt.Printf("Warning: run archive unavailable: %v\n", err)
			return
		}
		o.repo = store.NewRunRepo()
	}
	if err := o.repo.Save(ctx, result); err != nil {
		fmt.Printf("Warning: failed to archive run: %v\n", err)
	}
}

// auditLog renders the citation and KPI audit trail for outputs/log.md.
func auditLog(result *schema.PipelineResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# 生成ログ: %s\n\n", result.CompanyName)
	fmt.Fprintf(&b, "- doc_id: %s\n", result.DocID)
	fmt.Fprintf(&b, "- ページ数: %d\n", result.Pages)
	fmt.Fprintf(&b, "- 業界: %s\n\n", result.Metadata.Industry)

	b.WriteString("## スロット別引用\n\n")
	for _, slot := range result.Article.SlotResults {
		fmt.Fprintf(&b, "### %s\n", slot.Title)
		fmt.Fprintf(&b, "- 引用ページ: %s\n", joinInts(slot.RelevantPages))
		if len(slot.Images) > 0 {
			fmt.Fprintf(&b, "- 画像: %s\n", strings.Join(slot.Images, ", "))
		}
		if slot.PromptFile != "" {
			fmt.Fprintf(&b, "- プロンプト: %s (%s)\n", slot.PromptFile, slot.PromptVersion)
		}
		b.WriteString("\n")
	}

	b.WriteString("## KPI引用\n\n")
	for _, key := range []string{schema.KPIRevenue, schema.KPIOperatingIncome, schema.KPIEBITDA} {
		kpi, ok := result.Common.KPIs[key]
		if !ok || kpi.Value == nil {
			fmt.Fprintf(&b, "- %s: 数値未取得\n", key)
			continue
		}
		fmt.Fprintf(&b, "- %s: %d (ページ %s)\n", key, *kpi.Value, joinInts(kpi.PageCitations))
	}
	return b.String()
}

func countDistinctPages(slots []schema.SlotResult) int {
	seen := make(map[int]bool)
	for _, slot := range slots {
		for _, p := range slot.RelevantPages {
			seen[p] = true
		}
	}
	return len(seen)
}

func joinInts(values []int) string {
	if len(values) == 0 {
		return "なし"
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ", ")
}

func limitStrings(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
