// Package schema defines the shared record types that flow through the
// disclosure-analysis pipeline: extracted facts, derived metadata, slot
// results and token accounting. All monetary values are stored as base
// currency units (raw counts); the document's display unit is recorded
// separately for formatting only.
package schema

// Page is one page of extracted disclosure text. Page numbers are 1-based
// and contiguous in extraction order.
type Page struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

// KPIValue holds one extracted key figure. A nil Value means the figure was
// not found; it is never fabricated.
type KPIValue struct {
	Value         *int64 `json:"value"`
	PageCitations []int  `json:"page_citations"`
}

// SegmentEntry is one reportable segment detected in the document.
type SegmentEntry struct {
	Name          string `json:"name"`
	Revenue       *int64 `json:"revenue"`
	PageCitations []int  `json:"page_citations"`
}

// KPI keys that are always present in CommonInfo.KPIs.
const (
	KPIRevenue         = "revenue"
	KPIOperatingIncome = "operating_income"
	KPIEBITDA          = "ebitda"
)

// CommonInfo aggregates the facts the common extractor derives from the
// page text. Every field degrades to nil/empty when no pattern matches.
type CommonInfo struct {
	CompanyName        *string             `json:"company_name"`
	FiscalYear         *string             `json:"fiscal_year"`
	PeriodLabel        *string             `json:"period_label"`
	AccountingStandard *string             `json:"accounting_standard"` // IFRS/JGAAP/US-GAAP
	Currency           *string             `json:"currency"`            // JPY, USD
	Unit               *string             `json:"unit"`                // million/thousand/one
	KPIs               map[string]KPIValue `json:"kpis"`
	Segments           []SegmentEntry      `json:"segments"`
}

// SlotResult is the output of one analyzer slot. PromptFile/PromptVersion
// are back-filled by the orchestrator for provenance.
type SlotResult struct {
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	RelevantPages []int    `json:"relevant_pages"`
	Images        []string `json:"images"`
	PromptFile    string   `json:"prompt_file,omitempty"`
	PromptVersion string   `json:"prompt_version,omitempty"`
}

// TokenUsage mirrors the provider's token accounting for a single call.
type TokenUsage struct {
	Input       int `json:"input"`
	CachedInput int `json:"cached_input"`
	Output      int `json:"output"`
	Total       int `json:"total"`
}

// Add accumulates another usage snapshot into the receiver.
func (t *TokenUsage) Add(other TokenUsage) {
	t.Input += other.Input
	t.CachedInput += other.CachedInput
	t.Output += other.Output
	t.Total += other.Total
}

// UsageRecord attributes one generation call to a pipeline step.
type UsageRecord struct {
	Step          string     `json:"step"`
	Model         string     `json:"model,omitempty"`
	Tokens        TokenUsage `json:"tokens"`
	PromptFile    string     `json:"prompt_file,omitempty"`
	PromptVersion string     `json:"prompt_version,omitempty"`
}

// CostSummary is the per-run token accounting persisted to outputs/cost.json.
type CostSummary struct {
	Model  string        `json:"model,omitempty"`
	Calls  []UsageRecord `json:"calls"`
	Totals TokenUsage    `json:"totals"`
}

// QualityChecks records the post-assembly quality gate. Failed checks are
// warnings only and never block completion.
type QualityChecks struct {
	CharacterCount         int  `json:"character_count"`
	CharCountOK            bool `json:"char_count_ok"`
	CitationCount          int  `json:"citation_count"`
	CitationRequirementMet bool `json:"citation_requirement_met"`
	TableCount             int  `json:"table_count"`
	TableRequirementMet    bool `json:"table_requirement_met"`
	FigureCount            int  `json:"figure_count"`
	FigureRequirementMet   bool `json:"figure_requirement_met"`
}

// Metadata is the derived record built once per run from CommonInfo and the
// pages. Explicit fields replace the dict-shaped metadata of earlier designs
// so the full contract lives in one place.
type Metadata struct {
	CompanyName         string            `json:"company_name"`
	Industry            string            `json:"industry"`
	PeriodLabel         *string           `json:"period_label"`
	FiscalYear          *string           `json:"fiscal_year"`
	AccountingStandard  *string           `json:"accounting_standard"`
	Currency            *string           `json:"currency"`
	Unit                *string           `json:"unit"`
	KPISummary          string            `json:"kpi_summary"`
	Segments            []string          `json:"segments"`
	SegmentDescriptions []string          `json:"segment_descriptions"`
	MetricKeywords      []string          `json:"metric_keywords"`
	SegmentKeywords     []string          `json:"segment_keywords"`
	OverviewGuidance    string            `json:"overview_guidance"`
	InvestmentGuidance  string            `json:"investment_guidance"`
	SlotGuidance        map[int]string    `json:"slot_guidance"`
	PromptVersions      map[string]string `json:"prompt_versions"`
	QualityChecks       *QualityChecks    `json:"quality_checks,omitempty"`
}

// ArticleResult is the assembled article plus its bookkeeping.
type ArticleResult struct {
	Content            string       `json:"content"`
	WordCount          int          `json:"word_count"`
	CharacterCount     int          `json:"character_count"`
	Overview           string       `json:"overview"`
	SlotResults        []SlotResult `json:"slot_results"`
	InvestmentJudgment string       `json:"investment_judgment"`
	TotalImages        int          `json:"total_images"`
	TokenUsage         CostSummary  `json:"token_usage"`
}

// PipelineResult is the full run result persisted to extracted/result.json.
type PipelineResult struct {
	CompanyName string        `json:"company_name"`
	Filename    string        `json:"filename"`
	DocID       string        `json:"doc_id"`
	Pages       int           `json:"pages"`
	Common      CommonInfo    `json:"common"`
	Metadata    Metadata      `json:"metadata"`
	Article     ArticleResult `json:"article"`
}

// RunLog is the run summary persisted to logs/run.json.
type RunLog struct {
	RunID          string     `json:"run_id"`
	TS             int64      `json:"ts"`
	FileHash       string     `json:"file_hash"`
	Pages          int        `json:"pages"`
	Outdir         string     `json:"outdir"`
	AIProvider     string     `json:"ai_provider"`
	WordCount      int        `json:"word_count"`
	CharacterCount int        `json:"character_count"`
	Industry       string     `json:"industry"`
	ImagesUsed     int        `json:"images_used"`
	SlotsProcessed int        `json:"slots_processed"`
	Tokens         TokenUsage `json:"tokens"`
}

// StrPtr is a convenience for building optional string fields.
func StrPtr(s string) *string { return &s }

// Int64Ptr is a convenience for building optional monetary values.
func Int64Ptr(v int64) *int64 { return &v }
