// Package prompt loads Markdown prompt files from a prompt directory and
// assembles the final prompts sent to the generation client. Loaded content
// and content versions are cached per Loader instance.
package prompt

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/higaso4186/ir-articles/pkg/core/schema"
)

// Well-known prompt files.
const (
	OverviewFile   = "概要生成.md"
	InvestmentFile = "投資判断生成.md"
	ArticleFile    = "決算書分析記事作成プロンプト.md"
	TemplateFile   = "記事テンプレート.md"
)

var slotFiles = map[int]string{
	1: "slot1_業績分析.md",
	2: "slot2_セグメント分析.md",
	3: "slot3_財務健全性.md",
	4: "slot4_戦略展望.md",
	5: "slot5_リスク分析.md",
}

// SlotFilename maps a slot number to its prompt file. Unknown numbers
// return an error so callers never silently load the wrong prompt.
func SlotFilename(n int) (string, error) {
	f, ok := slotFiles[n]
	if !ok {
		return "", fmt.Errorf("invalid slot number: %d", n)
	}
	return f, nil
}

// Loader reads prompt files relative to a base directory. Content is read
// once per filename; Version is the first 12 hex chars of the content's
// sha256, recomputed only when the content is first loaded.
type Loader struct {
	dir string

	mu       sync.Mutex
	texts    map[string]string
	versions map[string]string
}

func NewLoader(dir string) *Loader {
	return &Loader{
		dir:      dir,
		texts:    make(map[string]string),
		versions: make(map[string]string),
	}
}

// Load returns the prompt file content, reading from disk on first use.
func (l *Loader) Load(filename string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if text, ok := l.texts[filename]; ok {
		return text, nil
	}
	path := filepath.Join(l.dir, filename)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("prompt file not found: %s: %w", path, err)
	}
	text := string(data)
	sum := sha256.Sum256(data)
	l.texts[filename] = text
	l.versions[filename] = hex.EncodeToString(sum[:])[:12]
	return text, nil
}

// Version returns the content version for a prompt file, loading it if
// necessary. Missing files yield an empty version.
func (l *Loader) Version(filename string) string {
	l.mu.Lock()
	if v, ok := l.versions[filename]; ok {
		l.mu.Unlock()
		return v
	}
	l.mu.Unlock()

	if _, err := l.Load(filename); err != nil {
		return ""
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.versions[filename]
}

// LoadSlotPrompt loads the base prompt for the given slot number.
func (l *Loader) LoadSlotPrompt(n int) (string, error) {
	filename, err := SlotFilename(n)
	if err != nil {
		return "", err
	}
	return l.Load(filename)
}

func metadataSection(meta *schema.Metadata) string {
	if meta == nil {
		return ""
	}
	company := meta.CompanyName
	if company == "" {
		company = "不明企業"
	}
	industry := meta.Industry
	if industry == "" {
		industry = "業界不明"
	}
	period := firstNonEmpty(deref(meta.PeriodLabel), deref(meta.FiscalYear), "期間情報不明")
	kpiSummary := meta.KPISummary
	if kpiSummary == "" {
		kpiSummary = "主要KPI情報が取得できていません"
	}
	segments := strings.Join(limit(meta.Segments, 5), ", ")
	if segments == "" {
		segments = "セグメント情報が限定的"
	}
	accounting := firstNonEmpty(deref(meta.AccountingStandard), "", "会計基準不明")

	lines := []string{
		"## 企業メタ情報",
		"- 企業名: " + company,
		"- 業界: " + industry,
		"- 会計基準: " + accounting,
		"- 対象期間: " + period,
		"- 主要KPI: " + kpiSummary,
		"- 主なセグメント: " + segments,
	}
	return strings.Join(lines, "\n") + "\n\n"
}

// guidanceSection emits the 補足指示 block for a slot, or for the overview
// when slot is 0.
func guidanceSection(slot int, meta *schema.Metadata) string {
	if meta == nil {
		return ""
	}
	var guidance string
	if slot == 0 {
		guidance = meta.OverviewGuidance
	} else if meta.SlotGuidance != nil {
		guidance = meta.SlotGuidance[slot]
	}
	if guidance == "" {
		return ""
	}
	return "## 補足指示\n" + guidance + "\n\n"
}

// pageDigest renders page texts with per-page headers. limit <= 0 means all
// pages.
func pageDigest(pages []schema.Page, n int) string {
	var b strings.Builder
	slice := pages
	if n > 0 && len(slice) > n {
		slice = slice[:n]
	}
	for _, p := range slice {
		fmt.Fprintf(&b, "--- ページ %d ---\n", p.Page)
		b.WriteString(p.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

// CreateOverviewPrompt assembles the prompt for the article's opening
// overview from the first 10 pages.
func (l *Loader) CreateOverviewPrompt(pages []schema.Page, meta *schema.Metadata) (string, error) {
	base, err := l.Load(OverviewFile)
	if err != nil {
		return "", err
	}
	sections := []string{
		base,
		metadataSection(meta),
		guidanceSection(0, meta),
		"## 決算書のテキスト内容\n" + pageDigest(pages, 10),
		"上記のテキストを分析し、記事冒頭に掲載する高品質な概要を作成してください。読者が企業の状況を素早く把握できるよう、数値と要点を3〜4項目に整理してください。",
	}
	return joinSections(sections), nil
}

// CreateSlotPrompt assembles the analysis prompt for one slot over all
// pages.
func (l *Loader) CreateSlotPrompt(slot int, pages []schema.Page, meta *schema.Metadata) (string, error) {
	base, err := l.LoadSlotPrompt(slot)
	if err != nil {
		return "", err
	}
	sections := []string{
		base,
		metadataSection(meta),
		guidanceSection(slot, meta),
		"## 決算書のテキスト内容\n" + pageDigest(pages, 0),
		"上記の決算書を詳細に分析し、指定された観点に従って定量・定性のバランスを意識したレポートを作成してください。引用ページと根拠数値を明示してください。",
	}
	return joinSections(sections), nil
}

var placeholderPattern = regexp.MustCompile(`\{\{[A-Za-z0-9_]+\}\}`)

// FillTemplate substitutes {{KEY}} placeholders. Placeholders without a
// value are removed rather than left in the output.
func FillTemplate(tpl string, values map[string]string) string {
	out := tpl
	for key, value := range values {
		out = strings.ReplaceAll(out, "{{"+key+"}}", value)
	}
	return placeholderPattern.ReplaceAllString(out, "")
}

func joinSections(sections []string) string {
	kept := make([]string, 0, len(sections))
	for _, s := range sections {
		if s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, "\n")
}

func limit(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func firstNonEmpty(a, b, fallback string) string {
	if a != "" {
		return a
	}
	if b != "" {
		return b
	}
	return fallback
}
