package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/higaso4186/ir-articles/pkg/core/schema"
)

func writePrompt(t *testing.T, dir string, name string, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write prompt file: %v", err)
	}
}

func TestSlotFilename(t *testing.T) {
	cases := map[int]string{
		1: "slot1_業績分析.md",
		2: "slot2_セグメント分析.md",
		3: "slot3_財務健全性.md",
		4: "slot4_戦略展望.md",
		5: "slot5_リスク分析.md",
	}
	for n, want := range cases {
		got, err := SlotFilename(n)
		if err != nil {
			t.Errorf("SlotFilename(%d) error: %v", n, err)
			continue
		}
		if got != want {
			t.Errorf("SlotFilename(%d) = %q, want %q", n, got, want)
		}
	}
	if _, err := SlotFilename(6); err == nil {
		t.Error("SlotFilename(6) should fail")
	}
}

func TestLoadCachesContent(t *testing.T) {
	dir := t.TempDir()
	writePrompt(t, dir, OverviewFile, "概要プロンプト v1")

	loader := NewLoader(dir)
	first, err := loader.Load(OverviewFile)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	// Disk change after first load must not be visible: the cache wins.
	writePrompt(t, dir, OverviewFile, "概要プロンプト v2")
	second, err := loader.Load(OverviewFile)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if first != second {
		t.Error("loader must serve cached content")
	}
}

func TestVersionStableAndDistinct(t *testing.T) {
	dir := t.TempDir()
	writePrompt(t, dir, OverviewFile, "プロンプトA")
	writePrompt(t, dir, InvestmentFile, "プロンプトB")

	loader := NewLoader(dir)
	v1 := loader.Version(OverviewFile)
	if len(v1) != 12 {
		t.Errorf("version length = %d, want 12", len(v1))
	}
	if v1 != loader.Version(OverviewFile) {
		t.Error("version must be stable across calls")
	}
	if v1 == loader.Version(InvestmentFile) {
		t.Error("different content must produce different versions")
	}
	if v := loader.Version("存在しない.md"); v != "" {
		t.Errorf("missing file version = %q, want empty", v)
	}
}

func TestLoadMissingFile(t *testing.T) {
	loader := NewLoader(t.TempDir())
	if _, err := loader.Load("missing.md"); err == nil {
		t.Fatal("expected error for missing prompt file")
	}
}

func TestCreateOverviewPromptLimitsPages(t *testing.T) {
	dir := t.TempDir()
	writePrompt(t, dir, OverviewFile, "ベースプロンプト")
	loader := NewLoader(dir)

	var pages []schema.Page
	for i := 1; i <= 12; i++ {
		pages = append(pages, schema.Page{Page: i, Text: "本文"})
	}
	meta := &schema.Metadata{CompanyName: "サンプル株式会社", Industry: "製造", KPISummary: "売上高: ¥1,000百円"}

	got, err := loader.CreateOverviewPrompt(pages, meta)
	if err != nil {
		t.Fatalf("CreateOverviewPrompt error: %v", err)
	}
	if !strings.Contains(got, "ベースプロンプト") {
		t.Error("base prompt missing")
	}
	if !strings.Contains(got, "--- ページ 10 ---") {
		t.Error("page 10 should be included")
	}
	if strings.Contains(got, "--- ページ 11 ---") {
		t.Error("overview digest must stop at 10 pages")
	}
	if !strings.Contains(got, "- 企業名: サンプル株式会社") {
		t.Error("metadata block missing")
	}
	if !strings.Contains(got, "記事冒頭に掲載する高品質な概要") {
		t.Error("closing instruction missing")
	}
}

func TestCreateSlotPromptIncludesGuidanceAndAllPages(t *testing.T) {
	dir := t.TempDir()
	writePrompt(t, dir, "slot3_財務健全性.md", "財務プロンプト")
	loader := NewLoader(dir)

	var pages []schema.Page
	for i := 1; i <= 12; i++ {
		pages = append(pages, schema.Page{Page: i, Text: "本文"})
	}
	meta := &schema.Metadata{
		CompanyName:  "サンプル株式会社",
		SlotGuidance: map[int]string{3: "財務の補足指示"},
	}

	got, err := loader.CreateSlotPrompt(3, pages, meta)
	if err != nil {
		t.Fatalf("CreateSlotPrompt error: %v", err)
	}
	if !strings.Contains(got, "財務プロンプト") {
		t.Error("base prompt missing")
	}
	if !strings.Contains(got, "## 補足指示\n財務の補足指示") {
		t.Error("slot guidance missing")
	}
	if !strings.Contains(got, "--- ページ 12 ---") {
		t.Error("slot digest must include every page")
	}
}

func TestMetadataSectionFallbacks(t *testing.T) {
	got := metadataSection(&schema.Metadata{})
	for _, want := range []string{"不明企業", "業界不明", "期間情報不明", "主要KPI情報が取得できていません", "セグメント情報が限定的", "会計基準不明"} {
		if !strings.Contains(got, want) {
			t.Errorf("metadata block missing fallback %q", want)
		}
	}
}

func TestFillTemplateRemovesUnmatched(t *testing.T) {
	got := FillTemplate("{{A}}-{{B}}", map[string]string{"A": "x"})
	if got != "x-" {
		t.Errorf("FillTemplate = %q, want %q", got, "x-")
	}
}
