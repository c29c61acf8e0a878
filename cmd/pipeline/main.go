package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/higaso4186/ir-articles/pkg/core/config"
	"github.com/higaso4186/ir-articles/pkg/core/llm"
	"github.com/higaso4186/ir-articles/pkg/core/pagesource"
	"github.com/higaso4186/ir-articles/pkg/core/pipeline"
	"github.com/higaso4186/ir-articles/pkg/core/prompt"
	"github.com/higaso4186/ir-articles/pkg/core/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	pdfPath := flag.String("pdf", "", "Path to the disclosure document (required)")
	outdir := flag.String("outdir", "out", "Output directory for run artifacts")
	aiProvider := flag.String("ai-provider", "openai", "Generation backend: mock | openai | gemini")
	pagesPath := flag.String("pages", "", "Pre-extracted pages.jsonl (overrides PDF text extraction)")
	imagesDir := flag.String("images", "", "Directory of pre-rendered page images (p001.png ...)")
	promptDir := flag.String("prompts", "prompt", "Directory of prompt Markdown files")
	configPath := flag.String("config", "", "Optional YAML config file")
	flag.Parse()

	if *pdfPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --pdf is required")
		flag.Usage()
		os.Exit(1)
	}
	if _, err := os.Stat(*pdfPath); err != nil {
		log.Fatalf("Input document not found: %v", err)
	}

	cfg, err := config.Load(*aiProvider, *configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	client, err := llm.New(ctx, *aiProvider, cfg)
	if err != nil {
		log.Fatalf("Failed to create AI client: %v", err)
	}

	var loader *prompt.Loader
	if _, err := os.Stat(*promptDir); err == nil {
		loader = prompt.NewLoader(*promptDir)
	} else {
		log.Printf("Warning: prompt directory %s not found, using built-in prompts", *promptDir)
	}

	src := pagesource.ForPath(*pdfPath, *pagesPath, *imagesDir)

	orch := pipeline.NewOrchestrator(src, client, loader, cfg)
	defer store.Close()

	result, err := orch.Run(ctx, *pdfPath, *outdir)
	if err != nil {
		log.Fatalf("Pipeline failed: %v", err)
	}

	fmt.Println()
	fmt.Println("=== 生成完了 ===")
	fmt.Printf("企業名: %s\n", result.CompanyName)
	fmt.Printf("ドキュメントID: %s\n", result.DocID)
	fmt.Printf("ページ数: %d\n", result.Pages)
	fmt.Printf("記事: %s/outputs/article.md\n", *outdir)
	fmt.Printf("文字数: %d (単語数: %d)\n", result.Article.CharacterCount, result.Article.WordCount)
	fmt.Printf("使用画像数: %d\n", result.Article.TotalImages)
}
