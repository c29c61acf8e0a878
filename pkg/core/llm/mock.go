package llm

import (
	"context"

	"github.com/higaso4186/ir-articles/pkg/core/schema"
)

// MockClient returns fixed canned text per capability with zeroed usage.
// It exists so the pipeline can run end to end without credentials.
type MockClient struct {
	usage schema.TokenUsage
}

var _ Client = (*MockClient)(nil)

// NewMockClient creates a deterministic no-op client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

func (c *MockClient) GenerateAnalysis(ctx context.Context, prompt string) (string, error) {
	return `分析内容: 決算資料を詳細に分析した結果、以下のポイントが確認されました。

重要なポイント:
- 売上高は前期比で成長を維持
- 営業利益率の改善が見られる
- 新規事業の貢献が拡大
- 財務体質の健全性を維持

関連ページ: ページ 3, 5, 8
画像候補: ページ 3, 5, 8
`, nil
}

func (c *MockClient) GenerateSummary(ctx context.Context, prompt string) (string, error) {
	return `決算の要点:
- 売上高は前期比で堅調な成長を維持
- 営業利益は改善傾向を示している
- 新規事業の貢献が拡大し、成長ドライバーとして機能
- 財務体質は健全で、投資余力も確保されている
`, nil
}

func (c *MockClient) GenerateArticle(ctx context.Context, prompt string) (string, error) {
	return `# 決算分析記事（Mock版）

## サマリー
この記事は決算資料を詳細に分析した結果です。

## 主要なポイント
- 売上高の成長要因
- 営業利益の改善
- 新規事業の貢献
- 財務健全性の維持

## 投資判断
総合評価: HOLD
ターゲット価格: 要検討

*この記事はMock AIにより生成されました。
`, nil
}

func (c *MockClient) LastUsage() *schema.TokenUsage { return &c.usage }

func (c *MockClient) ModelName() string { return "mock" }
