package generator

import (
	"context"

	"github.com/shouni/gemini-image-studio/pkg/builder"
	"github.com/shouni/gemini-image-studio/pkg/domain"
)

// RemoteModel は外部の生成 API が提供する3種類の操作です。
type RemoteModel interface {
	// GeneratePure は Operation A (テキストからの純粋生成) です。
	GeneratePure(ctx context.Context, req domain.PureGenerationRequest) (*domain.PureGenerationResponse, error)
	// GenerateMultimodal は Operation B (パーツ列による生成・編集) です。
	GenerateMultimodal(ctx context.Context, req domain.MultimodalRequest) (*domain.MultimodalResponse, error)
	// AnalyzeStructured は Operation C (スキーマ付き構造化解析) です。
	AnalyzeStructured(ctx context.Context, req domain.StructuredAnalysisRequest) (*domain.StructuredAnalysisResponse, error)
}

// Planner はスナップショットから生成 Plan を組み立てます。*builder.Builder が満たします。
type Planner interface {
	Build(ctx context.Context, s builder.Snapshot) (*builder.Plan, error)
}
