package studio

import (
	"context"

	"github.com/shouni/gemini-image-studio/pkg/builder"
	"github.com/shouni/gemini-image-studio/pkg/domain"
	"github.com/shouni/gemini-image-studio/pkg/generator"
)

// Planner はセッションのスナップショットから生成 Plan を組み立てます。*builder.Builder が満たします。
type Planner interface {
	CheckCredential() error
	Build(ctx context.Context, s builder.Snapshot) (*builder.Plan, error)
	BuildChatTurn(ctx context.Context, s builder.Snapshot, history []domain.ChatMessage, text string) (*builder.Plan, error)
}

// Executor は Plan を実行します。*generator.Dispatcher が満たします。
type Executor interface {
	Dispatch(ctx context.Context, plan *builder.Plan) ([]domain.GenerationResult, error)
	RunBatch(ctx context.Context, planner generator.Planner, base builder.Snapshot, prompts []string, progress generator.ProgressFunc) (*generator.BatchReport, error)
	DetectPose(ctx context.Context, img domain.EncodedImage) (domain.Pose, error)
}

// ImageFetcher は URL から参照画像を取得します。*adapters.GeminiImageCore が満たします。
type ImageFetcher interface {
	FetchImage(ctx context.Context, rawURL string) (domain.EncodedImage, error)
}
