package generator

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/shouni/gemini-image-studio/pkg/builder"
	"github.com/shouni/gemini-image-studio/pkg/domain"
)

// BatchItem はバッチ内の1プロンプト分の結果です。Err が nil でなければ失敗した項目です。
type BatchItem struct {
	Index   int
	Prompt  string
	Results []domain.GenerationResult
	Err     error
}

// BatchReport はバッチ実行全体の結果です。
type BatchReport struct {
	ID    string
	Items []BatchItem
}

// Results は成功した項目の結果を実行順にまとめて返します。
func (r *BatchReport) Results() []domain.GenerationResult {
	var out []domain.GenerationResult
	for _, item := range r.Items {
		if item.Err == nil {
			out = append(out, item.Results...)
		}
	}
	return out
}

// Failed は失敗した項目数を返します。
func (r *BatchReport) Failed() int {
	n := 0
	for _, item := range r.Items {
		if item.Err != nil {
			n++
		}
	}
	return n
}

// ProgressFunc は各項目の完了ごとに呼ばれます。
type ProgressFunc func(done, total int, item BatchItem)

// RunBatch は複数プロンプトを1件ずつ順番に処理します。
// 項目の失敗は記録してスキップし、残りの項目は続行します。
// 認証情報の欠落とコンテキストのキャンセルだけはバッチ全体を止めます。
func (d *Dispatcher) RunBatch(ctx context.Context, planner Planner, base builder.Snapshot, prompts []string, progress ProgressFunc) (*BatchReport, error) {
	report := &BatchReport{ID: uuid.NewString()}

	var queue []string
	for _, p := range prompts {
		if p = strings.TrimSpace(p); p != "" {
			queue = append(queue, p)
		}
	}

	slog.InfoContext(ctx, "バッチ処理を開始します", "batch_id", report.ID, "items", len(queue))
	for i, prompt := range queue {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		item := BatchItem{Index: i, Prompt: prompt}
		snap := base
		snap.Prompt = prompt

		plan, err := planner.Build(ctx, snap)
		if errors.Is(err, domain.ErrConfigMissing) {
			return report, err
		}
		if err == nil {
			item.Results, err = d.Dispatch(ctx, plan)
		}
		if err != nil {
			item.Err = err
			slog.WarnContext(ctx, "バッチ項目の生成に失敗したためスキップします",
				"batch_id", report.ID, "index", i, "error", err)
		}

		report.Items = append(report.Items, item)
		if progress != nil {
			progress(i+1, len(queue), item)
		}
	}

	slog.InfoContext(ctx, "バッチ処理が完了しました",
		"batch_id", report.ID, "items", len(report.Items), "failed", report.Failed())
	return report, nil
}
