package generator

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/shouni/gemini-image-studio/pkg/builder"
	"github.com/shouni/gemini-image-studio/pkg/domain"
	"github.com/shouni/gemini-image-studio/pkg/imgutil"
)

// Dispatcher は Builder が選んだ操作を実行し、応答を GenerationResult に正規化します。
type Dispatcher struct {
	remote RemoteModel
	newID  func() string
}

// NewDispatcher は RemoteModel を注入して Dispatcher を生成します。
func NewDispatcher(remote RemoteModel) (*Dispatcher, error) {
	if remote == nil {
		return nil, fmt.Errorf("remote (RemoteModel) is required")
	}
	return &Dispatcher{remote: remote, newID: uuid.NewString}, nil
}

// Dispatch は Plan を実行します。OpMultimodal では Count 回の呼び出しを並列に行い、
// すべての完了を待ってから要求順で結果を返します。1件でも失敗すれば全体が失敗します。
func (d *Dispatcher) Dispatch(ctx context.Context, plan *builder.Plan) ([]domain.GenerationResult, error) {
	if plan == nil {
		return nil, fmt.Errorf("plan is required")
	}
	switch plan.Operation {
	case builder.OpPure:
		return d.dispatchPure(ctx, plan)
	case builder.OpMultimodal:
		return d.dispatchMultimodal(ctx, plan)
	}
	return nil, fmt.Errorf("未知の操作です: %q", plan.Operation)
}

func (d *Dispatcher) dispatchPure(ctx context.Context, plan *builder.Plan) ([]domain.GenerationResult, error) {
	resp, err := d.remote.GeneratePure(ctx, plan.PureRequest())
	if err != nil {
		return nil, err
	}
	return d.normalizePure(resp, plan.Seed)
}

// normalizePure は各画像に要求シードを付けます。Imagen の応答はシードを報告しません。
func (d *Dispatcher) normalizePure(resp *domain.PureGenerationResponse, seed *int64) ([]domain.GenerationResult, error) {
	if resp == nil || len(resp.Images) == 0 {
		var text string
		if resp != nil {
			text = strings.Join(resp.FilteredReasons, "; ")
		}
		return nil, &domain.RefusalError{Text: text}
	}

	results := make([]domain.GenerationResult, 0, len(resp.Images))
	for i, gi := range resp.Images {
		img, err := encode(gi.Data, gi.MimeType)
		if err != nil {
			return nil, fmt.Errorf("生成画像 %d を変換できません: %w", i, err)
		}
		results = append(results, domain.GenerationResult{ID: d.newID(), Image: img, Seed: copySeed(seed)})
	}
	return results, nil
}

func (d *Dispatcher) dispatchMultimodal(ctx context.Context, plan *builder.Plan) ([]domain.GenerationResult, error) {
	n := max(1, plan.Count)
	results := make([]domain.GenerationResult, n)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			req := plan.MultimodalRequest()
			req.Variation = i
			resp, err := d.remote.GenerateMultimodal(gctx, req)
			if err != nil {
				return err
			}
			r, err := d.normalizeMultimodal(resp, plan.Seed)
			if err != nil {
				return err
			}
			results[i] = *r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.WarnContext(ctx, "バリエーション生成に失敗したため結果を破棄します", "count", n, "error", err)
		return nil, err
	}
	return results, nil
}

// normalizeMultimodal は最初の画像パーツを結果にします。API はこの経路でシードを報告しないため、
// 要求シードをそのまま返します。
func (d *Dispatcher) normalizeMultimodal(resp *domain.MultimodalResponse, seed *int64) (*domain.GenerationResult, error) {
	if resp == nil {
		return nil, &domain.RefusalError{}
	}
	text := strings.TrimSpace(strings.Join(resp.Texts, "\n"))
	if len(resp.Images) == 0 {
		if text == "" && resp.FinishReason != "" && resp.FinishReason != "STOP" {
			text = "FinishReason: " + resp.FinishReason
		}
		return nil, &domain.RefusalError{Text: text}
	}

	first := resp.Images[0]
	img, err := encode(first.Data, first.MimeType)
	if err != nil {
		return nil, fmt.Errorf("生成画像を変換できません: %w", err)
	}
	var grounding []domain.Source
	if len(resp.Grounding) > 0 {
		grounding = append(grounding, resp.Grounding...)
	}
	return &domain.GenerationResult{
		ID:              d.newID(),
		Image:           img,
		Text:            text,
		GroundingChunks: grounding,
		Seed:            copySeed(seed),
	}, nil
}

// encode は宣言された MIME タイプを優先して data URL に変換します。
func encode(data []byte, mimeType string) (domain.EncodedImage, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("画像データが空です")
	}
	if strings.HasPrefix(mimeType, "image/") {
		return domain.EncodedImage("data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)), nil
	}
	return imgutil.EncodeDataURL(data)
}

func copySeed(seed *int64) *int64 {
	if seed == nil {
		return nil
	}
	v := *seed
	return &v
}
