package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shouni/gemini-image-studio/pkg/domain"
	"github.com/shouni/gemini-image-studio/pkg/generator"
	"github.com/shouni/gemini-image-studio/pkg/imgutil"
	"github.com/shouni/gemini-image-studio/pkg/session"
)

// Service はユーザー操作の境界です。
// 失敗はすべてここで State.Error に変換され、呼び出し元にも同じエラーを返します。
type Service struct {
	store    *session.Store
	planner  Planner
	executor Executor
	fetcher  ImageFetcher
}

// NewService は依存関係を注入して Service を生成します。fetcher は nil を許容します (URL 読み込み無効)。
func NewService(store *session.Store, planner Planner, executor Executor, fetcher ImageFetcher) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if planner == nil {
		return nil, fmt.Errorf("planner is required")
	}
	if executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	return &Service{store: store, planner: planner, executor: executor, fetcher: fetcher}, nil
}

// Store は状態の読み書きに使う Store を返します。
func (s *Service) Store() *session.Store {
	return s.store
}

// run は実行中フラグの上げ下げとエラーの記録を行います。
func (s *Service) run(ctx context.Context, batch bool, action string, fn func() error) error {
	if err := s.store.BeginAction(ctx, batch); err != nil {
		return err
	}
	err := fn()
	if err != nil {
		slog.WarnContext(ctx, "操作に失敗しました", "action", action, "error", err)
	}
	s.store.EndAction(ctx, err)
	return err
}

// Generate は現在の状態から1回分の生成を行い、結果を履歴に追加します。
// バリエーションの並列呼び出し中はストアに書き込みません。
func (s *Service) Generate(ctx context.Context) ([]domain.GenerationResult, error) {
	var results []domain.GenerationResult
	err := s.run(ctx, false, "generate", func() error {
		snap := s.store.State().Snapshot()
		plan, err := s.planner.Build(ctx, snap)
		if err != nil {
			return err
		}
		results, err = s.executor.Dispatch(ctx, plan)
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "画像を生成しました", "case", plan.Case, "count", len(results))
		return s.store.ApplyResults(ctx, results, snap.Prompt)
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ChatEdit は会話履歴を文脈として直前の結果を指示どおりに編集します。
// 成功するとユーザーの指示とモデルの応答が会話履歴に追加されます。
func (s *Service) ChatEdit(ctx context.Context, text string) (*domain.GenerationResult, error) {
	var result domain.GenerationResult
	err := s.run(ctx, false, "chat", func() error {
		st := s.store.State()
		plan, err := s.planner.BuildChatTurn(ctx, st.Snapshot(), st.Chat, text)
		if err != nil {
			return err
		}
		results, err := s.executor.Dispatch(ctx, plan)
		if err != nil {
			return err
		}
		result = results[0]

		user := domain.ChatMessage{Role: domain.RoleUser, Text: strings.TrimSpace(text)}
		if len(st.Chat) == 0 {
			// 最初のターンは起点の画像も文脈に残す
			user.Image, _ = st.Slots.First()
		}
		model := domain.ChatMessage{Role: domain.RoleModel, Text: result.Text, Image: result.Image}
		appended, err := s.store.CompleteChatTurn(ctx, st.Slots, results, user, model)
		if err != nil {
			return err
		}
		if !appended {
			slog.InfoContext(ctx, "編集中に画像が差し替えられたため会話履歴には追加しません")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// RunBatch は複数のプロンプトを順番に処理します。
// 各項目の成功結果は完了ごとに履歴に追加され、失敗した項目は件数をエラー欄に記録します。
func (s *Service) RunBatch(ctx context.Context, prompts []string) (*generator.BatchReport, error) {
	if !hasAny(prompts) {
		return nil, &domain.ValidationError{Missing: []domain.Precondition{domain.NeedPrompt}}
	}

	var report *generator.BatchReport
	err := s.run(ctx, true, "batch", func() error {
		base := s.store.State().Snapshot()
		progress := func(done, total int, item generator.BatchItem) {
			if item.Err != nil {
				return
			}
			if err := s.store.ApplyResults(ctx, item.Results, item.Prompt); err != nil {
				slog.WarnContext(ctx, "バッチ結果の反映に失敗しました", "index", item.Index, "error", err)
			}
			slog.DebugContext(ctx, "バッチの進捗", "done", done, "total", total)
		}
		var err error
		report, err = s.executor.RunBatch(ctx, s.planner, base, prompts, progress)
		return err
	})
	if err != nil {
		return report, err
	}
	if failed := report.Failed(); failed > 0 {
		s.store.SetError(ctx, fmt.Errorf("バッチ %d 件中 %d 件の生成に失敗しました", len(report.Items), failed))
	}
	return report, nil
}

// DetectPose は index のスロット画像から姿勢を抽出し、ポーズ描画モードに切り替えます。
func (s *Service) DetectPose(ctx context.Context, index int) (domain.Pose, error) {
	if !domain.ValidSlot(index) {
		return nil, fmt.Errorf("%w: %d", domain.ErrSlotIndex, index)
	}
	var pose domain.Pose
	err := s.run(ctx, false, "pose", func() error {
		if err := s.planner.CheckCredential(); err != nil {
			return err
		}
		img := s.store.State().Slots[index]
		var err error
		pose, err = s.executor.DetectPose(ctx, img)
		if err != nil {
			return err
		}
		mode := domain.DrawModePose
		return s.store.ApplySettings(ctx, session.Settings{DrawMode: &mode, Pose: pose})
	})
	if err != nil {
		return nil, err
	}
	return pose, nil
}

// UploadSlot はアップロードされた画像をエンコードしてスロットに入れます。
func (s *Service) UploadSlot(ctx context.Context, index int, data []byte) error {
	img, err := imgutil.EncodeDataURL(data)
	if err != nil {
		err = fmt.Errorf("%w: %w", domain.ErrValidation, err)
		s.store.SetError(ctx, err)
		return err
	}
	return s.SetSlot(ctx, index, img)
}

// SetSlot はエンコード済みの画像をスロットに入れます。
func (s *Service) SetSlot(ctx context.Context, index int, img domain.EncodedImage) error {
	if _, _, err := imgutil.DecodeDataURL(img); err != nil {
		err = fmt.Errorf("%w: %w", domain.ErrValidation, err)
		s.store.SetError(ctx, err)
		return err
	}
	return s.store.SetSlot(ctx, index, img)
}

// LoadSlotFromURL は URL の画像を取得してスロットに入れます。
func (s *Service) LoadSlotFromURL(ctx context.Context, index int, rawURL string) error {
	if s.fetcher == nil {
		return errors.New("URL からの読み込みは無効です")
	}
	if !domain.ValidSlot(index) {
		return fmt.Errorf("%w: %d", domain.ErrSlotIndex, index)
	}
	img, err := s.fetcher.FetchImage(ctx, rawURL)
	if err != nil {
		s.store.SetError(ctx, err)
		return err
	}
	return s.store.SetSlot(ctx, index, img)
}

// ImportProject はプロジェクトファイルを読み込みます。失敗しても現在の状態は変わりません。
func (s *Service) ImportProject(ctx context.Context, data []byte) error {
	if s.store.State().Busy {
		return domain.ErrBusy
	}
	if err := s.store.Import(ctx, data); err != nil {
		slog.WarnContext(ctx, "プロジェクトの読み込みに失敗しました", "error", err)
		s.store.SetError(ctx, err)
		return err
	}
	return nil
}

func hasAny(prompts []string) bool {
	for _, p := range prompts {
		if strings.TrimSpace(p) != "" {
			return true
		}
	}
	return false
}
