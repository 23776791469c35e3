package session

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shouni/gemini-image-studio/pkg/domain"
	"github.com/shouni/gemini-image-studio/pkg/imgutil"
)

// SetSlot は index のスロットに画像を設定します。
func (s *Store) SetSlot(ctx context.Context, index int, img domain.EncodedImage) error {
	if !domain.ValidSlot(index) {
		return fmt.Errorf("%w: %d", domain.ErrSlotIndex, index)
	}
	return s.Update(ctx, func(st *State) error {
		st.Slots[index] = img
		return nil
	})
}

// ClearSlot は index のスロットを空にします。ロックやスタイル参照は同じ更新で解除されます。
func (s *Store) ClearSlot(ctx context.Context, index int) error {
	return s.SetSlot(ctx, index, "")
}

// Settings は部分更新用の設定です。nil の項目は変更しません。
type Settings struct {
	DrawMode       *domain.DrawMode    `json:"drawMode,omitempty"`
	AspectRatio    *domain.AspectRatio `json:"aspectRatio,omitempty"`
	StyleStrength  *int                `json:"styleStrength,omitempty"`
	Prompt         *string             `json:"prompt,omitempty"`
	NegativePrompt *string             `json:"negativePrompt,omitempty"`
	Variations     *int                `json:"variations,omitempty"`
	Seed           *int64              `json:"seed,omitempty"`
	ClearSeed      bool                `json:"clearSeed,omitempty"`

	CharacterLock       *domain.CharacterLock `json:"characterLock,omitempty"`
	ClearCharacterLock  bool                  `json:"clearCharacterLock,omitempty"`
	StyleReferenceIndex *int                  `json:"styleReferenceIndex,omitempty"`
	ClearStyleReference bool                  `json:"clearStyleReference,omitempty"`

	// Controls は指定したチャンネルだけを置き換えます。
	Controls map[domain.ControlChannel]domain.ControlLayer `json:"controls,omitempty"`

	MaskEdit      *domain.MaskEdit     `json:"maskEdit,omitempty"`
	ClearMaskEdit bool                 `json:"clearMaskEdit,omitempty"`
	PoseCanvas    *domain.EncodedImage `json:"poseCanvas,omitempty"`
	Pose          domain.Pose          `json:"pose,omitempty"`
	ClearPose     bool                 `json:"clearPose,omitempty"`
}

// ApplySettings は設定を検証してから一括で反映します。
func (s *Store) ApplySettings(ctx context.Context, in Settings) error {
	return s.update(ctx, func(st *State) error {
		if in.DrawMode != nil {
			if !in.DrawMode.Valid() {
				return fmt.Errorf("%w: 不正な描画モードです: %q", domain.ErrValidation, *in.DrawMode)
			}
			st.DrawMode = *in.DrawMode
		}
		if in.AspectRatio != nil {
			if err := in.AspectRatio.Validate(); err != nil {
				return err
			}
			st.AspectRatio = *in.AspectRatio
		}
		if in.StyleStrength != nil {
			if *in.StyleStrength < 0 || *in.StyleStrength > 100 {
				return fmt.Errorf("%w: スタイル強度は 0〜100 です", domain.ErrValidation)
			}
			st.StyleStrength = *in.StyleStrength
		}
		if in.Prompt != nil {
			st.Prompt = *in.Prompt
		}
		if in.NegativePrompt != nil {
			st.NegativePrompt = *in.NegativePrompt
		}
		if in.Variations != nil {
			if *in.Variations < 1 || *in.Variations > 4 {
				return fmt.Errorf("%w: バリエーション数は 1〜4 です", domain.ErrValidation)
			}
			st.Variations = *in.Variations
		}
		if in.ClearSeed {
			st.Seed = nil
		} else if in.Seed != nil {
			v := *in.Seed
			st.Seed = &v
		}
		if in.ClearCharacterLock {
			st.CharacterLock = nil
		} else if in.CharacterLock != nil {
			if !st.Slots.Has(in.CharacterLock.Index) {
				return fmt.Errorf("%w: ロック対象のスロット %d に画像がありません", domain.ErrValidation, in.CharacterLock.Index+1)
			}
			lock := *in.CharacterLock
			st.CharacterLock = &lock
		}
		if in.ClearStyleReference {
			st.StyleReferenceIndex = nil
		} else if in.StyleReferenceIndex != nil {
			if !st.Slots.Has(*in.StyleReferenceIndex) {
				return fmt.Errorf("%w: スタイル参照のスロット %d に画像がありません", domain.ErrValidation, *in.StyleReferenceIndex+1)
			}
			idx := *in.StyleReferenceIndex
			st.StyleReferenceIndex = &idx
		}
		for ch, layer := range in.Controls {
			if err := checkImage("controls."+string(ch), layer.Image); err != nil {
				return err
			}
			if !st.Controls.Set(ch, layer) {
				return fmt.Errorf("%w: 未知の制御チャンネルです: %q", domain.ErrValidation, ch)
			}
		}
		if in.ClearMaskEdit {
			st.MaskEdit = nil
		} else if in.MaskEdit != nil {
			if err := checkImage("maskEdit.base", in.MaskEdit.Base); err != nil {
				return err
			}
			if err := checkImage("maskEdit.mask", in.MaskEdit.Mask); err != nil {
				return err
			}
			m := *in.MaskEdit
			st.MaskEdit = &m
		}
		if in.ClearPose {
			st.Pose = nil
			st.PoseCanvas = ""
		} else {
			if in.PoseCanvas != nil {
				if err := checkImage("poseCanvas", *in.PoseCanvas); err != nil {
					return err
				}
				st.PoseCanvas = *in.PoseCanvas
			}
			if in.Pose != nil {
				if err := checkPose(in.Pose); err != nil {
					return err
				}
				st.Pose = cloneSlice(in.Pose)
				if in.PoseCanvas == nil {
					// キーポイントが変わったら古いキャンバスは使わない
					st.PoseCanvas = ""
				}
			}
		}
		return nil
	}, in.AspectRatio != nil)
}

// checkImage は空でない画像が data URL として読めることを確認します。空はレイヤーの解除です。
func checkImage(field string, img domain.EncodedImage) error {
	if img.IsZero() {
		return nil
	}
	if _, _, err := imgutil.DecodeDataURL(img); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrValidation, field, err)
	}
	return nil
}

// checkPose はキーポイント名が既知で重複がなく、座標が [0,1] に収まることを確認します。
func checkPose(pose domain.Pose) error {
	seen := make(map[string]bool, len(pose))
	for _, kp := range pose {
		if !domain.IsKnownKeypoint(kp.Name) {
			return fmt.Errorf("%w: 未知のキーポイントです: %q", domain.ErrValidation, kp.Name)
		}
		if seen[kp.Name] {
			return fmt.Errorf("%w: キーポイント %q が重複しています", domain.ErrValidation, kp.Name)
		}
		seen[kp.Name] = true
		if kp.X < 0 || kp.X > 1 || kp.Y < 0 || kp.Y > 1 {
			return fmt.Errorf("%w: キーポイント %q の座標が範囲外です", domain.ErrValidation, kp.Name)
		}
	}
	return nil
}

// ApplyResults は生成結果を要求順で履歴の先頭に追加し、表示中の結果にします。
// バッチ実行中は上限が BatchHistoryCap に広がります。
func (s *Store) ApplyResults(ctx context.Context, results []domain.GenerationResult, prompt string) error {
	return s.Update(ctx, func(st *State) error {
		applyResults(st, results, prompt)
		return nil
	})
}

func applyResults(st *State, results []domain.GenerationResult, prompt string) {
	limit := HistoryCap
	if st.BatchRunning {
		limit = BatchHistoryCap
	}
	st.History = insertHistory(st.History, results, limit)
	st.ActiveResults = cloneResults(results)
	st.Error = ""
	if p := normalizePrompt(prompt); p != "" {
		st.PromptHistory = moveToFront(st.PromptHistory, p, PromptHistoryCap)
	}
}

// RemoveHistory は ID で指定した履歴項目を削除します。
func (s *Store) RemoveHistory(ctx context.Context, id string) error {
	return s.Update(ctx, func(st *State) error {
		for i, r := range st.History {
			if r.ID == id {
				st.History = append(st.History[:i], st.History[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: 履歴 %q が見つかりません", domain.ErrValidation, id)
	})
}

// ClearHistory は生成履歴と会話履歴をすべて消去します。
func (s *Store) ClearHistory(ctx context.Context) error {
	return s.Update(ctx, func(st *State) error {
		st.History = nil
		st.ActiveResults = nil
		st.Chat = nil
		return nil
	})
}

// AddTemplate はプロンプトテンプレートを先頭に追加します。重複は追加しません。
func (s *Store) AddTemplate(ctx context.Context, template string) error {
	template = normalizePrompt(template)
	if template == "" {
		return &domain.ValidationError{Missing: []domain.Precondition{domain.NeedPrompt}}
	}
	return s.Update(ctx, func(st *State) error {
		st.PromptTemplates = addUnique(st.PromptTemplates, template, TemplateCap)
		return nil
	})
}

// RemoveTemplate はテンプレートを削除します。
func (s *Store) RemoveTemplate(ctx context.Context, template string) error {
	template = normalizePrompt(template)
	return s.Update(ctx, func(st *State) error {
		out := st.PromptTemplates[:0]
		for _, t := range st.PromptTemplates {
			if t != template {
				out = append(out, t)
			}
		}
		st.PromptTemplates = out
		return nil
	})
}

// RecordPrompt はプロンプト履歴に記録します。既存の同じプロンプトは先頭に移動します。
func (s *Store) RecordPrompt(ctx context.Context, prompt string) error {
	prompt = normalizePrompt(prompt)
	if prompt == "" {
		return nil
	}
	return s.Update(ctx, func(st *State) error {
		st.PromptHistory = moveToFront(st.PromptHistory, prompt, PromptHistoryCap)
		return nil
	})
}

// SavePreset は現在の設定を名前付きで保存します。
// 同名がある場合は overwrite が true (ユーザーが上書きを確認済み) のときだけ置き換えます。
func (s *Store) SavePreset(ctx context.Context, name string, overwrite bool) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: プリセット名が空です", domain.ErrValidation)
	}
	return s.Update(ctx, func(st *State) error {
		if _, exists := st.Presets[name]; exists && !overwrite {
			return fmt.Errorf("%w: %q", domain.ErrPresetExists, name)
		}
		st.Presets[name] = domain.WorkflowPreset{Name: name, CreatedAt: s.now().UTC(), Config: st.Config()}
		return nil
	})
}

// LoadPreset はプリセットの設定で現在のセッション設定を上書きします。履歴は変更しません。
func (s *Store) LoadPreset(ctx context.Context, name string) error {
	return s.update(ctx, func(st *State) error {
		p, ok := st.Presets[name]
		if !ok {
			return fmt.Errorf("%w: %q", domain.ErrPresetNotFound, name)
		}
		st.ApplyConfig(p.Config)
		return nil
	}, true)
}

// DeletePreset はプリセットを削除します。
func (s *Store) DeletePreset(ctx context.Context, name string) error {
	return s.Update(ctx, func(st *State) error {
		if _, ok := st.Presets[name]; !ok {
			return fmt.Errorf("%w: %q", domain.ErrPresetNotFound, name)
		}
		delete(st.Presets, name)
		return nil
	})
}

// Presets は名前順のプリセット一覧を返します。
func (s *Store) Presets() []domain.WorkflowPreset {
	st := s.State()
	out := make([]domain.WorkflowPreset, 0, len(st.Presets))
	for _, p := range st.Presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// BeginAction は実行中フラグを立てます。既に実行中なら ErrBusy を返します。
func (s *Store) BeginAction(ctx context.Context, batch bool) error {
	return s.Update(ctx, func(st *State) error {
		if st.Busy {
			return domain.ErrBusy
		}
		st.Busy = true
		st.BatchRunning = batch
		st.Error = ""
		return nil
	})
}

// EndAction は実行中フラグを下ろし、err があればユーザー向けのエラーとして記録します。
func (s *Store) EndAction(ctx context.Context, err error) {
	_ = s.Update(ctx, func(st *State) error {
		st.Busy = false
		st.BatchRunning = false
		if err != nil {
			st.Error = err.Error()
			st.ActiveResults = nil
		}
		return nil
	})
}

// SetError はユーザー向けのエラーを記録します。
func (s *Store) SetError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	_ = s.Update(ctx, func(st *State) error {
		st.Error = err.Error()
		return nil
	})
}

// DismissError は表示中のエラーを消します。
func (s *Store) DismissError(ctx context.Context) {
	_ = s.Update(ctx, func(st *State) error {
		st.Error = ""
		return nil
	})
}
