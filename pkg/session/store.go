package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/shouni/gemini-image-studio/pkg/domain"
)

// KV は永続化に使うキー・バリューストアです。
type KV interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
	Delete(key string) error
}

// Store はセッション状態の唯一の所有者です。
// すべての変更は Update を通して直列化され、派生状態の整合と永続化が行われます。
type Store struct {
	mu    sync.Mutex
	state State
	kv    KV
	now   func() time.Time
}

// NewStore は初期状態の Store を生成します。永続化済みの値は Restore で読み込みます。
// kv が nil の場合は永続化しません。
func NewStore(kv KV) *Store {
	return &Store{
		state: DefaultState(),
		kv:    kv,
		now:   time.Now,
	}
}

// State は現在の状態の写しを返します。
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Update は fn を状態の写しに適用し、成功した場合だけ派生状態を整えて確定します。
// fn がエラーを返した場合、状態は変更されません。
func (s *Store) Update(ctx context.Context, fn func(st *State) error) error {
	return s.update(ctx, fn, false)
}

// update は Update の本体です。ratioPinned が true の場合、
// 同じ更新で比率が明示されたものとして original への自動切り替えを行いません。
func (s *Store) update(ctx context.Context, fn func(st *State) error, ratioPinned bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state
	next := s.state.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	reconcile(&prev, &next, ratioPinned)
	s.state = next
	s.persist(ctx, &prev, &next)
	return nil
}

// reconcile はスロットの変化に伴う派生状態の不変条件を適用します。
func reconcile(prev, next *State, ratioPinned bool) {
	if lock := next.CharacterLock; lock != nil && !next.Slots.Has(lock.Index) {
		next.CharacterLock = nil
	}
	if idx := next.StyleReferenceIndex; idx != nil && !next.Slots.Has(*idx) {
		next.StyleReferenceIndex = nil
	}

	before, after := prev.Slots.Count(), next.Slots.Count()
	ratioUntouched := !ratioPinned && prev.AspectRatio == next.AspectRatio
	switch {
	case before == 0 && after > 0 && ratioUntouched:
		next.AspectRatio = domain.AspectOriginal
	case after == 0 && next.AspectRatio == domain.AspectOriginal:
		next.AspectRatio = domain.DefaultAspectRatio
	}

	// 別の画像に対して古い会話文脈を使わないようにする
	if prev.Slots != next.Slots {
		next.Chat = nil
	}

	if !next.DrawMode.Valid() {
		next.DrawMode = domain.DrawModePrompt
	}
	if next.Variations < 1 {
		next.Variations = DefaultVariations
	}
	if len(next.Chat) > MaxChatMessages {
		next.Chat = next.Chat[len(next.Chat)-MaxChatMessages:]
	}
	if next.Presets == nil {
		next.Presets = map[string]domain.WorkflowPreset{}
	}
}

const keyPrefix = "gis:"

const (
	keyDrawMode        = keyPrefix + "drawMode"
	keyAspectRatio     = keyPrefix + "aspectRatio"
	keyStyleStrength   = keyPrefix + "styleStrength"
	keyPromptTemplates = keyPrefix + "promptTemplates"
	keyPromptHistory   = keyPrefix + "promptHistory"
	keyHistory         = keyPrefix + "history"
	keyPresets         = keyPrefix + "presets"
)

// persistedField は永続化対象の1項目です。値は JSON そのままで保存し、包み込みはしません。
type persistedField struct {
	key  string
	get  func(st *State) any
	set  func(st *State, raw []byte) error
	skip func(st *State) bool
}

var persistedFields = []persistedField{
	{
		key: keyDrawMode,
		get: func(st *State) any { return st.DrawMode },
		set: func(st *State, raw []byte) error {
			var m domain.DrawMode
			if err := json.Unmarshal(raw, &m); err != nil {
				return err
			}
			if m.Valid() {
				st.DrawMode = m
			}
			return nil
		},
	},
	{
		key: keyAspectRatio,
		get: func(st *State) any { return st.AspectRatio },
		set: func(st *State, raw []byte) error {
			var a domain.AspectRatio
			if err := json.Unmarshal(raw, &a); err != nil {
				return err
			}
			if a != domain.AspectOriginal && a.Validate() == nil {
				st.AspectRatio = a
			}
			return nil
		},
		// original は画像があるときだけ意味を持つため保存しない
		skip: func(st *State) bool { return st.AspectRatio == domain.AspectOriginal },
	},
	{
		key: keyStyleStrength,
		get: func(st *State) any { return st.StyleStrength },
		set: func(st *State, raw []byte) error { return json.Unmarshal(raw, &st.StyleStrength) },
	},
	{
		key: keyPromptTemplates,
		get: func(st *State) any { return st.PromptTemplates },
		set: func(st *State, raw []byte) error { return json.Unmarshal(raw, &st.PromptTemplates) },
	},
	{
		key: keyPromptHistory,
		get: func(st *State) any { return st.PromptHistory },
		set: func(st *State, raw []byte) error { return json.Unmarshal(raw, &st.PromptHistory) },
	},
	{
		key: keyHistory,
		get: func(st *State) any { return st.History },
		set: func(st *State, raw []byte) error { return json.Unmarshal(raw, &st.History) },
	},
	{
		key: keyPresets,
		get: func(st *State) any { return st.Presets },
		set: func(st *State, raw []byte) error {
			presets := map[string]domain.WorkflowPreset{}
			if err := json.Unmarshal(raw, &presets); err != nil {
				return err
			}
			st.Presets = presets
			return nil
		},
	},
}

// persist は前後で値が変わった永続化項目だけを書き込みます。
// 書き込みの失敗は記録するだけで、確定した状態は戻しません。
func (s *Store) persist(ctx context.Context, prev, next *State) {
	if s.kv == nil {
		return
	}
	for _, f := range persistedFields {
		if f.skip != nil && f.skip(next) {
			continue
		}
		after, err := json.Marshal(f.get(next))
		if err != nil {
			slog.WarnContext(ctx, "永続化用のシリアライズに失敗しました", "key", f.key, "error", err)
			continue
		}
		if before, err := json.Marshal(f.get(prev)); err == nil && string(before) == string(after) {
			continue
		}
		if err := s.kv.Put(f.key, after); err != nil {
			slog.WarnContext(ctx, "状態の永続化に失敗しました", "key", f.key, "error", err)
		}
	}
}

// Restore は永続化された項目を読み込みます。壊れた値は警告を出して既定値のままにします。
func (s *Store) Restore(ctx context.Context) error {
	if s.kv == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.Clone()
	for _, f := range persistedFields {
		raw, ok, err := s.kv.Get(f.key)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		trial := next.Clone()
		if err := f.set(&trial, raw); err != nil {
			slog.WarnContext(ctx, "保存データが壊れているため既定値を使用します", "key", f.key, "error", err)
			continue
		}
		next = trial
	}

	if len(next.PromptTemplates) > TemplateCap {
		next.PromptTemplates = next.PromptTemplates[:TemplateCap]
	}
	if len(next.PromptHistory) > PromptHistoryCap {
		next.PromptHistory = next.PromptHistory[:PromptHistoryCap]
	}
	if len(next.History) > BatchHistoryCap {
		next.History = next.History[:BatchHistoryCap]
	}
	if next.Presets == nil {
		next.Presets = map[string]domain.WorkflowPreset{}
	}

	s.state = next
	slog.InfoContext(ctx, "保存されたセッション状態を復元しました",
		"history", len(next.History), "presets", len(next.Presets), "templates", len(next.PromptTemplates))
	return nil
}
