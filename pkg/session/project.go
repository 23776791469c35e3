package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/shouni/gemini-image-studio/pkg/domain"
)

// AppVersion はプロジェクトファイルに書き込むアプリのバージョンです。
const AppVersion = "1.4.0"

var versionPattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)$`)

// Project はエクスポートされるプロジェクトファイルの形式です。
type Project struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exportedAt"`

	DrawMode        domain.DrawMode           `json:"drawMode"`
	AspectRatio     domain.AspectRatio        `json:"aspectRatio"`
	StyleStrength   int                       `json:"styleStrength"`
	PromptTemplates []string                  `json:"promptTemplates"`
	PromptHistory   []string                  `json:"promptHistory"`
	History         []domain.GenerationResult `json:"history"`
	Presets         []domain.WorkflowPreset   `json:"presets"`

	Slots               domain.Slots          `json:"slots"`
	Prompt              string                `json:"prompt"`
	NegativePrompt      string                `json:"negativePrompt"`
	Controls            domain.ControlLayers  `json:"controls"`
	CharacterLock       *domain.CharacterLock `json:"characterLock,omitempty"`
	StyleReferenceIndex *int                  `json:"styleReferenceIndex,omitempty"`
	Variations          int                   `json:"variations"`
	Seed                *int64                `json:"seed,omitempty"`
}

// Export は永続化項目と再開に必要な一時項目をプロジェクトファイルとして出力します。
func (s *Store) Export() ([]byte, error) {
	st := s.State()
	presets := make([]domain.WorkflowPreset, 0, len(st.Presets))
	for _, p := range st.Presets {
		presets = append(presets, p)
	}
	sort.Slice(presets, func(i, j int) bool { return presets[i].Name < presets[j].Name })

	p := Project{
		Version:             AppVersion,
		ExportedAt:          s.now().UTC(),
		DrawMode:            st.DrawMode,
		AspectRatio:         st.AspectRatio,
		StyleStrength:       st.StyleStrength,
		PromptTemplates:     st.PromptTemplates,
		PromptHistory:       st.PromptHistory,
		History:             st.History,
		Presets:             presets,
		Slots:               st.Slots,
		Prompt:              st.Prompt,
		NegativePrompt:      st.NegativePrompt,
		Controls:            st.Controls,
		CharacterLock:       st.CharacterLock,
		StyleReferenceIndex: st.StyleReferenceIndex,
		Variations:          st.Variations,
		Seed:                st.Seed,
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("プロジェクトのシリアライズに失敗しました: %w", err)
	}
	return data, nil
}

// document はインポート途中のプロジェクトファイルです。
type document map[string]json.RawMessage

// migration は旧形式のフィールドを現在の形式に書き換えます。
type migration struct {
	name  string
	apply func(doc document) error
}

// migrations は順番に適用されます。
var migrations = []migration{
	{
		// 1.2 以前は characterLockIndex だけを持ち、外見と服装の両方を固定していた
		name: "characterLockIndex",
		apply: func(doc document) error {
			raw, ok := doc["characterLockIndex"]
			if !ok {
				return nil
			}
			delete(doc, "characterLockIndex")
			if _, exists := doc["characterLock"]; exists {
				return nil
			}
			var idx *int
			if err := json.Unmarshal(raw, &idx); err != nil {
				return err
			}
			if idx == nil {
				return nil
			}
			lock, err := json.Marshal(domain.CharacterLock{Index: *idx, LockAppearance: true, LockClothing: true})
			if err != nil {
				return err
			}
			doc["characterLock"] = lock
			return nil
		},
	},
}

// field はプロジェクトファイルの1項目の読み込み方法です。
// 値が無いか壊れている場合、state には DefaultState の値が残ります。
type field struct {
	key    string
	decode func(raw []byte, st *State) error
}

func into[T any](set func(st *State, v T)) func([]byte, *State) error {
	return func(raw []byte, st *State) error {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		set(st, v)
		return nil
	}
}

var projectFields = []field{
	{"drawMode", into(func(st *State, v domain.DrawMode) {
		if v.Valid() {
			st.DrawMode = v
		}
	})},
	{"aspectRatio", into(func(st *State, v domain.AspectRatio) {
		if v.Validate() == nil {
			st.AspectRatio = v
		}
	})},
	{"styleStrength", into(func(st *State, v int) {
		if v >= 0 && v <= 100 {
			st.StyleStrength = v
		}
	})},
	{"promptTemplates", into(func(st *State, v []string) { st.PromptTemplates = capSlice(v, TemplateCap) })},
	{"promptHistory", into(func(st *State, v []string) { st.PromptHistory = capSlice(v, PromptHistoryCap) })},
	{"history", into(func(st *State, v []domain.GenerationResult) { st.History = capSlice(v, BatchHistoryCap) })},
	{"presets", into(func(st *State, v []domain.WorkflowPreset) {
		for _, p := range v {
			if p.Name != "" {
				st.Presets[p.Name] = p
			}
		}
	})},
	{"slots", into(func(st *State, v domain.Slots) { st.Slots = v })},
	{"prompt", into(func(st *State, v string) { st.Prompt = v })},
	{"negativePrompt", into(func(st *State, v string) { st.NegativePrompt = v })},
	{"controls", func(raw []byte, st *State) error {
		// 欠けたチャンネルは既定の重みのまま残す
		layers := domain.DefaultControlLayers()
		if err := json.Unmarshal(raw, &layers); err != nil {
			return err
		}
		for _, ch := range domain.ControlChannels {
			l, _ := layers.Get(ch)
			st.Controls.Set(ch, l)
		}
		return nil
	}},
	{"characterLock", into(func(st *State, v *domain.CharacterLock) { st.CharacterLock = v })},
	{"styleReferenceIndex", into(func(st *State, v *int) { st.StyleReferenceIndex = v })},
	{"variations", into(func(st *State, v int) {
		if v >= 1 && v <= 4 {
			st.Variations = v
		}
	})},
	{"seed", into(func(st *State, v *int64) { st.Seed = v })},
}

// Import はプロジェクトファイルを検証して状態を置き換えます。
// 失敗した場合、現在の状態は一切変更されません。
func (s *Store) Import(ctx context.Context, data []byte) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil || doc == nil {
		if err == nil {
			err = errors.New("トップレベルがオブジェクトではありません")
		}
		return fmt.Errorf("%w: %w", domain.ErrImportParse, err)
	}

	version, err := checkVersion(doc)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if err := m.apply(doc); err != nil {
			slog.WarnContext(ctx, "旧形式フィールドの移行に失敗したため無視します", "migration", m.name, "error", err)
		}
	}

	imported := DefaultState()
	for _, f := range projectFields {
		raw, ok := doc[f.key]
		if !ok || string(raw) == "null" {
			continue
		}
		trial := imported.Clone()
		if err := f.decode(raw, &trial); err != nil {
			slog.WarnContext(ctx, "プロジェクトの項目を読み込めないため既定値を使用します", "field", f.key, "error", err)
			continue
		}
		imported = trial
	}

	err = s.update(ctx, func(st *State) error {
		imported.Busy, imported.BatchRunning = st.Busy, st.BatchRunning
		*st = imported
		return nil
	}, true)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "プロジェクトを読み込みました", "version", version, "history", len(imported.History))
	return nil
}

// checkVersion はファイルのメジャーバージョンがアプリ以下であることを確認します。
func checkVersion(doc document) (string, error) {
	raw, ok := doc["version"]
	if !ok {
		return "", domain.ErrImportNoVersion
	}
	var version string
	if err := json.Unmarshal(raw, &version); err != nil {
		return "", fmt.Errorf("%w: 文字列ではありません", domain.ErrImportNoVersion)
	}
	fileMajor, ok := majorOf(version)
	if !ok {
		return "", fmt.Errorf("%w: 形式が不正です: %q", domain.ErrImportNoVersion, version)
	}
	appMajor, _ := majorOf(AppVersion)
	if fileMajor > appMajor {
		return "", &domain.VersionMismatchError{FileVersion: version, AppVersion: AppVersion}
	}
	return version, nil
}

func majorOf(version string) (int, bool) {
	m := versionPattern.FindStringSubmatch(version)
	if m == nil {
		return 0, false
	}
	major, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return major, true
}

func capSlice[T any](in []T, limit int) []T {
	if len(in) > limit {
		return in[:limit]
	}
	return in
}
