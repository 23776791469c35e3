package session

import (
	"github.com/shouni/gemini-image-studio/pkg/builder"
	"github.com/shouni/gemini-image-studio/pkg/domain"
)

const (
	HistoryCap        = 10
	BatchHistoryCap   = 50
	TemplateCap       = 20
	PromptHistoryCap  = 50
	MaxChatMessages   = 100
	DefaultVariations = 1
)

// State はユーザーが調整できる設定と生成結果の全体です。
// Store の外に渡すときは必ず Clone した写しを使います。
type State struct {
	// 永続化される項目
	DrawMode        domain.DrawMode                  `json:"drawMode"`
	AspectRatio     domain.AspectRatio               `json:"aspectRatio"`
	StyleStrength   int                              `json:"styleStrength"`
	PromptTemplates []string                         `json:"promptTemplates"`
	PromptHistory   []string                         `json:"promptHistory"`
	History         []domain.GenerationResult        `json:"history"`
	Presets         map[string]domain.WorkflowPreset `json:"presets"`

	// 永続化されない一時的な項目
	Slots          domain.Slots          `json:"slots"`
	Prompt         string                `json:"prompt"`
	NegativePrompt string                `json:"negativePrompt"`
	Controls       domain.ControlLayers  `json:"controls"`
	MaskEdit       *domain.MaskEdit      `json:"maskEdit,omitempty"`
	PoseCanvas     domain.EncodedImage   `json:"poseCanvas,omitempty"`
	Pose           domain.Pose           `json:"pose,omitempty"`
	CharacterLock  *domain.CharacterLock `json:"characterLock,omitempty"`

	// StyleReferenceIndex はスタイル参照スロットです。nil なら参照なしです。
	StyleReferenceIndex *int                      `json:"styleReferenceIndex,omitempty"`
	Variations          int                       `json:"variations"`
	Seed                *int64                    `json:"seed,omitempty"`
	Chat                []domain.ChatMessage      `json:"chat"`
	ActiveResults       []domain.GenerationResult `json:"activeResults"`
	Busy                bool                      `json:"busy"`
	Error               string                    `json:"error,omitempty"`
	BatchRunning        bool                      `json:"batchRunning"`
}

// DefaultState はセッション開始時の状態を返します。
func DefaultState() State {
	return State{
		DrawMode:      domain.DrawModePrompt,
		AspectRatio:   domain.DefaultAspectRatio,
		StyleStrength: domain.DefaultStyleStrength,
		Presets:       map[string]domain.WorkflowPreset{},
		Controls:      domain.DefaultControlLayers(),
		Variations:    DefaultVariations,
	}
}

// Clone はスライスやマップ、ポインタを複製した深いコピーを返します。
func (s State) Clone() State {
	out := s
	out.PromptTemplates = cloneSlice(s.PromptTemplates)
	out.PromptHistory = cloneSlice(s.PromptHistory)
	out.History = cloneResults(s.History)
	out.ActiveResults = cloneResults(s.ActiveResults)
	out.Chat = cloneSlice(s.Chat)
	out.Pose = cloneSlice(s.Pose)
	out.Presets = make(map[string]domain.WorkflowPreset, len(s.Presets))
	for k, v := range s.Presets {
		v.Config = cloneConfig(v.Config)
		out.Presets[k] = v
	}
	out.MaskEdit = clonePtr(s.MaskEdit)
	out.CharacterLock = clonePtr(s.CharacterLock)
	out.StyleReferenceIndex = clonePtr(s.StyleReferenceIndex)
	out.Seed = clonePtr(s.Seed)
	return out
}

// Config は現在の生成設定をプリセット用に切り出します。
func (s *State) Config() domain.GenerationConfig {
	return cloneConfig(domain.GenerationConfig{
		Slots:          s.Slots,
		DrawMode:       s.DrawMode,
		Prompt:         s.Prompt,
		NegativePrompt: s.NegativePrompt,
		Controls:       s.Controls,
		CharacterLock:  s.CharacterLock,
		StyleReference: s.styleReference(),
		StyleStrength:  s.StyleStrength,
		AspectRatio:    s.AspectRatio,
		Variations:     s.Variations,
		Seed:           s.Seed,
	})
}

// ApplyConfig はプリセットの設定で現在の設定を上書きします。
func (s *State) ApplyConfig(c domain.GenerationConfig) {
	c = cloneConfig(c)
	s.Slots = c.Slots
	if c.DrawMode.Valid() {
		s.DrawMode = c.DrawMode
	}
	s.Prompt = c.Prompt
	s.NegativePrompt = c.NegativePrompt
	s.Controls = c.Controls
	s.CharacterLock = c.CharacterLock
	s.StyleReferenceIndex = nil
	if c.StyleReference != nil {
		idx := c.StyleReference.Index
		s.StyleReferenceIndex = &idx
	}
	if c.StyleStrength > 0 {
		s.StyleStrength = c.StyleStrength
	}
	if c.AspectRatio.Validate() == nil {
		s.AspectRatio = c.AspectRatio
	}
	s.Variations = c.Variations
	s.Seed = c.Seed
}

func (s *State) styleReference() *domain.StyleReference {
	if s.StyleReferenceIndex == nil {
		return nil
	}
	return &domain.StyleReference{Index: *s.StyleReferenceIndex, Strength: s.StyleStrength}
}

// Snapshot は Builder に渡す入力を作ります。
func (s State) Snapshot() builder.Snapshot {
	c := s.Clone()
	return builder.Snapshot{
		Slots:          c.Slots,
		DrawMode:       c.DrawMode,
		Prompt:         c.Prompt,
		NegativePrompt: c.NegativePrompt,
		Controls:       c.Controls,
		MaskEdit:       c.MaskEdit,
		PoseCanvas:     c.PoseCanvas,
		Pose:           c.Pose,
		CharacterLock:  c.CharacterLock,
		StyleReference: c.styleReference(),
		AspectRatio:    c.AspectRatio,
		Variations:     c.Variations,
		Seed:           c.Seed,
	}
}

func cloneConfig(c domain.GenerationConfig) domain.GenerationConfig {
	c.CharacterLock = clonePtr(c.CharacterLock)
	c.StyleReference = clonePtr(c.StyleReference)
	c.Seed = clonePtr(c.Seed)
	return c
}

func cloneResults(in []domain.GenerationResult) []domain.GenerationResult {
	if in == nil {
		return nil
	}
	out := make([]domain.GenerationResult, len(in))
	for i, r := range in {
		r.GroundingChunks = cloneSlice(r.GroundingChunks)
		r.Seed = clonePtr(r.Seed)
		out[i] = r
	}
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
