package domain

import "time"

// GenerationConfig は生成設定一式のシリアライズ可能なスナップショットです。
type GenerationConfig struct {
	Slots          Slots           `json:"slots"`
	DrawMode       DrawMode        `json:"drawMode"`
	Prompt         string          `json:"prompt"`
	NegativePrompt string          `json:"negativePrompt"`
	Controls       ControlLayers   `json:"controls"`
	CharacterLock  *CharacterLock  `json:"characterLock,omitempty"`
	StyleReference *StyleReference `json:"styleReference,omitempty"`
	StyleStrength  int             `json:"styleStrength"`
	AspectRatio    AspectRatio     `json:"aspectRatio"`
	Variations     int             `json:"variations"`
	Seed           *int64          `json:"seed,omitempty"`
}

// WorkflowPreset は名前付きで保存された GenerationConfig です。履歴とは独立しています。
type WorkflowPreset struct {
	Name      string           `json:"name"`
	CreatedAt time.Time        `json:"createdAt"`
	Config    GenerationConfig `json:"config"`
}
