package domain

// PureGenerationRequest は Operation A (テキスト/潜在空間からの純粋生成) の入力です。
type PureGenerationRequest struct {
	Prompt         string
	NegativePrompt string
	AspectRatio    string
	NumberOfImages int
	Seed           *int64
}

// GeneratedImage は Operation A が返す1枚分の画像です。
type GeneratedImage struct {
	Data     []byte
	MimeType string
}

// PureGenerationResponse は Operation A の正規化前の応答です。
type PureGenerationResponse struct {
	Images []GeneratedImage
	// FilteredReasons は安全フィルタで除外された画像の理由です。
	FilteredReasons []string
}

// Part はマルチモーダル要求の1パーツ (画像かテキストのどちらか) です。
type Part struct {
	Image EncodedImage `json:"image,omitempty"`
	Text  string       `json:"text,omitempty"`
}

// IsImage は画像パーツかどうかを返します。
func (p Part) IsImage() bool {
	return !p.Image.IsZero()
}

// MultimodalRequest は Operation B (マルチモーダル生成/編集) の入力です。
// History はチャット継続時の先行ターンです。
type MultimodalRequest struct {
	Parts       []Part
	History     []ChatMessage
	AspectRatio string
	Seed        *int64
	// Variation は並列呼び出しの中での番号 (0 始まり) です。
	Variation int
}

// InlineImage は応答に含まれるインライン画像です。
type InlineImage struct {
	Data     []byte
	MimeType string
}

// MultimodalResponse は Operation B の正規化前の応答です。
type MultimodalResponse struct {
	Images       []InlineImage
	Texts        []string
	Grounding    []Source
	FinishReason string
}

// StructuredAnalysisRequest は Operation C (構造化解析) の入力です。
type StructuredAnalysisRequest struct {
	Image       EncodedImage
	Instruction string
	// Schema は JSON Schema 相当の応答スキーマです。
	Schema map[string]any
}

// StructuredAnalysisResponse は Operation C の生の JSON 応答です。
type StructuredAnalysisResponse struct {
	JSON []byte
}
