package domain

// Source は応答に含まれる出典(グラウンディング)情報です。
type Source struct {
	URI   string `json:"uri"`
	Title string `json:"title,omitempty"`
}

// GenerationResult は完了した1回の生成呼び出しの結果です。作成後は変更しません。
type GenerationResult struct {
	ID              string       `json:"id"`
	Image           EncodedImage `json:"image,omitempty"`
	Text            string       `json:"text,omitempty"`
	GroundingChunks []Source     `json:"groundingChunks,omitempty"`
	Seed            *int64       `json:"seed,omitempty"`
}
