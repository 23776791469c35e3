package domain

import (
	"fmt"
	"regexp"
)

// DrawMode は画像編集の入力モードです。
type DrawMode string

const (
	DrawModePose   DrawMode = "pose"
	DrawModePrompt DrawMode = "prompt"
)

// Valid はモードが既知の値かを返します。
func (m DrawMode) Valid() bool {
	return m == DrawModePose || m == DrawModePrompt
}

// AspectRatio はプリセット、"original"、または "W:H" 形式のカスタム値です。
type AspectRatio string

const (
	// AspectOriginal はリクエスト時に最初のアップロード画像の実寸から比率を求める指定です。
	AspectOriginal AspectRatio = "original"
	// DefaultAspectRatio は画像がない場合のフォールバックです。
	DefaultAspectRatio AspectRatio = "1:1"
)

// AspectRatioPresets は UI で選べる固定の比率です。
var AspectRatioPresets = []AspectRatio{"1:1", "3:4", "4:3", "9:16", "16:9", "2:3", "3:2", "21:9"}

var customRatioPattern = regexp.MustCompile(`^[1-9]\d{0,4}:[1-9]\d{0,4}$`)

// Validate はプリセット・original・カスタム形式のいずれかであることを確認します。
func (a AspectRatio) Validate() error {
	if a == AspectOriginal {
		return nil
	}
	for _, p := range AspectRatioPresets {
		if a == p {
			return nil
		}
	}
	if customRatioPattern.MatchString(string(a)) {
		return nil
	}
	return fmt.Errorf("%w: 不正なアスペクト比です: %q", ErrValidation, string(a))
}
