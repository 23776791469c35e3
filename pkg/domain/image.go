package domain

import "strings"

// MaxSlots はアップロード画像スロットの固定数です。
const MaxSlots = 3

// EncodedImage は data URL 形式 (data:image/png;base64,...) でエンコードされた画像です。
// 空文字列は「画像なし」を表します。
type EncodedImage string

// IsZero は画像が設定されていない場合に true を返します。
func (e EncodedImage) IsZero() bool {
	return strings.TrimSpace(string(e)) == ""
}

// Slots は固定位置の画像スロットです。
type Slots [MaxSlots]EncodedImage

// ValidSlot は index がスロット範囲 [0, MaxSlots) にあるかを判定します。
func ValidSlot(index int) bool {
	return index >= 0 && index < MaxSlots
}

// Count は画像が入っているスロット数を返します。
func (s Slots) Count() int {
	n := 0
	for _, img := range s {
		if !img.IsZero() {
			n++
		}
	}
	return n
}

// Filled は画像が入っているスロットをスロット順で返します。
func (s Slots) Filled() []EncodedImage {
	out := make([]EncodedImage, 0, MaxSlots)
	for _, img := range s {
		if !img.IsZero() {
			out = append(out, img)
		}
	}
	return out
}

// First は最初に見つかった画像を返します。
func (s Slots) First() (EncodedImage, bool) {
	for _, img := range s {
		if !img.IsZero() {
			return img, true
		}
	}
	return "", false
}

// Has は index のスロットに画像があるかを返します。
func (s Slots) Has(index int) bool {
	return ValidSlot(index) && !s[index].IsZero()
}
