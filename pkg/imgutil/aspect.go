package imgutil

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/shouni/gemini-image-studio/pkg/domain"
)

// AspectRatioFromDimensions は画素数を最大公約数で約分した "a:b" 形式の比率を返します。
// いずれかが0以下なら "1:1" です。
func AspectRatioFromDimensions(w, h int) string {
	if w <= 0 || h <= 0 {
		return string(domain.DefaultAspectRatio)
	}
	g := gcd(w, h)
	return fmt.Sprintf("%d:%d", w/g, h/g)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Dimensions は画像ヘッダだけを読んで幅と高さを返します。
func Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// EncodedDimensions は EncodedImage の幅と高さを返します。
func EncodedDimensions(img domain.EncodedImage) (int, int, error) {
	_, data, err := DecodeDataURL(img)
	if err != nil {
		return 0, 0, err
	}
	return Dimensions(data)
}
