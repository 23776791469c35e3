package imgutil

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
)

// CompressToJPEG は image.Decode が読める画像を JPEG に再エンコードします。
// JPEG は透過を持たないため、透過部分は白で塗りつぶしてから書き出します。
// quality は 1〜100 に丸められます。
func CompressToJPEG(data []byte, quality int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	bounds := src.Bounds()
	flat := image.NewRGBA(bounds)
	draw.Draw(flat, bounds, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, bounds, src, bounds.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: min(max(quality, 1), 100)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ShrinkToJPEG は JPEG 化した結果が元より小さい場合だけそれを返します。
// デコードできない場合や大きくなる場合は元データをそのまま返します。
func ShrinkToJPEG(data []byte, quality int) []byte {
	compressed, err := CompressToJPEG(data, quality)
	if err != nil || len(compressed) >= len(data) {
		return data
	}
	return compressed
}
