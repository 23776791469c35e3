package imgutil

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fogleman/gg"

	"github.com/shouni/gemini-image-studio/pkg/domain"
)

const (
	boneWidthRatio  = 0.012
	jointRadiusRate = 0.01
)

// 左半身・右半身・中心で色を分けます。
var (
	leftColor   = "#ff5533"
	rightColor  = "#3388ff"
	centerColor = "#33dd66"
)

// RenderSkeleton は正規化キーポイントを黒背景の PNG スケルトン画像に描画します。
// ポーズ制御の入力画像として使います。
func RenderSkeleton(pose domain.Pose, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("不正な描画サイズです: %dx%d", width, height)
	}
	if len(pose) == 0 {
		return nil, fmt.Errorf("キーポイントがありません")
	}

	dc := gg.NewContext(width, height)
	dc.SetRGB(0, 0, 0)
	dc.Clear()

	short := float64(min(width, height))
	dc.SetLineWidth(max(2, short*boneWidthRatio))
	dc.SetLineCap(gg.LineCapRound)

	for _, bone := range domain.Bones {
		a, okA := pose.Lookup(bone[0])
		b, okB := pose.Lookup(bone[1])
		if !okA || !okB {
			continue
		}
		dc.SetHexColor(sideColor(bone[1]))
		dc.DrawLine(a.X*float64(width), a.Y*float64(height), b.X*float64(width), b.Y*float64(height))
		dc.Stroke()
	}

	r := max(3, short*jointRadiusRate)
	for _, kp := range pose {
		dc.SetHexColor(sideColor(kp.Name))
		dc.DrawCircle(kp.X*float64(width), kp.Y*float64(height), r)
		dc.Fill()
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("スケルトン画像のエンコードに失敗しました: %w", err)
	}
	return buf.Bytes(), nil
}

func sideColor(name string) string {
	switch {
	case strings.HasPrefix(name, "left_"):
		return leftColor
	case strings.HasPrefix(name, "right_"):
		return rightColor
	default:
		return centerColor
	}
}
