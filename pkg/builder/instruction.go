package builder

import (
	"fmt"
	"strings"

	"github.com/shouni/gemini-image-studio/pkg/domain"
)

// StrengthAdverb は制御レイヤーの重みをモデル向けの定性的な指示に変換します。
func StrengthAdverb(weight int) string {
	switch {
	case weight < 50:
		return "loosely reference"
	case weight < 90:
		return "generally follow"
	case weight <= 110:
		return "strictly follow"
	case weight <= 150:
		return "very strictly follow"
	default:
		return "follow with pixel-level precision"
	}
}

var channelLabels = map[domain.ControlChannel]string{
	domain.ChannelPose:     "pose skeleton",
	domain.ChannelCanny:    "edge (canny) map",
	domain.ChannelDepth:    "depth map",
	domain.ChannelScribble: "scribble sketch",
}

func framingDirective(aspectRatio string) string {
	return fmt.Sprintf("The output image MUST have an aspect ratio of exactly %s. "+
		"If the source framing differs, extend the scene naturally (outpainting) to fill the entire canvas. "+
		"Do not add letterboxing, borders, or padding.", aspectRatio)
}

func controlDirective(imageNumber int, ac domain.ActiveControl) string {
	return fmt.Sprintf("Image %d is a %s control input: %s its structure (weight %d%%).",
		imageNumber, channelLabels[ac.Channel], StrengthAdverb(ac.Layer.Weight), ac.Layer.Weight)
}

func maskDirective(prompt string) string {
	return "Edit only the area of image 1 that is painted white in the mask (image 2); " +
		"keep every pixel outside the mask unchanged. In the masked area: " + prompt
}

func poseDirective(poseImageNumber int, prompt string) string {
	d := fmt.Sprintf("Re-pose the person in image 1 so that their body matches the skeleton in image %d exactly. "+
		"Keep their identity, clothing, and the background consistent.", poseImageNumber)
	if prompt != "" {
		d += " Additional instructions: " + prompt
	}
	return d
}

func characterLockDirective(lock *domain.CharacterLock) string {
	if lock == nil {
		return ""
	}
	n := lock.Index + 1
	switch {
	case lock.LockAppearance && lock.LockClothing:
		return fmt.Sprintf("Keep the character from image %d consistent: preserve their face, appearance, and clothing exactly.", n)
	case lock.LockAppearance:
		return fmt.Sprintf("Keep the character from image %d consistent: preserve their face and appearance exactly; clothing may change.", n)
	case lock.LockClothing:
		return fmt.Sprintf("Keep the clothing of the character from image %d exactly the same; other features may change.", n)
	}
	return ""
}

func styleDirective(ref *domain.StyleReference) string {
	if ref == nil {
		return ""
	}
	return fmt.Sprintf("Apply the artistic style of image %d at %d%% strength.", ref.Index+1, ref.Strength)
}

func negativeDirective(negative string) string {
	negative = strings.TrimSpace(negative)
	if negative == "" {
		return ""
	}
	return "Do not include any of the following: " + negative + "."
}

// composeInstruction は (a)枠 (b)ケース本文 (c)キャラクター固定 (d)スタイル参照 (e)除外 の
// 固定順で指示文を連結します。空の要素は飛ばします。
func composeInstruction(aspectRatio, body string, s *Snapshot) string {
	segments := []string{
		framingDirective(aspectRatio),
		body,
		characterLockDirective(s.CharacterLock),
		styleDirective(s.StyleReference),
		negativeDirective(s.NegativePrompt),
	}
	var b strings.Builder
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(seg)
	}
	return b.String()
}
