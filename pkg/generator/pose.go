package generator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shouni/gemini-image-studio/pkg/domain"
)

const poseInstruction = "Detect the single most prominent person in this image and return their body keypoints. " +
	"Use only these keypoint names: nose, left_eye, right_eye, left_ear, right_ear, left_shoulder, right_shoulder, " +
	"left_elbow, right_elbow, left_wrist, right_wrist, left_hip, right_hip, left_knee, right_knee, left_ankle, right_ankle. " +
	"Coordinates x and y must be normalized to [0,1] relative to the image width and height. " +
	"Omit keypoints that are not visible. If there is no person, return an empty list."

// poseSchema は姿勢解析の応答スキーマです。
var poseSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"keypoints": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name": map[string]any{"type": "string", "enum": domain.KeypointNames},
					"x":    map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
					"y":    map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
				},
				"required": []string{"name", "x", "y"},
			},
		},
	},
	"required": []string{"keypoints"},
}

type poseAnalysis struct {
	Keypoints []domain.Keypoint `json:"keypoints"`
}

// DetectPose は画像から姿勢キーポイントを抽出します (Operation C)。
// 認識できたキーポイントが MinPoseKeypoints 未満なら ErrNoPersonDetected を返します。
func (d *Dispatcher) DetectPose(ctx context.Context, img domain.EncodedImage) (domain.Pose, error) {
	if img.IsZero() {
		return nil, &domain.ValidationError{Missing: []domain.Precondition{domain.NeedImage}}
	}
	resp, err := d.remote.AnalyzeStructured(ctx, domain.StructuredAnalysisRequest{
		Image:       img,
		Instruction: poseInstruction,
		Schema:      poseSchema,
	})
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.JSON) == 0 {
		return nil, fmt.Errorf("%w: 姿勢解析の応答が空です", domain.ErrRemote)
	}
	return ParsePose(resp.JSON)
}

// ParsePose は構造化解析の JSON を検証してキーポイント順に並べた Pose を返します。
// 未知の名前、範囲外の座標、重複は捨てます。
func ParsePose(raw []byte) (domain.Pose, error) {
	var analysis poseAnalysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return nil, fmt.Errorf("%w: 姿勢解析の応答を解析できません: %w", domain.ErrRemote, err)
	}

	found := make(map[string]domain.Keypoint, len(analysis.Keypoints))
	for _, kp := range analysis.Keypoints {
		if !domain.IsKnownKeypoint(kp.Name) {
			continue
		}
		if kp.X < 0 || kp.X > 1 || kp.Y < 0 || kp.Y > 1 {
			continue
		}
		if _, dup := found[kp.Name]; dup {
			continue
		}
		found[kp.Name] = kp
	}

	if len(found) < domain.MinPoseKeypoints {
		return nil, domain.ErrNoPersonDetected
	}

	pose := make(domain.Pose, 0, len(found))
	for _, name := range domain.KeypointNames {
		if kp, ok := found[name]; ok {
			pose = append(pose, kp)
		}
	}
	return pose, nil
}
