package domain

// KeypointNames は姿勢キーポイントの名前と順序です (COCO 17点)。
var KeypointNames = []string{
	"nose",
	"left_eye", "right_eye",
	"left_ear", "right_ear",
	"left_shoulder", "right_shoulder",
	"left_elbow", "right_elbow",
	"left_wrist", "right_wrist",
	"left_hip", "right_hip",
	"left_knee", "right_knee",
	"left_ankle", "right_ankle",
}

// MinPoseKeypoints を下回る検出は「人物なし」として扱います。
const MinPoseKeypoints = 5

// Keypoint は画像の幅・高さで [0,1] に正規化された2D座標です。
type Keypoint struct {
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Pose は名前付きキーポイントの順序付きリストです。
type Pose []Keypoint

// Lookup は名前でキーポイントを探します。
func (p Pose) Lookup(name string) (Keypoint, bool) {
	for _, kp := range p {
		if kp.Name == name {
			return kp, true
		}
	}
	return Keypoint{}, false
}

// IsKnownKeypoint は name が KeypointNames に含まれるかを返します。
func IsKnownKeypoint(name string) bool {
	for _, n := range KeypointNames {
		if n == name {
			return true
		}
	}
	return false
}

// Bones はスケルトン描画で結ぶキーポイントの組です。
var Bones = [][2]string{
	{"nose", "left_eye"}, {"nose", "right_eye"},
	{"left_eye", "left_ear"}, {"right_eye", "right_ear"},
	{"left_shoulder", "right_shoulder"},
	{"left_shoulder", "left_elbow"}, {"left_elbow", "left_wrist"},
	{"right_shoulder", "right_elbow"}, {"right_elbow", "right_wrist"},
	{"left_shoulder", "left_hip"}, {"right_shoulder", "right_hip"},
	{"left_hip", "right_hip"},
	{"left_hip", "left_knee"}, {"left_knee", "left_ankle"},
	{"right_hip", "right_knee"}, {"right_knee", "right_ankle"},
}
