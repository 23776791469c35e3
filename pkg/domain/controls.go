package domain

// ControlChannel は構造ガイド画像のチャンネル名です。
type ControlChannel string

const (
	ChannelPose     ControlChannel = "pose"
	ChannelCanny    ControlChannel = "canny"
	ChannelDepth    ControlChannel = "depth"
	ChannelScribble ControlChannel = "scribble"
)

// ControlChannels はパーツに添付する際の固定順序です。
var ControlChannels = []ControlChannel{ChannelPose, ChannelCanny, ChannelDepth, ChannelScribble}

const (
	MinControlWeight     = 0
	MaxControlWeight     = 200
	DefaultControlWeight = 100
)

// ControlLayer は1チャンネル分のガイド画像と影響度です。
// Image が空のレイヤーは Weight に関係なく無効です。
type ControlLayer struct {
	Image  EncodedImage `json:"image,omitempty"`
	Weight int          `json:"weight"`
}

// Active はレイヤーが有効かどうかを返します。
func (l ControlLayer) Active() bool {
	return !l.Image.IsZero()
}

// ControlLayers は固定のチャンネル集合です。
type ControlLayers struct {
	Pose     ControlLayer `json:"pose"`
	Canny    ControlLayer `json:"canny"`
	Depth    ControlLayer `json:"depth"`
	Scribble ControlLayer `json:"scribble"`
}

// DefaultControlLayers は全チャンネル空、重み100の初期値を返します。
func DefaultControlLayers() ControlLayers {
	l := ControlLayer{Weight: DefaultControlWeight}
	return ControlLayers{Pose: l, Canny: l, Depth: l, Scribble: l}
}

// Get はチャンネルに対応するレイヤーを返します。
func (c ControlLayers) Get(ch ControlChannel) (ControlLayer, bool) {
	switch ch {
	case ChannelPose:
		return c.Pose, true
	case ChannelCanny:
		return c.Canny, true
	case ChannelDepth:
		return c.Depth, true
	case ChannelScribble:
		return c.Scribble, true
	}
	return ControlLayer{}, false
}

// Set はチャンネルのレイヤーを置き換えます。未知のチャンネルなら false です。
// Weight は [MinControlWeight, MaxControlWeight] に丸められます。
func (c *ControlLayers) Set(ch ControlChannel, layer ControlLayer) bool {
	layer.Weight = clampWeight(layer.Weight)
	switch ch {
	case ChannelPose:
		c.Pose = layer
	case ChannelCanny:
		c.Canny = layer
	case ChannelDepth:
		c.Depth = layer
	case ChannelScribble:
		c.Scribble = layer
	default:
		return false
	}
	return true
}

// ActiveControl は有効なレイヤーとそのチャンネル名の組です。
type ActiveControl struct {
	Channel ControlChannel
	Layer   ControlLayer
}

// Active は有効なレイヤーを ControlChannels の順序で返します。
func (c ControlLayers) Active() []ActiveControl {
	var out []ActiveControl
	for _, ch := range ControlChannels {
		if l, _ := c.Get(ch); l.Active() {
			out = append(out, ActiveControl{Channel: ch, Layer: l})
		}
	}
	return out
}

// AnyActive は1つでも有効なレイヤーがあれば true です。
func (c ControlLayers) AnyActive() bool {
	return len(c.Active()) > 0
}

func clampWeight(w int) int {
	if w < MinControlWeight {
		return MinControlWeight
	}
	if w > MaxControlWeight {
		return MaxControlWeight
	}
	return w
}
