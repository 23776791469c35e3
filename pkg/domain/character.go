package domain

// CharacterLock はアップロード済みの被写体の外見や服装を固定する指定です。
// 同時にロックできるのは1人だけです。
type CharacterLock struct {
	Index          int  `json:"index"`
	LockAppearance bool `json:"lockAppearance"`
	LockClothing   bool `json:"lockClothing"`
}

// StyleReference は画風を参照するスロットと強度(%)です。
type StyleReference struct {
	Index    int `json:"index"`
	Strength int `json:"strength"`
}

// DefaultStyleStrength はスタイル強度の初期値(%)です。
const DefaultStyleStrength = 50

// MaskEdit は進行中のインペイント編集 (ベース画像 + 塗られたマスク) です。
type MaskEdit struct {
	Base EncodedImage `json:"base"`
	Mask EncodedImage `json:"mask"`
}

// Ready はベースとマスクの両方が揃っているかを返します。
func (m *MaskEdit) Ready() bool {
	return m != nil && !m.Base.IsZero() && !m.Mask.IsZero()
}
