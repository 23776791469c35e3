package builder

import "github.com/shouni/gemini-image-studio/pkg/domain"

// Case は生成リクエストの種別です。
type Case string

const (
	CaseMaskEdit           Case = "mask_edit"
	CaseControlComposition Case = "control_composition"
	CaseTextToImage        Case = "text_to_image"
	CasePoseEdit           Case = "pose_edit"
	CasePromptEdit         Case = "prompt_edit"
	CaseInvalid            Case = "invalid"
	// CaseChatEdit はケース表の外で組み立てる会話継続編集です。
	CaseChatEdit Case = "chat_edit"
)

// Operation はリモート API の呼び出し形です。
type Operation string

const (
	// OpPure はテキストからの純粋生成 (Operation A) です。
	OpPure Operation = "pure"
	// OpMultimodal は画像+テキストのパーツによる生成・編集 (Operation B) です。
	OpMultimodal Operation = "multimodal"
)

const (
	MinVariations = 1
	MaxVariations = 4
)

// Snapshot はケース選択とペイロード組み立てに使うセッション状態の写しです。
type Snapshot struct {
	Slots          domain.Slots
	DrawMode       domain.DrawMode
	Prompt         string
	NegativePrompt string
	Controls       domain.ControlLayers
	MaskEdit       *domain.MaskEdit
	// PoseCanvas は描画済みスケルトン画像です。空で Pose があれば描画して使います。
	PoseCanvas     domain.EncodedImage
	Pose           domain.Pose
	CharacterLock  *domain.CharacterLock
	StyleReference *domain.StyleReference
	AspectRatio    domain.AspectRatio
	Variations     int
	Seed           *int64
}

// Plan は選択されたケースに対して組み立てた1回分の生成要求です。
type Plan struct {
	Case           Case
	Operation      Operation
	Instruction    string
	Parts          []domain.Part
	History        []domain.ChatMessage
	NegativePrompt string
	AspectRatio    string
	// Count は要求するバリエーション数です。OpPure では NumberOfImages、
	// OpMultimodal では並列呼び出し回数になります。
	Count int
	Seed  *int64
}

// PureRequest は Plan を Operation A の入力に変換します。
func (p *Plan) PureRequest() domain.PureGenerationRequest {
	return domain.PureGenerationRequest{
		Prompt:         p.Instruction,
		NegativePrompt: p.NegativePrompt,
		AspectRatio:    p.AspectRatio,
		NumberOfImages: p.Count,
		Seed:           p.Seed,
	}
}

// MultimodalRequest は Plan を Operation B の入力に変換します。
func (p *Plan) MultimodalRequest() domain.MultimodalRequest {
	parts := make([]domain.Part, len(p.Parts))
	copy(parts, p.Parts)
	var history []domain.ChatMessage
	if len(p.History) > 0 {
		history = make([]domain.ChatMessage, len(p.History))
		copy(history, p.History)
	}
	return domain.MultimodalRequest{
		Parts:       parts,
		History:     history,
		AspectRatio: p.AspectRatio,
		Seed:        p.Seed,
	}
}
