package builder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shouni/gemini-image-studio/pkg/domain"
	"github.com/shouni/gemini-image-studio/pkg/imgutil"
)

const defaultPoseCanvasSize = 1024

// rule はケース表の1行です。上から評価し、最初に一致した行が採用されます。
type rule struct {
	Case  Case
	Match func(s *Snapshot) bool
	build func(b *Builder, s *Snapshot, aspectRatio string) (*Plan, error)
}

// rules は優先順位そのものです。順序を変えるとケース選択が変わります。
var rules = []rule{
	{Case: CaseMaskEdit, Match: matchMaskEdit, build: (*Builder).buildMaskEdit},
	{Case: CaseControlComposition, Match: matchControl, build: (*Builder).buildControl},
	{Case: CaseTextToImage, Match: matchTextToImage, build: (*Builder).buildTextToImage},
	{Case: CasePoseEdit, Match: matchPoseEdit, build: (*Builder).buildPoseEdit},
	{Case: CasePromptEdit, Match: matchPromptEdit, build: (*Builder).buildPromptEdit},
	{Case: CaseInvalid, Match: func(*Snapshot) bool { return true }, build: (*Builder).buildInvalid},
}

// CaseOrder はケース表の評価順を返します。
func CaseOrder() []Case {
	out := make([]Case, len(rules))
	for i, r := range rules {
		out[i] = r.Case
	}
	return out
}

func hasPrompt(s *Snapshot) bool { return strings.TrimSpace(s.Prompt) != "" }

func hasPoseCanvas(s *Snapshot) bool { return !s.PoseCanvas.IsZero() || len(s.Pose) > 0 }

func matchMaskEdit(s *Snapshot) bool { return s.MaskEdit.Ready() && hasPrompt(s) }

func matchControl(s *Snapshot) bool { return s.Controls.AnyActive() }

func matchTextToImage(s *Snapshot) bool { return hasPrompt(s) && s.Slots.Count() == 0 }

func matchPoseEdit(s *Snapshot) bool {
	return s.DrawMode == domain.DrawModePose && hasPoseCanvas(s) && s.Slots.Count() >= 1
}

func matchPromptEdit(s *Snapshot) bool {
	return s.DrawMode == domain.DrawModePrompt && hasPrompt(s) && s.Slots.Count() >= 1
}

// SelectCase はスナップショットに適用されるケースを1つだけ返します。
func SelectCase(s Snapshot) Case {
	return selectRule(&s).Case
}

func selectRule(s *Snapshot) rule {
	for _, r := range rules {
		if r.Match(s) {
			return r
		}
	}
	return rules[len(rules)-1]
}

// Builder はセッション状態からケースを選び、そのペイロードを組み立てます。
type Builder struct {
	apiKey string
}

// NewBuilder は API キーを保持する Builder を生成します。
// キーが空でも生成はでき、Build 時に ErrConfigMissing を返します。
func NewBuilder(apiKey string) *Builder {
	return &Builder{apiKey: apiKey}
}

// CheckCredential はネットワーク通信の前に API キーの有無を確認します。
func (b *Builder) CheckCredential() error {
	if strings.TrimSpace(b.apiKey) == "" {
		return domain.ErrConfigMissing
	}
	return nil
}

// Build はケースを選択し、リモート呼び出し1回分の Plan を返します。
func (b *Builder) Build(ctx context.Context, s Snapshot) (*Plan, error) {
	if err := b.CheckCredential(); err != nil {
		return nil, err
	}
	normalize(&s)

	r := selectRule(&s)
	aspectRatio, err := ResolveAspectRatio(ctx, s.AspectRatio, s.Slots)
	if err != nil {
		return nil, err
	}

	plan, err := r.build(b, &s, aspectRatio)
	if err != nil {
		return nil, err
	}
	plan.Case = r.Case
	plan.AspectRatio = aspectRatio
	plan.NegativePrompt = strings.TrimSpace(s.NegativePrompt)
	plan.Count = s.Variations
	plan.Seed = s.Seed

	slog.DebugContext(ctx, "生成リクエストを組み立てました",
		"case", plan.Case, "operation", plan.Operation, "parts", len(plan.Parts), "count", plan.Count)
	return plan, nil
}

// normalize は空スロットを指すロック/スタイル参照を外し、バリエーション数を丸めます。
func normalize(s *Snapshot) {
	if s.CharacterLock != nil && !s.Slots.Has(s.CharacterLock.Index) {
		s.CharacterLock = nil
	}
	if s.StyleReference != nil && !s.Slots.Has(s.StyleReference.Index) {
		s.StyleReference = nil
	}
	if s.Variations < MinVariations {
		s.Variations = MinVariations
	}
	if s.Variations > MaxVariations {
		s.Variations = MaxVariations
	}
	if !s.DrawMode.Valid() {
		s.DrawMode = domain.DrawModePrompt
	}
}

// ResolveAspectRatio は "original" を最初のアップロード画像の実寸から解決します。
// 画像がない場合や読み取れない場合は 1:1 にフォールバックします。
func ResolveAspectRatio(ctx context.Context, ratio domain.AspectRatio, slots domain.Slots) (string, error) {
	if ratio == "" {
		return string(domain.DefaultAspectRatio), nil
	}
	if ratio != domain.AspectOriginal {
		if err := ratio.Validate(); err != nil {
			return "", err
		}
		return string(ratio), nil
	}

	first, ok := slots.First()
	if !ok {
		return string(domain.DefaultAspectRatio), nil
	}
	w, h, err := imgutil.EncodedDimensions(first)
	if err != nil {
		slog.WarnContext(ctx, "元画像のサイズを取得できないため 1:1 を使用します", "error", err)
		return string(domain.DefaultAspectRatio), nil
	}
	return imgutil.AspectRatioFromDimensions(w, h), nil
}

func baseImageParts(slots domain.Slots) []domain.Part {
	filled := slots.Filled()
	parts := make([]domain.Part, 0, len(filled)+2)
	for _, img := range filled {
		parts = append(parts, domain.Part{Image: img})
	}
	return parts
}

func multimodalPlan(parts []domain.Part, instruction string) *Plan {
	parts = append(parts, domain.Part{Text: instruction})
	return &Plan{Operation: OpMultimodal, Instruction: instruction, Parts: parts}
}

func (b *Builder) buildMaskEdit(s *Snapshot, aspectRatio string) (*Plan, error) {
	parts := []domain.Part{{Image: s.MaskEdit.Base}, {Image: s.MaskEdit.Mask}}
	body := maskDirective(strings.TrimSpace(s.Prompt))
	return multimodalPlan(parts, composeInstruction(aspectRatio, body, s)), nil
}

func (b *Builder) buildControl(s *Snapshot, aspectRatio string) (*Plan, error) {
	parts := baseImageParts(s.Slots)

	var body []string
	for _, ac := range s.Controls.Active() {
		parts = append(parts, domain.Part{Image: ac.Layer.Image})
		body = append(body, controlDirective(len(parts), ac))
	}
	if p := strings.TrimSpace(s.Prompt); p != "" {
		body = append(body, p)
	} else if s.Slots.Count() == 0 {
		body = append(body, "Create a new image guided by the control inputs above.")
	}
	return multimodalPlan(parts, composeInstruction(aspectRatio, strings.Join(body, "\n"), s)), nil
}

func (b *Builder) buildTextToImage(s *Snapshot, aspectRatio string) (*Plan, error) {
	instruction := composeInstruction(aspectRatio, strings.TrimSpace(s.Prompt), s)
	return &Plan{Operation: OpPure, Instruction: instruction}, nil
}

func (b *Builder) buildPoseEdit(s *Snapshot, aspectRatio string) (*Plan, error) {
	canvas, err := poseCanvas(s)
	if err != nil {
		return nil, err
	}
	parts := baseImageParts(s.Slots)
	parts = append(parts, domain.Part{Image: canvas})
	body := poseDirective(len(parts), strings.TrimSpace(s.Prompt))
	return multimodalPlan(parts, composeInstruction(aspectRatio, body, s)), nil
}

func (b *Builder) buildPromptEdit(s *Snapshot, aspectRatio string) (*Plan, error) {
	parts := baseImageParts(s.Slots)
	return multimodalPlan(parts, composeInstruction(aspectRatio, strings.TrimSpace(s.Prompt), s)), nil
}

func (b *Builder) buildInvalid(s *Snapshot, _ string) (*Plan, error) {
	return nil, &domain.ValidationError{Missing: MissingPreconditions(*s)}
}

// MissingPreconditions は有効なケースに届かない理由を列挙します。
func MissingPreconditions(s Snapshot) []domain.Precondition {
	var missing []domain.Precondition
	if s.Slots.Count() == 0 {
		missing = append(missing, domain.NeedImage)
	}
	if s.DrawMode == domain.DrawModePose {
		if !hasPoseCanvas(&s) {
			missing = append(missing, domain.NeedPoseDrawing)
		}
	} else if !hasPrompt(&s) {
		missing = append(missing, domain.NeedPrompt)
	}
	if len(missing) == 0 {
		missing = append(missing, domain.NeedPrompt)
	}
	return missing
}

// poseCanvas は描画済みキャンバスを返し、なければキーポイントから描画します。
func poseCanvas(s *Snapshot) (domain.EncodedImage, error) {
	if !s.PoseCanvas.IsZero() {
		return s.PoseCanvas, nil
	}
	w, h := defaultPoseCanvasSize, defaultPoseCanvasSize
	if first, ok := s.Slots.First(); ok {
		if fw, fh, err := imgutil.EncodedDimensions(first); err == nil {
			w, h = fw, fh
		}
	}
	png, err := imgutil.RenderSkeleton(s.Pose, w, h)
	if err != nil {
		return "", fmt.Errorf("ポーズ画像の描画に失敗しました: %w", err)
	}
	return imgutil.EncodeDataURL(png)
}

// BuildChatTurn は会話履歴を文脈とした継続編集の Plan を組み立てます。
// 履歴が空なら現在のスロット画像を起点にします。
func (b *Builder) BuildChatTurn(ctx context.Context, s Snapshot, history []domain.ChatMessage, text string) (*Plan, error) {
	if err := b.CheckCredential(); err != nil {
		return nil, err
	}
	normalize(&s)

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &domain.ValidationError{Missing: []domain.Precondition{domain.NeedPrompt}}
	}
	if len(history) == 0 && s.Slots.Count() == 0 {
		return nil, &domain.ValidationError{Missing: []domain.Precondition{domain.NeedImage}}
	}

	aspectRatio, err := ResolveAspectRatio(ctx, s.AspectRatio, s.Slots)
	if err != nil {
		return nil, err
	}

	var parts []domain.Part
	if len(history) == 0 {
		parts = baseImageParts(s.Slots)
	}
	plan := multimodalPlan(parts, composeInstruction(aspectRatio, text, &s))
	plan.Case = CaseChatEdit
	plan.History = history
	plan.AspectRatio = aspectRatio
	plan.NegativePrompt = strings.TrimSpace(s.NegativePrompt)
	plan.Count = 1
	plan.Seed = s.Seed
	return plan, nil
}
