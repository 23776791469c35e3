package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shouni/gemini-image-studio/pkg/domain"
	"google.golang.org/genai"
)

// ModelsAPI は genai の Models サービスのうち本パッケージが使う部分です。
// *genai.Models が満たします。
type ModelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateImages(ctx context.Context, model string, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

// ModelNames は操作ごとに使うモデル名です。
type ModelNames struct {
	Image    string // Operation A (Imagen)
	Edit     string // Operation B
	Analysis string // Operation C
}

// GeminiClient は3種類のリモート操作を genai 上に実装するアダプターです。
type GeminiClient struct {
	imgCore *GeminiImageCore
	models  ModelsAPI
	names   ModelNames
}

// NewGeminiClient は依存関係を注入して GeminiClient を初期化します。
func NewGeminiClient(core *GeminiImageCore, models ModelsAPI, names ModelNames) (*GeminiClient, error) {
	if core == nil {
		return nil, fmt.Errorf("core (GeminiImageCore) is required")
	}
	if models == nil {
		return nil, fmt.Errorf("models (ModelsAPI) is required")
	}
	return &GeminiClient{imgCore: core, models: models, names: names}, nil
}

// imagenRatios は Imagen が受け付ける比率です。
var imagenRatios = []string{"1:1", "3:4", "4:3", "9:16", "16:9"}

// editRatios は画像編集モデルの ImageConfig が受け付ける比率です。
var editRatios = []string{"1:1", "2:3", "3:2", "3:4", "4:3", "4:5", "5:4", "9:16", "16:9", "21:9"}

// supportedRatio は ratio がモデルの対応比率なら返し、そうでなければ空文字を返します。
// 空の場合、比率は指示文の枠指定だけで伝えます。
func supportedRatio(supported []string, ratio string) string {
	for _, r := range supported {
		if r == ratio {
			return ratio
		}
	}
	return ""
}

// GeneratePure は Imagen による純粋生成 (Operation A) を実行します。
// Gemini API は negativePrompt と seed を拒否するため設定には含めません。
// 除外語は指示文に入っており、シードは Dispatcher が結果に付けます。
func (g *GeminiClient) GeneratePure(ctx context.Context, req domain.PureGenerationRequest) (*domain.PureGenerationResponse, error) {
	cfg := &genai.GenerateImagesConfig{
		NumberOfImages:   int32(max(1, req.NumberOfImages)),
		AspectRatio:      supportedRatio(imagenRatios, req.AspectRatio),
		IncludeRAIReason: true,
	}

	slog.InfoContext(ctx, "Imagenに画像生成をリクエストします", "model", g.names.Image, "count", cfg.NumberOfImages)
	resp, err := g.models.GenerateImages(ctx, g.names.Image, req.Prompt, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRemote, err)
	}

	out := &domain.PureGenerationResponse{}
	if resp == nil {
		return out, nil
	}
	for _, gi := range resp.GeneratedImages {
		if gi == nil {
			continue
		}
		if gi.Image == nil || len(gi.Image.ImageBytes) == 0 {
			if gi.RAIFilteredReason != "" {
				out.FilteredReasons = append(out.FilteredReasons, gi.RAIFilteredReason)
			}
			continue
		}
		out.Images = append(out.Images, domain.GeneratedImage{
			Data:     gi.Image.ImageBytes,
			MimeType: gi.Image.MIMEType,
		})
	}
	return out, nil
}

// GenerateMultimodal はパーツ列 (および会話履歴) による生成・編集 (Operation B) を実行します。
func (g *GeminiClient) GenerateMultimodal(ctx context.Context, req domain.MultimodalRequest) (*domain.MultimodalResponse, error) {
	contents, err := g.buildContents(req)
	if err != nil {
		return nil, err
	}

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
		Seed:               seedToPtrInt32(req.Seed),
	}
	if ratio := supportedRatio(editRatios, req.AspectRatio); ratio != "" {
		cfg.ImageConfig = &genai.ImageConfig{AspectRatio: ratio}
	}

	slog.InfoContext(ctx, "Geminiに画像生成をリクエストします",
		"model", g.names.Edit, "variation", req.Variation, "parts", len(req.Parts), "history", len(req.History))
	resp, err := g.models.GenerateContent(ctx, g.names.Edit, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRemote, err)
	}

	out, err := g.imgCore.ParseToResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRemote, err)
	}
	return out, nil
}

func (g *GeminiClient) buildContents(req domain.MultimodalRequest) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for i, msg := range req.History {
		var parts []*genai.Part
		if !msg.Image.IsZero() {
			p, err := g.imgCore.ToPart(msg.Image)
			if err != nil {
				return nil, fmt.Errorf("履歴 %d の画像を変換できません: %w", i, err)
			}
			parts = append(parts, p)
		}
		if msg.Text != "" {
			parts = append(parts, genai.NewPartFromText(msg.Text))
		}
		if len(parts) == 0 {
			continue
		}
		role := genai.Role(genai.RoleUser)
		if msg.Role == domain.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}

	parts, err := g.imgCore.ToParts(req.Parts)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("送信するパーツがありません")
	}
	contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
	return contents, nil
}

// AnalyzeStructured は画像1枚とスキーマによる構造化解析 (Operation C) を実行します。
func (g *GeminiClient) AnalyzeStructured(ctx context.Context, req domain.StructuredAnalysisRequest) (*domain.StructuredAnalysisResponse, error) {
	imgPart, err := g.imgCore.ToPart(req.Image)
	if err != nil {
		return nil, err
	}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   toSchema(req.Schema),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{imgPart, genai.NewPartFromText(req.Instruction)}, genai.RoleUser),
	}

	resp, err := g.models.GenerateContent(ctx, g.names.Analysis, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRemote, err)
	}

	parsed, err := g.imgCore.ParseToResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRemote, err)
	}
	text := strings.TrimSpace(strings.Join(parsed.Texts, ""))
	if text == "" {
		return nil, fmt.Errorf("%w: 構造化解析の応答が空です", domain.ErrRemote)
	}
	return &domain.StructuredAnalysisResponse{JSON: []byte(text)}, nil
}

// toSchema は JSON Schema 風の map を genai.Schema に変換します。
// 対応するキーは type / properties / items / required / enum / description / minimum / maximum です。
func toSchema(m map[string]any) *genai.Schema {
	if m == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := m["type"].(string); ok {
		s.Type = genai.Type(strings.ToUpper(t))
	}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, v := range props {
			if pm, ok := v.(map[string]any); ok {
				s.Properties[name] = toSchema(pm)
			}
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = toSchema(items)
	}
	if req, ok := m["required"].([]string); ok {
		s.Required = req
	}
	if enum, ok := m["enum"].([]string); ok {
		s.Enum = enum
	}
	if v, ok := m["minimum"].(float64); ok {
		s.Minimum = &v
	}
	if v, ok := m["maximum"].(float64); ok {
		s.Maximum = &v
	}
	return s
}

// NewModels は API キーから genai の Models を用意します。
// キーが空の場合は通信せずに ErrConfigMissing を返す実装になります。
func NewModels(ctx context.Context, apiKey string) (ModelsAPI, error) {
	if strings.TrimSpace(apiKey) == "" {
		slog.WarnContext(ctx, "GEMINI_API_KEY が未設定のため生成は利用できません")
		return unconfiguredModels{}, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai クライアントの初期化に失敗しました: %w", err)
	}
	return client.Models, nil
}

type unconfiguredModels struct{}

func (unconfiguredModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return nil, domain.ErrConfigMissing
}

func (unconfiguredModels) GenerateImages(ctx context.Context, model string, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error) {
	return nil, domain.ErrConfigMissing
}
