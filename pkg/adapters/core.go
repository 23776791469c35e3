package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/shouni/gemini-image-studio/pkg/domain"
	"github.com/shouni/gemini-image-studio/pkg/imgutil"
	"google.golang.org/genai"
)

const (
	// ImageCompressionQuality は URL から取り込んだ参照画像を JPEG 化する際の品質です。
	ImageCompressionQuality = 85
	cacheKeyFetchedImage    = "fetched_image:"
)

// HTTPClient は URL からデータを取得するためのインターフェースです。
// httpkit.ClientInterface が満たします。
type HTTPClient interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// ImageCacher は画像データのキャッシュ操作を抽象化するインターフェースです。
// go-cache の *cache.Cache が満たします。
type ImageCacher interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, d time.Duration)
}

// GeminiImageCore は画像パーツの変換と応答解析の共通ロジックを保持するコンポーネントです。
type GeminiImageCore struct {
	httpClient HTTPClient
	imageCache ImageCacher
	cacheTTL   time.Duration
}

// NewGeminiImageCore は依存関係を注入して GeminiImageCore のインスタンスを生成します。
// imageCache は nil を許容します (キャッシュなし動作)。
func NewGeminiImageCore(httpClient HTTPClient, imageCache ImageCacher, cacheTTL time.Duration) *GeminiImageCore {
	return &GeminiImageCore{
		httpClient: httpClient,
		imageCache: imageCache,
		cacheTTL:   cacheTTL,
	}
}

// FetchImage は URL から参照画像を取得し、スロットに入れられる EncodedImage に変換します。
func (c *GeminiImageCore) FetchImage(ctx context.Context, rawURL string) (domain.EncodedImage, error) {
	key := cacheKeyFetchedImage + rawURL
	if c.imageCache != nil {
		if cached, found := c.imageCache.Get(key); found {
			if img, ok := cached.(domain.EncodedImage); ok {
				return img, nil
			}
			slog.WarnContext(ctx, "キャッシュデータが不正な型です", "url", rawURL, "type", fmt.Sprintf("%T", cached))
		}
	}

	if err := checkFetchURL(ctx, rawURL); err != nil {
		slog.WarnContext(ctx, "取得できない URL をブロックしました", "url", rawURL, "error", err)
		return "", fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	if c.httpClient == nil {
		return "", fmt.Errorf("HTTPクライアントが設定されていません")
	}
	data, err := c.httpClient.FetchBytes(ctx, rawURL)
	if err != nil {
		return "", fmt.Errorf("参照画像のダウンロードに失敗しました: %w", err)
	}

	img, err := imgutil.EncodeDataURL(imgutil.ShrinkToJPEG(data, ImageCompressionQuality))
	if err != nil {
		return "", err
	}

	if c.imageCache != nil {
		c.imageCache.Set(key, img, c.cacheTTL)
	}
	return img, nil
}

// ToPart は EncodedImage を genai.Part (InlineData) に変換します。
func (c *GeminiImageCore) ToPart(img domain.EncodedImage) (*genai.Part, error) {
	mimeType, data, err := imgutil.DecodeDataURL(img)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("MIMEタイプが画像ではありません: %s", mimeType)
	}
	return &genai.Part{
		InlineData: &genai.Blob{
			MIMEType: mimeType,
			Data:     data,
		},
	}, nil
}

// ToParts はドメインのパーツ列を順序を保ったまま genai.Part に変換します。
func (c *GeminiImageCore) ToParts(parts []domain.Part) ([]*genai.Part, error) {
	out := make([]*genai.Part, 0, len(parts))
	for i, p := range parts {
		if p.IsImage() {
			gp, err := c.ToPart(p.Image)
			if err != nil {
				return nil, fmt.Errorf("パーツ %d の画像を変換できません: %w", i, err)
			}
			out = append(out, gp)
			continue
		}
		if p.Text != "" {
			out = append(out, genai.NewPartFromText(p.Text))
		}
	}
	return out, nil
}

// ParseToResponse は Gemini のレスポンスを解析して MultimodalResponse に変換します。
// 画像の有無の判定は呼び出し側で行います。
func (c *GeminiImageCore) ParseToResponse(resp *genai.GenerateContentResponse) (*domain.MultimodalResponse, error) {
	if resp == nil {
		return nil, fmt.Errorf("Geminiからの有効な応答がありませんでした")
	}

	out := &domain.MultimodalResponse{}
	if len(resp.Candidates) == 0 {
		if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
			out.FinishReason = string(fb.BlockReason)
			if fb.BlockReasonMessage != "" {
				out.Texts = append(out.Texts, fb.BlockReasonMessage)
			}
		}
		return out, nil
	}

	// 現在の仕様では、Geminiからの最初の候補 (Candidate) のみを利用する。
	candidate := resp.Candidates[0]
	out.FinishReason = string(candidate.FinishReason)

	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				out.Images = append(out.Images, domain.InlineImage{
					Data:     part.InlineData.Data,
					MimeType: part.InlineData.MIMEType,
				})
				continue
			}
			if t := strings.TrimSpace(part.Text); t != "" {
				out.Texts = append(out.Texts, t)
			}
		}
	}

	if gm := candidate.GroundingMetadata; gm != nil {
		for _, chunk := range gm.GroundingChunks {
			if chunk == nil || chunk.Web == nil {
				continue
			}
			out.Grounding = append(out.Grounding, domain.Source{URI: chunk.Web.URI, Title: chunk.Web.Title})
		}
	}
	return out, nil
}

// seedToPtrInt32 は domain の *int64 を Gemini SDK 用の *int32 に変換します。
func seedToPtrInt32(seed *int64) *int32 {
	if seed == nil {
		return nil
	}
	// Goの仕様により、値がint32の範囲を超える場合は上位ビットが切り捨てられますが、
	// これはシード値の再現性において期待される挙動です。
	val := int32(*seed)
	return &val
}

// checkFetchURL は取得先の URL が外部の http(s) ホストであることを確認します。
// ホスト名は解決したすべてのアドレスを検査し、内部ネットワークを指すものが1つでもあれば拒否します。
func checkFetchURL(ctx context.Context, rawURL string) error {
	u, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return fmt.Errorf("URL を解釈できません: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("http(s) 以外のスキームは使えません: %s", u.Scheme)
	}

	host := u.Hostname()
	var addrs []netip.Addr
	if addr, err := netip.ParseAddr(host); err == nil {
		addrs = append(addrs, addr)
	} else {
		addrs, err = net.DefaultResolver.LookupNetIP(ctx, "ip", host)
		if err != nil {
			return fmt.Errorf("%s の名前解決に失敗しました: %w", host, err)
		}
	}
	if len(addrs) == 0 {
		return fmt.Errorf("%s のアドレスが見つかりません", host)
	}

	for _, addr := range addrs {
		if restricted(addr.Unmap()) {
			return fmt.Errorf("内部ネットワークのアドレスには接続できません: %s", addr)
		}
	}
	return nil
}

func restricted(a netip.Addr) bool {
	return a.IsPrivate() || a.IsLoopback() || a.IsUnspecified() ||
		a.IsLinkLocalUnicast() || a.IsLinkLocalMulticast()
}
