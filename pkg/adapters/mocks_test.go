package adapters

import (
	"context"
	"time"

	"google.golang.org/genai"
)

// --- Mocks ---

// mockHTTPClient は HTTPClient を実装します。
type mockHTTPClient struct {
	fetchFunc func(ctx context.Context, url string) ([]byte, error)
	calls     int
}

func (m *mockHTTPClient) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	m.calls++
	return m.fetchFunc(ctx, url)
}

// mockCache は ImageCacher インターフェースを実装するのだ。
type mockCache struct {
	data map[string]interface{}
}

func (m *mockCache) Get(key string) (interface{}, bool) {
	v, ok := m.data[key]
	return v, ok
}

func (m *mockCache) Set(key string, value interface{}, d time.Duration) {
	if m.data == nil {
		m.data = make(map[string]interface{})
	}
	m.data[key] = value
}

// mockModels は ModelsAPI のテスト用モックなのだ。
type mockModels struct {
	contentFunc func(model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	imagesFunc  func(model, prompt string, cfg *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

func (m *mockModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if m.contentFunc != nil {
		return m.contentFunc(model, contents, cfg)
	}
	return nil, nil
}

func (m *mockModels) GenerateImages(ctx context.Context, model, prompt string, cfg *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error) {
	if m.imagesFunc != nil {
		return m.imagesFunc(model, prompt, cfg)
	}
	return nil, nil
}
