package generator

import (
	"context"

	"github.com/shouni/gemini-image-studio/pkg/builder"
	"github.com/shouni/gemini-image-studio/pkg/domain"
)

// --- Mocks ---

type mockRemote struct {
	pureFunc       func(req domain.PureGenerationRequest) (*domain.PureGenerationResponse, error)
	multimodalFunc func(ctx context.Context, req domain.MultimodalRequest) (*domain.MultimodalResponse, error)
	analyzeFunc    func(req domain.StructuredAnalysisRequest) (*domain.StructuredAnalysisResponse, error)
}

func (m *mockRemote) GeneratePure(ctx context.Context, req domain.PureGenerationRequest) (*domain.PureGenerationResponse, error) {
	return m.pureFunc(req)
}

func (m *mockRemote) GenerateMultimodal(ctx context.Context, req domain.MultimodalRequest) (*domain.MultimodalResponse, error) {
	return m.multimodalFunc(ctx, req)
}

func (m *mockRemote) AnalyzeStructured(ctx context.Context, req domain.StructuredAnalysisRequest) (*domain.StructuredAnalysisResponse, error) {
	return m.analyzeFunc(req)
}

// mockPlanner は Planner のテスト用モックなのだ。
type mockPlanner struct {
	buildFunc func(s builder.Snapshot) (*builder.Plan, error)
}

func (m *mockPlanner) Build(ctx context.Context, s builder.Snapshot) (*builder.Plan, error) {
	return m.buildFunc(s)
}

func imageResponse(data string) *domain.MultimodalResponse {
	return &domain.MultimodalResponse{Images: []domain.InlineImage{{Data: []byte(data), MimeType: "image/png"}}}
}
