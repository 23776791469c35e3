package studio

import (
	"context"

	"github.com/shouni/gemini-image-studio/pkg/builder"
	"github.com/shouni/gemini-image-studio/pkg/domain"
	"github.com/shouni/gemini-image-studio/pkg/generator"
)

// --- Mocks ---

type mockPlanner struct {
	credErr   error
	buildFunc func(s builder.Snapshot) (*builder.Plan, error)
	chatFunc  func(s builder.Snapshot, history []domain.ChatMessage, text string) (*builder.Plan, error)
}

func (m *mockPlanner) CheckCredential() error { return m.credErr }

func (m *mockPlanner) Build(ctx context.Context, s builder.Snapshot) (*builder.Plan, error) {
	if m.credErr != nil {
		return nil, m.credErr
	}
	return m.buildFunc(s)
}

func (m *mockPlanner) BuildChatTurn(ctx context.Context, s builder.Snapshot, history []domain.ChatMessage, text string) (*builder.Plan, error) {
	if m.credErr != nil {
		return nil, m.credErr
	}
	return m.chatFunc(s, history, text)
}

// mockExecutor は Executor のテスト用モックなのだ。
type mockExecutor struct {
	dispatchFunc func(plan *builder.Plan) ([]domain.GenerationResult, error)
	poseFunc     func(img domain.EncodedImage) (domain.Pose, error)
	batchFunc    func(ctx context.Context, planner generator.Planner, base builder.Snapshot, prompts []string, progress generator.ProgressFunc) (*generator.BatchReport, error)
}

func (m *mockExecutor) Dispatch(ctx context.Context, plan *builder.Plan) ([]domain.GenerationResult, error) {
	return m.dispatchFunc(plan)
}

func (m *mockExecutor) RunBatch(ctx context.Context, planner generator.Planner, base builder.Snapshot, prompts []string, progress generator.ProgressFunc) (*generator.BatchReport, error) {
	return m.batchFunc(ctx, planner, base, prompts, progress)
}

func (m *mockExecutor) DetectPose(ctx context.Context, img domain.EncodedImage) (domain.Pose, error) {
	return m.poseFunc(img)
}

type mockFetcher struct {
	fetchFunc func(url string) (domain.EncodedImage, error)
}

func (m *mockFetcher) FetchImage(ctx context.Context, rawURL string) (domain.EncodedImage, error) {
	return m.fetchFunc(rawURL)
}
