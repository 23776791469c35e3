package server

import (
	"context"

	"github.com/shouni/gemini-image-studio/pkg/builder"
	"github.com/shouni/gemini-image-studio/pkg/domain"
	"github.com/shouni/gemini-image-studio/pkg/generator"
)

// --- Mocks ---

type mockPlanner struct {
	credErr error
}

func (m *mockPlanner) CheckCredential() error { return m.credErr }

func (m *mockPlanner) Build(ctx context.Context, s builder.Snapshot) (*builder.Plan, error) {
	if m.credErr != nil {
		return nil, m.credErr
	}
	return &builder.Plan{Operation: builder.OpMultimodal, Count: 1}, nil
}

func (m *mockPlanner) BuildChatTurn(ctx context.Context, s builder.Snapshot, history []domain.ChatMessage, text string) (*builder.Plan, error) {
	return m.Build(ctx, s)
}

type mockExecutor struct {
	err     error
	results []domain.GenerationResult
}

func (m *mockExecutor) Dispatch(ctx context.Context, plan *builder.Plan) ([]domain.GenerationResult, error) {
	return m.results, m.err
}

func (m *mockExecutor) RunBatch(ctx context.Context, planner generator.Planner, base builder.Snapshot, prompts []string, progress generator.ProgressFunc) (*generator.BatchReport, error) {
	report := &generator.BatchReport{ID: "batch"}
	for i, p := range prompts {
		item := generator.BatchItem{Index: i, Prompt: p, Results: m.results, Err: m.err}
		report.Items = append(report.Items, item)
		progress(i+1, len(prompts), item)
	}
	return report, nil
}

func (m *mockExecutor) DetectPose(ctx context.Context, img domain.EncodedImage) (domain.Pose, error) {
	return nil, domain.ErrNoPersonDetected
}
