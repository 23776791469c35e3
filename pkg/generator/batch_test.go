package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/gemini-image-studio/pkg/builder"
	"github.com/shouni/gemini-image-studio/pkg/domain"
)

func TestRunBatch(t *testing.T) {
	ctx := context.Background()

	planner := &mockPlanner{
		buildFunc: func(s builder.Snapshot) (*builder.Plan, error) {
			if s.Prompt == "invalid" {
				return nil, &domain.ValidationError{Missing: []domain.Precondition{domain.NeedImage}}
			}
			return &builder.Plan{Operation: builder.OpMultimodal, Parts: []domain.Part{{Text: s.Prompt}}, Count: 1}, nil
		},
	}

	t.Run("失敗した項目はスキップして残りを続行するのだ", func(t *testing.T) {
		var order []string
		remote := &mockRemote{
			multimodalFunc: func(ctx context.Context, req domain.MultimodalRequest) (*domain.MultimodalResponse, error) {
				prompt := req.Parts[0].Text
				order = append(order, prompt)
				if prompt == "fails" {
					return nil, errors.New("remote down")
				}
				return imageResponse(prompt), nil
			},
		}

		var progress []int
		report, err := newTestDispatcher(t, remote).RunBatch(ctx, planner, builder.Snapshot{},
			[]string{"first", " ", "fails", "invalid", "last"},
			func(done, total int, item BatchItem) {
				assert.Equal(t, 4, total)
				progress = append(progress, done)
			})

		require.NoError(t, err)
		require.Len(t, report.Items, 4)
		assert.Equal(t, []string{"first", "fails", "last"}, order, "順番に1件ずつ処理するのだ")
		assert.Equal(t, []int{1, 2, 3, 4}, progress)
		assert.Equal(t, 2, report.Failed())
		assert.Len(t, report.Results(), 2)
		assert.ErrorIs(t, report.Items[2].Err, domain.ErrValidation)
	})

	t.Run("認証情報がなければバッチ全体を中止するのだ", func(t *testing.T) {
		p := &mockPlanner{buildFunc: func(s builder.Snapshot) (*builder.Plan, error) {
			return nil, domain.ErrConfigMissing
		}}
		report, err := newTestDispatcher(t, &mockRemote{}).RunBatch(ctx, p, builder.Snapshot{}, []string{"a", "b"}, nil)
		assert.ErrorIs(t, err, domain.ErrConfigMissing)
		assert.Empty(t, report.Items)
	})

	t.Run("キャンセルされたら残りを処理しないのだ", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		remote := &mockRemote{
			multimodalFunc: func(ctx context.Context, req domain.MultimodalRequest) (*domain.MultimodalResponse, error) {
				cancel()
				return imageResponse("x"), nil
			},
		}
		report, err := newTestDispatcher(t, remote).RunBatch(cctx, planner, builder.Snapshot{}, []string{"a", "b", "c"}, nil)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Len(t, report.Items, 1)
	})
}
