package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/gemini-image-studio/pkg/domain"
)

func results(prefix string, n int) []domain.GenerationResult {
	out := make([]domain.GenerationResult, n)
	for i := range out {
		out[i] = domain.GenerationResult{ID: fmt.Sprintf("%s-%d", prefix, i)}
	}
	return out
}

func TestApplyResults_History(t *testing.T) {
	ctx := context.Background()

	t.Run("N 回生成すると履歴は min(N, C) 件で先頭は最新バッチの最初の要素なのだ", func(t *testing.T) {
		for _, n := range []int{1, 3, HistoryCap, HistoryCap + 7} {
			s := NewStore(nil)
			for i := 0; i < n; i++ {
				require.NoError(t, s.ApplyResults(ctx, results(fmt.Sprintf("g%d", i), 1), ""))
			}
			st := s.State()
			assert.Len(t, st.History, min(n, HistoryCap))
			assert.Equal(t, fmt.Sprintf("g%d-0", n-1), st.History[0].ID)
		}
	})

	t.Run("バリエーションは要求順のまま先頭に入るのだ", func(t *testing.T) {
		s := NewStore(nil)
		require.NoError(t, s.ApplyResults(ctx, results("old", 1), ""))
		require.NoError(t, s.ApplyResults(ctx, results("new", 3), ""))

		st := s.State()
		ids := make([]string, 0, len(st.History))
		for _, r := range st.History {
			ids = append(ids, r.ID)
		}
		assert.Equal(t, []string{"new-0", "new-1", "new-2", "old-0"}, ids)
		assert.Len(t, st.ActiveResults, 3)
	})

	t.Run("バッチ実行中は上限が広がるのだ", func(t *testing.T) {
		s := NewStore(nil)
		require.NoError(t, s.BeginAction(ctx, true))
		for i := 0; i < 20; i++ {
			require.NoError(t, s.ApplyResults(ctx, results(fmt.Sprintf("b%d", i), 1), ""))
		}
		assert.Len(t, s.State().History, 20)

		s.EndAction(ctx, nil)
		require.NoError(t, s.ApplyResults(ctx, results("single", 1), ""))
		assert.Len(t, s.State().History, HistoryCap)
	})

	t.Run("プロンプトが履歴に記録されるのだ", func(t *testing.T) {
		s := NewStore(nil)
		require.NoError(t, s.ApplyResults(ctx, results("r", 1), "  a red hat "))
		assert.Equal(t, []string{"a red hat"}, s.State().PromptHistory)
	})

	t.Run("RemoveHistory と ClearHistory なのだ", func(t *testing.T) {
		s := NewStore(nil)
		require.NoError(t, s.ApplyResults(ctx, results("r", 3), ""))
		require.NoError(t, s.RemoveHistory(ctx, "r-1"))
		assert.Len(t, s.State().History, 2)
		assert.ErrorIs(t, s.RemoveHistory(ctx, "missing"), domain.ErrValidation)

		require.NoError(t, s.AppendChat(ctx, domain.ChatMessage{Role: domain.RoleUser, Text: "hi"}))
		require.NoError(t, s.ClearHistory(ctx))
		st := s.State()
		assert.Empty(t, st.History)
		assert.Empty(t, st.Chat)
	})
}

func TestTemplatesAndPromptHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("テンプレートは重複せず上限で古いものから落ちるのだ", func(t *testing.T) {
		s := NewStore(nil)
		for i := 0; i < TemplateCap+3; i++ {
			require.NoError(t, s.AddTemplate(ctx, fmt.Sprintf("t%d", i)))
		}
		require.NoError(t, s.AddTemplate(ctx, "t22"))
		st := s.State()
		assert.Len(t, st.PromptTemplates, TemplateCap)
		assert.Equal(t, "t22", st.PromptTemplates[0])
		assert.Equal(t, "t3", st.PromptTemplates[TemplateCap-1])
	})

	t.Run("既存テンプレートは位置を変えないのだ", func(t *testing.T) {
		s := NewStore(nil)
		require.NoError(t, s.AddTemplate(ctx, "a"))
		require.NoError(t, s.AddTemplate(ctx, "b"))
		require.NoError(t, s.AddTemplate(ctx, "a"))
		assert.Equal(t, []string{"b", "a"}, s.State().PromptTemplates)

		require.NoError(t, s.RemoveTemplate(ctx, "b"))
		assert.Equal(t, []string{"a"}, s.State().PromptTemplates)
	})

	t.Run("空のテンプレートは検証エラーなのだ", func(t *testing.T) {
		s := NewStore(nil)
		assert.ErrorIs(t, s.AddTemplate(ctx, "  "), domain.ErrValidation)
	})

	t.Run("プロンプト履歴は再利用されると先頭に移動するのだ", func(t *testing.T) {
		s := NewStore(nil)
		require.NoError(t, s.RecordPrompt(ctx, "a"))
		require.NoError(t, s.RecordPrompt(ctx, "b"))
		require.NoError(t, s.RecordPrompt(ctx, "a"))
		assert.Equal(t, []string{"a", "b"}, s.State().PromptHistory)
	})
}

func TestPresets(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	newStore := func() *Store {
		s := NewStore(nil)
		s.now = func() time.Time { return fixed }
		return s
	}

	t.Run("保存したプリセットを読み込むと設定が戻るのだ", func(t *testing.T) {
		s := newStore()
		prompt := "a knight"
		seed := int64(42)
		require.NoError(t, s.SetSlot(ctx, 0, imgA))
		require.NoError(t, s.ApplySettings(ctx, Settings{Prompt: &prompt, Seed: &seed}))
		require.NoError(t, s.SavePreset(ctx, "knight", false))

		other := "something else"
		require.NoError(t, s.ApplySettings(ctx, Settings{Prompt: &other, ClearSeed: true}))
		require.NoError(t, s.ClearSlot(ctx, 0))

		require.NoError(t, s.LoadPreset(ctx, "knight"))
		st := s.State()
		assert.Equal(t, prompt, st.Prompt)
		require.NotNil(t, st.Seed)
		assert.Equal(t, seed, *st.Seed)
		assert.Equal(t, imgA, st.Slots[0])
		assert.Equal(t, domain.AspectOriginal, st.AspectRatio)
		assert.Equal(t, fixed, st.Presets["knight"].CreatedAt)
	})

	t.Run("同名のプリセットは確認なしに上書きしないのだ", func(t *testing.T) {
		s := newStore()
		require.NoError(t, s.SavePreset(ctx, "p", false))
		assert.ErrorIs(t, s.SavePreset(ctx, "p", false), domain.ErrPresetExists)
		assert.NoError(t, s.SavePreset(ctx, "p", true))
	})

	t.Run("存在しないプリセットは見つからないエラーなのだ", func(t *testing.T) {
		s := newStore()
		assert.ErrorIs(t, s.LoadPreset(ctx, "nope"), domain.ErrPresetNotFound)
		assert.ErrorIs(t, s.DeletePreset(ctx, "nope"), domain.ErrPresetNotFound)
	})

	t.Run("一覧は名前順なのだ", func(t *testing.T) {
		s := newStore()
		require.NoError(t, s.SavePreset(ctx, "b", false))
		require.NoError(t, s.SavePreset(ctx, "a", false))
		list := s.Presets()
		require.Len(t, list, 2)
		assert.Equal(t, "a", list[0].Name)

		require.NoError(t, s.DeletePreset(ctx, "a"))
		assert.Len(t, s.Presets(), 1)
	})
}

func TestBusyAndErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("実行中に別のアクションは始められないのだ", func(t *testing.T) {
		s := NewStore(nil)
		require.NoError(t, s.BeginAction(ctx, false))
		assert.ErrorIs(t, s.BeginAction(ctx, false), domain.ErrBusy)
		s.EndAction(ctx, nil)
		assert.NoError(t, s.BeginAction(ctx, false))
	})

	t.Run("失敗はエラー欄に記録され、履歴や画像は残るのだ", func(t *testing.T) {
		s := NewStore(nil)
		require.NoError(t, s.SetSlot(ctx, 0, imgA))
		require.NoError(t, s.ApplyResults(ctx, results("r", 1), ""))
		require.NoError(t, s.BeginAction(ctx, false))
		s.EndAction(ctx, domain.ErrRemote)

		st := s.State()
		assert.False(t, st.Busy)
		assert.Equal(t, domain.ErrRemote.Error(), st.Error)
		assert.Nil(t, st.ActiveResults)
		assert.Len(t, st.History, 1)
		assert.Equal(t, imgA, st.Slots[0])

		s.DismissError(ctx)
		assert.Empty(t, s.State().Error)
	})
}

func TestChatLog(t *testing.T) {
	ctx := context.Background()

	t.Run("上限を超えたら古いメッセージから捨てるのだ", func(t *testing.T) {
		s := NewStore(nil)
		for i := 0; i < MaxChatMessages+4; i++ {
			require.NoError(t, s.AppendChat(ctx, domain.ChatMessage{Role: domain.RoleUser, Text: fmt.Sprint(i)}))
		}
		chat := s.ChatHistory()
		require.Len(t, chat, MaxChatMessages)
		assert.Equal(t, "4", chat[0].Text)
	})

	t.Run("ResetChat で空になるのだ", func(t *testing.T) {
		s := NewStore(nil)
		require.NoError(t, s.AppendChat(ctx, domain.ChatMessage{Role: domain.RoleUser, Text: "x"}))
		require.NoError(t, s.ResetChat(ctx))
		assert.Empty(t, s.ChatHistory())
	})
}

func TestApplySettings_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("不正なポーズや画像は検証エラーで、状態は変わらないのだ", func(t *testing.T) {
		canvas := domain.EncodedImage("data:image/png,raw")
		cases := []struct {
			name string
			in   Settings
		}{
			{name: "未知のキーポイント", in: Settings{Pose: domain.Pose{{Name: "tail", X: 0.5, Y: 0.5}}}},
			{name: "範囲外の座標", in: Settings{Pose: domain.Pose{{Name: "nose", X: 7, Y: -3}}}},
			{name: "重複したキーポイント", in: Settings{Pose: domain.Pose{{Name: "nose", X: 0.1, Y: 0.1}, {Name: "nose", X: 0.2, Y: 0.2}}}},
			{name: "制御画像", in: Settings{Controls: map[domain.ControlChannel]domain.ControlLayer{
				domain.ChannelCanny: {Image: "not-a-data-url", Weight: 100},
			}}},
			{name: "マスク", in: Settings{MaskEdit: &domain.MaskEdit{Base: "garbage", Mask: "garbage"}}},
			{name: "ポーズキャンバス", in: Settings{PoseCanvas: &canvas}},
		}
		for _, tc := range cases {
			s := NewStore(nil)
			before := s.State()
			err := s.ApplySettings(ctx, tc.in)
			assert.ErrorIs(t, err, domain.ErrValidation, tc.name)
			assert.Equal(t, before, s.State(), tc.name)
		}
	})

	t.Run("正しい値と空の制御画像は受け付けるのだ", func(t *testing.T) {
		s := NewStore(nil)
		pose := domain.Pose{{Name: "nose", X: 0, Y: 1}, {Name: "left_eye", X: 0.4, Y: 0.2}}
		require.NoError(t, s.ApplySettings(ctx, Settings{
			Pose:     pose,
			Controls: map[domain.ControlChannel]domain.ControlLayer{domain.ChannelDepth: {Weight: 50}},
			MaskEdit: &domain.MaskEdit{Base: imgA, Mask: imgB},
		}))
		st := s.State()
		assert.Equal(t, pose, st.Pose)
		assert.Equal(t, 50, st.Controls.Depth.Weight)
		assert.True(t, st.MaskEdit.Ready())
	})
}

func TestCompleteChatTurn(t *testing.T) {
	ctx := context.Background()
	user := domain.ChatMessage{Role: domain.RoleUser, Text: "make it night"}
	model := domain.ChatMessage{Role: domain.RoleModel, Image: imgB}

	t.Run("スロットが同じなら会話と履歴を同時に更新するのだ", func(t *testing.T) {
		s := NewStore(nil)
		require.NoError(t, s.SetSlot(ctx, 0, imgA))
		base := s.State().Slots

		appended, err := s.CompleteChatTurn(ctx, base, results("c", 1), user, model)
		require.NoError(t, err)
		assert.True(t, appended)
		assert.Equal(t, []domain.ChatMessage{user, model}, s.ChatHistory())
		assert.Len(t, s.State().History, 1)
	})

	t.Run("送信後にスロットが変わっていたら会話には追加しないのだ", func(t *testing.T) {
		s := NewStore(nil)
		require.NoError(t, s.SetSlot(ctx, 0, imgA))
		base := s.State().Slots
		require.NoError(t, s.SetSlot(ctx, 0, imgB))

		appended, err := s.CompleteChatTurn(ctx, base, results("c", 1), user, model)
		require.NoError(t, err)
		assert.False(t, appended)
		assert.Empty(t, s.ChatHistory())
		assert.Len(t, s.State().History, 1)
	})
}
