package session

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/gemini-image-studio/pkg/domain"
)

func TestExportImport_RoundTrip(t *testing.T) {
	ctx := context.Background()

	src := NewStore(nil)
	prompt, neg := "a lighthouse", "blurry"
	ratio := domain.AspectRatio("16:9")
	seed := int64(7)
	variations := 3
	require.NoError(t, src.SetSlot(ctx, 0, imgA))
	require.NoError(t, src.SetSlot(ctx, 1, imgB))
	require.NoError(t, src.ApplySettings(ctx, Settings{
		Prompt:              &prompt,
		NegativePrompt:      &neg,
		AspectRatio:         &ratio,
		Seed:                &seed,
		Variations:          &variations,
		CharacterLock:       &domain.CharacterLock{Index: 1, LockClothing: true},
		StyleReferenceIndex: intPtr(0),
		Controls: map[domain.ControlChannel]domain.ControlLayer{
			domain.ChannelDepth: {Image: imgB, Weight: 150},
		},
	}))
	require.NoError(t, src.AddTemplate(ctx, "noir"))
	require.NoError(t, src.ApplyResults(ctx, results("r", 2), prompt))
	require.NoError(t, src.SavePreset(ctx, "coast", false))

	data, err := src.Export()
	require.NoError(t, err)

	dst := NewStore(nil)
	require.NoError(t, dst.Import(ctx, data))

	want, got := src.State(), dst.State()
	assert.Equal(t, want.DrawMode, got.DrawMode)
	assert.Equal(t, want.AspectRatio, got.AspectRatio)
	assert.Equal(t, want.StyleStrength, got.StyleStrength)
	assert.Equal(t, want.PromptTemplates, got.PromptTemplates)
	assert.Equal(t, want.PromptHistory, got.PromptHistory)
	assert.Equal(t, want.History, got.History)
	assert.Equal(t, want.Slots, got.Slots)
	assert.Equal(t, want.Prompt, got.Prompt)
	assert.Equal(t, want.NegativePrompt, got.NegativePrompt)
	assert.Equal(t, want.Controls, got.Controls)
	assert.Equal(t, want.CharacterLock, got.CharacterLock)
	assert.Equal(t, want.StyleReferenceIndex, got.StyleReferenceIndex)
	assert.Equal(t, want.Variations, got.Variations)
	assert.Equal(t, want.Seed, got.Seed)
	require.Contains(t, got.Presets, "coast")
	assert.True(t, want.Presets["coast"].CreatedAt.Equal(got.Presets["coast"].CreatedAt))
	assert.Equal(t, want.Presets["coast"].Config, got.Presets["coast"].Config)
}

func TestImport(t *testing.T) {
	ctx := context.Background()

	seeded := func(t *testing.T) *Store {
		t.Helper()
		s := NewStore(nil)
		prompt := "keep me"
		require.NoError(t, s.ApplySettings(ctx, Settings{Prompt: &prompt}))
		require.NoError(t, s.AddTemplate(ctx, "kept"))
		return s
	}

	t.Run("省略された項目は既定値になるのだ", func(t *testing.T) {
		s := seeded(t)
		require.NoError(t, s.Import(ctx, []byte(`{"version":"1.0.0","prompt":"hello"}`)))
		st := s.State()
		def := DefaultState()
		assert.Equal(t, "hello", st.Prompt)
		assert.Equal(t, def.DrawMode, st.DrawMode)
		assert.Equal(t, def.AspectRatio, st.AspectRatio)
		assert.Equal(t, def.StyleStrength, st.StyleStrength)
		assert.Equal(t, def.Variations, st.Variations)
		assert.Equal(t, def.Controls, st.Controls)
		assert.Empty(t, st.PromptTemplates)
		assert.Empty(t, st.History)
	})

	t.Run("壊れた項目だけが既定値になるのだ", func(t *testing.T) {
		s := NewStore(nil)
		require.NoError(t, s.Import(ctx, []byte(`{"version":"1.1.0","styleStrength":"strong","negativePrompt":"ugly","variations":9}`)))
		st := s.State()
		assert.Equal(t, domain.DefaultStyleStrength, st.StyleStrength)
		assert.Equal(t, "ugly", st.NegativePrompt)
		assert.Equal(t, DefaultVariations, st.Variations)
	})

	t.Run("旧形式の characterLockIndex は外見と服装の両方を固定するロックになるのだ", func(t *testing.T) {
		s := NewStore(nil)
		doc := map[string]any{
			"version":            "1.0.0",
			"slots":              []string{"", string(imgA), ""},
			"characterLockIndex": 1,
		}
		data, err := json.Marshal(doc)
		require.NoError(t, err)
		require.NoError(t, s.Import(ctx, data))

		lock := s.State().CharacterLock
		require.NotNil(t, lock)
		assert.Equal(t, domain.CharacterLock{Index: 1, LockAppearance: true, LockClothing: true}, *lock)
	})

	t.Run("新形式の characterLock があれば旧形式は無視するのだ", func(t *testing.T) {
		s := NewStore(nil)
		data := []byte(`{"version":"1.3.0","slots":["` + string(imgA) + `","",""],"characterLockIndex":0,` +
			`"characterLock":{"index":0,"lockAppearance":true,"lockClothing":false}}`)
		require.NoError(t, s.Import(ctx, data))
		lock := s.State().CharacterLock
		require.NotNil(t, lock)
		assert.False(t, lock.LockClothing)
	})

	t.Run("空のスロットを指すロックは読み込み時に解除されるのだ", func(t *testing.T) {
		s := NewStore(nil)
		require.NoError(t, s.Import(ctx, []byte(`{"version":"1.0.0","characterLockIndex":2}`)))
		assert.Nil(t, s.State().CharacterLock)
	})

	errCases := []struct {
		name string
		data string
		want error
	}{
		{name: "JSON として壊れているのだ", data: `{"version":`, want: domain.ErrImportParse},
		{name: "オブジェクトではないのだ", data: `[1,2,3]`, want: domain.ErrImportParse},
		{name: "null なのだ", data: `null`, want: domain.ErrImportParse},
		{name: "バージョンがないのだ", data: `{"prompt":"x"}`, want: domain.ErrImportNoVersion},
		{name: "バージョンが文字列でないのだ", data: `{"version":1}`, want: domain.ErrImportNoVersion},
		{name: "バージョンの形式が不正なのだ", data: `{"version":"1.0"}`, want: domain.ErrImportNoVersion},
		{name: "メジャーバージョンが新しすぎるのだ", data: `{"version":"2.0.0","prompt":"x"}`, want: domain.ErrImportVersion},
	}
	for _, tc := range errCases {
		t.Run(tc.name, func(t *testing.T) {
			s := seeded(t)
			before := s.State()
			err := s.Import(ctx, []byte(tc.data))
			require.ErrorIs(t, err, tc.want)
			assert.Equal(t, before, s.State())
		})
	}

	t.Run("バージョン不一致のエラーは両方のバージョンを含むのだ", func(t *testing.T) {
		s := NewStore(nil)
		err := s.Import(ctx, []byte(`{"version":"2.0.0"}`))
		var vm *domain.VersionMismatchError
		require.ErrorAs(t, err, &vm)
		assert.Equal(t, "2.0.0", vm.FileVersion)
		assert.Equal(t, AppVersion, vm.AppVersion)
	})
}
