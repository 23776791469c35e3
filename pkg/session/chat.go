package session

import (
	"context"

	"github.com/shouni/gemini-image-studio/pkg/domain"
)

// ChatHistory は会話履歴の写しを返します。
func (s *Store) ChatHistory() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSlice(s.state.Chat)
}

// AppendChat は会話履歴の末尾にメッセージを追加します。
// 上限 MaxChatMessages を超えた分は古いものから捨てます。
func (s *Store) AppendChat(ctx context.Context, msgs ...domain.ChatMessage) error {
	return s.Update(ctx, func(st *State) error {
		st.Chat = append(st.Chat, msgs...)
		return nil
	})
}

// CompleteChatTurn は会話の1ターン分の結果を1回の更新で反映します。
// 送信後にスロットが変わっていた場合、会話履歴はすでに別の画像のものなので
// メッセージは追加せず、結果だけを履歴に入れます。追加した場合は true を返します。
func (s *Store) CompleteChatTurn(ctx context.Context, base domain.Slots, results []domain.GenerationResult, msgs ...domain.ChatMessage) (bool, error) {
	var appended bool
	err := s.Update(ctx, func(st *State) error {
		if st.Slots == base {
			st.Chat = append(st.Chat, msgs...)
			appended = true
		}
		applyResults(st, results, "")
		return nil
	})
	return appended, err
}

// ResetChat は会話履歴を空にします。
func (s *Store) ResetChat(ctx context.Context) error {
	return s.Update(ctx, func(st *State) error {
		st.Chat = nil
		return nil
	})
}
