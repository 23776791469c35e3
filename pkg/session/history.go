package session

import (
	"strings"

	"github.com/shouni/gemini-image-studio/pkg/domain"
)

// insertHistory は結果を要求順のまま先頭に挿入し、上限で切り詰めます。
func insertHistory(history, results []domain.GenerationResult, limit int) []domain.GenerationResult {
	out := make([]domain.GenerationResult, 0, len(results)+len(history))
	out = append(out, results...)
	out = append(out, history...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// addUnique は既に存在しない場合だけ先頭に追加します (テンプレート用)。
func addUnique(list []string, item string, limit int) []string {
	for _, v := range list {
		if v == item {
			return list
		}
	}
	out := append([]string{item}, list...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// moveToFront は重複があれば取り除いてから先頭に追加します (プロンプト履歴用)。
func moveToFront(list []string, item string, limit int) []string {
	out := make([]string, 0, len(list)+1)
	out = append(out, item)
	for _, v := range list {
		if v != item {
			out = append(out, v)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func normalizePrompt(p string) string {
	return strings.TrimSpace(p)
}
