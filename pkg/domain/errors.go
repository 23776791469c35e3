package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfigMissing は API 認証情報が設定されていないことを示します。ネットワーク通信前に返されます。
	ErrConfigMissing = errors.New("API キーが設定されていません")
	// ErrValidation は選択されたケースに必要な入力が不足していることを示します。
	ErrValidation = errors.New("入力が不足しています")
	// ErrNoImageReturned は呼び出しは完了したが画像が得られなかったことを示します。
	ErrNoImageReturned = errors.New("サービスが画像を返しませんでした。リクエストが拒否された可能性があります")
	// ErrRemote は通信エラーまたはサーバーエラーです。
	ErrRemote = errors.New("生成サービスの呼び出しに失敗しました")
	// ErrNoPersonDetected は姿勢解析で十分なキーポイントが得られなかったことを示します。
	ErrNoPersonDetected = errors.New("人物が検出されませんでした")

	ErrImportParse     = errors.New("プロジェクトファイルの JSON を解析できません")
	ErrImportNoVersion = errors.New("プロジェクトファイルにバージョンがありません")
	ErrImportVersion   = errors.New("プロジェクトファイルのバージョンに互換性がありません")

	ErrPresetExists   = errors.New("同名のプリセットが既に存在します")
	ErrPresetNotFound = errors.New("プリセットが見つかりません")
	ErrSlotIndex      = errors.New("スロット番号が範囲外です")
	ErrBusy           = errors.New("別の生成処理が実行中です")
)

// Precondition は不足している前提条件の識別子です。
type Precondition string

const (
	NeedImage       Precondition = "need_image"
	NeedPoseDrawing Precondition = "need_pose_drawing"
	NeedPrompt      Precondition = "need_prompt"
)

var preconditionMessages = map[Precondition]string{
	NeedImage:       "画像をアップロードしてください",
	NeedPoseDrawing: "ポーズを描画してください",
	NeedPrompt:      "プロンプトを入力してください",
}

// ValidationError は不足している前提条件を列挙する検証エラーです。
type ValidationError struct {
	Missing []Precondition
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Missing))
	for _, m := range e.Missing {
		msgs = append(msgs, preconditionMessages[m])
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(msgs, " / "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// RefusalError は画像が返らなかった応答で、モデルの説明テキストを保持します。
type RefusalError struct {
	Text string
}

func (e *RefusalError) Error() string {
	if e.Text == "" {
		return ErrNoImageReturned.Error()
	}
	return fmt.Sprintf("%s: %s", ErrNoImageReturned.Error(), e.Text)
}

func (e *RefusalError) Unwrap() error { return ErrNoImageReturned }

// VersionMismatchError はインポートファイルのメジャーバージョンが新しすぎることを示します。
type VersionMismatchError struct {
	FileVersion string
	AppVersion  string
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("%s: ファイル %s / アプリ %s", ErrImportVersion.Error(), e.FileVersion, e.AppVersion)
}

func (e *VersionMismatchError) Unwrap() error { return ErrImportVersion }
