package imgutil

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/shouni/gemini-image-studio/pkg/domain"
)

const dataURLPrefix = "data:"

// EncodeDataURL はバイナリ画像を data URL 形式の EncodedImage に変換します。
// MIME タイプが image/* でない場合はエラーです。
func EncodeDataURL(data []byte) (domain.EncodedImage, error) {
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return "", fmt.Errorf("画像ではないデータです (detected: %s)", mimeType)
	}
	return domain.EncodedImage(dataURLPrefix + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)), nil
}

// DecodeDataURL は EncodedImage から MIME タイプとバイナリを取り出します。
func DecodeDataURL(img domain.EncodedImage) (string, []byte, error) {
	s := strings.TrimSpace(string(img))
	if !strings.HasPrefix(s, dataURLPrefix) {
		return "", nil, fmt.Errorf("data URL ではありません")
	}
	header, payload, ok := strings.Cut(s[len(dataURLPrefix):], ",")
	if !ok {
		return "", nil, fmt.Errorf("data URL の区切りがありません")
	}
	mimeType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("base64 以外の data URL には対応していません")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("base64 のデコードに失敗しました: %w", err)
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return mimeType, data, nil
}
