package domain

// ChatRole は会話ターンの話者です。
type ChatRole string

const (
	RoleUser  ChatRole = "user"
	RoleModel ChatRole = "model"
)

// ChatMessage はチャット編集の文脈として送られる1ターンです。
type ChatMessage struct {
	Role  ChatRole     `json:"role"`
	Text  string       `json:"text,omitempty"`
	Image EncodedImage `json:"image,omitempty"`
}
