package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shouni/gemini-image-studio/pkg/domain"
)

// statusFor はエラーの分類を HTTP ステータスに対応付けます。
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrConfigMissing):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrBusy), errors.Is(err, domain.ErrPresetExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPresetNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNoImageReturned), errors.Is(err, domain.ErrNoPersonDetected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrRemote):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrSlotIndex),
		errors.Is(err, domain.ErrImportParse),
		errors.Is(err, domain.ErrImportNoVersion),
		errors.Is(err, domain.ErrImportVersion):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// errorBody はエラー応答の形式です。
type errorBody struct {
	Error   string                `json:"error"`
	Missing []domain.Precondition `json:"missing,omitempty"`
}

func abortWithError(c *gin.Context, err error) {
	body := errorBody{Error: err.Error()}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		body.Missing = ve.Missing
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusFor(err), body)
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: "リクエストの形式が不正です: " + err.Error()})
}
