package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/shouni/gemini-image-studio/pkg/domain"
	"github.com/shouni/gemini-image-studio/pkg/session"
	"github.com/shouni/gemini-image-studio/pkg/studio"
)

// maxUploadBytes はアップロード画像とプロジェクトファイルの上限です。
const maxUploadBytes = 32 << 20

// Server はスタジオの HTTP API です。
type Server struct {
	svc    *studio.Service
	store  *session.Store
	engine *gin.Engine
}

// New はルーティングを設定した Server を生成します。
func New(svc *studio.Service) *Server {
	s := &Server{svc: svc, store: svc.Store(), engine: gin.New()}
	s.engine.Use(gin.Recovery(), requestLogger())
	s.routes()
	return s
}

// Handler は http.Server に渡すハンドラーを返します。
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	r := s.engine
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := r.Group("/api")
	api.GET("/state", s.getState)
	api.PATCH("/settings", s.patchSettings)
	api.DELETE("/error", s.dismissError)

	api.PUT("/slots/:index", s.putSlot)
	api.DELETE("/slots/:index", s.deleteSlot)

	api.POST("/generate", s.generate)
	api.POST("/chat", s.chat)
	api.DELETE("/chat", s.resetChat)
	api.POST("/batch", s.batch)
	api.POST("/pose/detect", s.detectPose)

	api.GET("/history", s.getHistory)
	api.DELETE("/history", s.clearHistory)
	api.DELETE("/history/:id", s.deleteHistory)

	api.POST("/templates", s.addTemplate)
	api.DELETE("/templates", s.deleteTemplate)

	api.GET("/presets", s.listPresets)
	api.POST("/presets", s.savePreset)
	api.DELETE("/presets/:name", s.deletePreset)
	api.POST("/presets/:name/load", s.loadPreset)

	api.GET("/project", s.exportProject)
	api.POST("/project", s.importProject)
}

func (s *Server) getState(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.State())
}

func (s *Server) patchSettings(c *gin.Context) {
	var in session.Settings
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.store.ApplySettings(c.Request.Context(), in); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.store.State())
}

func (s *Server) dismissError(c *gin.Context) {
	s.store.DismissError(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func slotIndex(c *gin.Context) (int, bool) {
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil || !domain.ValidSlot(idx) {
		abortWithError(c, fmt.Errorf("%w: %s", domain.ErrSlotIndex, c.Param("index")))
		return 0, false
	}
	return idx, true
}

type slotRequest struct {
	Image domain.EncodedImage `json:"image"`
	URL   string              `json:"url"`
}

// putSlot は画像本体 (Content-Type: image/*)、data URL、または URL のいずれかでスロットを設定します。
func (s *Server) putSlot(c *gin.Context) {
	idx, ok := slotIndex(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var err error
	if strings.HasPrefix(c.ContentType(), "image/") {
		var data []byte
		data, err = io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes))
		if err != nil {
			badRequest(c, err)
			return
		}
		err = s.svc.UploadSlot(ctx, idx, data)
	} else {
		var in slotRequest
		if bindErr := c.ShouldBindJSON(&in); bindErr != nil {
			badRequest(c, bindErr)
			return
		}
		switch {
		case in.URL != "":
			err = s.svc.LoadSlotFromURL(ctx, idx, in.URL)
		case !in.Image.IsZero():
			err = s.svc.SetSlot(ctx, idx, in.Image)
		default:
			abortWithError(c, fmt.Errorf("%w: image か url を指定してください", domain.ErrValidation))
			return
		}
	}
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.store.State())
}

func (s *Server) deleteSlot(c *gin.Context) {
	idx, ok := slotIndex(c)
	if !ok {
		return
	}
	if err := s.store.ClearSlot(c.Request.Context(), idx); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.store.State())
}

func (s *Server) generate(c *gin.Context) {
	results, err := s.svc.Generate(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

type chatRequest struct {
	Text string `json:"text" binding:"required"`
}

func (s *Server) chat(c *gin.Context) {
	var in chatRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	result, err := s.svc.ChatEdit(c.Request.Context(), in.Text)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result, "chat": s.store.ChatHistory()})
}

func (s *Server) resetChat(c *gin.Context) {
	if err := s.store.ResetChat(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type batchRequest struct {
	Prompts []string `json:"prompts" binding:"required"`
}

type batchItemResponse struct {
	Index   int                       `json:"index"`
	Prompt  string                    `json:"prompt"`
	Results []domain.GenerationResult `json:"results,omitempty"`
	Error   string                    `json:"error,omitempty"`
}

func (s *Server) batch(c *gin.Context) {
	var in batchRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	report, err := s.svc.RunBatch(c.Request.Context(), in.Prompts)
	if err != nil {
		abortWithError(c, err)
		return
	}
	items := make([]batchItemResponse, 0, len(report.Items))
	for _, item := range report.Items {
		out := batchItemResponse{Index: item.Index, Prompt: item.Prompt, Results: item.Results}
		if item.Err != nil {
			out.Error = item.Err.Error()
		}
		items = append(items, out)
	}
	c.JSON(http.StatusOK, gin.H{"id": report.ID, "items": items, "failed": report.Failed()})
}

type poseRequest struct {
	Slot int `json:"slot"`
}

func (s *Server) detectPose(c *gin.Context) {
	var in poseRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	pose, err := s.svc.DetectPose(c.Request.Context(), in.Slot)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pose": pose})
}

func (s *Server) getHistory(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"history": s.store.State().History})
}

func (s *Server) clearHistory(c *gin.Context) {
	if err := s.store.ClearHistory(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteHistory(c *gin.Context) {
	if err := s.store.RemoveHistory(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type templateRequest struct {
	Template string `json:"template"`
}

func (s *Server) addTemplate(c *gin.Context) {
	var in templateRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.store.AddTemplate(c.Request.Context(), in.Template); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": s.store.State().PromptTemplates})
}

func (s *Server) deleteTemplate(c *gin.Context) {
	if err := s.store.RemoveTemplate(c.Request.Context(), c.Query("template")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": s.store.State().PromptTemplates})
}

func (s *Server) listPresets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"presets": s.store.Presets()})
}

type presetRequest struct {
	Name      string `json:"name" binding:"required"`
	Overwrite bool   `json:"overwrite"`
}

func (s *Server) savePreset(c *gin.Context) {
	var in presetRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.store.SavePreset(c.Request.Context(), in.Name, in.Overwrite); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"presets": s.store.Presets()})
}

func (s *Server) deletePreset(c *gin.Context) {
	if err := s.store.DeletePreset(c.Request.Context(), c.Param("name")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) loadPreset(c *gin.Context) {
	if err := s.store.LoadPreset(c.Request.Context(), c.Param("name")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.store.State())
}

func (s *Server) exportProject(c *gin.Context) {
	data, err := s.store.Export()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="project.json"`)
	c.Data(http.StatusOK, "application/json", data)
}

func (s *Server) importProject(c *gin.Context) {
	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes))
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := s.svc.ImportProject(c.Request.Context(), data); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.store.State())
}
