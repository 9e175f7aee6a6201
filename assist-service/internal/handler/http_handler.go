package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/Hajira-org/hajira-chat/assist-service/internal/domain"
	"github.com/Hajira-org/hajira-chat/assist-service/internal/llm"
	"github.com/Hajira-org/hajira-chat/assist-service/internal/service"
	pkglog "github.com/Hajira-org/hajira-chat/pkg/log"
	"github.com/Hajira-org/hajira-chat/pkg/metrics"
	"github.com/Hajira-org/hajira-chat/pkg/wire"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type HTTPHandler struct {
	assistService service.AssistService
}

func NewHTTPHandler(assistService service.AssistService) *HTTPHandler {
	return &HTTPHandler{assistService: assistService}
}

func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.POST("/suggest", h.Suggest)
		api.POST("/ai-chat", h.Chat)
	}

	r.GET("/health", h.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// NewRouter builds the gin engine with request logging, metrics and recovery.
func NewRouter(h *HTTPHandler, logger zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(pkglog.GinMiddleware(logger))
	router.Use(metrics.GinMiddleware())

	h.RegisterRoutes(router)
	return router
}

func (h *HTTPHandler) Suggest(c *gin.Context) {
	var req wire.SuggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, wire.SuggestResponse{Error: domain.InvalidRequestBody})
		return
	}

	suggestion, err := h.assistService.Suggest(c.Request.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		var apiErr *llm.APIError
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		c.JSON(status, wire.SuggestResponse{Error: domain.SuggestFailed})
		return
	}

	c.JSON(http.StatusOK, wire.SuggestResponse{Suggestion: suggestion})
}

func (h *HTTPHandler) Chat(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, wire.ChatResponse{Response: domain.InternalError})
		return
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		c.JSON(http.StatusBadRequest, wire.ChatResponse{Response: domain.EmptyBody})
		return
	}

	var req domain.ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, wire.ChatResponse{Response: domain.InvalidRequestBody})
		return
	}

	question, ok := req.Question()
	if !ok {
		c.JSON(http.StatusBadRequest, wire.ChatResponse{Response: domain.MessageRequired})
		return
	}

	reply, err := h.assistService.Chat(c.Request.Context(), question, req.History, c.GetHeader("Authorization"))
	if err != nil {
		msg := domain.AIRequestFailed
		var apiErr *llm.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			msg = apiErr.Message
		}
		c.JSON(http.StatusInternalServerError, wire.ChatResponse{Response: msg})
		return
	}

	c.JSON(http.StatusOK, wire.ChatResponse{Response: reply})
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
