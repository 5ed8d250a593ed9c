package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"nutrichat/internal/domain"
	"nutrichat/internal/service"
)

// AnalysisHandler holds dependencies for food-photo analysis endpoints.
type AnalysisHandler struct {
	logger *zap.Logger
	vision *service.VisionService
}

func NewAnalysisHandler(logger *zap.Logger, vision *service.VisionService) *AnalysisHandler {
	return &AnalysisHandler{logger: logger, vision: vision}
}

// AnalyzeImage handles POST /analyses.
func (h *AnalysisHandler) AnalyzeImage(c *gin.Context) {
	userID, ok := AuthUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req struct {
		ImageURL string                `json:"image_url" binding:"required"`
		Prompt   string                `json:"prompt"`
		Asserted []domain.AssertedFood `json:"asserted_foods"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	session, err := h.vision.AnalyzeImage(c.Request.Context(), userID, req.ImageURL, req.Prompt, req.Asserted)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": session})
}

// SaveCorrection handles POST /analyses/:id/corrections.
func (h *AnalysisHandler) SaveCorrection(c *gin.Context) {
	userID, ok := AuthUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	var req struct {
		Foods []domain.DetectedFood `json:"foods" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	corr, err := h.vision.SaveCorrection(c.Request.Context(), userID, sessionID, req.Foods)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"correction": corr})
}

// Summary handles GET /analyses/:id/summary?mode=avg&correction_id=...
func (h *AnalysisHandler) Summary(c *gin.Context) {
	userID, ok := AuthUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	mode := domain.EstimationMode(c.DefaultQuery("mode", string(domain.EstimationAvg)))

	correctionID := uuid.Nil
	if raw := c.Query("correction_id"); raw != "" {
		correctionID, err = uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid correction id"})
			return
		}
	}

	summary, err := h.vision.Summarize(c.Request.Context(), userID, sessionID, correctionID, mode)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}
