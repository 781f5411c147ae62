package api

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mutusfa/Neurodeck/backend/go/internal/anki"
	"github.com/mutusfa/Neurodeck/backend/go/internal/card_service/service"
	"github.com/mutusfa/Neurodeck/backend/go/internal/ingestion"
	"github.com/mutusfa/Neurodeck/backend/go/internal/models"
	"github.com/mutusfa/Neurodeck/backend/go/internal/similarity"
	"github.com/mutusfa/Neurodeck/backend/go/pkg/logger"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler 封装了卡片服务所有 API endpoint 的处理函数。
type Handler struct {
	service *service.Service
	logger  *logger.Logger
}

// NewHandler 创建一个新的 Handler 实例。
func NewHandler(s *service.Service, log *logger.Logger) *Handler {
	return &Handler{service: s, logger: log}
}

// --- Document & Generation Handlers ---

// UploadDocument 处理文件上传：归档原始文件、提取文本并生成卡片。
// 同一内容重复上传时返回既有卡片，响应中 from_cache 为 true。
func (h *Handler) UploadDocument(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 file 字段"})
		return
	}

	// 先写入临时目录。保留原始文件名，MIME 嗅探失败时按扩展名回退。
	tmpDir, err := os.MkdirTemp("", "neurodeck-upload-")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer os.RemoveAll(tmpDir)

	tmpPath := filepath.Join(tmpDir, filepath.Base(file.Filename))
	if err := c.SaveUploadedFile(file, tmpPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.GenerateFromFile(c.Request.Context(), tmpPath, file.Filename)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GenerateURLRequest 定义了按 URL 生成卡片请求的 JSON 结构。
type GenerateURLRequest struct {
	URL string `json:"url" binding:"required,url"`
}

// GenerateFromURL 抓取一个网页并为其生成卡片。
func (h *Handler) GenerateFromURL(c *gin.Context) {
	var req GenerateURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.GenerateFromURL(c.Request.Context(), req.URL)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// --- Context & Card Handlers ---

// ListContexts 返回全部 Context 及各自的卡片数量。
func (h *Handler) ListContexts(c *gin.Context) {
	contexts, err := h.service.ListContexts(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contexts": contexts})
}

// ListCards 返回指定 Context 下的全部卡片。
func (h *Handler) ListCards(c *gin.Context) {
	contextKey := c.Query("context")
	if contextKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 context 参数"})
		return
	}

	cards, err := h.service.LoadCards(c.Request.Context(), contextKey)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"context": contextKey, "cards": cards})
}

// DeleteContext 删除一个 Context 及其卡片、反馈、媒体与向量。删除是幂等的。
func (h *Handler) DeleteContext(c *gin.Context) {
	contextKey := c.Query("context")
	if contextKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 context 参数"})
		return
	}

	if err := h.service.DeleteContext(c.Request.Context(), contextKey); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "删除成功", "context": contextKey})
}

// EvaluationRequest 定义了卡片评价请求的 JSON 结构。
type EvaluationRequest struct {
	Evaluation string `json:"evaluation" binding:"required"`
}

// UpdateEvaluation 更新一张卡片的评价。合法值之外的输入返回 400。
func (h *Handler) UpdateEvaluation(c *gin.Context) {
	cardID, ok := h.cardIDParam(c)
	if !ok {
		return
	}

	var req EvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	eval := models.CardEvaluation(req.Evaluation)
	if err := h.service.UpdateEvaluation(c.Request.Context(), cardID, eval); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"card_id": cardID, "evaluation": req.Evaluation})
}

// SimilarCards 返回与指定卡片问题最相近的其他卡片。
func (h *Handler) SimilarCards(c *gin.Context) {
	cardID, ok := h.cardIDParam(c)
	if !ok {
		return
	}
	topK, _ := strconv.Atoi(c.DefaultQuery("top_k", "5"))

	matches, err := h.service.Similar(c.Request.Context(), cardID, topK)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"card_id": cardID, "matches": matches})
}

// --- Anki Sync Handlers ---

// SyncRequest 定义了同步请求的 JSON 结构。context 与 card_ids 二选一。
type SyncRequest struct {
	Context string `json:"context"`
	CardIDs []uint `json:"card_ids"`
}

// SyncAnki 对一个 Context 或指定卡片集合执行一轮同步，返回逐卡结果。
func (h *Handler) SyncAnki(c *gin.Context) {
	var req SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Context == "" && len(req.CardIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "需要 context 或 card_ids"})
		return
	}

	var (
		outcomes []anki.Outcome
		err      error
	)
	if req.Context != "" {
		outcomes, err = h.service.SyncContext(c.Request.Context(), req.Context)
	} else {
		outcomes, err = h.service.SyncCards(c.Request.Context(), req.CardIDs)
	}
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": outcomes})
}

// ListDecks 返回 Anki 中现有的全部牌组名称。
func (h *Handler) ListDecks(c *gin.Context) {
	decks, err := h.service.ListDecks(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"decks": decks})
}

// --- Stats & Health Handlers ---

// Stats 返回全库统计信息与运行时能力。
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Health 逐个探测依赖。任一必选依赖异常时返回 503。
func (h *Handler) Health(c *gin.Context) {
	health := h.service.Health(c.Request.Context())

	status := http.StatusOK
	for _, v := range health {
		if v != "ok" && v != "disabled" {
			status = http.StatusServiceUnavailable
			break
		}
	}
	c.JSON(status, health)
}

// --- Helpers ---

// cardIDParam 解析路径中的卡片 ID，非法时直接写入 400 响应。
func (h *Handler) cardIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的卡片 ID 格式"})
		return 0, false
	}
	return uint(id), true
}

// renderError 将业务错误翻译成对应的 HTTP 状态码与 JSON 响应。
func (h *Handler) renderError(c *gin.Context, err error) {
	var unsupported *ingestion.UnsupportedTypeError
	switch {
	case errors.As(err, &unsupported):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidEvaluation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, similarity.ErrDisabled):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, anki.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		h.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("请求处理失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
