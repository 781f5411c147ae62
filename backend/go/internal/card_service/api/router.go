package api

import "github.com/gin-gonic/gin"

// SetupRouter 配置并返回一个 Gin 引擎实例。
func SetupRouter(h *Handler) *gin.Engine {
	// 使用默认中间件 (logger, recovery) 创建一个 Gin 引擎。
	r := gin.Default()

	// 存活探测放在根路径，不参与 API 分组。
	r.GET("/healthz", h.Health)

	// 使用 v1 版本对 API 进行分组
	apiV1 := r.Group("/api/v1")
	apiV1.Use(RequestLogger("card_service"))
	{
		// 文档摄取与卡片生成
		documents := apiV1.Group("/documents")
		{
			documents.POST("/upload", h.UploadDocument)
			documents.POST("/url", h.GenerateFromURL)
		}

		// Context 管理
		contexts := apiV1.Group("/contexts")
		{
			contexts.GET("", h.ListContexts)
			contexts.GET("/cards", h.ListCards)
			contexts.DELETE("", h.DeleteContext)
		}

		// 单卡操作
		cards := apiV1.Group("/cards")
		{
			cards.PUT("/:id/evaluation", h.UpdateEvaluation)
			cards.GET("/:id/similar", h.SimilarCards)
		}

		// Anki 同步
		ankiRoutes := apiV1.Group("/anki")
		{
			ankiRoutes.POST("/sync", h.SyncAnki)
			ankiRoutes.GET("/decks", h.ListDecks)
		}

		apiV1.GET("/stats", h.Stats)
	}

	return r
}
