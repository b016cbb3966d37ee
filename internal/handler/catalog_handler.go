package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"smart-menu-go/internal/config"
	"smart-menu-go/internal/model"
	"smart-menu-go/internal/service"
	"smart-menu-go/pkg/log"
)

// CatalogHandler 处理目录重建与检索相关的 API 请求。
type CatalogHandler struct {
	index service.CatalogIndex
}

// NewCatalogHandler 创建一个新的 CatalogHandler 实例。
func NewCatalogHandler(index service.CatalogIndex) *CatalogHandler {
	return &CatalogHandler{index: index}
}

type reindexRequest struct {
	Items []model.CatalogItem `json:"items" binding:"required"`
}

// Reindex 是目录的唯一变更入口：整体替换指定商家的全部商品。
// 与 Kafka 目录同步消费者共用同一条 IndexItems 通路。
func (h *CatalogHandler) Reindex(c *gin.Context) {
	merchantID := c.Param("merchantId")

	var req reindexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求参数", "data": nil})
		return
	}

	count, err := h.index.IndexItems(c.Request.Context(), merchantID, req.Items)
	if err != nil {
		log.Errorf("[CatalogHandler] 目录重建失败, merchant=%s: %v", merchantID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "目录重建失败", "data": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"indexed": count}})
}

// Search 是目录相似度检索的调试入口。
func (h *CatalogHandler) Search(c *gin.Context) {
	merchantID := c.Param("merchantId")
	query := c.Query("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的查询参数", "data": nil})
		return
	}

	topK, err := strconv.Atoi(c.DefaultQuery("topK", "5"))
	if err != nil || topK <= 0 {
		topK = 5
	}

	results, err := h.index.Search(c.Request.Context(), merchantID, query, topK, config.Conf.Engine.RetrievalMinScore)
	if err != nil {
		log.Errorf("[CatalogHandler] 目录检索失败, merchant=%s: %v", merchantID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "检索失败", "data": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": results})
}
