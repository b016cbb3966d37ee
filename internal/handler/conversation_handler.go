package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smart-menu-go/internal/service"
)

// ConversationHandler 处理与对话记忆相关的 API 请求。
type ConversationHandler struct {
	memory service.ConversationMemory
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(memory service.ConversationMemory) *ConversationHandler {
	return &ConversationHandler{memory: memory}
}

// GetHistory 返回指定顾客的短期对话历史（从旧到新）。
func (h *ConversationHandler) GetHistory(c *gin.Context) {
	merchantID := c.Query("merchantId")
	customerID := c.Query("customerId")
	if merchantID == "" || customerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "缺少 merchantId 或 customerId", "data": nil})
		return
	}

	turns := h.memory.Recall(c.Request.Context(), merchantID, customerID)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": turns})
}

// GetProfile 返回由对话历史派生的顾客画像。
func (h *ConversationHandler) GetProfile(c *gin.Context) {
	merchantID := c.Query("merchantId")
	customerID := c.Query("customerId")
	if merchantID == "" || customerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "缺少 merchantId 或 customerId", "data": nil})
		return
	}

	profile := h.memory.Profile(c.Request.Context(), merchantID, customerID)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": profile})
}
