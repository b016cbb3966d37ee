// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"smart-menu-go/internal/model"
	"smart-menu-go/internal/service"
	"smart-menu-go/pkg/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// ChatHandler 负责处理聊天请求（HTTP 与 WebSocket 两种形态）。
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Chat 处理一次同步问答请求。
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求参数", "data": nil})
		return
	}

	answer, err := h.chatService.Answer(c.Request.Context(), req.MerchantID, req.CustomerID, req.Message)
	if err != nil {
		log.Errorf("[ChatHandler] 处理聊天请求失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "服务暂时不可用", "data": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": answer})
}

// HandleWS 处理一个传入的 WebSocket 连接。
// 每条收到的文本消息视为一次查询，应答按分块下发，最后发送完成通知。
func (h *ChatHandler) HandleWS(c *gin.Context) {
	merchantID := c.Query("merchantId")
	customerID := c.Query("customerId")
	if merchantID == "" || customerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "缺少 merchantId 或 customerId", "data": nil})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立, merchant: %s, customer: %s", merchantID, customerID)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			break
		}

		answer, err := h.chatService.Answer(c.Request.Context(), merchantID, customerID, string(message))
		if err != nil {
			errResp := map[string]string{"error": "服务暂时不可用，请稍后重试"}
			b, _ := json.Marshal(errResp)
			_ = conn.WriteMessage(websocket.TextMessage, b)
			sendCompletion(conn)
			continue
		}

		streamReply(conn, answer.Reply)
		sendCompletion(conn)
	}
}

// streamReply 把完整应答按固定大小切块下发，包装成 {"chunk":"..."}。
func streamReply(conn *websocket.Conn, reply string) {
	const chunkSize = 64
	runes := []rune(reply)
	for i := 0; i < len(runes); i += chunkSize {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		payload := map[string]string{"chunk": string(runes[i:end])}
		b, _ := json.Marshal(payload)
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Warnf("向 WebSocket 写入分块失败: %v", err)
			return
		}
	}
}

// sendCompletion 发送完成通知 JSON。
func sendCompletion(conn *websocket.Conn) {
	notif := map[string]interface{}{
		"type":      "completion",
		"status":    "finished",
		"message":   "响应已完成",
		"timestamp": time.Now().UnixMilli(),
		"date":      time.Now().Format("2006-01-02T15:04:05"),
	}
	b, _ := json.Marshal(notif)
	_ = conn.WriteMessage(websocket.TextMessage, b)
}
