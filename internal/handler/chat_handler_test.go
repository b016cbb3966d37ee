package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-menu-go/internal/model"
	"smart-menu-go/pkg/log"
)

func TestMain(m *testing.M) {
	log.InitDefault()
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// stubChatService 返回固定应答并记录收到的参数。
type stubChatService struct {
	answer   model.ChatAnswer
	err      error
	merchant string
	customer string
	query    string
}

func (s *stubChatService) Answer(_ context.Context, merchantID, customerID, query string) (model.ChatAnswer, error) {
	s.merchant = merchantID
	s.customer = customerID
	s.query = query
	return s.answer, s.err
}

func newChatRouter(stub *stubChatService) *gin.Engine {
	r := gin.New()
	r.POST("/api/v1/chat", NewChatHandler(stub).Chat)
	return r
}

func TestChatHandler_Chat(t *testing.T) {
	stub := &stubChatService{answer: model.ChatAnswer{
		Reply:     "We have Margherita Pizza.",
		Tier:      model.TierMemoryAware,
		QueryType: model.QueryMenu,
	}}
	r := newChatRouter(stub)

	body := `{"merchantId":"m1","customerId":"c1","message":"what pizzas do you have?"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "m1", stub.merchant)
	assert.Equal(t, "c1", stub.customer)
	assert.Equal(t, "what pizzas do you have?", stub.query)

	var resp struct {
		Code int              `json:"code"`
		Data model.ChatAnswer `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "We have Margherita Pizza.", resp.Data.Reply)
	assert.Equal(t, model.TierMemoryAware, resp.Data.Tier)
}

func TestChatHandler_Chat_MissingFields(t *testing.T) {
	r := newChatRouter(&stubChatService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"merchantId":"m1"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatHandler_Chat_ServiceError(t *testing.T) {
	stub := &stubChatService{err: assert.AnError}
	r := newChatRouter(stub)

	body := `{"merchantId":"m1","customerId":"c1","message":"hi"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
