// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"smart-menu-go/internal/config"
	"smart-menu-go/internal/handler"
	"smart-menu-go/internal/middleware"
	"smart-menu-go/internal/repository"
	"smart-menu-go/internal/service"
	"smart-menu-go/pkg/database"
	"smart-menu-go/pkg/embedding"
	"smart-menu-go/pkg/es"
	"smart-menu-go/pkg/kafka"
	"smart-menu-go/pkg/kvstore"
	"smart-menu-go/pkg/llm"
	"smart-menu-go/pkg/log"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 按显式能力配置初始化基础设施。
	// 协作方是否可用在构造期一次性确定，调用期不做动态探测。
	var catalogRepo repository.CatalogRepository
	if cfg.Database.MySQL.DSN != "" {
		database.InitMySQL(cfg.Database.MySQL.DSN)
		catalogRepo = repository.NewCatalogRepository(database.DB)
	} else {
		log.Warnf("MySQL 未配置，目录元数据使用进程内存储")
		catalogRepo = repository.NewMemoryCatalogRepository()
	}

	var store kvstore.Store
	if cfg.Database.Redis.Enabled {
		database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
		store = kvstore.NewFallbackStore(kvstore.NewRedisStore(database.RDB))
	} else {
		log.Warnf("Redis 未启用，记忆与缓存使用进程内存储")
		store = kvstore.NewMemoryStore()
	}

	embeddingClient := embedding.NewClient(cfg.Embedding)

	var vectorStore service.VectorStore
	if cfg.Elasticsearch.Enabled {
		if err := es.InitES(cfg.Elasticsearch, embeddingClient.Dimensions()); err != nil {
			log.Fatalf("es 初始化失败: %s", err)
		}
		vectorStore = es.NewCatalogStore(es.ESClient, cfg.Elasticsearch.IndexName)
	} else {
		log.Warnf("Elasticsearch 未启用，向量检索使用进程内暴力检索")
		vectorStore = service.NewMemoryVectorStore()
	}

	llmClient := llm.NewClient(cfg.LLM)

	// 4. 初始化 Service (依赖注入)
	catalogIndex := service.NewCatalogIndex(embeddingClient, vectorStore, catalogRepo, cfg.Embedding)
	memory := service.NewConversationMemory(store, cfg.Engine)
	cache := service.NewSemanticCache(store, embeddingClient, cfg.Engine)
	assembler := service.NewContextAssembler(memory, catalogIndex, catalogRepo, cfg.Engine)
	validator := service.NewResponseValidator(catalogRepo)
	chatService := service.NewChatService(catalogIndex, memory, cache, assembler, validator, llmClient, cfg.Engine, cfg.LLM)

	// 5. 启动 Kafka：目录同步消费者 + 漂移事件生产者
	if cfg.Kafka.Enabled {
		kafka.InitProducer(cfg.Kafka)
		go kafka.StartCatalogConsumer(cfg.Kafka, catalogIndex)
	} else {
		log.Warnf("Kafka 未启用，目录同步仅通过 HTTP reindex 入口")
	}

	// 6. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 7. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		chatHandler := handler.NewChatHandler(chatService)
		apiV1.POST("/chat", chatHandler.Chat)
		apiV1.GET("/chat/ws", chatHandler.HandleWS)

		catalogHandler := handler.NewCatalogHandler(catalogIndex)
		catalog := apiV1.Group("/catalog")
		{
			catalog.POST("/:merchantId/reindex", catalogHandler.Reindex)
			catalog.GET("/:merchantId/search", catalogHandler.Search)
		}

		conversationHandler := handler.NewConversationHandler(memory)
		conversations := apiV1.Group("/conversations")
		{
			conversations.GET("", conversationHandler.GetHistory)
			conversations.GET("/profile", conversationHandler.GetProfile)
		}
	}

	// 8. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}
