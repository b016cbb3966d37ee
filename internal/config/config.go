// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Engine        EngineConfig        `mapstructure:"engine"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
// Enabled 为 false 时引擎以无状态降级模式运行（仅进程内存储）。
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
// CatalogTopic 接收外部目录系统推送的商品全量列表，
// EventTopic 用于发布校验器产生的漂移事件。
type KafkaConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Brokers      string `mapstructure:"brokers"`
	CatalogTopic string `mapstructure:"catalog_topic"`
	EventTopic   string `mapstructure:"event_topic"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
// Enabled 为 false 时直接使用本地确定性向量（降级模式）。
type EmbeddingConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	Dimensions     int    `mapstructure:"dimensions"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// LLMConfig 存储生成服务相关的配置。
type LLMConfig struct {
	APIKey         string              `mapstructure:"api_key"`
	BaseURL        string              `mapstructure:"base_url"`
	Model          string              `mapstructure:"model"`
	TimeoutSeconds int                 `mapstructure:"timeout_seconds"`
	Generation     LLMGenerationConfig `mapstructure:"generation"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// EngineConfig 存储对话引擎的阈值与固定话术。
type EngineConfig struct {
	RetrievalTopK       int          `mapstructure:"retrieval_top_k"`
	RetrievalMinScore   float64      `mapstructure:"retrieval_min_score"`
	CacheSimilarity     float64      `mapstructure:"cache_similarity"`
	CacheTTLHours       int          `mapstructure:"cache_ttl_hours"`
	CacheMaxEntries     int          `mapstructure:"cache_max_entries"`
	MemoryTTLHours      int          `mapstructure:"memory_ttl_hours"`
	MemoryMaxTurns      int          `mapstructure:"memory_max_turns"`
	ClarifyStaleMinutes int          `mapstructure:"clarify_stale_minutes"`
	HeavyComplexity     int          `mapstructure:"heavy_complexity"`
	Prompt              PromptConfig `mapstructure:"prompt"`
	Replies             ReplyConfig  `mapstructure:"replies"`
}

// PromptConfig 配置系统提示与上下文包裹格式（可选）。
type PromptConfig struct {
	Rules    string `mapstructure:"rules"`
	RefStart string `mapstructure:"ref_start"`
	RefEnd   string `mapstructure:"ref_end"`
}

// ReplyConfig 配置各异常路径返回给用户的固定话术。
type ReplyConfig struct {
	Apology   string `mapstructure:"apology"`
	NoCatalog string `mapstructure:"no_catalog"`
	Clarify   string `mapstructure:"clarify"`
}

// EmbeddingTimeout 返回 Embedding 调用的超时时间，带默认值。
func (c EmbeddingConfig) EmbeddingTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GenerationTimeout 返回生成调用的超时时间，带默认值。
func (c LLMConfig) GenerationTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}

	applyDefaults(&Conf)
}

// applyDefaults 为未配置的引擎阈值填充经验默认值。
func applyDefaults(c *Config) {
	if c.Engine.RetrievalTopK <= 0 {
		c.Engine.RetrievalTopK = 5
	}
	if c.Engine.RetrievalMinScore <= 0 {
		c.Engine.RetrievalMinScore = 0.30
	}
	if c.Engine.CacheSimilarity <= 0 {
		c.Engine.CacheSimilarity = 0.90
	}
	if c.Engine.CacheTTLHours <= 0 {
		c.Engine.CacheTTLHours = 48
	}
	if c.Engine.CacheMaxEntries <= 0 {
		c.Engine.CacheMaxEntries = 200
	}
	if c.Engine.MemoryTTLHours <= 0 {
		c.Engine.MemoryTTLHours = 4
	}
	if c.Engine.MemoryMaxTurns <= 0 {
		c.Engine.MemoryMaxTurns = 10
	}
	if c.Engine.ClarifyStaleMinutes <= 0 {
		c.Engine.ClarifyStaleMinutes = 5
	}
	if c.Engine.HeavyComplexity <= 0 {
		c.Engine.HeavyComplexity = 3
	}
	if c.Engine.Replies.Apology == "" {
		c.Engine.Replies.Apology = "抱歉，当前服务繁忙，请稍后重试。"
	}
	if c.Engine.Replies.NoCatalog == "" {
		c.Engine.Replies.NoCatalog = "该商家的菜单暂时不可用，请稍后再试。"
	}
	if c.Engine.Replies.Clarify == "" {
		c.Engine.Replies.Clarify = "您指的是哪一个商品呢？麻烦说一下名称，我帮您查。"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1024
	}
}
