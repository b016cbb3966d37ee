// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"smart-menu-go/internal/config"
	"smart-menu-go/internal/model"
	"smart-menu-go/pkg/log"
	"smart-menu-go/pkg/tasks"
)

// Reindexer 定义了能够处理目录同步任务的服务。
// 它把 Kafka 消费者与具体的目录索引实现解耦。
type Reindexer interface {
	IndexItems(ctx context.Context, merchantID string, items []model.CatalogItem) (int, error)
}

var producer *kafka.Writer

// InitProducer 初始化漂移事件生产者。
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.EventTopic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
}

// PublishDriftEvent 发布一条校验器漂移事件。
// 事件仅用于离线观测，发送失败只记录日志，绝不影响应答链路。
func PublishDriftEvent(event tasks.DriftEvent) {
	if producer == nil {
		return
	}
	eventBytes, err := json.Marshal(event)
	if err != nil {
		log.Errorf("[Kafka] 序列化漂移事件失败: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := producer.WriteMessages(ctx, kafka.Message{Value: eventBytes}); err != nil {
		log.Warnf("[Kafka] 发送漂移事件失败: %v", err)
	}
}

// StartCatalogConsumer 启动目录同步消费者。
// 外部目录系统在商品变更时推送商家的全量商品列表，
// 这里消费后触发整体 reindex。
func StartCatalogConsumer(cfg config.KafkaConfig, reindexer Reindexer) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.CatalogTopic,
		GroupID:  "smart-menu-go-catalog",
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 目录同步消费者已启动，正在监听主题 '%s'", cfg.CatalogTopic)

	for {
		m, err := r.FetchMessage(context.Background())
		if err != nil {
			log.Error("从 Kafka 读取消息失败", err)
			break
		}

		var task tasks.CatalogSyncTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析目录同步消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			if err := r.CommitMessages(context.Background(), m); err != nil {
				log.Errorf("提交错误消息失败: %v", err)
			}
			continue
		}

		log.Infof("收到目录同步任务: merchant=%s, items=%d", task.MerchantID, len(task.Items))
		count, err := reindexer.IndexItems(context.Background(), task.MerchantID, task.Items)
		if err != nil {
			log.Errorf("目录同步失败: merchant=%s, error: %v", task.MerchantID, err)
			// 不提交 offset，让 Kafka 自动重试；reindex 是幂等的
			continue
		}

		log.Infof("目录同步完成: merchant=%s, indexed=%d", task.MerchantID, count)
		if err := r.CommitMessages(context.Background(), m); err != nil {
			log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		}
	}

	if err := r.Close(); err != nil {
		log.Fatalf("关闭 Kafka 消费者失败: %v", err)
	}
}
