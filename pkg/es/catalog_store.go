package es

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"smart-menu-go/internal/model"
	"smart-menu-go/pkg/log"
)

// CatalogStore 封装目录向量在 Elasticsearch 上的全部读写操作。
type CatalogStore struct {
	client    *elasticsearch.Client
	indexName string
}

// NewCatalogStore 创建一个基于 Elasticsearch 的目录向量存储。
func NewCatalogStore(client *elasticsearch.Client, indexName string) *CatalogStore {
	return &CatalogStore{client: client, indexName: indexName}
}

// Upsert 批量写入商品向量文档，文档 ID 为 merchantId_itemId。
func (s *CatalogStore) Upsert(ctx context.Context, docs []model.EsCatalogDoc) error {
	var buf bytes.Buffer
	for _, doc := range docs {
		meta := fmt.Sprintf(`{"index":{"_index":%q,"_id":%q}}`, s.indexName, doc.DocID)
		buf.WriteString(meta)
		buf.WriteByte('\n')
		docBytes, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to marshal catalog doc %s: %w", doc.DocID, err)
		}
		buf.Write(docBytes)
		buf.WriteByte('\n')
	}

	req := esapi.BulkRequest{
		Body:    &buf,
		Refresh: "true",
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("bulk index catalog docs: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("[CatalogStore] 批量索引到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to bulk index catalog documents")
	}
	return nil
}

// DeleteMerchant 删除指定商家的全部向量文档（reindex 前的整体清理）。
func (s *CatalogStore) DeleteMerchant(ctx context.Context, merchantID string) error {
	query := fmt.Sprintf(`{"query":{"term":{"merchant_id":%q}}}`, merchantID)
	res, err := s.client.DeleteByQuery(
		[]string{s.indexName},
		strings.NewReader(query),
		s.client.DeleteByQuery.WithContext(ctx),
		s.client.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return fmt.Errorf("delete merchant %s docs: %w", merchantID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[CatalogStore] 按商家清理向量文档失败, status: %s, body: %s", res.Status(), string(bodyBytes))
		return errors.New("failed to delete merchant catalog documents")
	}
	return nil
}

// Search 在指定商家范围内做 kNN 检索，返回余弦相似度降序的结果。
// Elasticsearch 对 cosine 向量的 _score 为 (1+cos)/2，这里还原为原始余弦值。
func (s *CatalogStore) Search(ctx context.Context, merchantID string, vector []float32, k int) ([]model.ScoredItem, error) {
	var buf bytes.Buffer
	esQuery := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   vector,
			"k":              k,
			"num_candidates": k * 10,
			"filter": map[string]interface{}{
				"bool": map[string]interface{}{
					"must": []map[string]interface{}{
						{"term": map[string]interface{}{"merchant_id": merchantID}},
						{"term": map[string]interface{}{"available": true}},
					},
				},
			},
		},
		"size": k,
	}
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.indexName),
		s.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[CatalogStore] Elasticsearch 检索返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.EsCatalogDoc `json:"_source"`
				Score  float64            `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	results := make([]model.ScoredItem, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		results = append(results, model.ScoredItem{
			Item: model.CatalogItem{
				MerchantID:  hit.Source.MerchantID,
				ItemID:      hit.Source.ItemID,
				Name:        hit.Source.Name,
				Description: hit.Source.SearchText,
				Price:       hit.Source.Price,
				Category:    hit.Source.Category,
				Tags:        hit.Source.Tags,
				Available:   hit.Source.Available,
			},
			Similarity: hit.Score*2 - 1,
		})
	}
	return results, nil
}
