package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"tessera/internal/config"
	"tessera/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// TicketIndex хранит проданные билеты в Elasticsearch для поиска по штрихкоду
// и месту. Источник истины остаётся в БД.
type TicketIndex struct {
	client *elasticsearch.Client
	config config.ElasticsearchConfig
}

// NewTicketIndex создает клиент и индекс, если его ещё нет
func NewTicketIndex(cfg config.ElasticsearchConfig) (*TicketIndex, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     []string{cfg.URL},
		Username:      cfg.Username,
		Password:      cfg.Password,
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	index := &TicketIndex{
		client: es,
		config: cfg,
	}

	ctx := context.Background()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	if err := index.ensureIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure index exists: %w", err)
	}

	return index, nil
}

var ticketMapping = map[string]interface{}{
	"settings": map[string]interface{}{
		"number_of_shards":   1,
		"number_of_replicas": 0,
	},
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"barcode":     map[string]interface{}{"type": "keyword"},
			"event_id":    map[string]interface{}{"type": "long"},
			"row":         map[string]interface{}{"type": "keyword"},
			"seat":        map[string]interface{}{"type": "integer"},
			"seat_label":  map[string]interface{}{"type": "keyword"},
			"user_id":     map[string]interface{}{"type": "long"},
			"payment_ref": map[string]interface{}{"type": "keyword"},
			"sold_at":     map[string]interface{}{"type": "date"},
		},
	},
}

// ensureIndex создает индекс если он не существует
func (c *TicketIndex) ensureIndex(ctx context.Context) error {
	req := esapi.IndicesExistsRequest{
		Index: []string{c.config.Index},
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusOK {
		slog.Info("Elasticsearch index already exists", "index", c.config.Index)
		return nil
	}

	mappingJSON, err := json.Marshal(ticketMapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	createReq := esapi.IndicesCreateRequest{
		Index: c.config.Index,
		Body:  bytes.NewReader(mappingJSON),
	}

	createRes, err := createReq.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer createRes.Body.Close()

	// Параллельный инстанс мог создать индекс первым
	if createRes.IsError() && !strings.Contains(createRes.String(), "resource_already_exists_exception") {
		return fmt.Errorf("failed to create index: %s", createRes.String())
	}

	slog.Info("Created Elasticsearch index", "index", c.config.Index)
	return nil
}

// IndexTicket индексирует билет; barcode служит id документа
func (c *TicketIndex) IndexTicket(ctx context.Context, doc models.TicketDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal ticket: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.config.Index,
		DocumentID: doc.Barcode,
		Body:       bytes.NewReader(body),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to index ticket: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("indexing error: %s", res.String())
	}
	return nil
}

// GetByBarcode возвращает документ билета или nil, если его нет в индексе
func (c *TicketIndex) GetByBarcode(ctx context.Context, barcode string) (*models.TicketDocument, error) {
	req := esapi.GetRequest{
		Index:      c.config.Index,
		DocumentID: barcode,
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("Elasticsearch error: %s", res.String())
	}

	var response struct {
		Source models.TicketDocument `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &response.Source, nil
}

// SearchTickets ищет по штрихкоду (префикс) или метке места, опционально в
// рамках одного события
func (c *TicketIndex) SearchTickets(ctx context.Context, query string, eventID int64, limit int) ([]models.TicketDocument, error) {
	if limit <= 0 {
		limit = 20
	}

	searchJSON, err := json.Marshal(map[string]interface{}{
		"query": buildTicketQuery(query, eventID),
		"sort": []map[string]interface{}{
			{"_score": map[string]interface{}{"order": "desc"}},
			{"sold_at": map[string]interface{}{"order": "desc"}},
		},
		"size": limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{c.config.Index},
		Body:  bytes.NewReader(searchJSON),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var response struct {
		Hits struct {
			Hits []struct {
				Source models.TicketDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	docs := make([]models.TicketDocument, len(response.Hits.Hits))
	for i, hit := range response.Hits.Hits {
		docs[i] = hit.Source
	}
	return docs, nil
}

func buildTicketQuery(query string, eventID int64) map[string]interface{} {
	query = strings.TrimSpace(query)
	upper := strings.ToUpper(query)

	should := []map[string]interface{}{
		{"term": map[string]interface{}{"barcode": map[string]interface{}{"value": upper, "boost": 3}}},
		{"prefix": map[string]interface{}{"barcode": map[string]interface{}{"value": upper}}},
		{"term": map[string]interface{}{"seat_label": map[string]interface{}{"value": upper, "boost": 2}}},
	}

	boolQuery := map[string]interface{}{
		"should":               should,
		"minimum_should_match": 1,
	}
	if eventID > 0 {
		boolQuery["filter"] = []map[string]interface{}{
			{"term": map[string]interface{}{"event_id": eventID}},
		}
	}
	return map[string]interface{}{"bool": boolQuery}
}
