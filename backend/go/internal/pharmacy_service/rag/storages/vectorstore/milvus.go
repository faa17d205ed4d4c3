package vectorstore

import (
	"PharmaChat/backend/go/internal/database/milvus"
	"PharmaChat/backend/go/internal/models"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/interfaces"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/schema"
	"PharmaChat/backend/go/pkg/logger"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// MilvusStore is an adapter for the existing Milvus client to implement the VectorStore interface.
// The collection must already exist; see milvus.MilvusClient.EnsureCollection.
type MilvusStore struct {
	log        *logger.Logger
	client     client.Client // The raw client from the existing MilvusClient wrapper
	collection string
	metric     entity.MetricType
	indexType  string
}

// NewMilvusStore creates a new MilvusStore adapter.
func NewMilvusStore(milvusClient *milvus.MilvusClient, log *logger.Logger) (*MilvusStore, error) {
	if milvusClient == nil || milvusClient.Client == nil {
		return nil, fmt.Errorf("milvus client is not initialized")
	}
	return &MilvusStore{
		log:        log,
		client:     milvusClient.Client,
		collection: milvusClient.Config.CollectionName,
		metric:     milvusClient.MetricType(),
		indexType:  milvusClient.Config.IndexType,
	}, nil
}

// Upsert writes the documents column-wise; Milvus replaces rows by primary key.
func (s *MilvusStore) Upsert(ctx context.Context, docs []schema.Document) error {
	if len(docs) == 0 {
		return nil
	}

	ids := make([]string, len(docs))
	texts := make([]string, len(docs))
	names := make([]string, len(docs))
	racks := make([]string, len(docs))
	embeddings := make([][]float32, len(docs))

	dim := 0
	for i, doc := range docs {
		ids[i] = doc.ID
		texts[i] = doc.Text
		names[i] = doc.Attributes[schema.AttrMedicineName]
		racks[i] = doc.Attributes[schema.AttrRackLocation]
		embeddings[i] = doc.Embedding
		if len(doc.Embedding) > dim {
			dim = len(doc.Embedding)
		}
	}

	_, err := s.client.Upsert(ctx, s.collection, "",
		entity.NewColumnVarChar(milvus.FieldID, ids),
		entity.NewColumnVarChar(milvus.FieldText, texts),
		entity.NewColumnVarChar(milvus.FieldMedicineName, names),
		entity.NewColumnVarChar(milvus.FieldRackLocation, racks),
		entity.NewColumnFloatVector(milvus.FieldEmbedding, dim, embeddings),
	)
	if err != nil {
		s.log.WithError(models.ErrorInfo{Message: err.Error()}).Error(fmt.Sprintf("Failed to upsert %d documents into Milvus", len(docs)))
		return fmt.Errorf("failed to upsert data into Milvus: %w", err)
	}
	return nil
}

func (s *MilvusStore) searchParam() (entity.SearchParam, error) {
	switch s.indexType {
	case "HNSW":
		return entity.NewIndexHNSWSearchParam(64)
	case "IVF_FLAT":
		return entity.NewIndexIvfFlatSearchParam(16)
	default:
		return entity.NewIndexAUTOINDEXSearchParam(1)
	}
}

// Search runs a vector search and applies the threshold on the returned scores.
func (s *MilvusStore) Search(ctx context.Context, embedding []float32, topK int, threshold float64) ([]schema.SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	sp, err := s.searchParam()
	if err != nil {
		return nil, err
	}

	outputFields := []string{milvus.FieldID, milvus.FieldText, milvus.FieldMedicineName, milvus.FieldRackLocation}
	searchResults, err := s.client.Search(
		ctx, s.collection, []string{}, "", outputFields,
		[]entity.Vector{entity.FloatVector(embedding)},
		milvus.FieldEmbedding, s.metric, topK, sp,
		client.WithSearchQueryConsistencyLevel(entity.ClStrong),
	)
	if err != nil {
		s.log.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to search in Milvus")
		return nil, fmt.Errorf("failed to search in Milvus: %w", err)
	}

	var results []schema.SearchResult
	for _, res := range searchResults {
		idCol, ok := res.IDs.(*entity.ColumnVarChar)
		if !ok {
			s.log.Warn("Search result is missing ID field or has wrong type, skipping.")
			continue
		}
		ids := idCol.Data()
		texts := varcharData(res.Fields, milvus.FieldText)
		names := varcharData(res.Fields, milvus.FieldMedicineName)
		racks := varcharData(res.Fields, milvus.FieldRackLocation)

		for i := 0; i < res.ResultCount; i++ {
			score := float64(res.Scores[i])
			if threshold > 0 && score < threshold {
				continue
			}
			doc := schema.Document{ID: ids[i], Attributes: map[string]string{}}
			if i < len(texts) {
				doc.Text = texts[i]
			}
			if i < len(names) {
				doc.Attributes[schema.AttrMedicineName] = names[i]
			}
			if i < len(racks) {
				doc.Attributes[schema.AttrRackLocation] = racks[i]
			}
			results = append(results, schema.SearchResult{Document: doc, Score: score})
		}
	}

	SortResults(results)
	return results, nil
}

func varcharData(fields client.ResultSet, name string) []string {
	col, ok := fields.GetColumn(name).(*entity.ColumnVarChar)
	if !ok {
		return nil
	}
	return col.Data()
}

// DeleteExcept removes every row whose ID is not in keep.
func (s *MilvusStore) DeleteExcept(ctx context.Context, keep []string) (int, error) {
	expr := idNotInExpr(keep)
	rs, err := s.client.Query(ctx, s.collection, nil, expr, []string{milvus.FieldID},
		client.WithSearchQueryConsistencyLevel(entity.ClStrong))
	if err != nil {
		return 0, fmt.Errorf("failed to query stale ids: %w", err)
	}
	stale := 0
	if col, ok := rs.GetColumn(milvus.FieldID).(*entity.ColumnVarChar); ok {
		stale = len(col.Data())
	}
	if stale == 0 {
		return 0, nil
	}

	if err := s.client.Delete(ctx, s.collection, "", expr); err != nil {
		return 0, fmt.Errorf("failed to delete stale ids: %w", err)
	}
	s.log.Info(fmt.Sprintf("Pruned %d stale documents from Milvus collection: %s", stale, s.collection))
	return stale, nil
}

// Count returns the number of rows via count(*).
func (s *MilvusStore) Count(ctx context.Context) (int, error) {
	rs, err := s.client.Query(ctx, s.collection, nil, "", []string{"count(*)"},
		client.WithSearchQueryConsistencyLevel(entity.ClStrong))
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	col, ok := rs.GetColumn("count(*)").(*entity.ColumnInt64)
	if !ok || len(col.Data()) == 0 {
		return 0, fmt.Errorf("unexpected count(*) result")
	}
	return int(col.Data()[0]), nil
}

// idNotInExpr builds a boolean expression matching every ID outside keep.
func idNotInExpr(keep []string) string {
	if len(keep) == 0 {
		return fmt.Sprintf(`%s != ""`, milvus.FieldID)
	}
	quoted := make([]string, len(keep))
	for i, id := range keep {
		quoted[i] = strconv.Quote(id)
	}
	return fmt.Sprintf("%s not in [%s]", milvus.FieldID, strings.Join(quoted, ","))
}

// compile-time check to ensure MilvusStore implements the VectorStore interface
var _ interfaces.VectorStore = (*MilvusStore)(nil)
