package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

// DenseSearch performs a dense-only vector search and returns scored hits.
// The validator uses this with topK=1 to check whether any evidence matches
// an assumption.
func (c *Client) DenseSearch(ctx context.Context, collection string, vector []float32, topK int) ([]ScoredResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("client is closed")
	}

	if len(vector) == 0 {
		return nil, fmt.Errorf("dense vector is required")
	}

	if topK <= 0 {
		topK = 1
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	queryPoints := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQueryDense(vector),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(false),
	}

	points, err := c.client.Query(ctx, queryPoints)
	if err != nil {
		return nil, fmt.Errorf("dense search failed: %w", err)
	}

	results := make([]ScoredResult, 0, len(points))
	for _, p := range points {
		results = append(results, ScoredResult{
			ID:         pointID(p.Id),
			Similarity: p.Score,
		})
	}

	return results, nil
}

// CountContentType returns the number of evidence records with the given
// content type.
func (c *Client) CountContentType(ctx context.Context, collection, contentType string) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return 0, fmt.Errorf("client is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	count, err := c.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Filter:         keywordFilter(keyContentType, contentType),
	})
	if err != nil {
		return 0, fmt.Errorf("count by content type failed: %w", err)
	}

	return count, nil
}

func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	switch v := id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		return v.Uuid
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", v.Num)
	}
	return ""
}

// keywordFilter builds an exact-match filter on one payload key.
func keywordFilter(key, value string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key: key,
						Match: &qdrant.Match{
							MatchValue: &qdrant.Match_Keyword{
								Keyword: value,
							},
						},
					},
				},
			},
		},
	}
}

// textFilter builds a full-text match filter on one payload key.
func textFilter(key, value string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key: key,
						Match: &qdrant.Match{
							MatchValue: &qdrant.Match_Text{
								Text: value,
							},
						},
					},
				},
			},
		},
	}
}

// Helper functions to extract values from Qdrant payload.

func getStringValue(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok {
		if sv, ok := v.Kind.(*qdrant.Value_StringValue); ok {
			return sv.StringValue
		}
	}
	return ""
}

func getStringSliceValue(payload map[string]*qdrant.Value, key string) []string {
	if v, ok := payload[key]; ok {
		if lv, ok := v.Kind.(*qdrant.Value_ListValue); ok {
			result := make([]string, 0, len(lv.ListValue.Values))
			for _, item := range lv.ListValue.Values {
				if sv, ok := item.Kind.(*qdrant.Value_StringValue); ok {
					result = append(result, sv.StringValue)
				}
			}
			return result
		}
	}
	return nil
}

func getTimeValue(payload map[string]*qdrant.Value, key string) time.Time {
	if v := getStringValue(payload, key); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
