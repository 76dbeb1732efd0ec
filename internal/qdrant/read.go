package qdrant

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// ScrollDocuments reads up to limit documents from a collection, newest
// payloads first as stored. The read is bounded: no full scans.
func (c *Client) ScrollDocuments(ctx context.Context, collection string, filter *qdrant.Filter, limit int) ([]DocumentRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("client is closed")
	}

	if limit <= 0 {
		limit = 100
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	points, err := c.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint32(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scroll documents: %w", err)
	}

	records := make([]DocumentRecord, 0, len(points))
	for _, p := range points {
		records = append(records, DocumentRecord{
			ID:          pointID(p.Id),
			Name:        getStringValue(p.Payload, keyName),
			ContentType: getStringValue(p.Payload, keyContentType),
			Collection:  getStringValue(p.Payload, keyCollection),
			Modified:    getTimeValue(p.Payload, keyModifiedAt),
			Columns:     getStringSliceValue(p.Payload, keyColumns),
		})
	}

	return records, nil
}

// ScrollEvidence reads up to limit evidence artifacts, keeping only the
// typed payload view.
func (c *Client) ScrollEvidence(ctx context.Context, collection string, filter *qdrant.Filter, limit int) ([]EvidenceRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("client is closed")
	}

	if limit <= 0 {
		limit = 100
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	points, err := c.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint32(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scroll evidence: %w", err)
	}

	records := make([]EvidenceRecord, 0, len(points))
	for _, p := range points {
		records = append(records, EvidenceRecord{
			ID:           pointID(p.Id),
			EvidenceType: getStringValue(p.Payload, keyEvidenceType),
		})
	}

	return records, nil
}

// ScrollEntities reads up to limit entity-graph nodes.
func (c *Client) ScrollEntities(ctx context.Context, collection string, filter *qdrant.Filter, limit int) ([]EntityRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("client is closed")
	}

	if limit <= 0 {
		limit = 100
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	points, err := c.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint32(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scroll entities: %w", err)
	}

	records := make([]EntityRecord, 0, len(points))
	for _, p := range points {
		records = append(records, EntityRecord{
			ID:            pointID(p.Id),
			Name:          getStringValue(p.Payload, keyName),
			Type:          getStringValue(p.Payload, keyEntityType),
			Relationships: getStringSliceValue(p.Payload, keyRelTypes),
		})
	}

	return records, nil
}

// FindEntityByName reports whether any entity's canonical name contains the
// given text (full-text match on the name payload field).
func (c *Client) FindEntityByName(ctx context.Context, collection, nameContains string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return false, fmt.Errorf("client is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	count, err := c.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Filter:         textFilter(keyName, nameContains),
	})
	if err != nil {
		return false, fmt.Errorf("entity lookup failed: %w", err)
	}

	return count > 0, nil
}

// ListCollections returns the names of all collections.
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("client is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	names, err := c.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}

	return names, nil
}

// CountPoints returns the number of points in a collection.
func (c *Client) CountPoints(ctx context.Context, collection string) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return 0, fmt.Errorf("client is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	count, err := c.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}

	return count, nil
}
