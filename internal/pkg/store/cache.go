package store

import (
	"context"

	"github.com/buildgate/buildgate/internal/pkg/model"
)

// Cache is a record-by-id cache, populated lazily and refreshed on demand.
// Each coordinator instance owns its own cache, it is never shared and is
// not safe for concurrent use.
type Cache struct {
	client  Client
	records map[string]*model.Record
}

func NewCache(client Client) *Cache {
	return &Cache{client: client, records: make(map[string]*model.Record)}
}

// GetRecord returns the cached record, or loads it from the store.
// With forceRefresh the cached value is always replaced by a fresh read.
func (c *Cache) GetRecord(ctx context.Context, recordId string, forceRefresh bool) (*model.Record, error) {
	if !forceRefresh {
		if record, found := c.records[recordId]; found {
			return record, nil
		}
	}

	record, err := c.client.GetRecord(ctx, recordId)
	if err != nil {
		return nil, err
	}
	c.records[recordId] = record
	return record, nil
}

// Set stores a known fresh state, eg. the result of an upsert.
func (c *Cache) Set(record *model.Record) {
	c.records[record.Id] = record
}
