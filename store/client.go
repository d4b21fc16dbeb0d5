package store

import (
	"context"
	"sync"

	errs "github.com/riyada/openbanking-sandbox/errors"
	"github.com/riyada/openbanking-sandbox/models"
)

// ClientStore is an in-memory registry of relying parties. The sandbox
// loads it from configuration at startup; durable client registration
// belongs to the excluded CRUD layer.
type ClientStore struct {
	sync.RWMutex
	data map[string]*models.Client
}

// NewClientStore creates an empty client registry.
func NewClientStore() *ClientStore {
	return &ClientStore{data: make(map[string]*models.Client)}
}

// Set registers or replaces a client.
func (s *ClientStore) Set(id string, cli *models.Client) {
	s.Lock()
	defer s.Unlock()
	s.data[id] = cli
}

// GetByID returns the registered client or errs.ErrInvalidClient.
func (s *ClientStore) GetByID(ctx context.Context, id string) (*models.Client, error) {
	s.RLock()
	defer s.RUnlock()
	if cli, ok := s.data[id]; ok {
		return cli, nil
	}
	return nil, errs.ErrInvalidClient
}
