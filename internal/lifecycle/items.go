package lifecycle

import (
	"context"

	"github.com/dmikhno/groupscan/internal/models"
)

// Item commands are a thin pass-through to the transport: the client
// never stores items locally, the backend owns the list.

// CreateItem creates a backend list item.
func (m *Manager) CreateItem(ctx context.Context, item models.Item) (*models.Item, error) {
	created, err := m.transport.CreateItem(ctx, item)
	if err != nil {
		return nil, err
	}
	m.record("", "item.create", created.Title)
	return created, nil
}

// DeleteItem removes a backend list item.
func (m *Manager) DeleteItem(ctx context.Context, id string) error {
	if err := m.transport.DeleteItem(ctx, id); err != nil {
		return err
	}
	m.record("", "item.delete", id)
	return nil
}

// FetchItems lists backend items.
func (m *Manager) FetchItems(ctx context.Context) ([]models.Item, error) {
	return m.transport.FetchItems(ctx)
}
