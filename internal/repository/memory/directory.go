package memory

import (
	"context"
	"sync"

	"carrental-backend/internal/domain"
)

// UserDirectory is a static contact list.
type UserDirectory struct {
	mu       sync.RWMutex
	contacts map[string]domain.UserContact
}

func NewUserDirectory(contacts ...domain.UserContact) *UserDirectory {
	d := &UserDirectory{contacts: make(map[string]domain.UserContact)}
	for _, c := range contacts {
		d.contacts[c.ID] = c
	}
	return d
}

func (d *UserDirectory) Put(c domain.UserContact) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contacts[c.ID] = c
}

func (d *UserDirectory) GetContact(ctx context.Context, userID string) (*domain.UserContact, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.contacts[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}
