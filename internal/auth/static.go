package auth

import (
	"context"
	"sync"

	"github.com/snowhub/chat-service/internal/apperr"
	"github.com/snowhub/chat-service/internal/model"
)

// StaticDirectory is an in-memory Directory for the memory store backend and
// tests. Unknown ids are admitted with the id as username when permissive.
type StaticDirectory struct {
	mu         sync.RWMutex
	users      map[string]*model.User
	permissive bool
}

// NewStaticDirectory creates a directory seeded with users.
func NewStaticDirectory(permissive bool, users ...*model.User) *StaticDirectory {
	d := &StaticDirectory{users: make(map[string]*model.User), permissive: permissive}
	for _, u := range users {
		d.Put(u)
	}
	return d
}

// Put adds or replaces a user.
func (d *StaticDirectory) Put(u *model.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *u
	d.users[u.ID] = &cp
}

// Lookup implements Directory.
func (d *StaticDirectory) Lookup(ctx context.Context, id string) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Unavailable("identity lookup failed", err)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if u, ok := d.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	if d.permissive && id != "" {
		return &model.User{ID: id, Username: id}, nil
	}
	return nil, apperr.NotFound("user not found")
}

// LookupMany implements Directory.
func (d *StaticDirectory) LookupMany(ctx context.Context, ids []string) (map[string]*model.User, error) {
	out := make(map[string]*model.User, len(ids))
	for _, id := range ids {
		u, err := d.Lookup(ctx, id)
		if apperr.Is(err, apperr.KindNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[id] = u
	}
	return out, nil
}
