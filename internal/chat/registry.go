package chat

import (
	"slices"
	"time"

	"github.com/samber/lo"
)

// Registry maps connection ids to joined users. It keeps registration
// order so user lists are stable between broadcasts.
//
// Registry is not safe for concurrent use; the Hub serializes access.
type Registry struct {
	users map[string]User
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{users: make(map[string]User)}
}

// Register stores a user for connID, replacing any previous entry for the
// same id. The name is trimmed; an empty result fails with ErrValidation.
func (r *Registry) Register(connID, fullName string, joinedAt time.Time) (User, error) {
	name, err := normalizeFullName(fullName)
	if err != nil {
		return User{}, err
	}

	user := User{ID: connID, FullName: name, JoinedAt: joinedAt}
	if _, exists := r.users[connID]; !exists {
		r.order = append(r.order, connID)
	}
	r.users[connID] = user
	return user, nil
}

// Lookup returns the user registered for connID.
func (r *Registry) Lookup(connID string) (User, bool) {
	user, ok := r.users[connID]
	return user, ok
}

// Unregister removes and returns the user registered for connID.
func (r *Registry) Unregister(connID string) (User, bool) {
	user, ok := r.users[connID]
	if !ok {
		return User{}, false
	}
	delete(r.users, connID)
	r.order = slices.DeleteFunc(r.order, func(id string) bool { return id == connID })
	return user, true
}

// List returns the registered users in registration order. The result is
// never nil.
func (r *Registry) List() []UserSummary {
	return lo.Map(r.order, func(id string, _ int) UserSummary {
		return r.users[id].Summary()
	})
}

// Len reports the number of registered users.
func (r *Registry) Len() int {
	return len(r.users)
}
