package session

import (
	"context"
	"sync"
)

// LocationNavigator keeps the current client location and reports every
// navigation to onNavigate.
type LocationNavigator struct {
	mu         sync.Mutex
	location   string
	redirects  int
	reloads    int
	onNavigate func(ctx context.Context, location string, reload bool) error
}

// NewLocationNavigator creates a navigator starting at location.
func NewLocationNavigator(location string, onNavigate func(ctx context.Context, location string, reload bool) error) *LocationNavigator {
	return &LocationNavigator{location: location, onNavigate: onNavigate}
}

func (n *LocationNavigator) Redirect(ctx context.Context, path string) error {
	n.mu.Lock()
	n.location = path
	n.redirects++
	fn := n.onNavigate
	n.mu.Unlock()

	if fn != nil {
		return fn(ctx, path, false)
	}
	return nil
}

func (n *LocationNavigator) Reload(ctx context.Context) error {
	n.mu.Lock()
	loc := n.location
	n.reloads++
	fn := n.onNavigate
	n.mu.Unlock()

	if fn != nil {
		return fn(ctx, loc, true)
	}
	return nil
}

// Location returns the current location.
func (n *LocationNavigator) Location() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.location
}

// Counts returns how many redirects and reloads happened.
func (n *LocationNavigator) Counts() (redirects, reloads int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.redirects, n.reloads
}
