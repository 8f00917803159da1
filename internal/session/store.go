// Package session clears every piece of client-held session state. Each
// environment capability sits behind an interface on Store, chosen at
// construction time.
package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/vietddude/apiguard/internal/core/domain"
)

// ErrUnsupported is returned by capabilities the environment lacks.
var ErrUnsupported = errors.New("capability not supported")

// KeyStore is a string key-value store.
type KeyStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, keys ...string) error
	Clear(ctx context.Context) error
}

// DatabaseStore deletes named cache databases. Deleting a database that does
// not exist is not an error.
type DatabaseStore interface {
	DeleteDatabase(ctx context.Context, name string) error
}

// Navigator moves the client to another location.
type Navigator interface {
	Redirect(ctx context.Context, path string) error
	Reload(ctx context.Context) error
}

// Notification is a transient, auto-dismissing message.
type Notification struct {
	ID      string
	Reason  domain.LogoutReason
	Message string
	TTL     time.Duration
}

// Notifier shows notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Store bundles the capabilities teardown works on. Nil members are treated
// as unsupported and the matching step is skipped with an error.
type Store struct {
	Persistent KeyStore
	Transient  KeyStore
	Cookies    http.CookieJar
	Databases  DatabaseStore
	Navigator  Navigator
	Notifier   Notifier
}

type multiDatabases []DatabaseStore

// Databases fans DeleteDatabase out to every backend.
func Databases(stores ...DatabaseStore) DatabaseStore {
	out := make(multiDatabases, 0, len(stores))
	for _, s := range stores {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multiDatabases) DeleteDatabase(ctx context.Context, name string) error {
	if len(m) == 0 {
		return ErrUnsupported
	}
	var errs []error
	for _, s := range m {
		if err := s.DeleteDatabase(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
