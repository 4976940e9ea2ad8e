package cart

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
)

// SessionName is the gorilla session the cart lives in. It is separate from
// the session carrying the cart id.
const SessionName = "cart_data"

// SessionStorage keeps the serialized cart inside a gorilla session. It is
// bound to a single request/response pair, so build one per request and save
// before the response body is written. Use a server-side store such as
// sessions.FilesystemStore: a full cart does not fit in a 4KB cookie.
type SessionStorage struct {
	store sessions.Store
	w     http.ResponseWriter
	r     *http.Request
}

// NewSessionStorage binds store to the current request
func NewSessionStorage(store sessions.Store, w http.ResponseWriter, r *http.Request) *SessionStorage {
	return &SessionStorage{store: store, w: w, r: r}
}

func (s *SessionStorage) session() (*sessions.Session, error) {
	session, err := s.store.Get(s.r, SessionName)
	if err != nil && session == nil {
		return nil, fmt.Errorf("failed to get cart session: %w", err)
	}
	// An undecodable cookie still yields a fresh session; use it.
	return session, nil
}

func valueKey(key string) string {
	return "cart:" + key
}

func (s *SessionStorage) Load(_ context.Context, key string) ([]byte, error) {
	session, err := s.session()
	if err != nil {
		return nil, err
	}
	raw, ok := session.Values[valueKey(key)].(string)
	if !ok {
		return nil, ErrNotFound
	}
	return []byte(raw), nil
}

func (s *SessionStorage) Save(_ context.Context, key string, data []byte) error {
	session, err := s.session()
	if err != nil {
		return err
	}
	session.Values[valueKey(key)] = string(data)
	if err := session.Save(s.r, s.w); err != nil {
		return fmt.Errorf("failed to save cart session: %w", err)
	}
	return nil
}

func (s *SessionStorage) Delete(_ context.Context, key string) error {
	session, err := s.session()
	if err != nil {
		return err
	}
	delete(session.Values, valueKey(key))
	if err := session.Save(s.r, s.w); err != nil {
		return fmt.Errorf("failed to clear cart session: %w", err)
	}
	return nil
}
