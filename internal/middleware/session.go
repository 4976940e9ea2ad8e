package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const cartIDKey contextKey = "cart_id"

// CartSessionName is the cookie session holding the shopper's cart id
const CartSessionName = "cart"

// SessionMiddleware gives every shopper a stable cart id
type SessionMiddleware struct {
	store  sessions.Store
	logger *zap.Logger
}

// NewSessionMiddleware creates a new session middleware
func NewSessionMiddleware(store sessions.Store, logger *zap.Logger) *SessionMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionMiddleware{store: store, logger: logger}
}

// CartSession loads the cart id from the session cookie, issuing a new one
// when the cookie is missing or unreadable.
func (m *SessionMiddleware) CartSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := m.store.Get(r, CartSessionName)
		if err != nil {
			m.logger.Debug("Discarding unreadable cart session", zap.Error(err))
		}
		if session == nil {
			next.ServeHTTP(w, r)
			return
		}

		cartID, _ := session.Values["cart_id"].(string)
		if _, perr := uuid.Parse(cartID); perr != nil {
			cartID = uuid.NewString()
			session.Values["cart_id"] = cartID
			if err := session.Save(r, w); err != nil {
				m.logger.Error("Failed to save cart session", zap.Error(err))
			}
		}

		ctx := context.WithValue(r.Context(), cartIDKey, cartID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CartIDFromContext returns the cart id set by CartSession
func CartIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(cartIDKey).(string)
	return id
}

// MaxCartSessionBytes bounds one serialized server-side cart session
const MaxCartSessionBytes = 512 * 1024

// NewCookieStore builds the signed cookie store used for cart sessions
func NewCookieStore(secret string, maxAge int, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// NewFilesystemStore builds the server-side session store that holds cart
// contents. Only the signed session id travels in the cookie, so carts with
// many students are not limited by the browser's cookie size. An empty dir
// uses os.TempDir.
func NewFilesystemStore(dir, secret string, maxAge int, secure bool) *sessions.FilesystemStore {
	store := sessions.NewFilesystemStore(dir, []byte(secret))
	store.MaxLength(MaxCartSessionBytes)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}
