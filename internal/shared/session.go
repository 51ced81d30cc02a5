package shared

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/librarydesk/librarydesk/internal/session"
)

// FlashMessage represents a one-time notification stored in session.
type FlashMessage struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// SessionManager orchestrates cookie based sessions backed by Redis.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
	secret     []byte
}

// Session holds per-request session data. The authenticated identity lives in
// the embedded session.Store; everything else is browser state.
type Session struct {
	ID        string
	values    map[string]string
	flashes   []FlashMessage
	auth      *session.Store
	loadedGen uint64
	isNew     bool
	dirty     bool
	destroyed bool
}

type sessionPayload struct {
	Values   map[string]string `json:"values"`
	Identity string            `json:"identity,omitempty"`
	Role     string            `json:"role,omitempty"`
	IssuedAt time.Time         `json:"issued_at,omitempty"`
	Flashes  []FlashMessage    `json:"flashes"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName string, secret string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		secret:     []byte(secret),
	}
}

// Load loads or creates a new session for request.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return sm.newSession(), nil
		}
		return nil, err
	}

	payload, err := sm.client.Get(ctx, sm.redisKey(cookie.Value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Unknown or expired id: never adopt a client-chosen identifier.
			return sm.newSession(), nil
		}
		return nil, err
	}

	var stored sessionPayload
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, err
	}

	sess := sm.newSession()
	sess.ID = cookie.Value
	if stored.Values != nil {
		sess.values = stored.Values
	}
	sess.flashes = stored.Flashes
	sess.auth = session.Restore(session.Session{
		Identity: stored.Identity,
		Role:     session.Role(stored.Role),
		IssuedAt: stored.IssuedAt,
	})
	sess.loadedGen = sess.auth.Generation()
	sess.isNew = false
	sess.dirty = false
	return sess, nil
}

// Commit persists the session and writes cookie headers as needed.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *Session) error {
	if sess == nil {
		return nil
	}

	if sess.destroyed {
		// Drop the payload and invalidate logins still in flight for this id.
		_, err := sm.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, sm.redisKey(sess.ID))
			pipe.Incr(ctx, sm.generationKey(sess.ID))
			pipe.Expire(ctx, sm.generationKey(sess.ID), sm.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		http.SetCookie(w, &http.Cookie{
			Name:     sm.cookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   sm.secure,
			SameSite: http.SameSiteLaxMode,
		})
		return nil
	}

	if sess.ID == "" {
		sess.ID = sm.generateSessionID()
	}

	if sess.dirty || sess.isNew || sess.auth.Generation() != sess.loadedGen {
		data, err := json.Marshal(sess.payload())
		if err != nil {
			return err
		}
		if err := sm.client.Set(ctx, sm.redisKey(sess.ID), data, sm.ttl).Err(); err != nil {
			return err
		}
		sess.dirty = false
		sess.isNew = false
		sess.loadedGen = sess.auth.Generation()
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(sm.ttl),
	})
	return nil
}

// Destroy marks the session for deletion.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess == nil {
		return
	}
	sess.auth.Logout()
	sess.destroyed = true
}

// LoginAttempt ties a store attempt to the generation Redis held for the
// session when the credential check started.
type LoginAttempt struct {
	local session.Attempt
	id    string
	gen   int64
}

// BeginLogin records the session generation before credentials are checked.
// Requests on the same cookie share the generation, so a logout or login
// served by another request is visible to CompleteLogin.
func (sm *SessionManager) BeginLogin(ctx context.Context, sess *Session) (LoginAttempt, error) {
	gen, err := sm.client.Get(ctx, sm.generationKey(sess.ID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return LoginAttempt{}, err
	}
	return LoginAttempt{local: sess.auth.Begin(), id: sess.ID, gen: gen}, nil
}

// CompleteLogin claims the next generation for the attempt and applies the
// login. If the generation moved since BeginLogin it returns
// session.ErrSuperseded and sess is left untouched.
func (sm *SessionManager) CompleteLogin(ctx context.Context, sess *Session, a LoginAttempt, identity string, role session.Role) (session.Session, error) {
	var incr *redis.IntCmd
	_, err := sm.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, sm.generationKey(a.id))
		pipe.Expire(ctx, sm.generationKey(a.id), sm.ttl)
		return nil
	})
	if err != nil {
		return session.Session{}, err
	}
	if incr.Val() != a.gen+1 {
		return session.Session{}, session.ErrSuperseded
	}
	return sess.auth.Complete(a.local, identity, role)
}

// Renew moves the session to a fresh identifier, dropping the old Redis key on
// the next commit. Call it when privileges change.
func (sm *SessionManager) Renew(ctx context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	if !sess.isNew && sess.ID != "" {
		if err := sm.client.Del(ctx, sm.redisKey(sess.ID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
	}
	sess.ID = sm.generateSessionID()
	sess.isNew = true
	return nil
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

// Auth returns the store holding the authenticated identity.
func (s *Session) Auth() *session.Store {
	return s.auth
}

// Set stores a key-value pair.
func (s *Session) Set(key, value string) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	s.dirty = true
}

// Get retrieves a value.
func (s *Session) Get(key string) string {
	if s.values == nil {
		return ""
	}
	return s.values[key]
}

// Delete removes a value.
func (s *Session) Delete(key string) {
	if s.values == nil {
		return
	}
	delete(s.values, key)
	s.dirty = true
}

// AddFlash queues a flash message.
func (s *Session) AddFlash(msg FlashMessage) {
	s.flashes = append(s.flashes, msg)
	s.dirty = true
}

// PopFlash retrieves and clears the oldest flash message.
func (s *Session) PopFlash() *FlashMessage {
	if len(s.flashes) == 0 {
		return nil
	}
	msg := s.flashes[0]
	s.flashes = s.flashes[1:]
	s.dirty = true
	return &msg
}

func (s *Session) payload() sessionPayload {
	p := sessionPayload{Values: s.values, Flashes: s.flashes}
	if current, ok := s.auth.Current(); ok {
		p.Identity = current.Identity
		p.Role = current.Role.String()
		p.IssuedAt = current.IssuedAt
	}
	return p
}

func (sm *SessionManager) newSession() *Session {
	return &Session{
		ID:     sm.generateSessionID(),
		values: make(map[string]string),
		auth:   session.NewStore(),
		isNew:  true,
		dirty:  true,
	}
}

func (sm *SessionManager) redisKey(id string) string {
	return "session:" + id
}

func (sm *SessionManager) generationKey(id string) string {
	return "session-gen:" + id
}

func (sm *SessionManager) generateSessionID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return base64.RawURLEncoding.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	if len(sm.secret) > 0 {
		for i := range b {
			b[i] ^= sm.secret[i%len(sm.secret)]
		}
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
