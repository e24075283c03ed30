package request

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Principal represents the user a unit of work runs on behalf of.
type Principal struct {
	ID          string
	Email       string
	DisplayName string
}

func (p *Principal) GetID() string {
	if p == nil {
		return ""
	}
	return p.ID
}

func (p *Principal) GetEmail() string {
	if p == nil {
		return ""
	}
	return p.Email
}

// State is the ambient, per-unit-of-work bag. Identity fields are set when the
// scope opens; attributes may be merged in by any code running inside it.
type State struct {
	mu        sync.RWMutex
	requestID string
	userID    string
	user      *Principal
	platform  string
	clientIP  string
	traceID   string
	attrs     map[string]interface{}
}

// ContextOption configures a State.
type ContextOption func(*State)

func WithRequestID(id string) ContextOption {
	return func(s *State) {
		s.requestID = id
	}
}

func WithUserID(id string) ContextOption {
	return func(s *State) {
		s.userID = id
	}
}

// WithUser sets the principal and, unless already set, the user id.
func WithUser(user *Principal) ContextOption {
	return func(s *State) {
		s.user = user
		if user != nil && s.userID == "" {
			s.userID = user.ID
		}
	}
}

func WithPlatform(platform string) ContextOption {
	return func(s *State) {
		s.platform = platform
	}
}

func WithClientIP(ip string) ContextOption {
	return func(s *State) {
		s.clientIP = ip
	}
}

func WithTraceID(traceID string) ContextOption {
	return func(s *State) {
		s.traceID = traceID
	}
}

func WithAttr(key string, value interface{}) ContextOption {
	return func(s *State) {
		if s.attrs == nil {
			s.attrs = make(map[string]interface{})
		}
		s.attrs[key] = value
	}
}

// NewState builds a State. A request id is generated when none is given.
func NewState(opts ...ContextOption) *State {
	s := &State{}
	for _, opt := range opts {
		opt(s)
	}
	if s.requestID == "" {
		s.requestID = uuid.NewString()
	}
	return s
}

func (s *State) RequestID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requestID
}

func (s *State) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *State) User() *Principal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *State) Platform() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.platform
}

func (s *State) ClientIP() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientIP
}

func (s *State) TraceID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.traceID
}

// Get returns an attribute. The identity fields are reachable by their
// ContextKey names as well.
func (s *State) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch ContextKey(key) {
	case RequestIDKey:
		return s.requestID, s.requestID != ""
	case UserIDKey:
		return s.userID, s.userID != ""
	case PlatformKey:
		return s.platform, s.platform != ""
	case ClientIPKey:
		return s.clientIP, s.clientIP != ""
	case TraceIDKey:
		return s.traceID, s.traceID != ""
	}
	v, ok := s.attrs[key]
	return v, ok
}

// Apply merges options into the state under its lock.
func (s *State) Apply(opts ...ContextOption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, opt := range opts {
		opt(s)
	}
}

// Snapshot returns a flat copy suitable for log payloads.
func (s *State) Snapshot() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]interface{}, len(s.attrs)+5)
	for k, v := range s.attrs {
		out[k] = v
	}
	out[string(RequestIDKey)] = s.requestID
	if s.userID != "" {
		out[string(UserIDKey)] = s.userID
	}
	if s.platform != "" {
		out[string(PlatformKey)] = s.platform
	}
	if s.clientIP != "" {
		out[string(ClientIPKey)] = s.clientIP
	}
	if s.traceID != "" {
		out[string(TraceIDKey)] = s.traceID
	}
	return out
}

// Clone copies identity and attributes into a new, independent State.
func (s *State) Clone() *State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := &State{
		requestID: s.requestID,
		userID:    s.userID,
		user:      s.user,
		platform:  s.platform,
		clientIP:  s.clientIP,
		traceID:   s.traceID,
	}
	if len(s.attrs) > 0 {
		c.attrs = make(map[string]interface{}, len(s.attrs))
		for k, v := range s.attrs {
			c.attrs[k] = v
		}
	}
	return c
}

// Scope returns a context carrying state. A nil state gets a fresh one.
// Any enclosing scope is shadowed, not inherited.
func Scope(ctx context.Context, state *State) context.Context {
	if state == nil {
		state = NewState()
	}
	return context.WithValue(ctx, StateKey{}, state)
}

// Run executes fn inside a scope bound to state. Everything fn derives from the
// context it receives, including goroutines handed that context, observes the
// same State.
func Run[T any](ctx context.Context, state *State, fn func(ctx context.Context) (T, error)) (T, error) {
	return fn(Scope(ctx, state))
}

// Current returns the active State, or nil outside any scope.
func Current(ctx context.Context) *State {
	if ctx == nil {
		return nil
	}
	state, _ := ctx.Value(StateKey{}).(*State)
	return state
}

// Merge shallow-merges into the active State. It reports false, and does
// nothing, when ctx carries no scope.
func Merge(ctx context.Context, opts ...ContextOption) bool {
	state := Current(ctx)
	if state == nil {
		return false
	}
	state.Apply(opts...)
	return true
}

// Set stores one attribute on the active State.
func Set(ctx context.Context, key string, value interface{}) bool {
	return Merge(ctx, WithAttr(key, value))
}

// RequestID returns the active request id, or "" outside any scope.
func RequestID(ctx context.Context) string {
	if state := Current(ctx); state != nil {
		return state.RequestID()
	}
	return ""
}
