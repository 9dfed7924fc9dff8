// Package session is the client side session store: it keeps the current
// token and the display identity derived from it, persists both encrypted and
// restores them on start.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	auth "github.com/goliatone/go-booking-auth"
)

// Default storage keys, shared with the browser client.
const (
	DefaultStateKey = "authstate"
	DefaultTokenKey = "jwt_token"
)

// StorageKeys names the two persisted blobs.
type StorageKeys struct {
	State string
	Token string
}

// Record is a point in time copy of the store.
type Record struct {
	State      State
	IsLoggedIn bool
	UserName   string
	Roles      []string
	Token      string
	Claims     *Payload
}

// persistedState is the JSON written under the state key.
type persistedState struct {
	IsLoggedIn bool     `json:"IsLoggedIn"`
	UserName   string   `json:"UserName,omitempty"`
	Roles      []string `json:"Roles"`
}

// Listener is called after every state change.
type Listener func()

// Subscription removes a Listener.
type Subscription struct {
	store *Store
	id    uint64
	once  sync.Once
}

// Unsubscribe stops further notifications. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.store == nil {
		return
	}
	s.once.Do(func() {
		s.store.subsMu.Lock()
		delete(s.store.subs, s.id)
		s.store.subsMu.Unlock()
	})
}

// Option configures a Store.
type Option func(*Store)

func WithStorage(storage Storage) Option {
	return func(s *Store) {
		if storage != nil {
			s.storage = storage
		}
	}
}

func WithCipher(cipher Cipher) Option {
	return func(s *Store) {
		if cipher != nil {
			s.cipher = cipher
		}
	}
}

func WithLogger(logger auth.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithVerifier checks token signatures locally on login and rehydrate.
func WithVerifier(v auth.TokenValidator) Option {
	return func(s *Store) {
		s.verifier = v
	}
}

// WithStorageKeys overrides the persisted key names. Empty names keep the default.
func WithStorageKeys(keys StorageKeys) Option {
	return func(s *Store) {
		if keys.State != "" {
			s.keys.State = keys.State
		}
		if keys.Token != "" {
			s.keys.Token = keys.Token
		}
	}
}

// Store holds the client login state.
type Store struct {
	// opMu keeps one login, logout or rehydrate in flight.
	opMu sync.Mutex

	mu     sync.RWMutex
	record Record

	subsMu sync.Mutex
	subs   map[uint64]Listener
	order  []uint64
	nextID uint64

	storage  Storage
	cipher   Cipher
	logger   auth.Logger
	now      func() time.Time
	verifier auth.TokenValidator
	keys     StorageKeys
}

// New returns a logged out store. Without options blobs live in memory and
// are encrypted with DefaultPassphrase.
func New(opts ...Option) *Store {
	s := &Store{
		record:  Record{State: StateLoggedOut, Roles: []string{}},
		subs:    map[uint64]Listener{},
		storage: NewMemoryStorage(),
		cipher:  NewPassphraseCipher(DefaultPassphrase),
		logger:  auth.DefaultLogger(),
		now:     time.Now,
		keys:    StorageKeys{State: DefaultStateKey, Token: DefaultTokenKey},
	}

	for _, opt := range opts {
		opt(s)
	}

	if r, ok := s.cipher.(defaultKeyReporter); ok && r.UsesDefaultKey() {
		s.logger.Warn("session blobs are encrypted with the built-in passphrase, set session.passphrase")
	}

	return s
}

// Login decodes token, persists it and marks the store logged in.
func (s *Store) Login(ctx context.Context, token string) error {
	if err := s.login(ctx, token); err != nil {
		return err
	}
	s.notify()
	return nil
}

func (s *Store) login(ctx context.Context, token string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	payload, err := s.inspect(token)
	if err != nil {
		s.logger.Warn("session login rejected token", "kind", auth.ErrorKind(err))
		return err
	}

	next, err := s.next(EventLogin)
	if err != nil {
		return err
	}

	record := Record{
		State:      next,
		IsLoggedIn: true,
		UserName:   payload.DisplayName(),
		Roles:      payload.Roles(),
		Token:      token,
		Claims:     payload,
	}

	if err := s.persist(ctx, record); err != nil {
		return err
	}

	s.swap(record)
	s.logger.Info("session logged in", "user", record.UserName, "token_length", len(token))
	return nil
}

// LoginAs marks the store logged in without a token.
func (s *Store) LoginAs(ctx context.Context, userName string, roles []string) error {
	if err := s.loginAs(ctx, userName, roles); err != nil {
		return err
	}
	s.notify()
	return nil
}

func (s *Store) loginAs(ctx context.Context, userName string, roles []string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	next, err := s.next(EventLogin)
	if err != nil {
		return err
	}

	if roles == nil {
		roles = []string{}
	}

	record := Record{
		State:      next,
		IsLoggedIn: true,
		UserName:   userName,
		Roles:      append([]string{}, roles...),
	}

	if err := s.persist(ctx, record); err != nil {
		return err
	}

	s.swap(record)
	s.logger.Info("session logged in", "user", userName)
	return nil
}

// Logout clears the store and the persisted blobs. The in-memory state is
// cleared even when storage fails; the storage error is returned.
func (s *Store) Logout(ctx context.Context) error {
	changed, err := s.logout(ctx)
	if changed {
		s.notify()
	}
	return err
}

func (s *Store) logout(ctx context.Context) (bool, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	next, err := s.next(EventLogout)
	if err != nil {
		return false, err
	}

	storeErr := s.clear(ctx)

	s.swap(Record{State: next, Roles: []string{}})
	s.logger.Info("session logged out")

	return true, storeErr
}

// Rehydrate restores the persisted session. Failures leave the store logged
// out and are only logged. It reports whether the store is logged in.
func (s *Store) Rehydrate(ctx context.Context) bool {
	changed, loggedIn := s.rehydrate(ctx)
	if changed {
		s.notify()
	}
	return loggedIn
}

func (s *Store) rehydrate(ctx context.Context) (bool, bool) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	record, ok := s.load(ctx)

	event := EventRehydrate
	if !ok {
		event = EventRehydrateFailed
		record = Record{Roles: []string{}}
	}

	next, err := s.next(event)
	if err != nil {
		s.logger.Error("session rehydrate transition failed", "error", err)
		return false, false
	}
	record.State = next
	record.IsLoggedIn = next == StateLoggedIn

	s.swap(record)

	return true, record.IsLoggedIn
}

func (s *Store) load(ctx context.Context) (Record, bool) {
	record := Record{Roles: []string{}}
	restored := false

	if raw, found, err := s.readBlob(ctx, s.keys.State); err != nil {
		s.logger.Debug("session state blob unreadable", "error", err)
	} else if found {
		var dto persistedState
		if err := json.Unmarshal(raw, &dto); err != nil {
			s.logger.Debug("session state blob is not valid json", "error", err)
		} else if dto.IsLoggedIn {
			record.UserName = dto.UserName
			if dto.Roles != nil {
				record.Roles = dto.Roles
			}
			restored = true
		}
	}

	raw, found, err := s.readBlob(ctx, s.keys.Token)
	if err != nil {
		s.logger.Debug("session token blob unreadable", "error", err)
		return record, restored
	}
	if !found || len(raw) == 0 {
		s.logger.Debug("no token found in session storage")
		return record, restored
	}

	token := string(raw)
	payload, err := s.inspect(token)
	if err != nil {
		s.logger.Info("discarding persisted token", "kind", auth.ErrorKind(err))
		if cerr := s.clear(ctx); cerr != nil {
			s.logger.Warn("failed to clear persisted session", "error", cerr)
		}
		return Record{Roles: []string{}}, false
	}

	record.Token = token
	record.Claims = payload
	record.UserName = payload.DisplayName()
	record.Roles = payload.Roles()
	s.logger.Info("session restored", "user", record.UserName, "token_length", len(token))
	return record, true
}

// inspect decodes token and rejects it when expired or, with a verifier,
// when its signature does not check out.
func (s *Store) inspect(token string) (*Payload, error) {
	payload, err := DecodePayload(token)
	if err != nil {
		return nil, err
	}

	if payload.Expired(s.now()) {
		return nil, auth.ErrTokenExpired
	}

	if s.verifier != nil {
		if _, err := s.verifier.Validate(token); err != nil {
			return nil, err
		}
	}

	return payload, nil
}

// persist writes the token blob before the state blob. A failed write
// removes both so a later Rehydrate never finds half a session.
func (s *Store) persist(ctx context.Context, record Record) error {
	state, err := json.Marshal(persistedState{
		IsLoggedIn: record.IsLoggedIn,
		UserName:   record.UserName,
		Roles:      record.Roles,
	})
	if err != nil {
		return auth.WrapKind(auth.ErrStorageUnavailable, err)
	}

	if record.Token == "" {
		err = s.storage.Delete(ctx, s.keys.Token)
		if err != nil {
			err = auth.WrapKind(auth.ErrStorageUnavailable, err)
		}
	} else {
		err = s.writeBlob(ctx, s.keys.Token, []byte(record.Token))
	}

	if err == nil {
		err = s.writeBlob(ctx, s.keys.State, state)
	}

	if err != nil {
		if cerr := s.clear(ctx); cerr != nil {
			s.logger.Warn("failed to roll back partial session write", "error", cerr)
		}
		return err
	}

	return nil
}

func (s *Store) clear(ctx context.Context) error {
	var first error
	for _, key := range []string{s.keys.State, s.keys.Token} {
		if err := s.storage.Delete(ctx, key); err != nil && first == nil {
			first = auth.WrapKind(auth.ErrStorageUnavailable, err)
		}
	}
	return first
}

func (s *Store) writeBlob(ctx context.Context, key string, plain []byte) error {
	blob, err := s.cipher.Encrypt(plain)
	if err != nil {
		return auth.WrapKind(auth.ErrStorageUnavailable, err)
	}
	if err := s.storage.Set(ctx, key, blob); err != nil {
		return auth.WrapKind(auth.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *Store) readBlob(ctx context.Context, key string) ([]byte, bool, error) {
	blob, found, err := s.storage.Get(ctx, key)
	if err != nil {
		return nil, false, auth.WrapKind(auth.ErrStorageUnavailable, err)
	}
	if !found || blob == "" {
		return nil, false, nil
	}
	plain, err := s.cipher.Decrypt(blob)
	if err != nil {
		return nil, false, auth.WrapKind(auth.ErrDecodeFailure, err)
	}
	return plain, true, nil
}

func (s *Store) next(ev Event) (State, error) {
	s.mu.RLock()
	from := s.record.State
	s.mu.RUnlock()
	return Next(from, ev)
}

func (s *Store) swap(record Record) {
	s.mu.Lock()
	s.record = record
	s.mu.Unlock()
}

// Subscribe registers fn. Listeners run synchronously, in subscription
// order, after the state and the persisted copy are updated. They run
// outside the operation lock and may call back into the store.
func (s *Store) Subscribe(fn Listener) *Subscription {
	if fn == nil {
		return &Subscription{}
	}

	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	s.nextID++
	id := s.nextID
	s.subs[id] = fn
	s.order = append(s.order, id)

	return &Subscription{store: s, id: id}
}

func (s *Store) notify() {
	s.subsMu.Lock()
	listeners := make([]Listener, 0, len(s.subs))
	live := s.order[:0]
	for _, id := range s.order {
		if fn, ok := s.subs[id]; ok {
			listeners = append(listeners, fn)
			live = append(live, id)
		}
	}
	s.order = live
	s.subsMu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// Snapshot returns a copy of the current record.
func (s *Store) Snapshot() Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := s.record
	r.Roles = append([]string{}, s.record.Roles...)
	r.Claims = s.record.Claims.clone()
	return r
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record.State
}

func (s *Store) IsLoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record.IsLoggedIn
}

func (s *Store) UserName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record.UserName
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record.Token
}

func (s *Store) Roles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.record.Roles...)
}

// Claims returns the decoded token payload, nil when there is no token.
func (s *Store) Claims() *Payload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record.Claims.clone()
}

// AuthorizationHeader is the bearer header value, empty without a token.
func (s *Store) AuthorizationHeader() string {
	token := s.Token()
	if token == "" {
		return ""
	}
	return "Bearer " + token
}
