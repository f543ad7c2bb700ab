// Package session owns the authenticated user, the bearer token lifecycle,
// and the in-memory collections the dashboard works on.
//
// A Store moves through Uninitialized -> CheckingToken -> Authenticated or
// Anonymous. Authenticated falls back to Anonymous on Logout or when the
// initial data load fails; the UI never sees a half-loaded session.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"gwi.com/botstudio/internal/models"
	"gwi.com/botstudio/internal/tokenstore"
)

var (
	ErrAlreadyBootstrapped = errors.New("session already bootstrapped")
	ErrNotAuthenticated    = errors.New("not authenticated")
)

type State int

const (
	StateUninitialized State = iota
	StateCheckingToken
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateCheckingToken:
		return "checking_token"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Backend is the part of the API client the store depends on.
type Backend interface {
	Login(ctx context.Context, creds models.Credentials) (*models.AuthResponse, error)
	Signup(ctx context.Context, form models.SignupForm) (*models.AuthResponse, error)
	GetProfile(ctx context.Context) (*models.UserProfile, error)
	GetProjects(ctx context.Context) ([]models.Project, error)
	GetDataSources(ctx context.Context) ([]models.DataSource, error)
}

type Store struct {
	api    Backend
	tokens tokenstore.Store
	logger *zap.Logger
	clock  Clock

	mu           sync.RWMutex
	state        State
	user         *models.UserProfile
	initializing bool
	bootstrapped bool

	Projects      *Collection[models.Project]
	DataSources   *Collection[models.DataSource]
	Messages      *Collection[models.ChatMessage]
	Notifications *Collection[models.Notification]
	APIKeys       *Collection[models.APIKey]

	initialLoad singleflight.Group

	subsMu  sync.Mutex
	subs    map[int]chan struct{}
	nextSub int
}

func NewStore(api Backend, tokens tokenstore.Store, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		api:          api,
		tokens:       tokens,
		logger:       logger.Named("session"),
		initializing: true,
		subs:         make(map[int]chan struct{}),
	}
	s.Projects = NewCollection[models.Project](&s.clock, nil)
	s.DataSources = NewCollection[models.DataSource](&s.clock, s.broadcast)
	s.Messages = NewCollection[models.ChatMessage](&s.clock, nil)
	s.Notifications = NewCollection[models.Notification](&s.clock, nil)
	s.APIKeys = NewCollection[models.APIKey](&s.clock, nil)
	return s
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) IsInitializing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initializing
}

// User returns a copy of the signed-in user, or nil.
func (s *Store) User() *models.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// SetUser replaces the profile of the signed-in user (after a profile update).
func (s *Store) SetUser(user models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAuthenticated {
		return ErrNotAuthenticated
	}
	s.user = &user
	return nil
}

// Bootstrap restores the session from the stored token. It runs once per
// Store; IsInitializing turns false when it returns, whatever the outcome.
// An absent, expired or rejected token leaves the store Anonymous.
func (s *Store) Bootstrap(ctx context.Context) error {
	s.mu.Lock()
	if s.bootstrapped {
		s.mu.Unlock()
		return ErrAlreadyBootstrapped
	}
	s.bootstrapped = true
	s.state = StateCheckingToken
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.initializing = false
		s.mu.Unlock()
	}()

	token, err := s.tokens.Get()
	if err != nil {
		s.logger.Warn("failed to read stored token", zap.Error(err))
		s.setAnonymous()
		return nil
	}
	if token == "" {
		s.setAnonymous()
		return nil
	}

	profile, err := s.api.GetProfile(ctx)
	if err != nil && ctx.Err() != nil {
		// Cancelled by the caller; the token was never judged.
		s.setAnonymous()
		return ctx.Err()
	}
	if err != nil {
		s.logger.Info("stored token rejected, clearing session", zap.Error(err))
		s.clearToken()
		s.setAnonymous()
		s.Notify(models.NotifyError, "Your session has expired. Please log in again.")
		return nil
	}

	s.mu.Lock()
	s.user = profile
	s.state = StateAuthenticated
	s.mu.Unlock()

	if err := s.FetchInitialData(ctx); err != nil {
		if ctx.Err() != nil {
			s.setAnonymous()
			return ctx.Err()
		}
		s.logger.Warn("initial data load failed during bootstrap", zap.Error(err))
	}
	return nil
}

// Authenticate is called once a login or signup call succeeded and the
// token is already persisted. It installs the user and loads initial data.
func (s *Store) Authenticate(ctx context.Context, user *models.UserProfile) error {
	if user == nil {
		return errors.New("authenticate: user is nil")
	}
	u := *user

	s.mu.Lock()
	s.user = &u
	s.state = StateAuthenticated
	s.initializing = false
	s.bootstrapped = true
	s.mu.Unlock()

	return s.FetchInitialData(ctx)
}

// Login exchanges credentials for a token, persists it, and authenticates.
func (s *Store) Login(ctx context.Context, creds models.Credentials) (*models.UserProfile, error) {
	resp, err := s.api.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	return s.completeAuth(ctx, resp)
}

// Signup creates the account, persists the token, and authenticates.
func (s *Store) Signup(ctx context.Context, form models.SignupForm) (*models.UserProfile, error) {
	resp, err := s.api.Signup(ctx, form)
	if err != nil {
		return nil, err
	}
	return s.completeAuth(ctx, resp)
}

func (s *Store) completeAuth(ctx context.Context, resp *models.AuthResponse) (*models.UserProfile, error) {
	if resp.Token == "" {
		return nil, errors.New("backend returned no token")
	}
	if err := s.tokens.Set(resp.Token); err != nil {
		return nil, fmt.Errorf("failed to persist token: %w", err)
	}
	if err := s.Authenticate(ctx, &resp.User); err != nil {
		return nil, err
	}
	return s.User(), nil
}

// FetchInitialData loads projects and data sources concurrently. Either both
// land in the store or, on any failure, the session is logged out entirely.
// Cancelling ctx is not a failure: nothing is stored and the token is kept.
// Overlapping calls share one pair of requests.
func (s *Store) FetchInitialData(ctx context.Context) error {
	_, err, _ := s.initialLoad.Do("initial", func() (any, error) {
		return nil, s.fetchInitialData(ctx)
	})
	return err
}

func (s *Store) fetchInitialData(ctx context.Context) error {
	var (
		projects []models.Project
		sources  []models.DataSource
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		projects, err = s.api.GetProjects(gctx)
		if err != nil {
			return fmt.Errorf("failed to load projects: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		sources, err = s.api.GetDataSources(gctx)
		if err != nil {
			return fmt.Errorf("failed to load data sources: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Error("initial data load failed, logging out", zap.Error(err))
		s.Logout()
		return err
	}

	if s.State() != StateAuthenticated {
		// Logged out while the requests were in flight.
		return ErrNotAuthenticated
	}

	s.Projects.Replace(projects)
	s.DataSources.Replace(sources)
	s.logger.Debug("initial data loaded",
		zap.Int("projects", len(projects)),
		zap.Int("data_sources", len(sources)))
	return nil
}

// Logout clears the token, the user and every collection. Safe to repeat.
func (s *Store) Logout() {
	s.clearToken()
	s.setAnonymous()

	s.Projects.Reset()
	s.DataSources.Reset()
	s.Messages.Reset()
	s.Notifications.Reset()
	s.APIKeys.Reset()
}

func (s *Store) setAnonymous() {
	s.mu.Lock()
	s.user = nil
	s.state = StateAnonymous
	s.mu.Unlock()
}

func (s *Store) clearToken() {
	if err := s.tokens.Clear(); err != nil {
		s.logger.Warn("failed to clear stored token", zap.Error(err))
	}
}

// HasProcessing reports whether any visible data source is still processing.
func (s *Store) HasProcessing() bool {
	return s.DataSources.Any(func(d models.DataSource) bool {
		return d.Status == models.DocumentProcessing
	})
}

// Notify records a transient user-visible message.
func (s *Store) Notify(level models.NotificationLevel, message string) {
	s.Notifications.Append(models.Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		CreatedAt: time.Now(),
	})
	s.logger.Debug("notification", zap.String("level", string(level)), zap.String("message", message))
}

// DrainNotifications returns pending notifications and forgets them.
func (s *Store) DrainNotifications() []models.Notification {
	out := s.Notifications.List()
	for _, n := range out {
		s.Notifications.Remove(n.ID)
	}
	return out
}

// Subscribe returns a channel signalled after every data source change.
// Signals coalesce; the receiver should re-read the collection.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subsMu.Unlock()

	return ch, func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Store) broadcast() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
