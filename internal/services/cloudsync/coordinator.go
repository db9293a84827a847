// Package cloudsync owns the in-memory AppData and keeps it consistent with
// the local store and the cloud document store.
//
// A session may only write to the cloud after it has received the cloud's
// copy at least once (the cloudSynced latch). Until then user saves stay
// local, so a client that has not caught up cannot overwrite newer cloud
// data. Background saves never reach the cloud.
package cloudsync

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/bobmcallan/networth/internal/common"
	"github.com/bobmcallan/networth/internal/interfaces"
	"github.com/bobmcallan/networth/internal/models"
)

var (
	ErrNotAuthenticated = errors.New("not signed in")
	ErrNotSynced        = errors.New("cloud copy has not been loaded for this session")
	ErrSyncFailed       = errors.New("cloud sync failed")
	ErrInitFailed       = errors.New("could not load cloud data")
	ErrAuthFailed       = errors.New("authentication failed")
	ErrNoRemote         = errors.New("cloud sync is not configured")
	ErrNothingToRetry   = errors.New("no failed load to retry")
	ErrInvalidData      = errors.New("invalid data")
)

// State is the session state of the coordinator.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticating  State = "authenticating"
	StateSynced          State = "synced"
	StateAuthError       State = "auth_error"
	StateInitError       State = "init_error"
)

// Status is a point-in-time view of the coordinator for display.
type Status struct {
	State         State      `json:"state"`
	UserID        string     `json:"user_id,omitempty"`
	CloudSynced   bool       `json:"cloud_synced"`
	RemoteVersion int        `json:"remote_version"`
	LocalOnly     bool       `json:"local_only"`
	SyncError     string     `json:"sync_error,omitempty"`
	InitError     string     `json:"init_error,omitempty"`
	AuthError     string     `json:"auth_error,omitempty"`
	LastSyncedAt  *time.Time `json:"last_synced_at,omitempty"`
}

// session is one signed-in identity and the subscription it owns.
type session struct {
	userID string
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Coordinator implements interfaces.DataStore.
type Coordinator struct {
	local  interfaces.LocalStore
	remote interfaces.RemoteStore // nil runs local-only
	auth   interfaces.Authenticator
	logger *common.Logger
	now    func() time.Time // injectable clock for testing

	// writeMu orders cloud writes against applying cloud snapshots so a
	// session never re-applies its own write as if it were newer.
	writeMu sync.Mutex

	mu            sync.Mutex
	data          models.AppData
	state         State
	session       *session
	userID        string
	cloudSynced   bool
	remoteVersion int
	syncErr       error
	initErr       error
	authErr       error
	lastSynced    time.Time
}

// NewCoordinator loads the local copy and starts unauthenticated.
// remote may be nil, in which case every save is local only.
func NewCoordinator(ctx context.Context, local interfaces.LocalStore, remote interfaces.RemoteStore, auth interfaces.Authenticator, logger *common.Logger) *Coordinator {
	c := &Coordinator{
		local:  local,
		remote: remote,
		auth:   auth,
		logger: logger,
		now:    time.Now,
		data:   models.DefaultAppData(),
		state:  StateUnauthenticated,
	}

	data, err := local.Load(ctx)
	switch {
	case err != nil:
		logger.Warn().Err(err).Msg("Local store unreadable, starting from defaults")
	case data != nil:
		c.data = data.Clone()
	}
	return c
}

// Current returns a copy of the in-memory data.
func (c *Coordinator) Current() models.AppData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data.Clone()
}

// Status reports the session state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Status{
		State:         c.state,
		UserID:        c.userID,
		CloudSynced:   c.cloudSynced,
		RemoteVersion: c.remoteVersion,
		LocalOnly:     c.remote == nil,
		SyncError:     errString(c.syncErr),
		InitError:     errString(c.initErr),
		AuthError:     errString(c.authErr),
	}
	if !c.lastSynced.IsZero() {
		t := c.lastSynced
		s.LastSyncedAt = &t
	}
	return s
}

// DismissSyncError clears the last cloud write failure.
func (c *Coordinator) DismissSyncError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncErr = nil
}

// Authenticate verifies token and makes the cloud copy authoritative for
// the new identity. Any previous session is torn down first.
//
// When the user has no cloud document yet, the current local data is
// written up as its first version. A failed cloud read leaves the
// coordinator in StateInitError until Retry succeeds.
func (c *Coordinator) Authenticate(ctx context.Context, token string) error {
	if c.remote == nil {
		return ErrNoRemote
	}
	c.teardown()

	c.mu.Lock()
	c.resetSessionLocked()
	c.state = StateAuthenticating
	c.mu.Unlock()

	userID, err := c.auth.Verify(token)
	if err != nil {
		c.mu.Lock()
		c.state = StateAuthError
		c.authErr = err
		c.mu.Unlock()
		c.logger.Warn().Err(err).Msg("Session token rejected")
		return fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}

	return c.start(ctx, userID)
}

// Retry repeats the cloud load for the identity whose load failed.
func (c *Coordinator) Retry(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateInitError {
		c.mu.Unlock()
		return ErrNothingToRetry
	}
	userID := c.userID
	c.mu.Unlock()

	c.teardown()
	return c.start(ctx, userID)
}

// Logout stops the subscription, waits for it to finish and returns to the
// unauthenticated state. Local data is kept.
func (c *Coordinator) Logout() {
	c.teardown()

	c.mu.Lock()
	userID := c.userID
	c.resetSessionLocked()
	c.mu.Unlock()

	if userID != "" {
		c.logger.Info().Str("user_id", userID).Msg("Signed out")
	}
}

// Close ends any session. The stores are owned by the caller.
func (c *Coordinator) Close() {
	c.teardown()
}

// UserSave applies a user-initiated change to memory and the local store,
// then writes it to the cloud if this session has loaded the cloud copy.
// Before that the cloud write is skipped and logged, not retried. A cloud
// failure keeps the local change and is reported as ErrSyncFailed.
func (c *Coordinator) UserSave(ctx context.Context, mutate interfaces.Mutation) (models.AppData, error) {
	next, err := c.applyLocal(ctx, mutate)
	if err != nil {
		return models.AppData{}, err
	}

	c.mu.Lock()
	sess := c.session
	allowed := sess != nil && c.cloudSynced
	c.mu.Unlock()

	if c.remote == nil || sess == nil {
		return next, nil
	}
	if !allowed {
		c.logger.Warn().
			Str("user_id", sess.userID).
			Msg("Cloud write blocked: cloud copy not loaded yet, change saved locally")
		return next, nil
	}
	if err := c.push(ctx, sess); err != nil {
		return next, err
	}
	return next, nil
}

// BackgroundSave applies a change to memory and the local store only.
func (c *Coordinator) BackgroundSave(ctx context.Context, mutate interfaces.Mutation) (models.AppData, error) {
	return c.applyLocal(ctx, mutate)
}

// SyncNow pushes the current data to the cloud. It needs a session that
// has completed its login-time sync.
func (c *Coordinator) SyncNow(ctx context.Context) error {
	if c.remote == nil {
		return ErrNoRemote
	}
	c.mu.Lock()
	sess := c.session
	synced := c.cloudSynced
	c.mu.Unlock()

	if sess == nil {
		return ErrNotAuthenticated
	}
	if !synced {
		return ErrNotSynced
	}
	return c.push(ctx, sess)
}

func (c *Coordinator) applyLocal(ctx context.Context, mutate interfaces.Mutation) (models.AppData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := mutate(c.data.Clone())
	if err != nil {
		return models.AppData{}, err
	}
	next = next.Clone()
	if err := next.ValidateChange(c.data); err != nil {
		return models.AppData{}, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}
	c.data = next
	c.persistLocked(ctx)
	return next.Clone(), nil
}

// persistLocked writes c.data to the local store. Must hold c.mu so local
// writes land in the same order as memory updates.
func (c *Coordinator) persistLocked(ctx context.Context) {
	data := c.data
	if err := c.local.Save(ctx, &data); err != nil {
		c.logger.Error().Err(err).Msg("Failed to save data locally")
	}
}

// push writes the latest in-memory data, not the caller's copy, so that
// concurrent saves cannot finish with an older state in the cloud.
func (c *Coordinator) push(ctx context.Context, sess *session) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	if c.session != sess {
		c.mu.Unlock()
		return ErrNotAuthenticated
	}
	data := c.data.Clone()
	c.mu.Unlock()

	version, err := c.remote.WriteThrough(ctx, sess.userID, &data)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != sess {
		return ErrNotAuthenticated
	}
	if err != nil {
		c.syncErr = err
		c.logger.Error().Err(err).Str("user_id", sess.userID).Msg("Cloud write failed, local copy kept")
		return fmt.Errorf("%w: %w", ErrSyncFailed, err)
	}
	if version > c.remoteVersion {
		c.remoteVersion = version
	}
	c.syncErr = nil
	c.lastSynced = c.now()
	c.logger.Debug().Str("user_id", sess.userID).Int("version", version).Msg("Cloud write complete")
	return nil
}

// start loads the cloud copy for userID and opens the subscription.
func (c *Coordinator) start(ctx context.Context, userID string) error {
	sctx, cancel := context.WithCancel(context.Background())
	sess := &session{userID: userID, ctx: sctx, cancel: cancel}

	c.mu.Lock()
	c.session = sess
	c.userID = userID
	c.state = StateAuthenticating
	c.initErr = nil
	c.authErr = nil
	c.mu.Unlock()

	c.logger.Info().Str("user_id", userID).Msg("Loading cloud data")

	snap, err := c.remote.FetchOnce(ctx, userID)
	if err != nil {
		return c.failInit(sess, err)
	}

	if snap == nil {
		if err := c.bootstrap(ctx, sess); err != nil {
			return c.failInit(sess, err)
		}
	} else if !c.apply(sess, *snap) {
		return ErrNotAuthenticated
	}

	updates, err := c.remote.Subscribe(sctx, userID)
	if err != nil {
		return c.failInit(sess, fmt.Errorf("subscribe: %w", err))
	}
	c.safeGo(sess, "cloud-subscription", func() { c.watch(sess, updates) })

	c.logger.Info().Str("user_id", userID).Msg("Cloud data loaded")
	return nil
}

// bootstrap creates the cloud document from local data for a user who has
// never synced.
func (c *Coordinator) bootstrap(ctx context.Context, sess *session) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	if c.session != sess {
		c.mu.Unlock()
		return ErrNotAuthenticated
	}
	data := c.data.Clone()
	c.mu.Unlock()

	version, err := c.remote.WriteThrough(ctx, sess.userID, &data)
	if err != nil {
		return fmt.Errorf("create cloud document: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != sess {
		return ErrNotAuthenticated
	}
	c.remoteVersion = version
	c.markSyncedLocked()
	c.logger.Info().Str("user_id", sess.userID).Msg("No cloud document found, created one from local data")
	return nil
}

// apply replaces memory and the local copy with a cloud snapshot. Stale
// snapshots and snapshots for a torn-down session are ignored.
func (c *Coordinator) apply(sess *session, snap models.Snapshot) bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != sess {
		return false
	}
	if c.cloudSynced && snap.Version <= c.remoteVersion {
		return true
	}
	if err := snap.Data.Validate(); err != nil {
		c.logger.Warn().Err(err).Int("version", snap.Version).Msg("Cloud data failed validation, applying anyway")
	}

	c.data = snap.Data.Clone()
	c.remoteVersion = snap.Version
	c.markSyncedLocked()
	c.persistLocked(sess.ctx)

	c.logger.Debug().Str("user_id", sess.userID).Int("version", snap.Version).Msg("Applied cloud snapshot")
	return true
}

func (c *Coordinator) markSyncedLocked() {
	c.cloudSynced = true
	c.state = StateSynced
	c.initErr = nil
	c.lastSynced = c.now()
}

func (c *Coordinator) failInit(sess *session, err error) error {
	c.mu.Lock()
	if c.session == sess {
		c.state = StateInitError
		c.initErr = err
	}
	c.mu.Unlock()
	c.logger.Error().Err(err).Str("user_id", sess.userID).Msg("Cloud load failed")
	return fmt.Errorf("%w: %w", ErrInitFailed, err)
}

func (c *Coordinator) watch(sess *session, updates <-chan models.Snapshot) {
	for {
		select {
		case <-sess.ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				if sess.ctx.Err() == nil {
					c.logger.Warn().Str("user_id", sess.userID).Msg("Cloud subscription closed")
				}
				return
			}
			c.apply(sess, snap)
		}
	}
}

// teardown cancels the current session and waits for its goroutines.
func (c *Coordinator) teardown() {
	c.mu.Lock()
	sess := c.session
	c.session = nil
	c.mu.Unlock()

	if sess == nil {
		return
	}
	sess.cancel()
	sess.wg.Wait()
}

func (c *Coordinator) resetSessionLocked() {
	c.state = StateUnauthenticated
	c.userID = ""
	c.cloudSynced = false
	c.remoteVersion = 0
	c.syncErr = nil
	c.initErr = nil
	c.authErr = nil
	c.lastSynced = time.Time{}
}

// safeGo runs fn on the session's wait group with panic recovery.
func (c *Coordinator) safeGo(sess *session, name string, fn func()) {
	sess.wg.Add(1)
	go func() {
		defer sess.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error().
					Str("goroutine", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(debug.Stack())).
					Msg("Recovered from panic in sync goroutine")
			}
		}()
		fn()
	}()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
