package cloudsync

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/bobmcallan/networth/internal/models"
)

// --- local store ---

type fakeLocal struct {
	mu      sync.Mutex
	data    *models.AppData
	saves   int
	loadErr error
	saveErr error
}

func (f *fakeLocal) Load(_ context.Context) (*models.AppData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.data == nil {
		d := models.DefaultAppData()
		return &d, nil
	}
	d := f.data.Clone()
	return &d, nil
}

func (f *fakeLocal) Save(_ context.Context, data *models.AppData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	d := data.Clone()
	f.data = &d
	return nil
}

func (f *fakeLocal) Close() error { return nil }

func (f *fakeLocal) stored() models.AppData {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		return models.DefaultAppData()
	}
	return f.data.Clone()
}

// --- remote store ---

type fakeSub struct {
	ctx context.Context
	ch  chan models.Snapshot
}

type fakeRemote struct {
	mu       sync.Mutex
	docs     map[string]models.Snapshot
	writes   int
	fetchErr error
	writeErr error
	subErr   error
	subs     map[string]*fakeSub

	// fetchGate, when set, blocks FetchOnce until closed.
	fetchGate chan struct{}
	fetching  chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		docs: make(map[string]models.Snapshot),
		subs: make(map[string]*fakeSub),
	}
}

func (f *fakeRemote) FetchOnce(ctx context.Context, userID string) (*models.Snapshot, error) {
	f.mu.Lock()
	gate, fetching := f.fetchGate, f.fetching
	f.mu.Unlock()
	if fetching != nil {
		close(fetching)
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	snap, ok := f.docs[userID]
	if !ok {
		return nil, nil
	}
	snap.Data = snap.Data.Clone()
	return &snap, nil
}

func (f *fakeRemote) WriteThrough(_ context.Context, userID string, data *models.AppData) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	snap := f.docs[userID]
	snap.Version++
	snap.Data = data.Clone()
	f.docs[userID] = snap
	return snap.Version, nil
}

func (f *fakeRemote) Subscribe(ctx context.Context, userID string) (<-chan models.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return nil, f.subErr
	}
	sub := &fakeSub{ctx: ctx, ch: make(chan models.Snapshot, 8)}
	f.subs[userID] = sub
	return sub.ch, nil
}

func (f *fakeRemote) Close() error { return nil }

func (f *fakeRemote) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func (f *fakeRemote) doc(userID string) (models.Snapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.docs[userID]
	return s, ok
}

func (f *fakeRemote) sub(userID string) *fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[userID]
}

func (f *fakeRemote) set(fn func(*fakeRemote)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

// --- authenticator ---

// fakeAuth accepts tokens of the form "token-<user>".
type fakeAuth struct{}

func (fakeAuth) Verify(token string) (string, error) {
	user, ok := strings.CutPrefix(token, "token-")
	if !ok || user == "" {
		return "", errors.New("bad token")
	}
	return user, nil
}
