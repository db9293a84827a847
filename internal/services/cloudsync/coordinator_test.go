package cloudsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/networth/internal/common"
	"github.com/bobmcallan/networth/internal/models"
)

func newTestCoordinator(t *testing.T, local *fakeLocal, remote *fakeRemote) *Coordinator {
	t.Helper()
	c := NewCoordinator(context.Background(), local, remote, fakeAuth{}, common.NewSilentLogger())
	t.Cleanup(c.Close)
	return c
}

func addExpense(desc string) func(models.AppData) (models.AppData, error) {
	return func(d models.AppData) (models.AppData, error) {
		e := models.NewExpense(decimal.NewFromInt(10), models.USD, desc, "Other", "2024-05-01")
		return d.WithExpenses(append(d.Expenses, e)), nil
	}
}

func cloudDoc(version int, base models.Currency) models.Snapshot {
	data := models.DefaultAppData().WithBaseCurrency(base)
	return models.Snapshot{Data: data, Version: version}
}

func TestNewCoordinator_LoadsLocal(t *testing.T) {
	stored := models.DefaultAppData().WithBaseCurrency(models.GBP)
	c := newTestCoordinator(t, &fakeLocal{data: &stored}, newFakeRemote())

	assert.Equal(t, models.GBP, c.Current().BaseCurrency)
	assert.Equal(t, StateUnauthenticated, c.Status().State)
}

func TestNewCoordinator_UnreadableLocalUsesDefaults(t *testing.T) {
	c := newTestCoordinator(t, &fakeLocal{loadErr: errors.New("disk gone")}, newFakeRemote())

	cur := c.Current()
	assert.Equal(t, models.USD, cur.BaseCurrency)
	assert.True(t, cur.Settings.AutoUpdatePrices)
}

func TestUserSave_Unauthenticated_LocalOnly(t *testing.T) {
	local := &fakeLocal{}
	remote := newFakeRemote()
	c := newTestCoordinator(t, local, remote)

	got, err := c.UserSave(context.Background(), addExpense("coffee"))
	require.NoError(t, err)

	assert.Len(t, got.Expenses, 1)
	assert.Len(t, c.Current().Expenses, 1)
	assert.Len(t, local.stored().Expenses, 1)
	assert.Zero(t, remote.writeCount())
}

func TestUserSave_GuardBlocksBeforeFirstSync(t *testing.T) {
	local := &fakeLocal{}
	remote := newFakeRemote()
	remote.docs["alice"] = cloudDoc(3, models.EUR)
	remote.fetchGate = make(chan struct{})
	remote.fetching = make(chan struct{})
	c := newTestCoordinator(t, local, remote)

	authDone := make(chan error, 1)
	go func() { authDone <- c.Authenticate(context.Background(), "token-alice") }()
	<-remote.fetching

	// Signed in but the cloud copy has not arrived.
	_, err := c.UserSave(context.Background(), addExpense("stale tab"))
	require.NoError(t, err, "a blocked cloud write is not an error")
	assert.Zero(t, remote.writeCount(), "stale state must not reach the cloud")
	assert.False(t, c.Status().CloudSynced)

	close(remote.fetchGate)
	require.NoError(t, <-authDone)

	doc, _ := remote.doc("alice")
	assert.Equal(t, 3, doc.Version, "cloud document untouched")
	assert.Equal(t, models.EUR, c.Current().BaseCurrency, "cloud copy replaces local state")
	assert.Empty(t, c.Current().Expenses)
}

func TestUserSave_GuardBlocksAfterInitError(t *testing.T) {
	remote := newFakeRemote()
	remote.fetchErr = errors.New("network down")
	c := newTestCoordinator(t, &fakeLocal{}, remote)

	err := c.Authenticate(context.Background(), "token-alice")
	require.ErrorIs(t, err, ErrInitFailed)
	assert.Equal(t, StateInitError, c.Status().State)

	_, err = c.UserSave(context.Background(), addExpense("offline"))
	require.NoError(t, err)
	assert.Zero(t, remote.writeCount())
	assert.Len(t, c.Current().Expenses, 1, "local change kept")
}

func TestUserSave_WritesThroughOnceSynced(t *testing.T) {
	local := &fakeLocal{}
	remote := newFakeRemote()
	remote.docs["alice"] = cloudDoc(1, models.USD)
	c := newTestCoordinator(t, local, remote)

	require.NoError(t, c.Authenticate(context.Background(), "token-alice"))
	require.True(t, c.Status().CloudSynced)

	_, err := c.UserSave(context.Background(), addExpense("lunch"))
	require.NoError(t, err)

	assert.Equal(t, 1, remote.writeCount())
	doc, ok := remote.doc("alice")
	require.True(t, ok)
	assert.Equal(t, 2, doc.Version)
	require.Len(t, doc.Data.Expenses, 1)
	assert.Equal(t, "lunch", doc.Data.Expenses[0].Description)
	assert.Equal(t, 2, c.Status().RemoteVersion)
}

func TestBackgroundSave_NeverWritesRemote(t *testing.T) {
	for _, synced := range []bool{false, true} {
		t.Run(map[bool]string{false: "not synced", true: "synced"}[synced], func(t *testing.T) {
			local := &fakeLocal{}
			remote := newFakeRemote()
			if synced {
				remote.docs["alice"] = cloudDoc(1, models.USD)
			} else {
				remote.fetchErr = errors.New("unreachable")
			}
			c := newTestCoordinator(t, local, remote)
			_ = c.Authenticate(context.Background(), "token-alice")
			require.Equal(t, synced, c.Status().CloudSynced)
			before := remote.writeCount()

			_, err := c.BackgroundSave(context.Background(), addExpense("price tick"))
			require.NoError(t, err)

			assert.Equal(t, before, remote.writeCount())
			assert.Len(t, c.Current().Expenses, 1)
			assert.Len(t, local.stored().Expenses, 1)
		})
	}
}

func TestAuthenticate_AbsentDocumentBootstraps(t *testing.T) {
	stored := models.DefaultAppData().WithBaseCurrency(models.CAD)
	remote := newFakeRemote()
	c := newTestCoordinator(t, &fakeLocal{data: &stored}, remote)

	require.NoError(t, c.Authenticate(context.Background(), "token-bob"))

	st := c.Status()
	assert.Equal(t, StateSynced, st.State)
	assert.True(t, st.CloudSynced)
	assert.Empty(t, st.InitError)
	assert.NotNil(t, st.LastSyncedAt)

	doc, ok := remote.doc("bob")
	require.True(t, ok)
	assert.Equal(t, 1, doc.Version)
	assert.Equal(t, models.CAD, doc.Data.BaseCurrency)
}

func TestAuthenticate_FetchErrorIsInitError(t *testing.T) {
	remote := newFakeRemote()
	remote.fetchErr = errors.New("permission denied")
	c := newTestCoordinator(t, &fakeLocal{}, remote)

	err := c.Authenticate(context.Background(), "token-bob")
	require.ErrorIs(t, err, ErrInitFailed)

	st := c.Status()
	assert.Equal(t, StateInitError, st.State)
	assert.Contains(t, st.InitError, "permission denied")
	assert.False(t, st.CloudSynced)
	assert.Zero(t, remote.writeCount(), "an unreadable document is never bootstrapped")

	remote.set(func(r *fakeRemote) {
		r.fetchErr = nil
		r.docs["bob"] = cloudDoc(4, models.JPY)
	})
	require.NoError(t, c.Retry(context.Background()))
	assert.Equal(t, StateSynced, c.Status().State)
	assert.Equal(t, models.JPY, c.Current().BaseCurrency)
}

func TestAuthenticate_BootstrapWriteFailure(t *testing.T) {
	remote := newFakeRemote()
	remote.writeErr = errors.New("quota")
	c := newTestCoordinator(t, &fakeLocal{}, remote)

	err := c.Authenticate(context.Background(), "token-bob")
	require.ErrorIs(t, err, ErrInitFailed)
	assert.Equal(t, StateInitError, c.Status().State)
}

func TestAuthenticate_SubscribeFailureIsInitError(t *testing.T) {
	remote := newFakeRemote()
	remote.docs["bob"] = cloudDoc(1, models.USD)
	remote.subErr = errors.New("socket closed")
	c := newTestCoordinator(t, &fakeLocal{}, remote)

	err := c.Authenticate(context.Background(), "token-bob")
	require.ErrorIs(t, err, ErrInitFailed)
	assert.Equal(t, StateInitError, c.Status().State)
}

func TestAuthenticate_BadToken(t *testing.T) {
	c := newTestCoordinator(t, &fakeLocal{}, newFakeRemote())

	err := c.Authenticate(context.Background(), "garbage")
	require.ErrorIs(t, err, ErrAuthFailed)
	st := c.Status()
	assert.Equal(t, StateAuthError, st.State)
	assert.NotEmpty(t, st.AuthError)
	assert.Empty(t, st.UserID)
}

func TestAuthenticate_NoRemote(t *testing.T) {
	c := NewCoordinator(context.Background(), &fakeLocal{}, nil, fakeAuth{}, common.NewSilentLogger())
	defer c.Close()

	assert.ErrorIs(t, c.Authenticate(context.Background(), "token-a"), ErrNoRemote)
	assert.ErrorIs(t, c.SyncNow(context.Background()), ErrNoRemote)
	assert.True(t, c.Status().LocalOnly)

	_, err := c.UserSave(context.Background(), addExpense("x"))
	assert.NoError(t, err)
}

func TestUserSave_WriteFailureKeepsLocal(t *testing.T) {
	local := &fakeLocal{}
	remote := newFakeRemote()
	remote.docs["alice"] = cloudDoc(1, models.USD)
	c := newTestCoordinator(t, local, remote)
	require.NoError(t, c.Authenticate(context.Background(), "token-alice"))

	remote.set(func(r *fakeRemote) { r.writeErr = errors.New("timeout") })
	got, err := c.UserSave(context.Background(), addExpense("taxi"))
	require.ErrorIs(t, err, ErrSyncFailed)

	assert.Len(t, got.Expenses, 1)
	assert.Len(t, c.Current().Expenses, 1, "memory keeps the change")
	assert.Len(t, local.stored().Expenses, 1, "local store keeps the change")
	assert.Contains(t, c.Status().SyncError, "timeout")
	assert.Equal(t, StateSynced, c.Status().State, "a write failure is not a session failure")

	c.DismissSyncError()
	assert.Empty(t, c.Status().SyncError)

	// Only a user action retries: the failed write was attempted exactly once.
	assert.Equal(t, 1, remote.writeCount())

	remote.set(func(r *fakeRemote) { r.writeErr = nil })
	require.NoError(t, c.SyncNow(context.Background()))
	doc, _ := remote.doc("alice")
	assert.Len(t, doc.Data.Expenses, 1)
}

func TestSyncNow_Preconditions(t *testing.T) {
	remote := newFakeRemote()
	c := newTestCoordinator(t, &fakeLocal{}, remote)

	assert.ErrorIs(t, c.SyncNow(context.Background()), ErrNotAuthenticated)

	remote.set(func(r *fakeRemote) { r.fetchErr = errors.New("down") })
	_ = c.Authenticate(context.Background(), "token-alice")
	assert.ErrorIs(t, c.SyncNow(context.Background()), ErrNotSynced)
	assert.Zero(t, remote.writeCount())
}

func TestSyncNow_PushesCurrentState(t *testing.T) {
	remote := newFakeRemote()
	remote.docs["alice"] = cloudDoc(1, models.USD)
	c := newTestCoordinator(t, &fakeLocal{}, remote)
	require.NoError(t, c.Authenticate(context.Background(), "token-alice"))

	_, err := c.BackgroundSave(context.Background(), addExpense("refreshed"))
	require.NoError(t, err)
	require.Zero(t, remote.writeCount())

	require.NoError(t, c.SyncNow(context.Background()))
	doc, _ := remote.doc("alice")
	assert.Equal(t, 2, doc.Version)
	assert.Len(t, doc.Data.Expenses, 1)
}

func TestSubscription_AppliesNewerSnapshots(t *testing.T) {
	local := &fakeLocal{}
	remote := newFakeRemote()
	remote.docs["alice"] = cloudDoc(5, models.USD)
	c := newTestCoordinator(t, local, remote)
	require.NoError(t, c.Authenticate(context.Background(), "token-alice"))

	sub := remote.sub("alice")
	require.NotNil(t, sub)

	sub.ch <- cloudDoc(4, models.JPY) // older than what we hold
	sub.ch <- cloudDoc(6, models.AUD)

	require.Eventually(t, func() bool {
		return c.Current().BaseCurrency == models.AUD
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 6, c.Status().RemoteVersion)
	assert.Equal(t, models.AUD, local.stored().BaseCurrency, "snapshot persisted locally")
}

func TestLogout_TearsDownSubscription(t *testing.T) {
	remote := newFakeRemote()
	remote.docs["alice"] = cloudDoc(1, models.USD)
	c := newTestCoordinator(t, &fakeLocal{}, remote)
	require.NoError(t, c.Authenticate(context.Background(), "token-alice"))
	sub := remote.sub("alice")

	c.Logout()

	assert.Error(t, sub.ctx.Err(), "subscription context cancelled before Logout returns")
	st := c.Status()
	assert.Equal(t, StateUnauthenticated, st.State)
	assert.False(t, st.CloudSynced)
	assert.Empty(t, st.UserID)

	sub.ch <- cloudDoc(9, models.GBP)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, models.USD, c.Current().BaseCurrency, "no updates after logout")

	_, err := c.UserSave(context.Background(), addExpense("after logout"))
	require.NoError(t, err)
	assert.Zero(t, remote.writeCount())
}

func TestAuthenticate_SwitchingUsersResetsLatch(t *testing.T) {
	remote := newFakeRemote()
	remote.docs["alice"] = cloudDoc(1, models.USD)
	c := newTestCoordinator(t, &fakeLocal{}, remote)
	require.NoError(t, c.Authenticate(context.Background(), "token-alice"))
	aliceSub := remote.sub("alice")

	remote.set(func(r *fakeRemote) { r.fetchErr = errors.New("carol unreachable") })
	err := c.Authenticate(context.Background(), "token-carol")
	require.ErrorIs(t, err, ErrInitFailed)

	assert.Error(t, aliceSub.ctx.Err(), "previous subscription torn down")
	st := c.Status()
	assert.Equal(t, "carol", st.UserID)
	assert.False(t, st.CloudSynced, "latch does not carry over to a new login")
}

func TestUserSave_RejectsInvalidAndFailedMutations(t *testing.T) {
	local := &fakeLocal{}
	c := newTestCoordinator(t, local, newFakeRemote())

	_, err := c.UserSave(context.Background(), func(d models.AppData) (models.AppData, error) {
		return d.WithBaseCurrency("XXX"), nil
	})
	assert.ErrorIs(t, err, ErrInvalidData)

	boom := errors.New("boom")
	_, err = c.UserSave(context.Background(), func(d models.AppData) (models.AppData, error) {
		return d, boom
	})
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, models.USD, c.Current().BaseCurrency)
	assert.Zero(t, local.saves)
}

func TestCurrent_ReturnsCopy(t *testing.T) {
	c := newTestCoordinator(t, &fakeLocal{}, newFakeRemote())
	_, err := c.UserSave(context.Background(), addExpense("original"))
	require.NoError(t, err)

	cur := c.Current()
	cur.Expenses[0].Description = "mutated outside"

	assert.Equal(t, "original", c.Current().Expenses[0].Description)
}

func TestSaves_ToleratePreexistingInvalidCloudRecord(t *testing.T) {
	remote := newFakeRemote()
	doc := cloudDoc(4, models.USD)
	legacy := models.NewExpense(decimal.NewFromInt(5), models.USD, "old", "Other", "2024/03/01")
	doc.Data = doc.Data.WithExpenses([]models.Expense{legacy})
	remote.docs["alice"] = doc
	c := newTestCoordinator(t, &fakeLocal{}, remote)

	require.NoError(t, c.Authenticate(context.Background(), "token-alice"))
	require.True(t, c.Status().CloudSynced)
	require.Len(t, c.Current().Expenses, 1)

	identity := func(d models.AppData) (models.AppData, error) { return d, nil }
	_, err := c.BackgroundSave(context.Background(), identity)
	require.NoError(t, err)

	_, err = c.UserSave(context.Background(), addExpense("coffee"))
	require.NoError(t, err)
	assert.Len(t, c.Current().Expenses, 2)
	written, _ := remote.doc("alice")
	assert.Len(t, written.Data.Expenses, 2, "write-through carries the legacy record")

	_, err = c.UserSave(context.Background(), func(d models.AppData) (models.AppData, error) {
		bad := models.NewExpense(decimal.NewFromInt(1), models.USD, "typo", "Other", "05/01/2024")
		return d.WithExpenses(append(d.Expenses, bad)), nil
	})
	assert.ErrorIs(t, err, ErrInvalidData, "new invalid records are still rejected")
	assert.Len(t, c.Current().Expenses, 2)
}
