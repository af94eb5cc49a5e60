package service_test

import (
	"context"
	"sync"
	"testing"

	"restopos/internal/apierror"
	"restopos/internal/dto"
	"restopos/internal/model"
	"restopos/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartSession_CreateThenResume(t *testing.T) {
	e := newEngine(service.OrderOptions{})
	table := e.store.addTable(e.tenantID, "T1")

	first, err := e.sessions.Start(context.Background(), e.tenantID, dto.StartSessionRequest{QRToken: table.QRToken, GuestCount: 3})
	require.NoError(t, err)
	assert.Equal(t, "created", first.Status)
	assert.Equal(t, table.ID.String(), first.TableID)
	assert.Equal(t, "T1", first.TableNumber)
	assert.NotEmpty(t, first.AccessToken)
	assert.Equal(t, model.TableOccupied, e.store.table(table.ID).Status)

	second, err := e.sessions.Start(context.Background(), e.tenantID, dto.StartSessionRequest{QRToken: table.QRToken})
	require.NoError(t, err)
	assert.Equal(t, "resumed", second.Status)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, first.AccessToken, second.AccessToken)
	assert.Equal(t, 1, e.store.countActiveSessions(table.ID))
}

func TestStartSession_ConcurrentScans(t *testing.T) {
	e := newEngine(service.OrderOptions{})
	table := e.store.addTable(e.tenantID, "T2")

	const n = 5
	results := make([]*dto.StartSessionResponse, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := e.sessions.Start(context.Background(), e.tenantID, dto.StartSessionRequest{QRToken: table.QRToken})
			assert.NoError(t, err)
			results[i] = resp
		}(i)
	}
	wg.Wait()

	created := 0
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, results[0].SessionID, r.SessionID)
		if r.Status == "created" {
			created++
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, e.store.countActiveSessions(table.ID))
}

func TestStartSession_PIN(t *testing.T) {
	e := newEngine(service.OrderOptions{})
	table := e.store.addTable(e.tenantID, "T3")

	_, err := e.sessions.Start(context.Background(), e.tenantID, dto.StartSessionRequest{QRToken: table.QRToken, PIN: "4821"})
	require.NoError(t, err)

	_, err = e.sessions.Start(context.Background(), e.tenantID, dto.StartSessionRequest{QRToken: table.QRToken, PIN: "0000"})
	assert.True(t, apierror.Is(err, apierror.KindUnauthorized))

	_, err = e.sessions.Start(context.Background(), e.tenantID, dto.StartSessionRequest{QRToken: table.QRToken})
	assert.True(t, apierror.Is(err, apierror.KindUnauthorized))

	resp, err := e.sessions.Start(context.Background(), e.tenantID, dto.StartSessionRequest{QRToken: table.QRToken, PIN: "4821"})
	require.NoError(t, err)
	assert.Equal(t, "resumed", resp.Status)
}

func TestStartSession_UnknownQR(t *testing.T) {
	e := newEngine(service.OrderOptions{})
	table := e.store.addTable(e.tenantID, "T7")

	_, err := e.sessions.Start(context.Background(), e.tenantID, dto.StartSessionRequest{QRToken: "nope"})
	assert.True(t, apierror.Is(err, apierror.KindNotFound))

	// QR tokens are tenant-scoped.
	_, err = e.sessions.Start(context.Background(), uuid.New(), dto.StartSessionRequest{QRToken: table.QRToken})
	assert.True(t, apierror.Is(err, apierror.KindNotFound))

	_, err = e.sessions.Start(context.Background(), e.tenantID, dto.StartSessionRequest{})
	assert.True(t, apierror.Is(err, apierror.KindValidation))
}

func TestVerifyAndCloseSession(t *testing.T) {
	e := newEngine(service.OrderOptions{})
	table := e.store.addTable(e.tenantID, "T8")
	started, err := e.sessions.Start(context.Background(), e.tenantID, dto.StartSessionRequest{QRToken: table.QRToken})
	require.NoError(t, err)

	v, err := e.sessions.Verify(context.Background(), e.tenantID, started.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "valid", v.Status)
	assert.Equal(t, started.SessionID, v.SessionID)

	_, err = e.sessions.Verify(context.Background(), e.tenantID, "forged")
	assert.True(t, apierror.Is(err, apierror.KindUnauthorized))

	sessionID := uuid.MustParse(started.SessionID)
	closed, err := e.sessions.Close(context.Background(), e.tenantID, sessionID)
	require.NoError(t, err)
	assert.Equal(t, "closed", closed.Status)
	assert.Equal(t, model.TableAvailable, e.store.table(table.ID).Status)

	_, err = e.sessions.Verify(context.Background(), e.tenantID, started.AccessToken)
	assert.True(t, apierror.Is(err, apierror.KindUnauthorized))

	// Closing twice is a no-op.
	_, err = e.sessions.Close(context.Background(), e.tenantID, sessionID)
	require.NoError(t, err)

	// A new scan after closing starts a fresh session.
	next, err := e.sessions.Start(context.Background(), e.tenantID, dto.StartSessionRequest{QRToken: table.QRToken})
	require.NoError(t, err)
	assert.Equal(t, "created", next.Status)
	assert.NotEqual(t, started.SessionID, next.SessionID)
}

func TestCloseSession_NotFound(t *testing.T) {
	e := newEngine(service.OrderOptions{})
	_, err := e.sessions.Close(context.Background(), e.tenantID, uuid.New())
	assert.True(t, apierror.Is(err, apierror.KindNotFound))
}

func TestCloseSession_LocksTableBeforeSession(t *testing.T) {
	e := newEngine(service.OrderOptions{})
	table := e.store.addTable(e.tenantID, "T9")
	started, err := e.sessions.Start(context.Background(), e.tenantID, dto.StartSessionRequest{QRToken: table.QRToken})
	require.NoError(t, err)

	_, err = e.sessions.Close(context.Background(), e.tenantID, uuid.MustParse(started.SessionID))
	require.NoError(t, err)
	assert.Equal(t, []string{"table", "session"}, e.store.locks)

	// Settling a round closes the session through the same path.
	_, order := seatAndOrder(t, e, "10", 1)
	_, err = e.payments.Pay(context.Background(), e.actor, uuid.MustParse(order.ID), dto.PayRequest{Method: "cash"})
	require.NoError(t, err)
	require.NotEmpty(t, e.store.locks)
	assert.Equal(t, "table", e.store.locks[0])
	assert.Equal(t, "session", e.store.locks[len(e.store.locks)-1])
}
