package service_test

import (
	"context"
	"errors"
	"testing"

	"restopos/internal/apierror"
	"restopos/internal/dto"
	"restopos/internal/events"
	"restopos/internal/model"
	"restopos/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHooks_RunInOrderAndFailuresDoNotRollBack(t *testing.T) {
	var calls []string
	failing := &recordingHook{name: "first", log: &calls, err: errors.New("printer offline")}
	second := &recordingHook{name: "second", log: &calls}
	e := newEngine(service.OrderOptions{}, failing, second)
	pizza := e.store.addItem(e.tenantID, "Margherita", "10", nil)

	resp, err := e.orders.Create(context.Background(), e.actor, takeaway(line(pizza.ID, 1)))
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, calls)
	assert.Equal(t, 1, e.store.orderCount())
	assert.Equal(t, model.OrderOpen, resp.Status)
}

func TestPrinterHook_SplitsByCategory(t *testing.T) {
	pub := &recordingPublisher{}
	e := newEngine(service.OrderOptions{})
	printer := service.NewPrinterHook(memOrders{e.store}, pub)
	kitchen := service.NewKitchenHook(memOrders{e.store}, pub)
	e.orders = service.NewOrderService(e.store, memOrders{e.store}, memTables{e.store}, memCatalog{e.store},
		service.NewRecipeResolver(memRecipes{e.store}), e.inventory, []service.Hook{kitchen, printer}, service.OrderOptions{})

	food := e.store.addCategory(e.tenantID, "Mains", false)
	drinks := e.store.addCategory(e.tenantID, "Drinks", true)
	pizza := e.store.addItem(e.tenantID, "Margherita", "10", &food)
	beer := e.store.addItem(e.tenantID, "Lager", "4", &drinks)
	table := e.store.addTable(e.tenantID, "T9")

	l := line(pizza.ID, 1)
	l.Notes = "no basil"
	_, err := e.orders.Create(context.Background(), e.actor, dineIn(table.ID, l, line(beer.ID, 2)))
	require.NoError(t, err)

	require.Len(t, pub.prints, 2)
	byPrinter := map[string]events.PrintJob{}
	for _, j := range pub.prints {
		byPrinter[j.Printer] = j
	}
	require.Len(t, byPrinter[events.PrinterKitchen].Items, 1)
	assert.Equal(t, "Margherita", byPrinter[events.PrinterKitchen].Items[0].Item)
	assert.Equal(t, "no basil", byPrinter[events.PrinterKitchen].Items[0].Notes)
	require.Len(t, byPrinter[events.PrinterBar].Items, 1)
	assert.Equal(t, 2, byPrinter[events.PrinterBar].Items[0].Qty)
	assert.Equal(t, "T9", byPrinter[events.PrinterBar].Table)

	require.Len(t, pub.kitchen, 1)
	ev := pub.kitchen[0]
	assert.Equal(t, events.EventOrderUpdate, ev.Event)
	assert.Equal(t, model.OrderDineIn, ev.Type)
	assert.Equal(t, "Alex", ev.Waiter)
	assert.Len(t, ev.Items, 2)
}

func TestKitchenHook_StatusFilter(t *testing.T) {
	pub := &recordingPublisher{}
	e := newEngine(service.OrderOptions{})
	kitchen := service.NewKitchenHook(memOrders{e.store}, pub)
	o := e.store.addCompletedOrder(e.tenantID, "10", "0", "0")

	for _, tc := range []struct {
		kind service.TransitionKind
		to   string
		want bool
	}{
		{service.TransitionStatus, model.OrderConfirmed, true},
		{service.TransitionStatus, model.OrderPreparing, true},
		{service.TransitionStatus, model.OrderReady, true},
		{service.TransitionStatus, model.OrderCancelled, true},
		{service.TransitionStatus, model.OrderServed, false},
		{service.TransitionItemStatus, model.ItemReady, true},
		{service.TransitionItemStatus, model.ItemServed, false},
		{service.TransitionCompleted, model.OrderCompleted, false},
	} {
		before := len(pub.kitchen)
		err := kitchen.AfterCommit(context.Background(), service.Transition{Kind: tc.kind, TenantID: e.tenantID, OrderID: o.ID, To: tc.to})
		require.NoError(t, err)
		assert.Equal(t, tc.want, len(pub.kitchen) > before, "%s → %s", tc.kind, tc.to)
	}
}

func TestKitchenHook_OnlyChangedLines(t *testing.T) {
	pub := &recordingPublisher{}
	e := newEngine(service.OrderOptions{})
	pizza := e.store.addItem(e.tenantID, "Margherita", "10", nil)
	soup := e.store.addItem(e.tenantID, "Soup", "6", nil)
	created, err := e.orders.Create(context.Background(), e.actor, takeaway(line(pizza.ID, 1), line(soup.ID, 1)))
	require.NoError(t, err)

	kitchen := service.NewKitchenHook(memOrders{e.store}, pub)
	itemID := uuid.MustParse(created.Items[1].ID)
	err = kitchen.AfterCommit(context.Background(), service.Transition{
		Kind:     service.TransitionItemStatus,
		TenantID: e.tenantID,
		OrderID:  uuid.MustParse(created.ID),
		To:       model.ItemReady,
		ItemIDs:  []uuid.UUID{itemID},
	})
	require.NoError(t, err)
	require.Len(t, pub.kitchen, 1)
	require.Len(t, pub.kitchen[0].Items, 1)
	assert.Equal(t, "Soup", pub.kitchen[0].Items[0].Item)
}

func TestReceiptHook_OnlyOnCompletion(t *testing.T) {
	queue := &stubQueue{}
	hook := service.NewReceiptHook(queue)
	orderID := uuid.New()

	require.NoError(t, hook.AfterCommit(context.Background(), service.Transition{Kind: service.TransitionItemsSent, OrderID: orderID}))
	assert.Empty(t, queue.receipts)
	require.NoError(t, hook.AfterCommit(context.Background(), service.Transition{Kind: service.TransitionCompleted, OrderID: orderID}))
	assert.Equal(t, []uuid.UUID{orderID}, queue.receipts)
}

func TestGuestRoundAttributedToSession(t *testing.T) {
	e := newEngine(service.OrderOptions{})
	table := e.store.addTable(e.tenantID, "T10")
	pizza := e.store.addItem(e.tenantID, "Margherita", "10", nil)
	started, err := e.sessions.Start(context.Background(), e.tenantID, dto.StartSessionRequest{QRToken: table.QRToken, CustomerName: "Guest"})
	require.NoError(t, err)

	sess, err := e.sessions.Resolve(context.Background(), e.tenantID, started.AccessToken)
	require.NoError(t, err)
	guest := service.Actor{TenantID: e.tenantID, SessionID: &sess.ID, Name: "Guest", Role: "table_user"}
	tableID := sess.TableID.String()
	resp, err := e.orders.Create(context.Background(), guest, dto.CreateOrderRequest{TableID: &tableID, Items: []dto.OrderLineRequest{line(pizza.ID, 1)}})
	require.NoError(t, err)
	require.NotNil(t, resp.SessionID)
	assert.Equal(t, started.SessionID, *resp.SessionID)
}

func TestGuestRound_StaleSessionRejected(t *testing.T) {
	e := newEngine(service.OrderOptions{})
	table := e.store.addTable(e.tenantID, "T11")
	pizza := e.store.addItem(e.tenantID, "Margherita", "10", nil)
	tableID := table.ID.String()
	round := dto.CreateOrderRequest{TableID: &tableID, Items: []dto.OrderLineRequest{line(pizza.ID, 1)}}

	first, err := e.sessions.Start(context.Background(), e.tenantID, dto.StartSessionRequest{QRToken: table.QRToken})
	require.NoError(t, err)
	firstID := uuid.MustParse(first.SessionID)
	partyA := service.Actor{TenantID: e.tenantID, SessionID: &firstID, Name: "Guest", Role: "table_user"}

	_, err = e.sessions.Close(context.Background(), e.tenantID, firstID)
	require.NoError(t, err)

	// Table free: the round must not open a session-less order.
	_, err = e.orders.Create(context.Background(), partyA, round)
	assert.True(t, apierror.Is(err, apierror.KindUnauthorized), "got %v", err)

	// Another party sat down: the round must not land on their tab.
	second, err := e.sessions.Start(context.Background(), e.tenantID, dto.StartSessionRequest{QRToken: table.QRToken})
	require.NoError(t, err)
	_, err = e.orders.Create(context.Background(), partyA, round)
	assert.True(t, apierror.Is(err, apierror.KindUnauthorized), "got %v", err)
	assert.Zero(t, e.store.orderItemCount())

	secondID := uuid.MustParse(second.SessionID)
	partyB := service.Actor{TenantID: e.tenantID, SessionID: &secondID, Name: "Guest", Role: "table_user"}
	resp, err := e.orders.Create(context.Background(), partyB, round)
	require.NoError(t, err)
	assert.Equal(t, second.SessionID, *resp.SessionID)
}
