package service_test

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"restopos/internal/events"
	"restopos/internal/model"
	"restopos/internal/repository"
	"restopos/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── In-memory store ───────────────────────────────────────────────────────────
// memStore backs every stub repository. Transaction holds mu for the whole
// unit of work, so transactions are serialized the way conflicting row locks
// serialize them in Postgres, and restores a snapshot when fn fails.
// *Tx methods assume mu is held; context-taking reads lock it themselves.

type memStore struct {
	mu sync.Mutex

	tables      map[uuid.UUID]model.Table
	sessions    map[uuid.UUID]model.TableSession
	categories  map[uuid.UUID]model.Category
	items       map[uuid.UUID]model.Item
	variants    map[uuid.UUID]model.ItemVariant
	addons      map[uuid.UUID]model.Addon
	ingredients map[uuid.UUID]model.Ingredient
	recipes     []model.Recipe
	movements   []model.StockMovement
	orders      map[uuid.UUID]model.Order
	orderItems  []model.OrderItem
	payments    []model.Payment
	accounts    map[uuid.UUID]model.Account
	entries     []model.JournalEntry

	txCount int
	// locks lists the rows locked by the last transaction, in order.
	locks []string
	// failCreateEntry makes CreateEntryTx fail once with this error.
	failCreateEntry error
	// afterRollback runs once, after the next rollback, with mu held.
	afterRollback func(s *memStore)
}

func newMemStore() *memStore {
	return &memStore{
		tables:      map[uuid.UUID]model.Table{},
		sessions:    map[uuid.UUID]model.TableSession{},
		categories:  map[uuid.UUID]model.Category{},
		items:       map[uuid.UUID]model.Item{},
		variants:    map[uuid.UUID]model.ItemVariant{},
		addons:      map[uuid.UUID]model.Addon{},
		ingredients: map[uuid.UUID]model.Ingredient{},
		orders:      map[uuid.UUID]model.Order{},
		accounts:    map[uuid.UUID]model.Account{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneSlice[T any](s []T) []T {
	return append([]T(nil), s...)
}

type memSnapshot struct {
	tables      map[uuid.UUID]model.Table
	sessions    map[uuid.UUID]model.TableSession
	items       map[uuid.UUID]model.Item
	ingredients map[uuid.UUID]model.Ingredient
	movements   []model.StockMovement
	orders      map[uuid.UUID]model.Order
	orderItems  []model.OrderItem
	payments    []model.Payment
	accounts    map[uuid.UUID]model.Account
	entries     []model.JournalEntry
}

func (s *memStore) snapshot() memSnapshot {
	return memSnapshot{
		tables:      cloneMap(s.tables),
		sessions:    cloneMap(s.sessions),
		items:       cloneMap(s.items),
		ingredients: cloneMap(s.ingredients),
		movements:   cloneSlice(s.movements),
		orders:      cloneMap(s.orders),
		orderItems:  cloneSlice(s.orderItems),
		payments:    cloneSlice(s.payments),
		accounts:    cloneMap(s.accounts),
		entries:     cloneSlice(s.entries),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.tables = snap.tables
	s.sessions = snap.sessions
	s.items = snap.items
	s.ingredients = snap.ingredients
	s.movements = snap.movements
	s.orders = snap.orders
	s.orderItems = snap.orderItems
	s.payments = snap.payments
	s.accounts = snap.accounts
	s.entries = snap.entries
}

// Transaction implements repository.Transactor.
func (s *memStore) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txCount++
	s.locks = nil
	snap := s.snapshot()
	if err := fn(nil); err != nil {
		s.restore(snap)
		if f := s.afterRollback; f != nil {
			s.afterRollback = nil
			f(s)
		}
		return err
	}
	return nil
}

var _ repository.Transactor = (*memStore)(nil)

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
}

// ── Seed helpers ──────────────────────────────────────────────────────────────

func (s *memStore) addTable(tenantID uuid.UUID, number string) model.Table {
	t := model.Table{ID: uuid.New(), TenantID: tenantID, Number: number, Capacity: 4, Status: model.TableAvailable}
	tok, _ := model.RandomToken()
	t.QRToken = tok
	s.tables[t.ID] = t
	return t
}

func (s *memStore) addCategory(tenantID uuid.UUID, name string, bar bool) model.Category {
	c := model.Category{ID: uuid.New(), TenantID: tenantID, Name: name, IsKitchen: !bar, IsBar: bar}
	s.categories[c.ID] = c
	return c
}

func (s *memStore) addItem(tenantID uuid.UUID, name, price string, category *model.Category) model.Item {
	it := model.Item{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Name:        name,
		BasePrice:   decimal.RequireFromString(price),
		IsAvailable: true,
	}
	if category != nil {
		it.CategoryID = &category.ID
	}
	s.items[it.ID] = it
	return it
}

func (s *memStore) addTrackedItem(tenantID uuid.UUID, name, price string, stock int) model.Item {
	it := s.addItem(tenantID, name, price, nil)
	it.MaintainStock = true
	it.CurrentStock = stock
	s.items[it.ID] = it
	return it
}

func (s *memStore) addVariant(tenantID, itemID uuid.UUID, name, delta string) model.ItemVariant {
	v := model.ItemVariant{ID: uuid.New(), TenantID: tenantID, ItemID: itemID, Name: name, PriceDelta: decimal.RequireFromString(delta)}
	s.variants[v.ID] = v
	return v
}

func (s *memStore) addAddon(tenantID uuid.UUID, name, price string) model.Addon {
	a := model.Addon{ID: uuid.New(), TenantID: tenantID, Name: name, Price: decimal.RequireFromString(price), IsAvailable: true}
	s.addons[a.ID] = a
	return a
}

func (s *memStore) addIngredient(tenantID uuid.UUID, name, stock string) model.Ingredient {
	ing := model.Ingredient{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Name:         name,
		Unit:         "unit",
		CurrentStock: decimal.RequireFromString(stock),
	}
	s.ingredients[ing.ID] = ing
	return ing
}

func (s *memStore) addRecipe(tenantID, itemID, ingredientID uuid.UUID, qty string) {
	s.recipes = append(s.recipes, model.Recipe{
		ID: uuid.New(), TenantID: tenantID, ItemID: itemID, IngredientID: ingredientID,
		Quantity: decimal.RequireFromString(qty),
	})
}

func (s *memStore) addCompletedOrder(tenantID uuid.UUID, total, tax, service string) model.Order {
	now := time.Now().UTC()
	o := model.Order{
		ID:                  uuid.New(),
		TenantID:            tenantID,
		OrderType:           model.OrderTakeaway,
		Status:              model.OrderCompleted,
		TotalAmount:         decimal.RequireFromString(total),
		TaxAmount:           decimal.RequireFromString(tax),
		ServiceChargeAmount: decimal.RequireFromString(service),
		CreatedAt:           now,
		CompletedAt:         &now,
	}
	s.orders[o.ID] = o
	return o
}

// Locked readers for assertions.

func (s *memStore) ingredient(id uuid.UUID) model.Ingredient {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ingredients[id]
}

func (s *memStore) item(id uuid.UUID) model.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id]
}

func (s *memStore) order(id uuid.UUID) model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id]
}

func (s *memStore) table(id uuid.UUID) model.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tables[id]
}

func (s *memStore) session(id uuid.UUID) model.TableSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

func (s *memStore) countActiveSessions(tableID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sess := range s.sessions {
		if sess.TableID == tableID && sess.IsActive {
			n++
		}
	}
	return n
}

func (s *memStore) movementCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.movements)
}

func (s *memStore) movementsFor(ingredientID uuid.UUID) []model.StockMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.StockMovement
	for _, m := range s.movements {
		if m.IngredientID == ingredientID {
			out = append(out, m)
		}
	}
	return out
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memStore) orderItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orderItems)
}

func (s *memStore) entryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// ── Table repository ──────────────────────────────────────────────────────────

type memTables struct{ *memStore }

func (r memTables) LockByQRTokenTx(_ *gorm.DB, tenantID uuid.UUID, qrToken string) (*model.Table, error) {
	for _, t := range r.tables {
		if t.TenantID == tenantID && t.QRToken == qrToken {
			t := t
			r.locks = append(r.locks, "table")
			return &t, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memTables) LockByIDTx(_ *gorm.DB, tenantID, id uuid.UUID) (*model.Table, error) {
	t, ok := r.tables[id]
	if !ok || t.TenantID != tenantID {
		return nil, gorm.ErrRecordNotFound
	}
	r.locks = append(r.locks, "table")
	return &t, nil
}

func (r memTables) UpdateStatusTx(_ *gorm.DB, tenantID, id uuid.UUID, status string) error {
	t, ok := r.tables[id]
	if ok && t.TenantID == tenantID {
		t.Status = status
		r.tables[id] = t
	}
	return nil
}

func (r memTables) FindActiveSessionTx(_ *gorm.DB, tenantID, tableID uuid.UUID) (*model.TableSession, error) {
	for _, s := range r.sessions {
		if s.TenantID == tenantID && s.TableID == tableID && s.IsActive {
			s := s
			return &s, nil
		}
	}
	return nil, nil
}

func (r memTables) CreateSessionTx(_ *gorm.DB, s *model.TableSession) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	r.sessions[s.ID] = *s
	return nil
}

func (r memTables) FindSessionTx(_ *gorm.DB, tenantID, id uuid.UUID) (*model.TableSession, error) {
	s, ok := r.sessions[id]
	if !ok || s.TenantID != tenantID {
		return nil, gorm.ErrRecordNotFound
	}
	return &s, nil
}

func (r memTables) LockSessionTx(_ *gorm.DB, tenantID, id uuid.UUID) (*model.TableSession, error) {
	s, ok := r.sessions[id]
	if !ok || s.TenantID != tenantID {
		return nil, gorm.ErrRecordNotFound
	}
	r.locks = append(r.locks, "session")
	return &s, nil
}

func (r memTables) CloseSessionTx(_ *gorm.DB, tenantID, id uuid.UUID, at time.Time) error {
	s, ok := r.sessions[id]
	if ok && s.TenantID == tenantID {
		s.IsActive = false
		s.EndTime = &at
		r.sessions[id] = s
	}
	return nil
}

func (r memTables) FindSessionByToken(_ context.Context, tenantID uuid.UUID, accessToken string) (*model.TableSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.TenantID == tenantID && s.AccessToken == accessToken {
			s := s
			return &s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

var _ repository.TableRepository = memTables{}

// ── Catalog repository ────────────────────────────────────────────────────────

type memCatalog struct{ *memStore }

func (r memCatalog) LockItemsTx(_ *gorm.DB, tenantID uuid.UUID, ids []uuid.UUID) ([]model.Item, error) {
	sorted := cloneSlice(ids)
	sortIDs(sorted)
	var out []model.Item
	for _, id := range sorted {
		it, ok := r.items[id]
		if !ok || it.TenantID != tenantID {
			continue
		}
		if it.CategoryID != nil {
			if c, ok := r.categories[*it.CategoryID]; ok {
				it.Category = &c
			}
		}
		out = append(out, it)
	}
	return out, nil
}

func (r memCatalog) ForeignItemIDsTx(_ *gorm.DB, tenantID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, id := range ids {
		if it, ok := r.items[id]; ok && it.TenantID != tenantID {
			out = append(out, id)
		}
	}
	sortIDs(out)
	return out, nil
}

func (r memCatalog) FindVariantTx(_ *gorm.DB, tenantID, id uuid.UUID) (*model.ItemVariant, error) {
	v, ok := r.variants[id]
	if !ok || v.TenantID != tenantID {
		return nil, gorm.ErrRecordNotFound
	}
	return &v, nil
}

func (r memCatalog) FindAddonsTx(_ *gorm.DB, tenantID uuid.UUID, ids []uuid.UUID) ([]model.Addon, error) {
	var out []model.Addon
	for _, id := range ids {
		if a, ok := r.addons[id]; ok && a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r memCatalog) DecrementStockTx(_ *gorm.DB, tenantID, itemID uuid.UUID, qty int) error {
	it, ok := r.items[itemID]
	if ok && it.TenantID == tenantID {
		it.CurrentStock -= qty
		r.items[itemID] = it
	}
	return nil
}

var _ repository.CatalogRepository = memCatalog{}

// ── Recipe repository ─────────────────────────────────────────────────────────

type memRecipes struct{ *memStore }

func (r memRecipes) FindByItemsTx(_ *gorm.DB, tenantID uuid.UUID, itemIDs []uuid.UUID) ([]model.Recipe, error) {
	want := map[uuid.UUID]bool{}
	for _, id := range itemIDs {
		want[id] = true
	}
	var out []model.Recipe
	for _, rc := range r.recipes {
		if rc.TenantID == tenantID && want[rc.ItemID] {
			out = append(out, rc)
		}
	}
	return out, nil
}

var _ repository.RecipeRepository = memRecipes{}

// ── Ingredient repository ─────────────────────────────────────────────────────

type memIngredients struct{ *memStore }

func (r memIngredients) LockTx(_ *gorm.DB, tenantID uuid.UUID, ids []uuid.UUID) ([]model.Ingredient, error) {
	sorted := cloneSlice(ids)
	sortIDs(sorted)
	var out []model.Ingredient
	for _, id := range sorted {
		if ing, ok := r.ingredients[id]; ok && ing.TenantID == tenantID {
			out = append(out, ing)
		}
	}
	return out, nil
}

func (r memIngredients) UpdateStockTx(_ *gorm.DB, tenantID, id uuid.UUID, delta decimal.Decimal) error {
	ing, ok := r.ingredients[id]
	if ok && ing.TenantID == tenantID {
		ing.CurrentStock = ing.CurrentStock.Add(delta)
		r.ingredients[id] = ing
	}
	return nil
}

func (r memIngredients) CreateMovementTx(_ *gorm.DB, m *model.StockMovement) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	r.movements = append(r.movements, *m)
	return nil
}

func (r memIngredients) ListLowStock(_ context.Context, tenantID uuid.UUID) ([]model.Ingredient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Ingredient
	for _, ing := range r.ingredients {
		if ing.TenantID == tenantID && ing.CurrentStock.LessThanOrEqual(ing.MinStock) {
			out = append(out, ing)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memIngredients) ListMovements(_ context.Context, tenantID uuid.UUID, f repository.MovementFilter) ([]model.StockMovement, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.StockMovement
	for _, m := range r.movements {
		if m.TenantID != tenantID {
			continue
		}
		if f.IngredientID != nil && m.IngredientID != *f.IngredientID {
			continue
		}
		if f.MovementType != "" && m.MovementType != f.MovementType {
			continue
		}
		if f.Reason != "" && m.Reason != f.Reason {
			continue
		}
		if ing, ok := r.ingredients[m.IngredientID]; ok {
			m.Ingredient = &ing
		}
		out = append(out, m)
	}
	return out, int64(len(out)), nil
}

var _ repository.IngredientRepository = memIngredients{}

// ── Order repository ──────────────────────────────────────────────────────────

type memOrders struct{ *memStore }

func (r memOrders) FindOpenBySessionTx(_ *gorm.DB, tenantID, sessionID uuid.UUID) (*model.Order, error) {
	for _, o := range r.orders {
		if o.TenantID == tenantID && o.SessionID != nil && *o.SessionID == sessionID && o.IsAppendable() {
			o := o
			return &o, nil
		}
	}
	return nil, nil
}

func (r memOrders) LockTx(tx *gorm.DB, tenantID, id uuid.UUID) (*model.Order, error) {
	return r.FindByIDTx(tx, tenantID, id)
}

func (r memOrders) FindByIDTx(_ *gorm.DB, tenantID, id uuid.UUID) (*model.Order, error) {
	o, ok := r.orders[id]
	if !ok || o.TenantID != tenantID {
		return nil, gorm.ErrRecordNotFound
	}
	return &o, nil
}

func (r memOrders) FindByID(_ context.Context, tenantID, id uuid.UUID) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.TenantID != tenantID {
		return nil, gorm.ErrRecordNotFound
	}
	return r.hydrate(o), nil
}

// hydrate attaches table and lines the way the gorm preloads do.
func (r memOrders) hydrate(o model.Order) *model.Order {
	if o.TableID != nil {
		if t, ok := r.tables[*o.TableID]; ok {
			o.Table = &t
		}
	}
	o.Items = nil
	for _, it := range r.orderItems {
		if it.OrderID != o.ID {
			continue
		}
		if item, ok := r.items[it.ItemID]; ok {
			if item.CategoryID != nil {
				if c, ok := r.categories[*item.CategoryID]; ok {
					item.Category = &c
				}
			}
			it.Item = &item
		}
		if it.VariantID != nil {
			if v, ok := r.variants[*it.VariantID]; ok {
				it.Variant = &v
			}
		}
		o.Items = append(o.Items, it)
	}
	return &o
}

func (r memOrders) CreateTx(_ *gorm.DB, o *model.Order) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	r.orders[o.ID] = *o
	return nil
}

func (r memOrders) CreateItemsTx(_ *gorm.DB, items []model.OrderItem) error {
	for _, it := range items {
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		it.CreatedAt = time.Now().UTC()
		r.orderItems = append(r.orderItems, it)
	}
	return nil
}

func (r memOrders) AddTotalTx(_ *gorm.DB, tenantID, id uuid.UUID, delta decimal.Decimal) error {
	o, ok := r.orders[id]
	if ok && o.TenantID == tenantID {
		o.TotalAmount = o.TotalAmount.Add(delta)
		o.InventoryDeducted = true
		r.orders[id] = o
	}
	return nil
}

func (r memOrders) UpdateStatusTx(_ *gorm.DB, tenantID, id uuid.UUID, from []string, to string, completedAt *time.Time) (bool, error) {
	o, ok := r.orders[id]
	if !ok || o.TenantID != tenantID {
		return false, nil
	}
	for _, f := range from {
		if o.Status == f {
			o.Status = to
			if completedAt != nil {
				at := *completedAt
				o.CompletedAt = &at
			}
			r.orders[id] = o
			return true, nil
		}
	}
	return false, nil
}

func (r memOrders) LockItemTx(_ *gorm.DB, tenantID, orderID, itemID uuid.UUID) (*model.OrderItem, error) {
	for _, it := range r.orderItems {
		if it.ID == itemID && it.OrderID == orderID && it.TenantID == tenantID {
			it := it
			return &it, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memOrders) UpdateItemStatusTx(_ *gorm.DB, tenantID, itemID uuid.UUID, from, to string) (bool, error) {
	for i, it := range r.orderItems {
		if it.ID == itemID && it.TenantID == tenantID && it.Status == from {
			r.orderItems[i].Status = to
			return true, nil
		}
	}
	return false, nil
}

func (r memOrders) ListByStatus(_ context.Context, tenantID uuid.UUID, statuses []string) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := map[string]bool{}
	for _, s := range statuses {
		want[s] = true
	}
	var out []model.Order
	for _, o := range r.orders {
		if o.TenantID == tenantID && want[o.Status] {
			out = append(out, *r.hydrate(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r memOrders) ListCompletedWithoutEntry(_ context.Context, after repository.OrderCursor, limit int) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	posted := map[string]bool{}
	for _, e := range r.entries {
		posted[e.TenantID.String()+e.Reference] = true
	}
	key := func(c repository.OrderCursor) string {
		return c.CompletedAt.UTC().Format("2006-01-02T15:04:05.000000000") + c.ID.String()
	}
	var out []model.Order
	for _, o := range r.orders {
		if o.Status != model.OrderCompleted || posted[o.TenantID.String()+service.OrderReference(o.ID)] {
			continue
		}
		if after.ID != uuid.Nil && key(repository.CursorAfter(&o)) <= key(after) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		return key(repository.CursorAfter(&out[i])) < key(repository.CursorAfter(&out[j]))
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ repository.OrderRepository = memOrders{}

// ── Payment repository ────────────────────────────────────────────────────────

type memPayments struct{ *memStore }

func (r memPayments) CreateTx(_ *gorm.DB, p *model.Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now().UTC()
	r.payments = append(r.payments, *p)
	return nil
}

func (r memPayments) SumSuccessfulTx(_ *gorm.DB, tenantID, orderID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, p := range r.payments {
		if p.TenantID == tenantID && p.OrderID == orderID && p.Status == model.PaymentSuccess {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (r memPayments) ListByOrder(_ context.Context, tenantID, orderID uuid.UUID) ([]model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Payment
	for _, p := range r.payments {
		if p.TenantID == tenantID && p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

var _ repository.PaymentRepository = memPayments{}

// ── Accounting repository ─────────────────────────────────────────────────────

type memAccounting struct{ *memStore }

func (r memAccounting) EnsureAccountTx(_ *gorm.DB, a *model.Account) (*model.Account, error) {
	for _, acc := range r.accounts {
		if acc.TenantID == a.TenantID && acc.Code == a.Code {
			acc := acc
			return &acc, nil
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	r.accounts[a.ID] = *a
	acc := *a
	return &acc, nil
}

func (r memAccounting) FindEntryByReferenceTx(_ *gorm.DB, tenantID uuid.UUID, reference string) (*model.JournalEntry, error) {
	return r.findEntry(tenantID, reference), nil
}

func (r memAccounting) FindEntryByReference(_ context.Context, tenantID uuid.UUID, reference string) (*model.JournalEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findEntry(tenantID, reference), nil
}

func (r memAccounting) findEntry(tenantID uuid.UUID, reference string) *model.JournalEntry {
	for _, e := range r.entries {
		if e.TenantID == tenantID && e.Reference == reference {
			e := e
			e.Items = cloneSlice(e.Items)
			for i := range e.Items {
				if acc, ok := r.accounts[e.Items[i].AccountID]; ok {
					e.Items[i].Account = &acc
				}
			}
			return &e
		}
	}
	return nil
}

func (r memAccounting) CreateEntryTx(_ *gorm.DB, e *model.JournalEntry) error {
	if err := r.failCreateEntry; err != nil {
		r.failCreateEntry = nil
		return err
	}
	for _, existing := range r.entries {
		if existing.TenantID == e.TenantID && existing.Reference == e.Reference {
			return gorm.ErrDuplicatedKey
		}
	}
	r.entries = append(r.entries, *e)
	return nil
}

var _ repository.AccountingRepository = memAccounting{}

// ── Collaborator stubs ────────────────────────────────────────────────────────

// recordingPublisher captures events instead of sending them.
type recordingPublisher struct {
	mu      sync.Mutex
	kitchen []events.OrderUpdate
	prints  []events.PrintJob
}

func (p *recordingPublisher) PublishKitchen(_ context.Context, _ uuid.UUID, ev events.OrderUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kitchen = append(p.kitchen, ev)
}

func (p *recordingPublisher) PublishPrintJob(_ context.Context, _ uuid.UUID, job events.PrintJob) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prints = append(p.prints, job)
}

var _ service.EventPublisher = (*recordingPublisher)(nil)

// stubQueue records enqueued jobs.
type stubQueue struct {
	mu         sync.Mutex
	accounting []uuid.UUID
	receipts   []uuid.UUID
}

func (q *stubQueue) EnqueueAccounting(_ context.Context, _, orderID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.accounting = append(q.accounting, orderID)
	return nil
}

func (q *stubQueue) EnqueueReceipt(_ context.Context, _, orderID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.receipts = append(q.receipts, orderID)
	return nil
}

var _ service.JobQueue = (*stubQueue)(nil)

// recordingHook records the transitions it sees.
type recordingHook struct {
	name string
	mu   sync.Mutex
	seen []service.Transition
	log  *[]string
	err  error
}

func (h *recordingHook) Name() string { return h.name }

func (h *recordingHook) AfterCommit(_ context.Context, t service.Transition) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, t)
	if h.log != nil {
		*h.log = append(*h.log, h.name)
	}
	return h.err
}

func (h *recordingHook) transitions() []service.Transition {
	h.mu.Lock()
	defer h.mu.Unlock()
	return cloneSlice(h.seen)
}

// ── Engine fixture ────────────────────────────────────────────────────────────

type engine struct {
	store      *memStore
	tenantID   uuid.UUID
	actor      service.Actor
	sessions   service.SessionService
	inventory  service.InventoryService
	orders     service.OrderService
	payments   service.PaymentService
	accounting service.AccountingService
	hook       *recordingHook
}

func newEngine(opts service.OrderOptions, extraHooks ...service.Hook) *engine {
	st := newMemStore()
	tenantID := uuid.New()
	userID := uuid.New()
	hook := &recordingHook{name: "recorder"}
	hooks := append([]service.Hook{hook}, extraHooks...)

	sessions := service.NewSessionService(st, memTables{st})
	inventory := service.NewInventoryService(st, memIngredients{st}, memCatalog{st})
	return &engine{
		store:     st,
		tenantID:  tenantID,
		actor:     service.Actor{TenantID: tenantID, UserID: &userID, Name: "Alex", Role: "waiter"},
		sessions:  sessions,
		inventory: inventory,
		orders: service.NewOrderService(st, memOrders{st}, memTables{st}, memCatalog{st},
			service.NewRecipeResolver(memRecipes{st}), inventory, hooks, opts),
		payments:   service.NewPaymentService(st, memOrders{st}, memTables{st}, memPayments{st}, sessions, hooks),
		accounting: service.NewAccountingService(st, memOrders{st}, memAccounting{st}),
		hook:       hook,
	}
}
