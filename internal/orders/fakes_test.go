package orders

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

type fakeProduct struct {
	name     string
	sellerID int64
	stock    int
	active   bool
}

type cartEntry struct {
	productID int64
	quantity  int
	price     decimal.Decimal
}

// fakeStore keeps everything in maps and restores a snapshot when a
// transaction function fails.
type fakeStore struct {
	mu       sync.Mutex
	products map[int64]fakeProduct
	carts    map[int64][]cartEntry
	orders   map[string]domain.Order
	payments map[string]domain.Payment
	refunds  []domain.Refund
	events   map[string]domain.PaymentEventType
	failAt   map[string]error
	commits  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products: map[int64]fakeProduct{},
		carts:    map[int64][]cartEntry{},
		orders:   map[string]domain.Order{},
		payments: map[string]domain.Payment{},
		events:   map[string]domain.PaymentEventType{},
		failAt:   map[string]error{},
	}
}

func (s *fakeStore) addProduct(id int64, name string, stock int) {
	s.products[id] = fakeProduct{name: name, sellerID: 100 + id, stock: stock, active: true}
}

func (s *fakeStore) addToCart(buyerID, productID int64, quantity int, price string) {
	s.carts[buyerID] = append(s.carts[buyerID], cartEntry{
		productID: productID,
		quantity:  quantity,
		price:     decimal.RequireFromString(price),
	})
}

func (s *fakeStore) stock(productID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[productID].stock
}

func (s *fakeStore) order(id string) domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id]
}

func (s *fakeStore) payment(orderID string) domain.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payments[orderID]
}

func (s *fakeStore) InTx(ctx context.Context, fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	products := maps.Clone(s.products)
	carts := maps.Clone(s.carts)
	orders := maps.Clone(s.orders)
	payments := maps.Clone(s.payments)
	refunds := slices.Clone(s.refunds)
	events := maps.Clone(s.events)

	if err := fn(&fakeTx{s: s}); err != nil {
		s.products, s.carts, s.orders = products, carts, orders
		s.payments, s.refunds, s.events = payments, refunds, events
		return err
	}

	s.commits++
	return nil
}

func (s *fakeStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (s *fakeStore) ListOrders(ctx context.Context, buyerID int64) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := []domain.Order{}
	for _, o := range s.orders {
		if o.BuyerID != nil && *o.BuyerID == buyerID {
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}

func (s *fakeStore) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	o.Status = status
	s.orders[id] = o
	return &o, nil
}

type fakeTx struct {
	s *fakeStore
}

func (t *fakeTx) fail(step string) error {
	return t.s.failAt[step]
}

func (t *fakeTx) CartLines(ctx context.Context, buyerID int64) ([]domain.CartLine, error) {
	var lines []domain.CartLine
	for _, entry := range t.s.carts[buyerID] {
		p, ok := t.s.products[entry.productID]
		if !ok {
			continue
		}
		lines = append(lines, domain.CartLine{
			ProductID:     entry.productID,
			ProductName:   p.name,
			Quantity:      entry.quantity,
			PriceSnapshot: entry.price,
			ProductActive: p.active,
			Stock:         p.stock,
			SellerID:      p.sellerID,
		})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines, nil
}

func (t *fakeTx) ClearCart(ctx context.Context, buyerID int64) error {
	if err := t.fail("ClearCart"); err != nil {
		return err
	}
	delete(t.s.carts, buyerID)
	return nil
}

func (t *fakeTx) ReserveStock(ctx context.Context, productID int64, quantity int) error {
	p, ok := t.s.products[productID]
	if !ok || !p.active || p.stock < quantity {
		return domain.ErrInsufficientStock
	}
	p.stock -= quantity
	t.s.products[productID] = p
	return nil
}

func (t *fakeTx) RestoreStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	p, ok := t.s.products[productID]
	if !ok {
		return false, nil
	}
	p.stock += quantity
	t.s.products[productID] = p
	return true, nil
}

func (t *fakeTx) CreateOrder(ctx context.Context, order *domain.Order) error {
	order.ID = uuid.New().String()
	for i := range order.Items {
		order.Items[i].ID = uuid.New().String()
	}
	order.UpdatedAt = order.CreatedAt

	stored := *order
	stored.Items = slices.Clone(order.Items)
	t.s.orders[order.ID] = stored
	return nil
}

func (t *fakeTx) LockOrder(ctx context.Context, id string) (*domain.Order, error) {
	o, ok := t.s.orders[id]
	if !ok {
		return nil, nil
	}
	o.Items = slices.Clone(o.Items)
	return &o, nil
}

func (t *fakeTx) LockOrderByIntent(ctx context.Context, intentID string) (*domain.Order, error) {
	for _, o := range t.s.orders {
		if o.PaymentIntentID != nil && *o.PaymentIntentID == intentID {
			o.Items = slices.Clone(o.Items)
			return &o, nil
		}
	}
	return nil, nil
}

func (t *fakeTx) SetPaymentIntent(ctx context.Context, orderID, intentID string) error {
	o := t.s.orders[orderID]
	o.PaymentIntentID = &intentID
	t.s.orders[orderID] = o
	return nil
}

func (t *fakeTx) SetOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	if err := t.fail("SetOrderStatus"); err != nil {
		return err
	}
	o := t.s.orders[orderID]
	o.Status = status
	t.s.orders[orderID] = o
	return nil
}

func (t *fakeTx) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	payment.ID = uuid.New().String()
	t.s.payments[payment.OrderID] = *payment
	return nil
}

func (t *fakeTx) PaymentForOrder(ctx context.Context, orderID string) (*domain.Payment, error) {
	p, ok := t.s.payments[orderID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t *fakeTx) SetPaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) error {
	p, ok := t.s.payments[orderID]
	if !ok {
		return nil
	}
	p.Status = status
	t.s.payments[orderID] = p
	return nil
}

func (t *fakeTx) CreateRefund(ctx context.Context, refund *domain.Refund) error {
	if err := t.fail("CreateRefund"); err != nil {
		return err
	}
	refund.ID = uuid.New().String()
	t.s.refunds = append(t.s.refunds, *refund)
	return nil
}

func (t *fakeTx) RecordEvent(ctx context.Context, eventID string, eventType domain.PaymentEventType) (bool, error) {
	if _, ok := t.s.events[eventID]; ok {
		return false, nil
	}
	t.s.events[eventID] = eventType
	return true, nil
}

type fakeGateway struct {
	mu              sync.Mutex
	intentErr       error
	refundErr       error
	refundSucceeded bool
	intents         []domain.IntentRequest
	cancelled       []string
	refunds         []domain.RefundRequest
	signed          map[string]domain.PaymentEvent
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{refundSucceeded: true, signed: map[string]domain.PaymentEvent{}}
}

func (g *fakeGateway) PublishableKey() string {
	return "pk_test_shopflow"
}

func (g *fakeGateway) CreateIntent(ctx context.Context, req domain.IntentRequest) (*domain.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.intents = append(g.intents, req)
	if g.intentErr != nil {
		return nil, g.intentErr
	}
	id := fmt.Sprintf("pi_%d", len(g.intents))
	return &domain.Intent{ID: id, ClientSecret: id + "_secret"}, nil
}

func (g *fakeGateway) CancelIntent(ctx context.Context, intentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cancelled = append(g.cancelled, intentID)
	return nil
}

func (g *fakeGateway) CreateRefund(ctx context.Context, req domain.RefundRequest) (*domain.ProcessorRefund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.refunds = append(g.refunds, req)
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	return &domain.ProcessorRefund{ID: fmt.Sprintf("re_%d", len(g.refunds)), Succeeded: g.refundSucceeded}, nil
}

// ParseEvent accepts only signatures registered with sign.
func (g *fakeGateway) ParseEvent(payload []byte, signature string) (*domain.PaymentEvent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	event, ok := g.signed[signature]
	if !ok {
		return nil, fmt.Errorf("%w: no signatures found matching the expected signature", domain.ErrInvalidSignature)
	}
	return &event, nil
}

func (g *fakeGateway) sign(event domain.PaymentEvent) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	signature := "t=1,v1=" + event.ID
	g.signed[signature] = event
	return signature
}

type publishedEvent struct {
	key       string
	eventType string
	event     domain.OrderEvent
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, key, eventType string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{key: key, eventType: eventType, event: event.(domain.OrderEvent)})
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.eventType)
	}
	return types
}

type fakeIdempotency struct {
	mu          sync.Mutex
	locks       map[string]bool
	values      map[string][]byte
	rememberErr error
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{locks: map[string]bool{}, values: map[string][]byte{}}
}

func (f *fakeIdempotency) TryLock(ctx context.Context, scope, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.locks[scope+key] {
		return false, nil
	}
	f.locks[scope+key] = true
	return true, nil
}

func (f *fakeIdempotency) Remember(ctx context.Context, scope, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.rememberErr != nil {
		return f.rememberErr
	}
	f.values[scope+key] = value
	return nil
}

func (f *fakeIdempotency) Recall(ctx context.Context, scope, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, ok := f.values[scope+key]
	return v, ok, nil
}

func (f *fakeIdempotency) locked(scope, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.locks[scope+key]
}

func (f *fakeIdempotency) Release(ctx context.Context, scope, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.locks, scope+key)
	return nil
}
