package relations

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	EventBus "github.com/asaskevich/EventBus"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talkincode/storefront/internal/apperr"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := store.OpenBolt(filepath.Join(t.TempDir(), "relations.db"))
	require.NoError(t, err)
	st, err := store.NewBoltStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func createCustomer(t *testing.T, st *store.Store, email string) *domain.Customer {
	t.Helper()
	c := &domain.Customer{Email: email, PasswordHash: "x", Orders: domain.RefList{}}
	require.NoError(t, st.Customers.Create(context.Background(), c))
	return c
}

func createItem(t *testing.T, st *store.Store, name string) *domain.Item {
	t.Helper()
	i := &domain.Item{Name: name, Price: 9.5, Reviews: domain.RefList{}}
	require.NoError(t, st.Items.Create(context.Background(), i))
	return i
}

func rating(v float64) *float64 { return &v }

func count[T any](t *testing.T, c store.Collection[T]) int64 {
	t.Helper()
	n, err := c.Count(context.Background())
	require.NoError(t, err)
	return n
}

// failingCustomers fails every Save after the wrapped collection's other
// operations succeed.
type failingCustomers struct {
	store.CustomerCollection
}

func (f *failingCustomers) Save(ctx context.Context, c *domain.Customer) error {
	return errors.New("write timeout")
}

func TestAttachThenListOrders(t *testing.T) {
	st := newTestStore(t)
	m := NewManager(st, nil)
	ctx := context.Background()
	c := createCustomer(t, st, "a@b.com")

	first, err := m.AttachOrder(ctx, c.ID, OrderDraft{Title: "first", Items: domain.LineItems{{"sku": "A"}}})
	require.NoError(t, err)
	second, err := m.AttachOrder(ctx, c.ID, OrderDraft{Title: "second"})
	require.NoError(t, err)
	assert.False(t, second.Date.IsZero(), "missing date defaults to now")
	assert.NotNil(t, second.Items)

	orders, err := m.ListOrders(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, first.ID, orders[0].ID)
	assert.Equal(t, second.ID, orders[1].ID)

	stored, err := st.Customers.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RefList{first.ID, second.ID}, stored.Orders)
}

func TestAttachOrderUnknownCustomer(t *testing.T) {
	st := newTestStore(t)
	m := NewManager(st, nil)

	_, err := m.AttachOrder(context.Background(), 42, OrderDraft{Title: "x"})

	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Zero(t, count(t, st.Orders))
}

func TestListOrdersUnknownCustomer(t *testing.T) {
	m := NewManager(newTestStore(t), nil)

	_, err := m.ListOrders(context.Background(), 42)

	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestDetachOrder(t *testing.T) {
	st := newTestStore(t)
	m := NewManager(st, nil)
	ctx := context.Background()
	c := createCustomer(t, st, "a@b.com")
	keep, err := m.AttachOrder(ctx, c.ID, OrderDraft{Title: "keep"})
	require.NoError(t, err)
	drop, err := m.AttachOrder(ctx, c.ID, OrderDraft{Title: "drop"})
	require.NoError(t, err)

	require.NoError(t, m.DetachOrder(ctx, c.ID, drop.ID))

	_, err = st.Orders.FindByID(ctx, drop.ID)
	assert.True(t, store.IsNotFound(err))
	stored, err := st.Customers.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RefList{keep.ID}, stored.Orders)
}

func TestDetachOrderNotAssociated(t *testing.T) {
	st := newTestStore(t)
	m := NewManager(st, nil)
	ctx := context.Background()
	owner := createCustomer(t, st, "owner@b.com")
	other := createCustomer(t, st, "other@b.com")
	order, err := m.AttachOrder(ctx, owner.ID, OrderDraft{Title: "mine"})
	require.NoError(t, err)

	err = m.DetachOrder(ctx, other.ID, order.ID)

	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, "Order not found for the customer", apperr.Message(err))
	assert.EqualValues(t, 1, count(t, st.Orders))
	stored, err := st.Customers.FindByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RefList{order.ID}, stored.Orders)
}

func TestDetachRemovesOnlyFirstOccurrence(t *testing.T) {
	st := newTestStore(t)
	m := NewManager(st, nil)
	ctx := context.Background()
	c := createCustomer(t, st, "a@b.com")
	c.Orders = domain.RefList{5, 6, 5}
	require.NoError(t, st.Customers.Save(ctx, c))

	require.NoError(t, m.DetachOrder(ctx, c.ID, 5))

	stored, err := st.Customers.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RefList{6, 5}, stored.Orders)
}

func TestAttachOrderSaveFailureLeavesOrphan(t *testing.T) {
	st := newTestStore(t)
	c := createCustomer(t, st, "a@b.com")
	st.Customers = &failingCustomers{st.Customers}
	m := NewManager(st, nil)

	_, err := m.AttachOrder(context.Background(), c.ID, OrderDraft{Title: "lost"})

	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.EqualValues(t, 1, count(t, st.Orders), "the created order is not rolled back")
	stored, err := st.Customers.FindByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Orders)
}

func TestDetachOrderSaveFailureLeavesDanglingReference(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	c := createCustomer(t, st, "a@b.com")
	order, err := NewManager(st, nil).AttachOrder(ctx, c.ID, OrderDraft{Title: "gone"})
	require.NoError(t, err)

	st.Customers = &failingCustomers{st.Customers}
	err = NewManager(st, nil).DetachOrder(ctx, c.ID, order.ID)

	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Zero(t, count(t, st.Orders))
	stored, err := st.Customers.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RefList{order.ID}, stored.Orders)
}

func TestConcurrentAttachKeepsEveryReference(t *testing.T) {
	st := newTestStore(t)
	m := NewManager(st, nil)
	ctx := context.Background()
	c := createCustomer(t, st, "a@b.com")

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.AttachOrder(ctx, c.ID, OrderDraft{Title: "burst"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := st.Customers.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Orders, n)
}

func TestAttachReviewRatingBounds(t *testing.T) {
	tests := []struct {
		name   string
		rating *float64
		ok     bool
	}{
		{"upper bound", rating(5), true},
		{"lower bound", rating(0), true},
		{"fraction", rating(3.5), true},
		{"above range", rating(5.5), false},
		{"negative", rating(-1), false},
		{"not numeric", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestStore(t)
			m := NewManager(st, nil)
			item := createItem(t, st, "lamp")

			review, err := m.AttachReview(context.Background(), item.ID, ReviewDraft{Rating: tt.rating, Comment: "fine"})

			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, *tt.rating, review.Rating)
				assert.EqualValues(t, 1, count(t, st.Reviews))
				return
			}
			assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
			assert.Zero(t, count(t, st.Reviews))
		})
	}
}

func TestAttachReviewRequiresComment(t *testing.T) {
	st := newTestStore(t)
	m := NewManager(st, nil)
	item := createItem(t, st, "lamp")

	_, err := m.AttachReview(context.Background(), item.ID, ReviewDraft{Rating: rating(4), Comment: "  "})

	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
	assert.Zero(t, count(t, st.Reviews))
}

func TestAttachReviewChecksItemFirst(t *testing.T) {
	m := NewManager(newTestStore(t), nil)

	_, err := m.AttachReview(context.Background(), 42, ReviewDraft{Rating: rating(9)})

	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestBulkItemDeleteLeavesReviews(t *testing.T) {
	st := newTestStore(t)
	m := NewManager(st, nil)
	ctx := context.Background()
	item := createItem(t, st, "lamp")

	review, err := m.AttachReview(ctx, item.ID, ReviewDraft{Rating: rating(4), Comment: "good"})
	require.NoError(t, err)

	reviews, err := m.ListReviews(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, review.ID, reviews[0].ID)
	assert.Equal(t, "good", reviews[0].Comment)

	n, err := m.DeleteAllItems(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	orphan, err := st.Reviews.FindByID(ctx, review.ID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, orphan.Rating)
}

func TestBulkCustomerDeleteLeavesOrders(t *testing.T) {
	st := newTestStore(t)
	m := NewManager(st, nil)
	ctx := context.Background()
	c := createCustomer(t, st, "a@b.com")
	_, err := m.AttachOrder(ctx, c.ID, OrderDraft{Title: "x"})
	require.NoError(t, err)

	_, err = m.DeleteAllCustomers(ctx)
	require.NoError(t, err)

	assert.Zero(t, count[domain.Customer](t, st.Customers))
	assert.EqualValues(t, 1, count(t, st.Orders))
}

func TestDetachReview(t *testing.T) {
	st := newTestStore(t)
	m := NewManager(st, nil)
	ctx := context.Background()
	item := createItem(t, st, "lamp")
	review, err := m.AttachReview(ctx, item.ID, ReviewDraft{Rating: rating(2), Comment: "meh"})
	require.NoError(t, err)

	require.NoError(t, m.DetachReview(ctx, item.ID, review.ID))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(m.DetachReview(ctx, item.ID, review.ID)))

	reviews, err := m.ListReviews(ctx, item.ID)
	require.NoError(t, err)
	assert.Empty(t, reviews)
	assert.Zero(t, count(t, st.Reviews))
}

func TestEventsArePublished(t *testing.T) {
	st := newTestStore(t)
	bus := EventBus.New()
	var got []Event
	for _, topic := range Topics {
		require.NoError(t, bus.Subscribe(topic, func(ev Event) { got = append(got, ev) }))
	}
	m := NewManager(st, bus)
	ctx := context.Background()
	c := createCustomer(t, st, "a@b.com")

	order, err := m.AttachOrder(ctx, c.ID, OrderDraft{Title: "x"})
	require.NoError(t, err)
	require.NoError(t, m.DetachOrder(ctx, c.ID, order.ID))
	_, err = m.AttachOrder(ctx, 42, OrderDraft{})
	require.Error(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, TopicOrderAttached, got[0].Topic)
	assert.Equal(t, order.ID, got[0].ChildID)
	assert.Equal(t, TopicOrderDetached, got[1].Topic)
	assert.WithinDuration(t, time.Now(), got[1].At, time.Minute)
}

func TestUpdateCustomerKeepsConcurrentOrders(t *testing.T) {
	st := newTestStore(t)
	m := NewManager(st, nil)
	ctx := context.Background()
	c := createCustomer(t, st, "a@b.com")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := m.AttachOrder(ctx, c.ID, OrderDraft{Title: "o"})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := m.UpdateCustomer(ctx, c.ID, func(c *domain.Customer) error {
				c.Name = "renamed"
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := st.Customers.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Len(t, got.Orders, 10)
}

func TestUpdateCustomerAbortsOnError(t *testing.T) {
	st := newTestStore(t)
	m := NewManager(st, nil)
	ctx := context.Background()
	c := createCustomer(t, st, "a@b.com")

	_, err := m.UpdateCustomer(ctx, c.ID, func(c *domain.Customer) error {
		c.Name = "never"
		return apperr.Unauthorized("Invalid old password")
	})
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	got, err := st.Customers.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Name)

	_, err = m.UpdateCustomer(ctx, 42, func(*domain.Customer) error { return nil })
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, "Customer not found", apperr.Message(err))
}

func TestDeleteCustomerLeavesOrders(t *testing.T) {
	st := newTestStore(t)
	bus := EventBus.New()
	m := NewManager(st, bus)
	ctx := context.Background()
	c := createCustomer(t, st, "a@b.com")
	_, err := m.AttachOrder(ctx, c.ID, OrderDraft{Title: "o"})
	require.NoError(t, err)

	var deletedEvents, purged []Event
	require.NoError(t, bus.Subscribe(TopicCustomerDeleted, func(e Event) { deletedEvents = append(deletedEvents, e) }))
	require.NoError(t, bus.Subscribe(TopicCustomersPurged, func(e Event) { purged = append(purged, e) }))

	deleted, err := m.DeleteCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, deleted.ID)
	assert.Len(t, deleted.Orders, 1)
	assert.EqualValues(t, 0, count[domain.Customer](t, st.Customers))
	assert.EqualValues(t, 1, count[domain.Order](t, st.Orders))
	require.Len(t, deletedEvents, 1)
	assert.Equal(t, c.ID, deletedEvents[0].ParentID)
	assert.Empty(t, purged, "a single delete is not a bulk purge")

	_, err = m.DeleteCustomer(ctx, c.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestUpdateAndDeleteItem(t *testing.T) {
	st := newTestStore(t)
	m := NewManager(st, nil)
	ctx := context.Background()
	i := createItem(t, st, "lamp")
	_, err := m.AttachReview(ctx, i.ID, ReviewDraft{Rating: rating(4), Comment: "ok"})
	require.NoError(t, err)

	updated, err := m.UpdateItem(ctx, i.ID, func(i *domain.Item) error {
		i.Price = 20
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 20.0, updated.Price)
	assert.Len(t, updated.Reviews, 1)

	deleted, err := m.DeleteItem(ctx, i.ID)
	require.NoError(t, err)
	assert.Equal(t, "lamp", deleted.Name)
	assert.EqualValues(t, 1, count[domain.Review](t, st.Reviews))

	_, err = m.UpdateItem(ctx, i.ID, func(*domain.Item) error { return nil })
	assert.Equal(t, "Item not found", apperr.Message(err))
}

func TestDeleteItemPublishesItemDeleted(t *testing.T) {
	st := newTestStore(t)
	bus := EventBus.New()
	m := NewManager(st, bus)
	i := createItem(t, st, "lamp")

	var topics []string
	for _, topic := range Topics {
		require.NoError(t, bus.Subscribe(topic, func(e Event) { topics = append(topics, e.Topic) }))
	}

	_, err := m.DeleteItem(context.Background(), i.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{TopicItemDeleted}, topics)
}

func TestCreateCustomerRejectsTakenEmail(t *testing.T) {
	st := newTestStore(t)
	m := NewManager(st, nil)
	ctx := context.Background()

	require.NoError(t, m.CreateCustomer(ctx, &domain.Customer{Email: "a@b.com", Orders: domain.RefList{}}))
	err := m.CreateCustomer(ctx, &domain.Customer{Email: "a@b.com", Orders: domain.RefList{}})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, "Email already in use", apperr.Message(err))
	assert.EqualValues(t, 1, count[domain.Customer](t, st.Customers))
}

func TestConcurrentCreateCustomerSameEmail(t *testing.T) {
	st := newTestStore(t)
	m := NewManager(st, nil)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := m.CreateCustomer(ctx, &domain.Customer{Email: "race@b.com", Orders: domain.RefList{}})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				created++
			} else if apperr.Is(err, apperr.KindConflict) {
				conflicts++
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, 15, conflicts)
	assert.EqualValues(t, 1, count[domain.Customer](t, st.Customers))
}

func TestUpdateCustomerEmailClash(t *testing.T) {
	st := newTestStore(t)
	m := NewManager(st, nil)
	ctx := context.Background()
	createCustomer(t, st, "taken@b.com")
	c := createCustomer(t, st, "a@b.com")

	_, err := m.UpdateCustomer(ctx, c.ID, func(c *domain.Customer) error {
		c.Email = "taken@b.com"
		return nil
	})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	got, err := st.Customers.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", got.Email)
}
