// Package relations maintains the customer→orders and item→reviews
// associations through application level multi-document writes.
//
// Attach and detach on the same parent are serialised inside the process so
// concurrent calls cannot lose each other's reference list changes. The
// writes themselves are not transactional: an attach that fails after the
// child is created leaves an orphan, a detach that fails after the child is
// deleted leaves a dangling reference. Bulk deletes never cascade.
package relations

import (
	"context"
	"strings"
	"time"

	EventBus "github.com/asaskevich/EventBus"

	"github.com/talkincode/storefront/internal/apperr"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/store"
)

// OrderDraft is the client supplied part of a new order.
type OrderDraft struct {
	Title string
	Date  time.Time
	Items domain.LineItems
}

// ReviewDraft is the client supplied part of a new review. A nil Rating
// means the payload carried no numeric rating.
type ReviewDraft struct {
	Rating  *float64 `json:"rating"`
	Comment string   `json:"comment"`
}

const emailInUse = "Email already in use"

type Manager struct {
	customers store.CustomerCollection
	orders    *relation[domain.Customer, domain.Order]
	reviews   *relation[domain.Item, domain.Review]
	locks     *keyedMutex
	bus       EventBus.Bus
}

// NewManager builds a manager over st. bus may be nil.
func NewManager(st *store.Store, bus EventBus.Bus) *Manager {
	locks := newKeyedMutex()
	return &Manager{
		customers: st.Customers,
		locks:     locks,
		orders: &relation[domain.Customer, domain.Order]{
			parentName:    "customer",
			childName:     "order",
			parents:       st.Customers,
			children:      st.Orders,
			refs:          func(c *domain.Customer) *domain.RefList { return &c.Orders },
			touch:         func(c *domain.Customer, t time.Time) { c.UpdatedAt = t },
			parentMissing: "Customer not found",
			childMissing:  "Order not found for the customer",
			locks:         locks,
		},
		reviews: &relation[domain.Item, domain.Review]{
			parentName:    "item",
			childName:     "review",
			parents:       st.Items,
			children:      st.Reviews,
			refs:          func(i *domain.Item) *domain.RefList { return &i.Reviews },
			touch:         func(i *domain.Item, t time.Time) { i.UpdatedAt = t },
			parentMissing: "Item not found",
			childMissing:  "Review not found for the item",
			locks:         locks,
		},
		bus: bus,
	}
}

// LockEmail serialises work that claims email, such as a registration or an
// email change. The returned function releases it.
func (m *Manager) LockEmail(email string) func() {
	return m.locks.Lock("email:" + email)
}

// CreateCustomer stores a new customer unless its email is already in use.
func (m *Manager) CreateCustomer(ctx context.Context, customer *domain.Customer) error {
	unlock := m.LockEmail(customer.Email)
	defer unlock()

	_, err := m.customers.FindByEmail(ctx, customer.Email)
	switch {
	case err == nil:
		return apperr.Conflict(emailInUse)
	case !store.IsNotFound(err):
		return apperr.Internal(err, "")
	}
	err = m.customers.Create(ctx, customer)
	if store.IsDuplicateEmail(err) {
		return apperr.Conflict(emailInUse)
	}
	if err != nil {
		return apperr.Internal(err, "Failed to create customer")
	}
	m.publish(Event{Topic: TopicCustomerCreated, ParentID: customer.ID})
	return nil
}

// AttachOrder creates an order and appends it to the customer's orders.
func (m *Manager) AttachOrder(ctx context.Context, customerID int64, draft OrderDraft) (*domain.Order, error) {
	order, err := m.orders.attach(ctx, customerID, func() (*domain.Order, error) {
		now := time.Now()
		o := &domain.Order{
			Title:     strings.TrimSpace(draft.Title),
			Date:      draft.Date,
			Items:     draft.Items,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if o.Date.IsZero() {
			o.Date = now
		}
		if o.Items == nil {
			o.Items = domain.LineItems{}
		}
		return o, nil
	})
	if err != nil {
		return nil, err
	}
	m.publish(Event{Topic: TopicOrderAttached, ParentID: customerID, ChildID: order.ID})
	return order, nil
}

// DetachOrder removes the order from the customer and deletes it.
func (m *Manager) DetachOrder(ctx context.Context, customerID, orderID int64) error {
	if err := m.orders.detach(ctx, customerID, orderID); err != nil {
		return err
	}
	m.publish(Event{Topic: TopicOrderDetached, ParentID: customerID, ChildID: orderID})
	return nil
}

// ListOrders returns the customer's orders in reference order.
func (m *Manager) ListOrders(ctx context.Context, customerID int64) ([]*domain.Order, error) {
	return m.orders.list(ctx, customerID)
}

// DeleteAllCustomers removes every customer; their orders remain stored.
func (m *Manager) DeleteAllCustomers(ctx context.Context) (int64, error) {
	n, err := m.orders.purge(ctx)
	if err != nil {
		return 0, err
	}
	m.publish(Event{Topic: TopicCustomersPurged, Count: n})
	return n, nil
}

// AttachReview validates the draft, creates the review and appends it to
// the item's reviews.
func (m *Manager) AttachReview(ctx context.Context, itemID int64, draft ReviewDraft) (*domain.Review, error) {
	review, err := m.reviews.attach(ctx, itemID, func() (*domain.Review, error) {
		if draft.Rating == nil || !domain.ValidRating(*draft.Rating) {
			return nil, apperr.InvalidInput("Invalid rating.")
		}
		comment := strings.TrimSpace(draft.Comment)
		if comment == "" {
			return nil, apperr.InvalidInput("Comment is required.")
		}
		return &domain.Review{
			Rating:    *draft.Rating,
			Comment:   comment,
			CreatedAt: time.Now(),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	m.publish(Event{Topic: TopicReviewAttached, ParentID: itemID, ChildID: review.ID})
	return review, nil
}

// DetachReview removes the review from the item and deletes it.
func (m *Manager) DetachReview(ctx context.Context, itemID, reviewID int64) error {
	if err := m.reviews.detach(ctx, itemID, reviewID); err != nil {
		return err
	}
	m.publish(Event{Topic: TopicReviewDetached, ParentID: itemID, ChildID: reviewID})
	return nil
}

// ListReviews returns the item's reviews in reference order.
func (m *Manager) ListReviews(ctx context.Context, itemID int64) ([]*domain.Review, error) {
	return m.reviews.list(ctx, itemID)
}

// DeleteAllItems removes every item; their reviews remain stored.
func (m *Manager) DeleteAllItems(ctx context.Context) (int64, error) {
	n, err := m.reviews.purge(ctx)
	if err != nil {
		return 0, err
	}
	m.publish(Event{Topic: TopicItemsPurged, Count: n})
	return n, nil
}

// UpdateCustomer applies fn to the stored customer and saves the result.
// An error from fn aborts the update.
func (m *Manager) UpdateCustomer(ctx context.Context, customerID int64, fn func(*domain.Customer) error) (*domain.Customer, error) {
	return m.orders.update(ctx, customerID, fn)
}

// DeleteCustomer removes one customer; its orders remain stored.
func (m *Manager) DeleteCustomer(ctx context.Context, customerID int64) (*domain.Customer, error) {
	customer, err := m.orders.remove(ctx, customerID)
	if err != nil {
		return nil, err
	}
	m.publish(Event{Topic: TopicCustomerDeleted, ParentID: customerID})
	return customer, nil
}

// UpdateItem applies fn to the stored item and saves the result.
func (m *Manager) UpdateItem(ctx context.Context, itemID int64, fn func(*domain.Item) error) (*domain.Item, error) {
	return m.reviews.update(ctx, itemID, fn)
}

// DeleteItem removes one item; its reviews remain stored.
func (m *Manager) DeleteItem(ctx context.Context, itemID int64) (*domain.Item, error) {
	item, err := m.reviews.remove(ctx, itemID)
	if err != nil {
		return nil, err
	}
	m.publish(Event{Topic: TopicItemDeleted, ParentID: itemID})
	return item, nil
}
