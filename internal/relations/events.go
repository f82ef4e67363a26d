package relations

import (
	"time"

	EventBus "github.com/asaskevich/EventBus"
)

const (
	TopicOrderAttached   = "order.attached"
	TopicOrderDetached   = "order.detached"
	TopicReviewAttached  = "review.attached"
	TopicReviewDetached  = "review.detached"
	TopicCustomerCreated = "customer.created"
	TopicCustomerDeleted = "customer.deleted"
	TopicItemDeleted     = "item.deleted"
	TopicCustomersPurged = "customers.purged"
	TopicItemsPurged     = "items.purged"
)

// Topics lists every topic the manager publishes.
var Topics = []string{
	TopicOrderAttached,
	TopicOrderDetached,
	TopicReviewAttached,
	TopicReviewDetached,
	TopicCustomerCreated,
	TopicCustomerDeleted,
	TopicItemDeleted,
	TopicCustomersPurged,
	TopicItemsPurged,
}

// Event describes a completed relationship change. Subscribers receive it as
// their only argument.
type Event struct {
	Topic    string
	ParentID int64
	ChildID  int64
	Count    int64
	At       time.Time
}

func (m *Manager) publish(ev Event) {
	if m.bus == nil {
		return
	}
	ev.At = time.Now()
	m.bus.Publish(ev.Topic, ev)
}

// Bus returns the bus events are published on, nil when disabled.
func (m *Manager) Bus() EventBus.Bus {
	return m.bus
}
