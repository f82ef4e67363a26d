// Package store provides the document collections the services persist to.
// Every call is atomic on its own; nothing spans several calls.
package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/talkincode/storefront/internal/domain"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicateEmail is returned when a customer would share its email
	// with another customer.
	ErrDuplicateEmail = errors.New("email already in use")
)

// Document is implemented by the pointer types of every stored entity.
type Document interface {
	TableName() string
	DocID() int64
	SetDocID(id int64)
}

type docPtr[T any] interface {
	*T
	Document
}

// Collection is a set of documents of one kind.
type Collection[T any] interface {
	FindByID(ctx context.Context, id int64) (*T, error)
	// FindByIDs expands a reference list: documents come back in the order of
	// ids, ids without a document are skipped.
	FindByIDs(ctx context.Context, ids []int64) ([]*T, error)
	// List returns documents ordered by id.
	List(ctx context.Context, offset, limit int) ([]*T, error)
	// Create stores a new document, assigning an id when it has none.
	Create(ctx context.Context, doc *T) error
	// Save replaces an existing document.
	Save(ctx context.Context, doc *T) error
	DeleteByID(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// CustomerCollection adds the credential lookup. Create and Save fail with
// ErrDuplicateEmail when the email belongs to another customer.
type CustomerCollection interface {
	Collection[domain.Customer]
	FindByEmail(ctx context.Context, email string) (*domain.Customer, error)
}

// Store groups the collections of one backend.
type Store struct {
	Kind      string
	Customers CustomerCollection
	Orders    Collection[domain.Order]
	Items     Collection[domain.Item]
	Reviews   Collection[domain.Review]

	migrate func(ctx context.Context) error
	reset   func(ctx context.Context) error
	close   func() error
}

// Migrate creates missing tables or buckets.
func (s *Store) Migrate(ctx context.Context) error {
	return s.migrate(ctx)
}

// Reset drops every collection and recreates it empty.
func (s *Store) Reset(ctx context.Context) error {
	return s.reset(ctx)
}

func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// IsNotFound reports whether err means a missing document.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateEmail reports whether err means an email collision.
func IsDuplicateEmail(err error) bool {
	return errors.Is(err, ErrDuplicateEmail)
}

// IDOf returns the id of a stored document.
func IDOf(doc interface{}) int64 {
	if d, ok := doc.(Document); ok {
		return d.DocID()
	}
	return 0
}

// Each pages through a collection in id order.
func Each[T any](ctx context.Context, c Collection[T], pageSize int, fn func(*T) error) error {
	if pageSize <= 0 {
		pageSize = 200
	}
	for offset := 0; ; offset += pageSize {
		docs, err := c.List(ctx, offset, pageSize)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			if err := fn(doc); err != nil {
				return err
			}
		}
		if len(docs) < pageSize {
			return nil
		}
	}
}

// orderByIDs arranges docs in the order of ids, dropping unknown ids and
// repeating documents referenced more than once.
func orderByIDs[T any, P docPtr[T]](ids []int64, docs []*T) []*T {
	byID := make(map[int64]*T, len(docs))
	for _, d := range docs {
		byID[P(d).DocID()] = d
	}
	out := make([]*T, 0, len(ids))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			out = append(out, d)
		}
	}
	return out
}
