package store

import (
	"context"
	"encoding/binary"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/talkincode/storefront/internal/domain"
)

// boltCodec encodes documents by Go field name so that fields hidden from
// clients with `json:"-"` are still persisted.
var boltCodec = jsoniter.Config{
	TagKey:                 "bolt",
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

// OpenBolt opens (creating when missing) a bolt database file.
func OpenBolt(path string) (*bolt.DB, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open boltdb %s", path)
	}
	return db, nil
}

// BoltCollection stores one entity kind in its own bucket, keyed by the
// big-endian document id.
type BoltCollection[T any, P docPtr[T]] struct {
	db     *bolt.DB
	bucket []byte
}

func NewBoltCollection[T any, P docPtr[T]](db *bolt.DB) *BoltCollection[T, P] {
	var zero T
	return &BoltCollection[T, P]{db: db, bucket: []byte(P(&zero).TableName())}
}

func idKey(id int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func (c *BoltCollection[T, P]) decode(v []byte) (*T, error) {
	var doc T
	if err := boltCodec.Unmarshal(v, &doc); err != nil {
		return nil, errors.Wrapf(err, "decode %s document", c.bucket)
	}
	return &doc, nil
}

func (c *BoltCollection[T, P]) put(tx *bolt.Tx, doc *T) error {
	data, err := boltCodec.Marshal(doc)
	if err != nil {
		return errors.Wrapf(err, "encode %s document", c.bucket)
	}
	return tx.Bucket(c.bucket).Put(idKey(P(doc).DocID()), data)
}

func (c *BoltCollection[T, P]) initialize(tx *bolt.Tx) error {
	_, err := tx.CreateBucketIfNotExists(c.bucket)
	return err
}

func (c *BoltCollection[T, P]) FindByID(ctx context.Context, id int64) (*T, error) {
	var doc *T
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(c.bucket).Get(idKey(id))
		if v == nil {
			return ErrNotFound
		}
		d, err := c.decode(v)
		if err != nil {
			return err
		}
		doc = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *BoltCollection[T, P]) FindByIDs(ctx context.Context, ids []int64) ([]*T, error) {
	docs := make([]*T, 0, len(ids))
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(c.bucket)
		for _, id := range ids {
			v := b.Get(idKey(id))
			if v == nil {
				continue
			}
			d, err := c.decode(v)
			if err != nil {
				return err
			}
			docs = append(docs, d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *BoltCollection[T, P]) List(ctx context.Context, offset, limit int) ([]*T, error) {
	docs := make([]*T, 0)
	err := c.db.View(func(tx *bolt.Tx) error {
		cur := tx.Bucket(c.bucket).Cursor()
		skipped := 0
		for k, v := cur.First(); k != nil; k, v = cur.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			if limit > 0 && len(docs) >= limit {
				break
			}
			d, err := c.decode(v)
			if err != nil {
				return err
			}
			docs = append(docs, d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *BoltCollection[T, P]) Create(ctx context.Context, doc *T) error {
	if P(doc).DocID() == 0 {
		P(doc).SetDocID(NextID())
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(c.bucket).Get(idKey(P(doc).DocID())) != nil {
			return errors.Errorf("duplicate %s id %d", c.bucket, P(doc).DocID())
		}
		return c.put(tx, doc)
	})
}

func (c *BoltCollection[T, P]) Save(ctx context.Context, doc *T) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(c.bucket).Get(idKey(P(doc).DocID())) == nil {
			return ErrNotFound
		}
		return c.put(tx, doc)
	})
}

func (c *BoltCollection[T, P]) DeleteByID(ctx context.Context, id int64) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(c.bucket)
		key := idKey(id)
		if b.Get(key) == nil {
			return ErrNotFound
		}
		return b.Delete(key)
	})
}

func (c *BoltCollection[T, P]) DeleteAll(ctx context.Context) (int64, error) {
	var n int64
	err := c.db.Update(func(tx *bolt.Tx) error {
		n = int64(tx.Bucket(c.bucket).Stats().KeyN)
		if err := tx.DeleteBucket(c.bucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(c.bucket)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (c *BoltCollection[T, P]) Count(ctx context.Context) (int64, error) {
	var n int64
	err := c.db.View(func(tx *bolt.Tx) error {
		n = int64(tx.Bucket(c.bucket).Stats().KeyN)
		return nil
	})
	return n, err
}

// BoltCustomers adds the email lookup, a linear scan over the bucket. Email
// uniqueness is checked in the same write transaction as the insert or
// update, so concurrent writers cannot both claim an address.
type BoltCustomers struct {
	*BoltCollection[domain.Customer, *domain.Customer]
}

// findEmail scans the bucket of tx for email.
func (c *BoltCustomers) findEmail(tx *bolt.Tx, email string) (*domain.Customer, error) {
	var found *domain.Customer
	err := tx.Bucket(c.bucket).ForEach(func(k, v []byte) error {
		if found != nil {
			return nil
		}
		d, err := c.decode(v)
		if err != nil {
			return err
		}
		if d.Email == email {
			found = d
		}
		return nil
	})
	return found, err
}

func (c *BoltCustomers) FindByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	var found *domain.Customer
	err := c.db.View(func(tx *bolt.Tx) (err error) {
		found, err = c.findEmail(tx, email)
		return err
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (c *BoltCustomers) Create(ctx context.Context, doc *domain.Customer) error {
	if doc.ID == 0 {
		doc.ID = NextID()
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(c.bucket).Get(idKey(doc.ID)) != nil {
			return errors.Errorf("duplicate %s id %d", c.bucket, doc.ID)
		}
		other, err := c.findEmail(tx, doc.Email)
		if err != nil {
			return err
		}
		if other != nil {
			return ErrDuplicateEmail
		}
		return c.put(tx, doc)
	})
}

func (c *BoltCustomers) Save(ctx context.Context, doc *domain.Customer) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(c.bucket).Get(idKey(doc.ID)) == nil {
			return ErrNotFound
		}
		other, err := c.findEmail(tx, doc.Email)
		if err != nil {
			return err
		}
		if other != nil && other.ID != doc.ID {
			return ErrDuplicateEmail
		}
		return c.put(tx, doc)
	})
}

type boltBucket interface {
	initialize(tx *bolt.Tx) error
}

// NewBoltStore wraps an open bolt database and creates missing buckets.
func NewBoltStore(db *bolt.DB) (*Store, error) {
	customers := NewBoltCollection[domain.Customer](db)
	orders := NewBoltCollection[domain.Order](db)
	items := NewBoltCollection[domain.Item](db)
	reviews := NewBoltCollection[domain.Review](db)
	buckets := []boltBucket{customers, orders, items, reviews}

	migrate := func(ctx context.Context) error {
		return db.Update(func(tx *bolt.Tx) error {
			for _, b := range buckets {
				if err := b.initialize(tx); err != nil {
					return err
				}
			}
			return nil
		})
	}
	s := &Store{
		Kind:      "bolt",
		Customers: &BoltCustomers{customers},
		Orders:    orders,
		Items:     items,
		Reviews:   reviews,
		migrate:   migrate,
		reset: func(ctx context.Context) error {
			err := db.Update(func(tx *bolt.Tx) error {
				for _, t := range domain.Tables {
					name := []byte(t.(Document).TableName())
					if tx.Bucket(name) == nil {
						continue
					}
					if err := tx.DeleteBucket(name); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			return migrate(ctx)
		},
		close: db.Close,
	}
	if err := s.Migrate(context.Background()); err != nil {
		return nil, errors.Wrap(err, "unable to initialize boltdb buckets")
	}
	return s, nil
}
