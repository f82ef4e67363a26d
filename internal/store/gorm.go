package store

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/talkincode/storefront/internal/domain"
)

// GormCollection is the GORM implementation of Collection
type GormCollection[T any, P docPtr[T]] struct {
	db *gorm.DB
}

// NewGormCollection creates a new GORM-based collection
func NewGormCollection[T any, P docPtr[T]](db *gorm.DB) *GormCollection[T, P] {
	return &GormCollection[T, P]{db: db}
}

func (r *GormCollection[T, P]) FindByID(ctx context.Context, id int64) (*T, error) {
	var doc T
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *GormCollection[T, P]) FindByIDs(ctx context.Context, ids []int64) ([]*T, error) {
	if len(ids) == 0 {
		return []*T{}, nil
	}
	var docs []*T
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&docs).Error; err != nil {
		return nil, err
	}
	return orderByIDs[T, P](ids, docs), nil
}

func (r *GormCollection[T, P]) List(ctx context.Context, offset, limit int) ([]*T, error) {
	var docs []*T
	err := r.db.WithContext(ctx).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&docs).Error
	return docs, err
}

func (r *GormCollection[T, P]) Create(ctx context.Context, doc *T) error {
	if P(doc).DocID() == 0 {
		P(doc).SetDocID(NextID())
	}
	return r.db.WithContext(ctx).Create(doc).Error
}

// Save writes every column of an existing row. Unlike gorm's Save it never
// inserts a row that has been deleted in the meantime.
func (r *GormCollection[T, P]) Save(ctx context.Context, doc *T) error {
	res := r.db.WithContext(ctx).Model(doc).Select("*").Updates(doc)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormCollection[T, P]) DeleteByID(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(new(T))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormCollection[T, P]) DeleteAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Where("1 = 1").Delete(new(T))
	return res.RowsAffected, res.Error
}

func (r *GormCollection[T, P]) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(new(T)).Count(&total).Error
	return total, err
}

// GormCustomers adds the email lookup to the customer collection. The email
// column carries a unique index; the lookup inside the write transaction
// turns the common collision into ErrDuplicateEmail before the index does.
type GormCustomers struct {
	*GormCollection[domain.Customer, *domain.Customer]
}

func (r *GormCustomers) FindByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	var c domain.Customer
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// emailTaken reports whether a customer other than id owns email.
func emailTaken(tx *gorm.DB, email string, id int64) (bool, error) {
	var total int64
	err := tx.Model(&domain.Customer{}).Where("email = ? AND id <> ?", email, id).Count(&total).Error
	return total > 0, err
}

func duplicateEmail(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateEmail
	}
	return err
}

func (r *GormCustomers) Create(ctx context.Context, doc *domain.Customer) error {
	if doc.ID == 0 {
		doc.ID = NextID()
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := emailTaken(tx, doc.Email, doc.ID)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateEmail
		}
		return tx.Create(doc).Error
	})
	return duplicateEmail(err)
}

func (r *GormCustomers) Save(ctx context.Context, doc *domain.Customer) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := emailTaken(tx, doc.Email, doc.ID)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateEmail
		}
		res := tx.Model(doc).Select("*").Updates(doc)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	return duplicateEmail(err)
}

// NewGormStore wraps a connected database.
func NewGormStore(kind string, db *gorm.DB) *Store {
	return &Store{
		Kind:      kind,
		Customers: &GormCustomers{NewGormCollection[domain.Customer](db)},
		Orders:    NewGormCollection[domain.Order](db),
		Items:     NewGormCollection[domain.Item](db),
		Reviews:   NewGormCollection[domain.Review](db),
		migrate: func(ctx context.Context) error {
			return db.WithContext(ctx).Migrator().AutoMigrate(domain.Tables...)
		},
		reset: func(ctx context.Context) error {
			m := db.WithContext(ctx).Migrator()
			if err := m.DropTable(domain.Tables...); err != nil {
				return err
			}
			return m.AutoMigrate(domain.Tables...)
		},
		close: func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	}
}
