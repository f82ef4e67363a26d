package relations

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/talkincode/storefront/internal/apperr"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/store"
)

// relation keeps a one-to-many association whose only record is the
// reference list on the parent document. Writes to the two collections are
// separate calls; a failure between them is logged and never rolled back.
type relation[P any, C any] struct {
	parentName    string
	childName     string
	parents       store.Collection[P]
	children      store.Collection[C]
	refs          func(*P) *domain.RefList
	touch         func(*P, time.Time)
	parentMissing string
	childMissing  string
	locks         *keyedMutex
}

func (r *relation[P, C]) lock(parentID int64) func() {
	return r.locks.Lock(r.parentName + ":" + strconv.FormatInt(parentID, 10))
}

func (r *relation[P, C]) load(ctx context.Context, parentID int64) (*P, error) {
	parent, err := r.parents.FindByID(ctx, parentID)
	if store.IsNotFound(err) {
		return nil, apperr.NotFound(r.parentMissing)
	}
	if err != nil {
		return nil, apperr.Internal(err, "Failed to load "+r.parentName)
	}
	return parent, nil
}

// attach creates the child returned by build and appends its id to the
// parent. build runs after the parent lookup and may reject the input.
func (r *relation[P, C]) attach(ctx context.Context, parentID int64, build func() (*C, error)) (*C, error) {
	unlock := r.lock(parentID)
	defer unlock()

	parent, err := r.load(ctx, parentID)
	if err != nil {
		return nil, err
	}
	child, err := build()
	if err != nil {
		return nil, err
	}
	if err := r.children.Create(ctx, child); err != nil {
		return nil, apperr.Internal(err, "Failed to create "+r.childName)
	}

	childID := store.IDOf(child)
	refs := r.refs(parent)
	*refs = append(*refs, childID)
	r.touch(parent, time.Now())
	if err := r.parents.Save(ctx, parent); err != nil {
		zap.L().Error("child created but parent reference not saved",
			zap.String("parent", r.parentName),
			zap.Int64("parent_id", parentID),
			zap.Int64("child_id", childID),
			zap.Error(err))
		return nil, apperr.Internal(err, "Failed to save "+r.parentName)
	}
	return child, nil
}

// detach removes the first occurrence of childID from the parent, deletes
// the child document and then saves the parent.
func (r *relation[P, C]) detach(ctx context.Context, parentID, childID int64) error {
	unlock := r.lock(parentID)
	defer unlock()

	parent, err := r.load(ctx, parentID)
	if err != nil {
		return err
	}
	refs := r.refs(parent)
	idx := refs.Index(childID)
	if idx < 0 {
		return apperr.NotFound(r.childMissing)
	}
	*refs = refs.Without(idx)

	// A child that is already gone only leaves the reference to clean up.
	if err := r.children.DeleteByID(ctx, childID); err != nil && !store.IsNotFound(err) {
		return apperr.Internal(err, "Failed to delete "+r.childName)
	}

	r.touch(parent, time.Now())
	if err := r.parents.Save(ctx, parent); err != nil {
		zap.L().Error("child deleted but parent still references it",
			zap.String("parent", r.parentName),
			zap.Int64("parent_id", parentID),
			zap.Int64("child_id", childID),
			zap.Error(err))
		return apperr.Internal(err, "Failed to save "+r.parentName)
	}
	return nil
}

// list hydrates the parent's reference list. Dangling references are
// skipped.
func (r *relation[P, C]) list(ctx context.Context, parentID int64) ([]*C, error) {
	parent, err := r.load(ctx, parentID)
	if err != nil {
		return nil, err
	}
	children, err := r.children.FindByIDs(ctx, *r.refs(parent))
	if err != nil {
		return nil, apperr.Internal(err, "Failed to load "+r.childName+"s")
	}
	return children, nil
}

// purge deletes every parent. Children are left in place.
func (r *relation[P, C]) purge(ctx context.Context) (int64, error) {
	n, err := r.parents.DeleteAll(ctx)
	if err != nil {
		return 0, apperr.Internal(err, "Failed to delete "+r.parentName+"s")
	}
	return n, nil
}

// update applies fn to the current parent under the parent lock, so that
// field edits cannot overwrite a concurrent change to the reference list.
func (r *relation[P, C]) update(ctx context.Context, parentID int64, fn func(*P) error) (*P, error) {
	unlock := r.lock(parentID)
	defer unlock()

	parent, err := r.load(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if err := fn(parent); err != nil {
		return nil, err
	}
	r.touch(parent, time.Now())
	err = r.parents.Save(ctx, parent)
	if store.IsNotFound(err) {
		return nil, apperr.NotFound(r.parentMissing)
	}
	if store.IsDuplicateEmail(err) {
		return nil, apperr.Conflict(emailInUse)
	}
	if err != nil {
		return nil, apperr.Internal(err, "Failed to save "+r.parentName)
	}
	return parent, nil
}

// remove deletes one parent and returns it. Its children are left in place.
func (r *relation[P, C]) remove(ctx context.Context, parentID int64) (*P, error) {
	unlock := r.lock(parentID)
	defer unlock()

	parent, err := r.load(ctx, parentID)
	if err != nil {
		return nil, err
	}
	err = r.parents.DeleteByID(ctx, parentID)
	if store.IsNotFound(err) {
		return nil, apperr.NotFound(r.parentMissing)
	}
	if err != nil {
		return nil, apperr.Internal(err, "Failed to delete "+r.parentName)
	}
	return parent, nil
}
