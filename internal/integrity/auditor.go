// Package integrity scans the stored reference lists for the inconsistencies
// the non-transactional relationship writes can leave behind.
package integrity

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/store"
)

const (
	// KindDangling is a parent reference to a child that does not exist.
	KindDangling = "dangling"
	// KindOrphan is a child no parent references.
	KindOrphan = "orphan"
)

const (
	RelationCustomerOrders = "customer.orders"
	RelationItemReviews    = "item.reviews"
)

type Finding struct {
	Relation string `json:"relation"`
	Kind     string `json:"kind"`
	ParentID int64  `json:"parentId,string,omitempty"`
	ChildID  int64  `json:"childId,string"`
}

type Report struct {
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Parents    int64     `json:"parents"`
	Children   int64     `json:"children"`
	Findings   []Finding `json:"findings"`
}

// Dangling counts the dangling reference findings.
func (r *Report) Dangling() int {
	return r.count(KindDangling)
}

// Orphans counts the orphaned children.
func (r *Report) Orphans() int {
	return r.count(KindOrphan)
}

func (r *Report) count(kind string) int {
	n := 0
	for _, f := range r.Findings {
		if f.Kind == kind {
			n++
		}
	}
	return n
}

// Auditor reads the store only. It never repairs what it finds.
type Auditor struct {
	store    *store.Store
	pageSize int
}

func NewAuditor(st *store.Store) *Auditor {
	return &Auditor{store: st, pageSize: 200}
}

// Run audits both relationships and logs a summary.
func (a *Auditor) Run(ctx context.Context) (*Report, error) {
	report := &Report{StartedAt: time.Now(), Findings: make([]Finding, 0)}

	err := auditRelation[domain.Customer, domain.Order](ctx, report, RelationCustomerOrders, a.pageSize,
		a.store.Customers, a.store.Orders,
		func(c *domain.Customer) (int64, domain.RefList) { return c.ID, c.Orders })
	if err != nil {
		return nil, err
	}
	err = auditRelation[domain.Item, domain.Review](ctx, report, RelationItemReviews, a.pageSize,
		a.store.Items, a.store.Reviews,
		func(i *domain.Item) (int64, domain.RefList) { return i.ID, i.Reviews })
	if err != nil {
		return nil, err
	}

	report.FinishedAt = time.Now()
	zap.L().Info("integrity audit finished",
		zap.Int64("parents", report.Parents),
		zap.Int64("children", report.Children),
		zap.Int("dangling", report.Dangling()),
		zap.Int("orphans", report.Orphans()),
		zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)))
	return report, nil
}

func auditRelation[P any, C any](
	ctx context.Context,
	report *Report,
	name string,
	pageSize int,
	parents store.Collection[P],
	children store.Collection[C],
	refsOf func(*P) (int64, domain.RefList),
) error {
	referenced := make(map[int64]struct{})
	err := store.Each(ctx, parents, pageSize, func(p *P) error {
		report.Parents++
		parentID, refs := refsOf(p)
		if len(refs) == 0 {
			return nil
		}
		found, err := children.FindByIDs(ctx, refs)
		if err != nil {
			return err
		}
		present := make(map[int64]struct{}, len(found))
		for _, c := range found {
			present[store.IDOf(c)] = struct{}{}
		}
		for _, id := range refs {
			referenced[id] = struct{}{}
			if _, ok := present[id]; !ok {
				report.Findings = append(report.Findings, Finding{
					Relation: name, Kind: KindDangling, ParentID: parentID, ChildID: id,
				})
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return store.Each(ctx, children, pageSize, func(c *C) error {
		report.Children++
		id := store.IDOf(c)
		if _, ok := referenced[id]; !ok {
			report.Findings = append(report.Findings, Finding{
				Relation: name, Kind: KindOrphan, ChildID: id,
			})
		}
		return nil
	})
}
