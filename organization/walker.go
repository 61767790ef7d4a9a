package organization

import (
	"context"
	"slices"

	"github.com/tiagossm/Compia20251207-sub001/errors"

	"gorm.io/gorm"
)

// MaxDepth bounds every hierarchy traversal.
const MaxDepth = 5

// Walker reads the organization tree one level at a time.
type Walker struct {
	db *gorm.DB
}

func NewWalker(db *gorm.DB) *Walker {
	return &Walker{db: db}
}

// Subsidiaries returns the ids of every direct child of orgID in ascending
// order, active or not, matching how the managed organization itself is
// scoped. It never recurses.
func (w *Walker) Subsidiaries(ctx context.Context, orgID int64) ([]int64, error) {
	var ids []int64
	err := w.db.WithContext(ctx).
		Model(&Organization{}).
		Where("parent_organization_id = ?", orgID).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "list subsidiaries failed", err)
	}
	return ids, nil
}

// Walk collects the descendants of rootID breadth-first, down to maxDepth
// levels (clamped to [1, MaxDepth]). The root itself is not included.
//
// A node reached twice means the stored tree is corrupt. The walk skips
// it, finishes, and returns what it collected together with a
// HierarchyIntegrityFault. Store errors abort with the partial result.
func (w *Walker) Walk(ctx context.Context, rootID int64, maxDepth int) ([]int64, error) {
	maxDepth = min(max(maxDepth, 1), MaxDepth)

	visited := map[int64]struct{}{rootID: {}}
	frontier := []int64{rootID}
	var (
		out   []int64
		fault error
	)

	for level := 0; level < maxDepth && len(frontier) > 0; level++ {
		var next []int64
		for _, parent := range frontier {
			children, err := w.Subsidiaries(ctx, parent)
			if err != nil {
				slices.Sort(out)
				return out, err
			}
			for _, child := range children {
				if _, seen := visited[child]; seen {
					if fault == nil {
						fault = errors.Wrapf(errors.ErrCodeHierarchyIntegrity, nil,
							"organization %d reached again below %d", child, parent).
							WithDetail("organization_id", child)
					}
					continue
				}
				visited[child] = struct{}{}
				out = append(out, child)
				next = append(next, child)
			}
		}
		frontier = next
	}

	slices.Sort(out)
	return out, fault
}
