// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package plan

import "github.com/mudcube/gdoc-to-md/pkg/types"

// Budget caps the number of CONVERT and PREVIEW decisions a run admits.
// SKIP decisions never consume budget and are always admitted.
type Budget struct {
	limit int
	used  int
}

// NewBudget returns a Budget admitting at most limit decisions; limit <= 0
// means unlimited.
func NewBudget(limit int) *Budget {
	return &Budget{limit: limit}
}

// Admit reports whether d may proceed, consuming budget when it does.
func (b *Budget) Admit(d types.Decision) bool {
	if d.Action == types.ActionSkip {
		return true
	}
	if b.Exhausted() {
		return false
	}
	b.used++
	return true
}

// Exhausted reports whether no further CONVERT/PREVIEW decisions fit.
func (b *Budget) Exhausted() bool {
	return b.limit > 0 && b.used >= b.limit
}

// Used returns how many decisions consumed budget.
func (b *Budget) Used() int { return b.used }
