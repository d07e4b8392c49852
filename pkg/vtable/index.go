package vtable

import (
	"fmt"
)

// ConstraintOp is the comparison operator of a WHERE-clause constraint.
type ConstraintOp int

// Constraint operators, as reported by the host planner.
const (
	OpUnknown ConstraintOp = iota
	OpEQ
	OpGT
	OpLE
	OpLT
	OpGE
	OpMATCH
	OpNE
	OpIS
	OpISNOT
	OpISNULL
	OpISNOTNULL
	OpLIKE
	OpGLOB
	OpREGEXP
	OpFUNCTION
	OpLIMIT
	OpOFFSET
)

var opNames = map[ConstraintOp]string{
	OpEQ: "=", OpGT: ">", OpLE: "<=", OpLT: "<", OpGE: ">=", OpMATCH: "MATCH", OpNE: "!=",
	OpIS: "IS", OpISNOT: "IS NOT", OpISNULL: "IS NULL", OpISNOTNULL: "IS NOT NULL",
	OpLIKE: "LIKE", OpGLOB: "GLOB", OpREGEXP: "REGEXP", OpFUNCTION: "FUNCTION",
	OpLIMIT: "LIMIT", OpOFFSET: "OFFSET",
}

func (op ConstraintOp) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return "unknown"
}

// Planning degradation sentinels, used when a plan can't be served efficiently.
const (
	MaxCost = 2147483647.0
	MaxRows = 2147483647
)

// Constraint is a single WHERE-clause term offered by the host. Read only.
type Constraint struct {
	Column int
	Op     ConstraintOp
	Usable bool
}

// ConstraintUsage is the table's answer for one constraint.
// ArgvIndex is 1-based, 0 means the value isn't passed to Filter.
// Omit tells the host it doesn't need to double check the constraint.
type ConstraintUsage struct {
	ArgvIndex int
	Omit      bool
}

// OrderBy is one ORDER BY term.
type OrderBy struct {
	Column int
	Desc   bool
}

// IndexInfo is the planner exchange record. Constraints, OrderBy and ColUsed are inputs,
// the rest is filled by the table's BestIndex.
type IndexInfo struct {
	Constraints []Constraint
	OrderBy     []OrderBy
	ColUsed     uint64

	Usage           []ConstraintUsage // parallel to Constraints
	IdxNum          int32
	IdxStr          string
	EstimatedCost   float64
	EstimatedRows   int64
	OrderByConsumed bool
}

// NewIndexInfo makes IndexInfo with usage slots allocated for every constraint.
func NewIndexInfo(cs []Constraint, obs []OrderBy) *IndexInfo {
	return &IndexInfo{Constraints: cs, OrderBy: obs, Usage: make([]ConstraintUsage, len(cs))}
}

// Validate checks the argument slot invariant: consumed slots are distinct, start at 1,
// have no gaps and are never assigned to an unusable constraint.
func (ix *IndexInfo) Validate() error {
	if len(ix.Usage) != len(ix.Constraints) {
		return fmt.Errorf("usage has %d entries for %d constraints", len(ix.Usage), len(ix.Constraints))
	}
	seen := make(map[int]int, len(ix.Usage))
	maxSlot := 0
	for i, u := range ix.Usage {
		if u.ArgvIndex == 0 {
			continue
		}
		if u.ArgvIndex < 0 || u.ArgvIndex > len(ix.Usage) {
			return fmt.Errorf("constraint %d: argv index %d out of range", i, u.ArgvIndex)
		}
		if !ix.Constraints[i].Usable {
			return fmt.Errorf("constraint %d: argv index %d on unusable constraint", i, u.ArgvIndex)
		}
		if prev, ok := seen[u.ArgvIndex]; ok {
			return fmt.Errorf("constraint %d: argv index %d already used by constraint %d", i, u.ArgvIndex, prev)
		}
		seen[u.ArgvIndex] = i
		maxSlot = max(maxSlot, u.ArgvIndex)
	}
	if maxSlot != len(seen) {
		return fmt.Errorf("argv indexes not dense, %d slots up to %d", len(seen), maxSlot)
	}
	return nil
}

// Args returns how many arguments Filter will receive for this plan.
func (ix *IndexInfo) Args() int {
	n := 0
	for _, u := range ix.Usage {
		if u.ArgvIndex > 0 {
			n++
		}
	}
	return n
}
