package series

import (
	"fmt"
	"strings"
)

// plan bits, the integer form exchanged between BestIndex and Filter
const (
	bitStart int32 = 1 << iota
	bitStop
	bitStep
	bitDesc
)

// Plan records which hidden arguments Filter receives and whether rows go in descending order.
// Arguments always arrive in start, stop, step order, skipping the absent ones.
type Plan struct {
	Start bool
	Stop  bool
	Step  bool
	Desc  bool
}

// Encode packs the plan into the index number handed to the host.
func (p Plan) Encode() int32 {
	var n int32
	if p.Start {
		n |= bitStart
	}
	if p.Stop {
		n |= bitStop
	}
	if p.Step {
		n |= bitStep
	}
	if p.Desc {
		n |= bitDesc
	}
	return n
}

// DecodePlan unpacks an index number made by Encode.
func DecodePlan(n int32) Plan {
	return Plan{Start: n&bitStart != 0, Stop: n&bitStop != 0, Step: n&bitStep != 0, Desc: n&bitDesc != 0}
}

// Bounded reports whether both bounds are pinned by equality constraints.
func (p Plan) Bounded() bool { return p.Start && p.Stop }

// Args is the number of Filter arguments the plan expects.
func (p Plan) Args() int {
	n := 0
	for _, b := range []bool{p.Start, p.Stop, p.Step} {
		if b {
			n++
		}
	}
	return n
}

func (p Plan) String() string {
	var parts []string
	if p.Start {
		parts = append(parts, "start")
	}
	if p.Stop {
		parts = append(parts, "stop")
	}
	if p.Step {
		parts = append(parts, "step")
	}
	if len(parts) == 0 {
		parts = append(parts, "full")
	}
	order := "asc"
	if p.Desc {
		order = "desc"
	}
	return fmt.Sprintf("%s/%s", strings.Join(parts, "+"), order)
}
