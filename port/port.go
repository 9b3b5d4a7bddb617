// Package port defines the virtual console's controller slots.
package port

import "fmt"

// Port identifies one of a virtual console's up to four controller slots.
// The numeric values are wire-stable; do not renumber them.
type Port int32

const (
	// Any is a wildcard accepted only in allocation requests: "give me
	// whichever concrete port is free". A committed allocation never stores
	// Any.
	Any Port = 0
	P1  Port = 1
	P2  Port = 2
	P3  Port = 3
	P4  Port = 4
	// Unknown is a sentinel for "no port" / unset. A committed allocation
	// never stores Unknown.
	Unknown Port = -1
)

func (p Port) String() string {
	switch p {
	case Any:
		return "PORT_ANY"
	case P1:
		return "PORT_1"
	case P2:
		return "PORT_2"
	case P3:
		return "PORT_3"
	case P4:
		return "PORT_4"
	case Unknown:
		return "UNKNOWN"
	default:
		return fmt.Sprintf("PORT(%d)", int32(p))
	}
}

// Concrete is the ordered list of real controller slots, lowest-numbered
// first. It never contains Any or Unknown.
var Concrete = []Port{P1, P2, P3, P4}

// IsConcrete reports whether p names an actual controller slot.
func IsConcrete(p Port) bool {
	switch p {
	case P1, P2, P3, P4:
		return true
	default:
		return false
	}
}

// SortRequestsConcreteFirst orders a slice of requested ports so that every
// concrete request (PORT_1..PORT_4, in ascending order) precedes every
// PORT_ANY wildcard. This is the ordering the allocator in package console
// depends on: a specific request must be satisfied before a wildcard is
// allowed to consume the slot it needs. The sort is stable so that relative
// order among wildcards, and among equal concrete values, is preserved.
func SortRequestsConcreteFirst(requests []Port) {
	// insertion sort: request lists are at most 4 elements long, so the
	// naive approach is both simplest and fastest.
	for i := 1; i < len(requests); i++ {
		j := i
		for j > 0 && less(requests[j], requests[j-1]) {
			requests[j], requests[j-1] = requests[j-1], requests[j]
			j--
		}
	}
}

func less(a, b Port) bool {
	if a == Any {
		return false
	}
	if b == Any {
		return true
	}
	return a < b
}
