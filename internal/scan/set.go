package scan

import (
	"bytes"
	"slices"

	"github.com/skobkin/macsniff/internal/capture"
)

// MacSet holds the unique addresses of one scan session.
type MacSet map[capture.MAC]struct{}

func NewMacSet() MacSet {
	return make(MacSet)
}

// Add inserts mac and reports whether it was new.
func (s MacSet) Add(mac capture.MAC) bool {
	if _, ok := s[mac]; ok {
		return false
	}
	s[mac] = struct{}{}

	return true
}

func (s MacSet) Contains(mac capture.MAC) bool {
	_, ok := s[mac]
	return ok
}

func (s MacSet) Len() int {
	return len(s)
}

// Sorted returns the addresses in byte order.
func (s MacSet) Sorted() []capture.MAC {
	out := make([]capture.MAC, 0, len(s))
	for mac := range s {
		out = append(out, mac)
	}
	slices.SortFunc(out, func(a, b capture.MAC) int {
		return bytes.Compare(a[:], b[:])
	})

	return out
}

// SetOf builds a set from a list, collapsing duplicates.
func SetOf(macs ...capture.MAC) MacSet {
	s := make(MacSet, len(macs))
	for _, mac := range macs {
		s.Add(mac)
	}

	return s
}
