package description

import (
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set"
)

// Address is a "host:port" network address of a server.
type Address string

func (a Address) String() string { return string(a) }

// AddressSet is a read-only set of addresses. The zero value is an empty set.
type AddressSet struct {
	set mapset.Set
}

// NewAddressSet creates a set holding the given addresses. Duplicates are
// collapsed.
func NewAddressSet(addrs ...Address) AddressSet {
	set := mapset.NewThreadUnsafeSet()
	for _, addr := range addrs {
		set.Add(addr)
	}

	return AddressSet{set: set}
}

func newAddressSetFromStrings(addrs []string) AddressSet {
	set := mapset.NewThreadUnsafeSet()
	for _, addr := range addrs {
		set.Add(Address(addr))
	}

	return AddressSet{set: set}
}

// Len returns the number of addresses in the set.
func (s AddressSet) Len() int {
	if s.set == nil {
		return 0
	}

	return s.set.Cardinality()
}

// Contains reports whether addr is in the set.
func (s AddressSet) Contains(addr Address) bool {
	if s.set == nil {
		return false
	}

	return s.set.Contains(addr)
}

// Slice returns the addresses in lexical order.
func (s AddressSet) Slice() []Address {
	addrs := make([]Address, 0, s.Len())
	if s.set == nil {
		return addrs
	}

	s.set.Each(func(v interface{}) bool {
		addrs = append(addrs, v.(Address))
		return false
	})

	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	return addrs
}

// Equal reports whether both sets hold the same addresses.
func (s AddressSet) Equal(other AddressSet) bool {
	if s.Len() == 0 || other.Len() == 0 {
		return s.Len() == other.Len()
	}

	return s.set.Equal(other.set)
}

func (s AddressSet) String() string {
	addrs := s.Slice()

	strs := make([]string, len(addrs))
	for i, addr := range addrs {
		strs[i] = string(addr)
	}

	return "[" + strings.Join(strs, ", ") + "]"
}
