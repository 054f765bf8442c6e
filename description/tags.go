package description

import (
	"strings"

	"github.com/elliotchance/orderedmap"
)

// Tag is a single replica set member tag.
type Tag struct {
	Name  string
	Value string
}

// Tags is a read-only, insertion-ordered mapping of tag names to values. The
// zero value holds no tags.
type Tags struct {
	m *orderedmap.OrderedMap
}

// NewTags builds a Tags from the given pairs. A repeated name keeps its first
// position and its last value.
func NewTags(tags ...Tag) Tags {
	m := orderedmap.NewOrderedMap()
	for _, tag := range tags {
		m.Set(tag.Name, tag.Value)
	}

	return Tags{m: m}
}

func (t Tags) Len() int {
	if t.m == nil {
		return 0
	}

	return t.m.Len()
}

// Get returns the value of the named tag.
func (t Tags) Get(name string) (string, bool) {
	if t.m == nil {
		return "", false
	}

	v, ok := t.m.Get(name)
	if !ok {
		return "", false
	}

	return v.(string), true
}

// Names returns the tag names in insertion order.
func (t Tags) Names() []string {
	if t.m == nil {
		return []string{}
	}

	keys := t.m.Keys()

	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.(string)
	}

	return names
}

// Equal reports whether both hold the same name/value pairs. Order is not
// significant.
func (t Tags) Equal(other Tags) bool {
	if t.Len() != other.Len() {
		return false
	}

	for _, name := range t.Names() {
		mine, _ := t.Get(name)

		theirs, ok := other.Get(name)
		if !ok || mine != theirs {
			return false
		}
	}

	return true
}

func (t Tags) String() string {
	var b strings.Builder

	b.WriteByte('{')
	for i, name := range t.Names() {
		if i > 0 {
			b.WriteString(", ")
		}

		v, _ := t.Get(name)

		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(v)
	}
	b.WriteByte('}')

	return b.String()
}
