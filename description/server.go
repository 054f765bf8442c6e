// Package description holds the immutable, point-in-time view of a single
// MongoDB server as reported by its status command.
package description

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultMaxDocumentSize is used when a server omits maxBsonObjectSize.
	DefaultMaxDocumentSize = 16 * 1024 * 1024

	// DefaultMaxMessageSize is used when a server omits maxMessageSizeBytes.
	DefaultMaxMessageSize = 32 * 1024 * 1024
)

// Params are the inputs to New. Zero sizes are replaced by the defaults.
type Params struct {
	State           ConnectionState
	Address         Address
	Type            ServerType
	Hosts           AddressSet
	Passives        AddressSet
	Arbiters        AddressSet
	Primary         Address
	MaxDocumentSize int
	MaxMessageSize  int
	Tags            Tags
	SetName         string
	AverageRTT      time.Duration
	OK              bool
}

// Server describes one server. A Server is never modified after it is
// created; monitors replace it wholesale.
type Server struct {
	state           ConnectionState
	addr            Address
	kind            ServerType
	hosts           AddressSet
	passives        AddressSet
	arbiters        AddressSet
	primary         Address
	maxDocumentSize int
	maxMessageSize  int
	tags            Tags
	setName         string
	averageRTT      time.Duration
	ok              bool
}

// New creates a Server from p.
func New(p Params) Server {
	s := Server{
		state:           p.State,
		addr:            p.Address,
		kind:            p.Type,
		hosts:           p.Hosts,
		passives:        p.Passives,
		arbiters:        p.Arbiters,
		primary:         p.Primary,
		maxDocumentSize: p.MaxDocumentSize,
		maxMessageSize:  p.MaxMessageSize,
		tags:            p.Tags,
		setName:         p.SetName,
		averageRTT:      p.AverageRTT,
		ok:              p.OK,
	}

	if s.maxDocumentSize <= 0 {
		s.maxDocumentSize = DefaultMaxDocumentSize
	}

	if s.maxMessageSize <= 0 {
		s.maxMessageSize = DefaultMaxMessageSize
	}

	return s
}

// NewConnecting returns the description a monitor starts with.
func NewConnecting(addr Address) Server {
	return New(Params{State: Connecting, Address: addr, Type: Unknown})
}

// NewUnconnected returns the description of a server that could not be
// reached or whose status could not be read.
func NewUnconnected(addr Address) Server {
	return New(Params{State: Unconnected, Address: addr, Type: Unknown})
}

func (s Server) State() ConnectionState { return s.state }
func (s Server) Address() Address       { return s.addr }
func (s Server) Type() ServerType       { return s.kind }
func (s Server) Hosts() AddressSet      { return s.hosts }
func (s Server) Passives() AddressSet   { return s.passives }
func (s Server) Arbiters() AddressSet   { return s.arbiters }
func (s Server) MaxDocumentSize() int   { return s.maxDocumentSize }
func (s Server) MaxMessageSize() int    { return s.maxMessageSize }
func (s Server) Tags() Tags             { return s.tags }
func (s Server) OK() bool               { return s.ok }

// Primary returns the address this server believes is the replica set
// primary, if it reported one.
func (s Server) Primary() (Address, bool) { return s.primary, s.primary != "" }

// SetName returns the replica set name, if the server reported one.
func (s Server) SetName() (string, bool) { return s.setName, s.setName != "" }

// AverageRTT is the mean round-trip time of the status commands since the
// monitor last (re)connected.
func (s Server) AverageRTT() time.Duration { return s.averageRTT }

// Equal compares every field except the average round-trip time, so that
// latency jitter alone never registers as a change.
func (s Server) Equal(other Server) bool {
	return s.state == other.state &&
		s.addr == other.addr &&
		s.kind == other.kind &&
		s.hosts.Equal(other.hosts) &&
		s.passives.Equal(other.passives) &&
		s.arbiters.Equal(other.arbiters) &&
		s.primary == other.primary &&
		s.maxDocumentSize == other.maxDocumentSize &&
		s.maxMessageSize == other.maxMessageSize &&
		s.tags.Equal(other.tags) &&
		s.setName == other.setName &&
		s.ok == other.ok
}

func (s Server) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "{address: %s, type: %s, state: %s, ok: %t", s.addr, s.kind, s.state, s.ok)

	if s.setName != "" {
		fmt.Fprintf(&b, ", setName: %s", s.setName)
	}

	if s.primary != "" {
		fmt.Fprintf(&b, ", primary: %s", s.primary)
	}

	if s.hosts.Len() > 0 {
		fmt.Fprintf(&b, ", hosts: %s", s.hosts)
	}

	if s.passives.Len() > 0 {
		fmt.Fprintf(&b, ", passives: %s", s.passives)
	}

	if s.arbiters.Len() > 0 {
		fmt.Fprintf(&b, ", arbiters: %s", s.arbiters)
	}

	if s.tags.Len() > 0 {
		fmt.Fprintf(&b, ", tags: %s", s.tags)
	}

	if s.state == Connected {
		fmt.Fprintf(&b, ", averageRTT: %s", s.averageRTT)
	}

	b.WriteByte('}')

	return b.String()
}
