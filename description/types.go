package description

// ConnectionState is the reachability of a server as last observed by its
// monitor.
type ConnectionState int

const (
	// Connecting is the synthetic state a monitor starts in, before its first
	// status command completes.
	Connecting ConnectionState = iota
	Connected
	Unconnected
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Unconnected:
		return "Unconnected"
	}

	return "Invalid"
}

// ServerType is the role a server reported in its status response.
type ServerType int

const (
	Unknown ServerType = iota
	Standalone
	ReplicaSetPrimary
	ReplicaSetSecondary
	ReplicaSetArbiter
	ReplicaSetOther
	ShardRouter
)

func (t ServerType) String() string {
	switch t {
	case Unknown:
		return "Unknown"
	case Standalone:
		return "Standalone"
	case ReplicaSetPrimary:
		return "ReplicaSetPrimary"
	case ReplicaSetSecondary:
		return "ReplicaSetSecondary"
	case ReplicaSetArbiter:
		return "ReplicaSetArbiter"
	case ReplicaSetOther:
		return "ReplicaSetOther"
	case ShardRouter:
		return "ShardRouter"
	}

	return "Invalid"
}

// IsReplicaSetMember reports whether t is one of the replica set roles.
func (t ServerType) IsReplicaSetMember() bool {
	switch t {
	case ReplicaSetPrimary, ReplicaSetSecondary, ReplicaSetArbiter, ReplicaSetOther:
		return true
	}

	return false
}

func (t ServerType) IsPrimary() bool { return t == ReplicaSetPrimary }

func (t ServerType) IsSecondary() bool { return t == ReplicaSetSecondary }
