package node

import (
	"github.com/kprusa/dctsim/internal/addr"
	"github.com/kprusa/dctsim/internal/role"
	"github.com/kprusa/dctsim/internal/routing"
)

// Type enumerates the twelve packet kinds spec.md §6 requires.
type Type int

const (
	Probe Type = iota
	HeartBeat
	JoinRequest
	JoinReply
	JoinAck
	NetworkRequest
	NetworkReply
	NetworkUpdate
	TableShare
	ChNomination
	ChNominationAck
	SensorData
)

func (t Type) String() string {
	switch t {
	case Probe:
		return "PROBE"
	case HeartBeat:
		return "HEART_BEAT"
	case JoinRequest:
		return "JOIN_REQUEST"
	case JoinReply:
		return "JOIN_REPLY"
	case JoinAck:
		return "JOIN_ACK"
	case NetworkRequest:
		return "NETWORK_REQUEST"
	case NetworkReply:
		return "NETWORK_REPLY"
	case NetworkUpdate:
		return "NETWORK_UPDATE"
	case TableShare:
		return "TABLE_SHARE"
	case ChNomination:
		return "CH_NOMINATION"
	case ChNominationAck:
		return "CH_NOMINATION_ACK"
	case SensorData:
		return "SENSOR_DATA"
	default:
		return "UNKNOWN"
	}
}

// Packet is the tagged envelope spec.md §6 defines. Not every field is
// meaningful for every Type; each handler reads only the fields its type
// populates, the same way the teacher's HelloMessage/TCMessage/DataMessage
// each only populated their own fields (message.go).
type Packet struct {
	Type Type
	Dest addr.Addr

	Source   *addr.Addr
	GUI      *int
	DestGUI  *int
	Addr     *addr.Addr
	ChAddr   *addr.Addr
	RootAddr *addr.Addr
	HopCount *int
	TxPower  *uint8

	// AvailDict carries a CH's node_available_dict across a CH_NOMINATION
	// hand-off (nil owner = free slot).
	AvailDict map[uint8]*int

	// Neighbors carries a TABLE_SHARE subset of the sender's neighbor
	// table, keyed by gui.
	Neighbors map[int]routing.NeighborEntry

	// ChildNetworks carries a NETWORK_UPDATE's reachable net_addr list.
	ChildNetworks []uint8

	SensorValue *float64
	NextHop     *addr.Addr

	PktID        string
	CreationTime float64
	Path         routing.PathType

	// Sequence is a HEART_BEAT's last_heartbeat_seq: a per-sender counter
	// that lets a receiver reject an out-of-order/stale heartbeat that
	// arrived after a newer one (spec.md §3 Supplementary fields).
	Sequence int

	// SenderRole is the sender's role at send time, used for legality
	// checks on receipt (e.g. rejecting a parent that has since become a
	// Router, spec.md I5) and for HEART_BEAT's advertised role field.
	SenderRole role.Role

	// SenderGUI is the gui of the node that physically transmitted this
	// packet (not necessarily the protocol Source, once forwarded).
	SenderGUI int

	// ViaRouterAdoption is set only on a JOIN_REPLY sent by a Router
	// adopting an orphan directly (spec.md §4.2's Router adoption path).
	// It lets the Unregistered JOIN_REPLY handler distinguish this
	// sanctioned last-resort reply from a stale reply whose sender has
	// since been promoted away from CH/Root — see DESIGN.md's resolution
	// of the corresponding spec Open Question.
	ViaRouterAdoption bool
}
