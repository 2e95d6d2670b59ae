// Package addr implements the two-byte tree address used by the data
// collection tree: a network (cluster) byte and a node byte within that
// cluster.
package addr

import "fmt"

// BroadcastNet and BroadcastNode are the sentinel byte values that together
// form the broadcast address Addr(255, 255).
const (
	BroadcastNet  = 255
	BroadcastNode = 255
)

// RootNetAddr and RootNodeAddr are the fixed address components of the
// network root, Addr(0, 254).
const (
	RootNetAddr  = 0
	RootNodeAddr = 254
)

// Addr is a two-component tree address: a cluster (net) byte and a node
// byte within that cluster. Addresses compare structurally.
type Addr struct {
	NetAddr  uint8
	NodeAddr uint8
}

// Root is the fixed address of the network root.
var Root = Addr{NetAddr: RootNetAddr, NodeAddr: RootNodeAddr}

// Broadcast is the address every node in range accepts as a broadcast.
var Broadcast = Addr{NetAddr: BroadcastNet, NodeAddr: BroadcastNode}

// IsEqual reports whether a and b refer to the same address.
func (a Addr) IsEqual(b Addr) bool {
	return a.NetAddr == b.NetAddr && a.NodeAddr == b.NodeAddr
}

// IsBroadcast reports whether a is the broadcast sentinel.
func (a Addr) IsBroadcast() bool {
	return a.IsEqual(Broadcast)
}

// IsRoot reports whether a is the fixed root address.
func (a Addr) IsRoot() bool {
	return a.IsEqual(Root)
}

// IsZero reports whether a is the unset zero value, Addr(0,0), which is
// distinct from both Root (0,254) and Broadcast (255,255) and is used as
// the "no address assigned yet" sentinel for Undiscovered/Unregistered
// nodes.
func (a Addr) IsZero() bool {
	return a.NetAddr == 0 && a.NodeAddr == 0
}

func (a Addr) String() string {
	return fmt.Sprintf("%d.%d", a.NetAddr, a.NodeAddr)
}
