package routing

import (
	"testing"

	"github.com/kprusa/dctsim/internal/addr"
	"github.com/kprusa/dctsim/internal/role"
	"github.com/stretchr/testify/assert"
)

func TestLegalDirectHop(t *testing.T) {
	tests := []struct {
		name string
		a, b role.Role
		want bool
	}{
		{"registered to router forbidden", role.Registered, role.Router, false},
		{"router to router forbidden", role.Router, role.Router, false},
		{"router to registered forbidden", role.Router, role.Registered, false},
		{"registered to registered ok", role.Registered, role.Registered, true},
		{"clusterhead to router ok", role.ClusterHead, role.Router, true},
		{"root to registered ok", role.Root, role.Registered, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LegalDirectHop(tt.a, tt.b))
		})
	}
}

func TestSelectNextHop_TreeUpDefault(t *testing.T) {
	parent := &NeighborEntry{Addr: addr.Addr{NetAddr: 1, NodeAddr: 2}, ChAddr: addr.Addr{NetAddr: 1, NodeAddr: 254}, Role: role.ClusterHead}
	in := SelectionInput{
		SelfRole: role.Registered,
		Parent:   parent,
		Dest:     addr.Addr{NetAddr: 9, NodeAddr: 9},
	}
	got := SelectNextHop(in)
	assert.True(t, got.OK)
	assert.Equal(t, Tree, got.Path)
	assert.Equal(t, parent.ChAddr, got.NextHop)
}

func TestSelectNextHop_TreeUpDefault_RouterParentUsesAddr(t *testing.T) {
	parent := &NeighborEntry{Addr: addr.Addr{NetAddr: 1, NodeAddr: 2}, ChAddr: addr.Addr{NetAddr: 1, NodeAddr: 254}, Role: role.Router}
	in := SelectionInput{
		SelfRole:       role.Registered,
		Parent:         parent,
		ParentIsRouter: true,
		Dest:           addr.Addr{NetAddr: 9, NodeAddr: 9},
	}
	got := SelectNextHop(in)
	assert.True(t, got.OK)
	assert.Equal(t, parent.Addr, got.NextHop)
}

func TestSelectNextHop_SameNetDirect(t *testing.T) {
	in := SelectionInput{
		SelfRole:  role.ClusterHead,
		HasChAddr: true,
		ChAddr:    addr.Addr{NetAddr: 4, NodeAddr: 254},
		Dest:      addr.Addr{NetAddr: 4, NodeAddr: 7},
	}
	got := SelectNextHop(in)
	assert.True(t, got.OK)
	assert.Equal(t, Tree, got.Path)
	assert.Equal(t, in.Dest, got.NextHop)
}

func TestSelectNextHop_DownstreamSubnet(t *testing.T) {
	in := SelectionInput{
		SelfRole:       role.ClusterHead,
		ChildNetworks:  map[int][]uint8{5: {9, 10}},
		ChildAddrByGUI: map[int]addr.Addr{5: {NetAddr: 1, NodeAddr: 3}},
		Dest:           addr.Addr{NetAddr: 9, NodeAddr: 1},
	}
	got := SelectNextHop(in)
	assert.True(t, got.OK)
	assert.Equal(t, addr.Addr{NetAddr: 1, NodeAddr: 3}, got.NextHop)
}

func TestSelectNextHop_DirectNeighborOverridesTreeDefault(t *testing.T) {
	parent := &NeighborEntry{Addr: addr.Addr{NetAddr: 1, NodeAddr: 2}, ChAddr: addr.Addr{NetAddr: 1, NodeAddr: 254}, Role: role.ClusterHead}
	dest := addr.Addr{NetAddr: 1, NodeAddr: 8}
	in := SelectionInput{
		SelfRole: role.Registered,
		Parent:   parent,
		Neighbors: map[int]*NeighborEntry{
			8: {Addr: dest, Role: role.Registered, NeighborHopCount: 1},
		},
		Dest: dest,
	}
	got := SelectNextHop(in)
	assert.Equal(t, Direct, got.Path)
	assert.Equal(t, dest, got.NextHop)
}

func TestSelectNextHop_MeshNeighborUsesNextHop(t *testing.T) {
	dest := addr.Addr{NetAddr: 1, NodeAddr: 8}
	nextHop := addr.Addr{NetAddr: 1, NodeAddr: 5}
	in := SelectionInput{
		SelfRole: role.Registered,
		Neighbors: map[int]*NeighborEntry{
			8: {Addr: dest, Role: role.Registered, NeighborHopCount: 2, NextHop: &nextHop},
		},
		Dest: dest,
	}
	got := SelectNextHop(in)
	assert.Equal(t, Mesh, got.Path)
	assert.Equal(t, nextHop, got.NextHop)
}

func TestSelectNextHop_IllegalDirectHopIgnored(t *testing.T) {
	dest := addr.Addr{NetAddr: 1, NodeAddr: 8}
	in := SelectionInput{
		SelfRole: role.Router,
		Neighbors: map[int]*NeighborEntry{
			8: {Addr: dest, Role: role.Registered, NeighborHopCount: 1},
		},
		Dest: dest,
	}
	got := SelectNextHop(in)
	assert.False(t, got.OK)
}

func TestSelectNextHop_NoMatchUnknown(t *testing.T) {
	got := SelectNextHop(SelectionInput{SelfRole: role.Root, Dest: addr.Addr{NetAddr: 9, NodeAddr: 9}})
	assert.False(t, got.OK)
	assert.Equal(t, Unknown, got.Path)
}
