package node

import "github.com/kprusa/dctsim/internal/role"

// onRoleOptimizeTimer implements spec.md §4.8: periodically, a CH/Router
// with no dependents (no members, no children reported through
// ChildNetworksTable) and whose own parent is itself CH/Root demotes back
// to Registered, freeing its address pool and dropping its TX power back
// to the default.
func (n *Node) onRoleOptimizeTimer() {
	if n.Role == role.ClusterHead || n.Role == role.Router {
		if n.hasNoDependents() && n.parentHasCluster() {
			n.demoteToRegistered()
		}
	}
	n.env.Kernel.SetTimer(n.ID, TimerRoleOptimize, n.env.Config.RoleOptimizeTime)
}

func (n *Node) hasNoDependents() bool {
	return len(n.MembersTable) == 0 && len(n.ChildNetworksTable) == 0
}

func (n *Node) parentHasCluster() bool {
	if n.ParentGUI == nil {
		return false
	}
	parent, ok := n.NeighborsTable[*n.ParentGUI]
	return ok && (parent.Role == role.ClusterHead || parent.Role == role.Root)
}
