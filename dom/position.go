package dom

// Position is a bit set describing where another node sits relative to a
// reference node, with DOM compareDocumentPosition semantics over the
// composed tree.
type Position int

const (
	PositionDisconnected Position = 1 << iota
	PositionPreceding
	PositionFollowing
	PositionContains
	PositionContainedBy
)

// ComparePosition reports the position of other relative to n. Shadow roots
// order after the light children of their host.
func (n *Node) ComparePosition(other *Node) Position {
	if n == other {
		return 0
	}
	rootA, pa := composedPath(n)
	rootB, pb := composedPath(other)
	if rootA != rootB {
		return PositionDisconnected
	}
	i := 0
	for i < len(pa) && i < len(pb) && pa[i] == pb[i] {
		i++
	}
	switch {
	case i == len(pa):
		return PositionContainedBy | PositionFollowing
	case i == len(pb):
		return PositionContains | PositionPreceding
	case pb[i] > pa[i]:
		return PositionFollowing
	default:
		return PositionPreceding
	}
}

// composedPath returns the top-most ancestor and the child indices leading
// from it to n.
func composedPath(n *Node) (*Node, []int) {
	var rev []int
	p := n
	for {
		switch {
		case p.host != nil:
			rev = append(rev, childCount(p.host))
			p = p.host
		case p.parent != nil:
			rev = append(rev, childIndex(p))
			p = p.parent
		default:
			out := make([]int, len(rev))
			for i, v := range rev {
				out[len(rev)-1-i] = v
			}
			return p, out
		}
	}
}

func childIndex(n *Node) int {
	i := 0
	for c := n.prev; c != nil; c = c.prev {
		i++
	}
	return i
}

func childCount(n *Node) int {
	i := 0
	for c := n.firstChild; c != nil; c = c.next {
		i++
	}
	return i
}
