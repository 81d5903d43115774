// Package connectivity infers electrical nets from schematic wires, labels,
// and symbol pin positions without a netlist export from the host program.
package connectivity

// Netlist groups coordinate keys into electrical nets using a union-find
// structure with path compression and union by rank.
type Netlist struct {
	parent map[string]string
	rank   map[string]int
}

// NewNetlist creates an empty netlist.
func NewNetlist() *Netlist {
	return &Netlist{
		parent: make(map[string]string),
		rank:   make(map[string]int),
	}
}

// Add registers a key as its own isolated net. Adding an existing key is a
// no-op.
func (nl *Netlist) Add(key string) {
	if _, ok := nl.parent[key]; !ok {
		nl.parent[key] = key
		nl.rank[key] = 0
	}
}

// Connect merges the nets containing a and b.
func (nl *Netlist) Connect(a, b string) {
	nl.Add(a)
	nl.Add(b)

	rootA := nl.Find(a)
	rootB := nl.Find(b)
	if rootA == rootB {
		return
	}

	// Union by rank
	if nl.rank[rootA] < nl.rank[rootB] {
		nl.parent[rootA] = rootB
	} else if nl.rank[rootA] > nl.rank[rootB] {
		nl.parent[rootB] = rootA
	} else {
		nl.parent[rootB] = rootA
		nl.rank[rootA]++
	}
}

// Find returns the representative key for the net containing key.
// Uses path compression for O(α(n)) amortized time complexity.
func (nl *Netlist) Find(key string) string {
	nl.Add(key)

	root := key
	for nl.parent[root] != root {
		root = nl.parent[root]
	}

	// Path compression: point every node on the path at the root
	current := key
	for current != root {
		next := nl.parent[current]
		nl.parent[current] = root
		current = next
	}

	return root
}

// Connected reports whether two keys share a net.
func (nl *Netlist) Connected(a, b string) bool {
	return nl.Find(a) == nl.Find(b)
}

// Groups returns all keys grouped by their net representative.
func (nl *Netlist) Groups() map[string][]string {
	groups := make(map[string][]string)
	for key := range nl.parent {
		root := nl.Find(key)
		groups[root] = append(groups[root], key)
	}
	return groups
}
