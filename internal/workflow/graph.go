package workflow

import "strings"

// NodeByRef resolves a connection reference. The platform keys connections
// by node name, so names take precedence; ids are the fallback.
func (d *Document) NodeByRef(ref string) (*Node, bool) {
	i := d.nodeIndex(ref)
	if i < 0 {
		return nil, false
	}
	return &d.Nodes[i], true
}

func (d *Document) nodeIndex(ref string) int {
	if ref == "" {
		return -1
	}
	for i := range d.Nodes {
		if d.Nodes[i].Name == ref {
			return i
		}
	}
	for i := range d.Nodes {
		if d.Nodes[i].ID == ref {
			return i
		}
	}
	return -1
}

// Edges returns the connections whose source and target both resolve.
func (d *Document) Edges() []Edge {
	var resolved []Edge
	for _, e := range d.Connections.Edges() {
		if d.nodeIndex(e.Source) >= 0 && d.nodeIndex(e.Target) >= 0 {
			resolved = append(resolved, e)
		}
	}
	return resolved
}

// adjacency returns outgoing node positions keyed by node position.
func (d *Document) adjacency() (out map[int][]int, in map[int]int) {
	out = make(map[int][]int)
	in = make(map[int]int)
	for _, e := range d.Connections.Edges() {
		from, to := d.nodeIndex(e.Source), d.nodeIndex(e.Target)
		if from < 0 || to < 0 {
			continue
		}
		out[from] = append(out[from], to)
		in[to]++
	}
	return out, in
}

// Triggers returns the nodes that start executions.
func (d *Document) Triggers() []Node {
	var triggers []Node
	for _, n := range d.Nodes {
		if IsTrigger(n) {
			triggers = append(triggers, n)
		}
	}
	return triggers
}

// Roots returns the nodes with no incoming connection.
func (d *Document) Roots() []Node {
	_, in := d.adjacency()
	var roots []Node
	for i, n := range d.Nodes {
		if in[i] == 0 {
			roots = append(roots, n)
		}
	}
	return roots
}

// Orphans returns the nodes that are neither triggers nor annotations and
// have no connection in either direction. Disabled nodes are ignored.
func (d *Document) Orphans() []Node {
	out, in := d.adjacency()
	var orphans []Node
	for i, n := range d.Nodes {
		if n.Disabled || IsTrigger(n) || IsAnnotation(n) {
			continue
		}
		if in[i] == 0 && len(out[i]) == 0 {
			orphans = append(orphans, n)
		}
	}
	return orphans
}

// HasCycle reports whether the resolved connection graph contains a cycle.
func (d *Document) HasCycle() bool {
	out, in := d.adjacency()

	queue := make([]int, 0, len(d.Nodes))
	for i := range d.Nodes {
		if in[i] == 0 {
			queue = append(queue, i)
		}
	}

	visited := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range out[n] {
			in[next]--
			if in[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	return visited < len(d.Nodes)
}

// IsTrigger reports whether a node starts executions (manual, webhook,
// schedule, polling or event triggers).
func IsTrigger(n Node) bool {
	t := strings.ToLower(n.Type)
	if responderNodeTypes[strings.ToLower(n.ShortType())] {
		return false
	}
	return strings.Contains(t, "trigger") ||
		strings.Contains(t, "webhook") ||
		strings.Contains(t, "cron") ||
		strings.Contains(t, "schedule")
}

// Nodes whose type mentions a trigger keyword but which only answer a request
// that another node started.
var responderNodeTypes = map[string]bool{
	"respondtowebhook": true,
}

// IsErrorTrigger reports whether a node runs when another workflow fails.
func IsErrorTrigger(n Node) bool {
	return strings.Contains(strings.ToLower(n.Type), "errortrigger")
}

// IsAnnotation reports whether a node is a canvas note rather than an operation.
func IsAnnotation(n Node) bool {
	return strings.EqualFold(n.ShortType(), "stickyNote")
}

var coreNodeTypes = map[string]bool{
	"set": true, "if": true, "switch": true, "merge": true, "code": true,
	"function": true, "functionitem": true, "noop": true, "stickynote": true,
	"splitinbatches": true, "wait": true, "filter": true, "itemlists": true,
	"aggregate": true, "sort": true, "limit": true, "datetime": true,
	"splitout": true, "removeduplicates": true, "renamekeys": true,
	"respondtowebhook": true, "executeworkflow": true, "stopanderror": true,
	"movebinarydata": true, "converttofile": true, "extractfromfile": true,
}

// IsIntegration reports whether a node talks to an external service, as
// opposed to triggers, annotations and built-in data/flow operations.
func IsIntegration(n Node) bool {
	if IsTrigger(n) || IsAnnotation(n) {
		return false
	}
	return !coreNodeTypes[strings.ToLower(n.ShortType())]
}
