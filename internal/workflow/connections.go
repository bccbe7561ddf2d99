package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	errors "github.com/deploymenttheory/wfkit/internal/errors"
)

// MainOutput is the default connection type between nodes.
const MainOutput = "main"

// Connections maps a source node reference to its outputs.
type Connections map[string]NodeOutputs

// NodeOutputs maps an output type (usually "main") to the targets of each
// output index of that type.
type NodeOutputs map[string][][]Target

// Target is the downstream end of a connection.
type Target struct {
	Node  string `json:"node"`
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// Edge is a flattened connection between two node references.
type Edge struct {
	Source      string
	Output      string
	OutputIndex int
	Target      string
	Input       string
	InputIndex  int
}

func (e Edge) String() string {
	return fmt.Sprintf("%s[%s:%d] -> %s[%s:%d]", e.Source, e.Output, e.OutputIndex, e.Target, e.Input, e.InputIndex)
}

// UnmarshalJSON accepts the platform form
//
//	{"main": [[{"node": "B", "type": "main", "index": 0}]]}
//
// and the shorthand form ["B", "C"], which connects main output 0 to input 0
// of each listed node.
func (o *NodeOutputs) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*o = nil
		return nil
	}

	if data[0] == '[' {
		var names []string
		if err := json.Unmarshal(data, &names); err != nil {
			return fmt.Errorf("%w: shorthand connections must be a list of node names", errors.ErrInvalidConnections)
		}
		targets := make([]Target, 0, len(names))
		for _, name := range names {
			targets = append(targets, Target{Node: name, Type: MainOutput, Index: 0})
		}
		*o = NodeOutputs{MainOutput: {targets}}
		return nil
	}

	var outputs map[string][][]Target
	if err := json.Unmarshal(data, &outputs); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrInvalidConnections, err.Error())
	}
	for kind, slots := range outputs {
		for _, targets := range slots {
			for i := range targets {
				if targets[i].Type == "" {
					targets[i].Type = kind
				}
			}
		}
	}
	*o = outputs
	return nil
}

// Sources returns the connection source references in sorted order.
func (c Connections) Sources() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Edges flattens the connections into a deterministic edge list.
func (c Connections) Edges() []Edge {
	var edges []Edge
	for _, source := range c.Sources() {
		outputs := c[source]
		kinds := make([]string, 0, len(outputs))
		for k := range outputs {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)

		for _, kind := range kinds {
			for idx, targets := range outputs[kind] {
				for _, t := range targets {
					input := t.Type
					if input == "" {
						input = kind
					}
					edges = append(edges, Edge{
						Source:      source,
						Output:      kind,
						OutputIndex: idx,
						Target:      t.Node,
						Input:       input,
						InputIndex:  t.Index,
					})
				}
			}
		}
	}
	return edges
}

// Connect appends a main-output connection from source to target.
func (c Connections) Connect(source string, outputIndex int, target string) {
	outputs := c[source]
	if outputs == nil {
		outputs = NodeOutputs{}
		c[source] = outputs
	}
	slots := outputs[MainOutput]
	for len(slots) <= outputIndex {
		slots = append(slots, nil)
	}
	slots[outputIndex] = append(slots[outputIndex], Target{Node: target, Type: MainOutput, Index: 0})
	outputs[MainOutput] = slots
}
