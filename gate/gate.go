// Package gate implements the controller's decision logic as a directed
// graph of unit operations. Each gate consumes values on named input
// ports, runs its behavior once per control cycle, and produces values on
// named output ports that flow along edges to downstream gates. Cycles are
// only allowed through feedback edges, which deliver the previous cycle's
// value with a one-cycle delay.
package gate

import (
	"context"
	"fmt"

	"github.com/joshuasello/mycelium-iot/component"
)

// Inputs carries the values delivered to a gate's input ports this cycle
type Inputs map[string]component.Value

// Outputs carries the values a gate produced on its output ports. A
// behavior must populate every declared output port.
type Outputs map[string]component.Value

// Behavior is one gate's evaluation function. It may read or write a
// component proxy as a side effect; any error aborts the current cycle.
type Behavior func(ctx context.Context, in Inputs) (Outputs, error)

// gateNode is the internal representation of one declared gate
type gateNode struct {
	name        string
	inputPorts  []string
	outputPorts []string
	behavior    Behavior

	inputSet  map[string]bool
	outputSet map[string]bool

	// inEdge holds at most one incoming edge per input port
	inEdge map[string]*edge
	// outEdges fan out from each output port
	outEdges map[string][]*edge

	// index is the declaration order, used to keep evaluation order
	// deterministic among independent gates
	index int
}

// edge connects one gate's output port to another gate's input port.
// Feedback edges deliver the value committed at the end of the previous
// cycle instead of this cycle's value.
type edge struct {
	from     *gateNode
	fromPort string
	to       *gateNode
	toPort   string

	feedback bool
	initial  component.Value
	held     component.Value
	hasHeld  bool
}

// current returns the value a feedback edge delivers this cycle
func (e *edge) current() component.Value {
	if e.hasHeld {
		return e.held
	}
	return e.initial
}

func newGateNode(name string, inputPorts, outputPorts []string, behavior Behavior, index int) (*gateNode, error) {
	node := &gateNode{
		name:        name,
		inputPorts:  append([]string(nil), inputPorts...),
		outputPorts: append([]string(nil), outputPorts...),
		behavior:    behavior,
		inputSet:    make(map[string]bool, len(inputPorts)),
		outputSet:   make(map[string]bool, len(outputPorts)),
		inEdge:      make(map[string]*edge),
		outEdges:    make(map[string][]*edge),
		index:       index,
	}

	for _, port := range inputPorts {
		if port == "" {
			return nil, buildErrorf("gate %q has an empty input port name", name)
		}
		if node.inputSet[port] {
			return nil, buildErrorf("gate %q declares input port %q twice", name, port)
		}
		node.inputSet[port] = true
	}
	for _, port := range outputPorts {
		if port == "" {
			return nil, buildErrorf("gate %q has an empty output port name", name)
		}
		if node.outputSet[port] {
			return nil, buildErrorf("gate %q declares output port %q twice", name, port)
		}
		node.outputSet[port] = true
	}
	return node, nil
}

// checkOutputs verifies that a behavior produced exactly its declared
// output ports, each with a usable value
func (g *gateNode) checkOutputs(out Outputs) error {
	for _, port := range g.outputPorts {
		value, ok := out[port]
		if !ok || value.IsZero() {
			return fmt.Errorf("missing value for output port %q", port)
		}
	}
	for port := range out {
		if !g.outputSet[port] {
			return fmt.Errorf("value for undeclared output port %q", port)
		}
	}
	return nil
}
