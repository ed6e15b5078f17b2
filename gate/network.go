package gate

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joshuasello/mycelium-iot/component"
	"github.com/joshuasello/mycelium-iot/metric"
)

// Network owns a set of gates and edges and runs the evaluation engine.
// Structure is mutable between cycles only; Evaluate holds the network
// lock for the whole cycle, so graph mutation can never observe a cycle
// in progress.
type Network struct {
	name    string
	logger  *slog.Logger
	metrics *networkMetrics

	mu     sync.Mutex
	gates  []*gateNode
	byName map[string]*gateNode
	edges  []*edge

	built bool
	order []*gateNode

	// cycleCount is atomic so behaviors running inside Evaluate, which
	// holds mu for the whole cycle, can read it without deadlocking
	cycleCount atomic.Uint64
}

// NewNetwork creates an empty gate network. The logger may be nil; the
// metrics registry may be nil to run without metrics.
func NewNetwork(name string, logger *slog.Logger, registry *metric.MetricsRegistry) *Network {
	if logger == nil {
		logger = slog.Default()
	}

	metrics, err := newNetworkMetrics(registry, name)
	if err != nil {
		logger.Error("Failed to initialize gate network metrics", "network", name, "error", err)
		metrics = nil // continue without metrics
	}

	return &Network{
		name:    name,
		logger:  logger,
		metrics: metrics,
		byName:  make(map[string]*gateNode),
	}
}

// Name returns the network's name
func (n *Network) Name() string { return n.name }

// AddGate declares a gate with ordered input and output ports. Names are
// unique within the network.
func (n *Network) AddGate(name string, inputPorts, outputPorts []string, behavior Behavior) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if name == "" {
		return buildErrorf("gate name must not be empty")
	}
	if behavior == nil {
		return buildErrorf("gate %q has no behavior", name)
	}
	if _, exists := n.byName[name]; exists {
		return buildErrorf("duplicate gate name %q", name)
	}

	node, err := newGateNode(name, inputPorts, outputPorts, behavior, len(n.gates))
	if err != nil {
		return err
	}

	n.gates = append(n.gates, node)
	n.byName[name] = node
	n.built = false
	return nil
}

// Connect adds a data edge from one gate's output port to another gate's
// input port. An input port accepts at most one incoming edge; an output
// port may fan out to many.
func (n *Network) Connect(fromGate, fromPort, toGate, toPort string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.addEdge(fromGate, fromPort, toGate, toPort, false, component.Value{})
}

// ConnectFeedback adds a feedback edge delivering the previous cycle's
// value with a one-cycle delay. The initial value is what the consuming
// gate observes on the first cycle.
func (n *Network) ConnectFeedback(
	fromGate, fromPort, toGate, toPort string, initial component.Value,
) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if initial.IsZero() {
		return buildErrorf("feedback edge %s.%s -> %s.%s requires an initial value",
			fromGate, fromPort, toGate, toPort)
	}
	return n.addEdge(fromGate, fromPort, toGate, toPort, true, initial)
}

// addEdge validates endpoints and wires the edge; callers hold n.mu
func (n *Network) addEdge(
	fromGate, fromPort, toGate, toPort string, feedback bool, initial component.Value,
) error {
	from, exists := n.byName[fromGate]
	if !exists {
		return buildErrorf("unknown source gate %q", fromGate)
	}
	to, exists := n.byName[toGate]
	if !exists {
		return buildErrorf("unknown destination gate %q", toGate)
	}
	if !from.outputSet[fromPort] {
		return buildErrorf("gate %q has no output port %q", fromGate, fromPort)
	}
	if !to.inputSet[toPort] {
		return buildErrorf("gate %q has no input port %q", toGate, toPort)
	}
	if _, taken := to.inEdge[toPort]; taken {
		return buildErrorf("input port %s.%s already has an incoming edge; merging requires an explicit merge gate",
			toGate, toPort)
	}

	e := &edge{
		from:     from,
		fromPort: fromPort,
		to:       to,
		toPort:   toPort,
		feedback: feedback,
		initial:  initial,
	}
	to.inEdge[toPort] = e
	from.outEdges[fromPort] = append(from.outEdges[fromPort], e)
	n.edges = append(n.edges, e)
	n.built = false
	return nil
}

// Build validates the network and caches the evaluation order. It is
// called implicitly by the first Evaluate after a structural change; an
// explicit call surfaces build errors at declaration time.
func (n *Network) Build() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.build()
}

// build validates structure and computes the topological order over the
// non-feedback subgraph; callers hold n.mu
func (n *Network) build() error {
	if n.built {
		return nil
	}

	// Every input port needs an incoming edge; a gate that polls the
	// world declares no inputs instead of leaving ports dangling.
	for _, node := range n.gates {
		for _, port := range node.inputPorts {
			if _, ok := node.inEdge[port]; !ok {
				return buildErrorf("dangling input port %s.%s", node.name, port)
			}
		}
	}

	order, err := n.topoOrder()
	if err != nil {
		return err
	}

	n.order = order
	n.built = true
	return nil
}

// topoOrder runs Kahn's algorithm over data edges only. Feedback edges
// deliver the previous cycle's value and therefore impose no ordering.
// Ties break by declaration order, which keeps evaluation deterministic
// among independent gates.
func (n *Network) topoOrder() ([]*gateNode, error) {
	indegree := make(map[*gateNode]int, len(n.gates))
	for _, node := range n.gates {
		indegree[node] = 0
	}
	for _, e := range n.edges {
		if !e.feedback {
			indegree[e.to]++
		}
	}

	order := make([]*gateNode, 0, len(n.gates))
	visited := make(map[*gateNode]bool, len(n.gates))

	for len(order) < len(n.gates) {
		progressed := false
		for _, node := range n.gates { // declaration order scan
			if visited[node] || indegree[node] > 0 {
				continue
			}
			visited[node] = true
			order = append(order, node)
			progressed = true
			for _, edges := range node.outEdges {
				for _, e := range edges {
					if !e.feedback {
						indegree[e.to]--
					}
				}
			}
		}
		if !progressed {
			return nil, buildErrorf("cycle through data edges involving gates: %s; use a feedback edge to close loops",
				strings.Join(n.cyclicGateNames(visited), ", "))
		}
	}
	return order, nil
}

// cyclicGateNames lists unvisited gates for cycle diagnostics
func (n *Network) cyclicGateNames(visited map[*gateNode]bool) []string {
	var names []string
	for _, node := range n.gates {
		if !visited[node] {
			names = append(names, node.name)
		}
	}
	sort.Strings(names)
	return names
}

// Evaluate runs exactly one control cycle. Gates run in dependency order;
// a failing gate aborts the cycle, discards this cycle's outputs, and
// leaves feedback state untouched, so the next cycle starts clean.
func (n *Network) Evaluate(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.build(); err != nil {
		return err
	}

	start := time.Now()
	outputs := make(map[*gateNode]Outputs, len(n.order))

	for _, node := range n.order {
		if err := ctx.Err(); err != nil {
			n.metrics.recordFailure(node.name)
			return &EvaluationError{Gate: node.name, Err: err}
		}

		in := make(Inputs, len(node.inputPorts))
		for _, port := range node.inputPorts {
			e := node.inEdge[port]
			if e.feedback {
				in[port] = e.current()
			} else {
				in[port] = outputs[e.from][e.fromPort]
			}
		}

		out, err := node.behavior(ctx, in)
		if err != nil {
			n.metrics.recordFailure(node.name)
			n.logger.Warn("Gate evaluation failed; cycle aborted",
				"network", n.name, "gate", node.name, "error", err)
			return &EvaluationError{Gate: node.name, Err: err}
		}
		if err := node.checkOutputs(out); err != nil {
			n.metrics.recordFailure(node.name)
			return &EvaluationError{Gate: node.name, Err: err}
		}
		outputs[node] = out
	}

	// The cycle succeeded; commit feedback values for the next cycle
	for _, e := range n.edges {
		if e.feedback {
			e.held = outputs[e.from][e.fromPort]
			e.hasHeld = true
		}
	}

	n.cycleCount.Add(1)
	n.metrics.recordCycle(time.Since(start))
	return nil
}

// Cycles returns the number of completed control cycles. It does not
// take the network lock, so a gate behavior may call it mid-cycle; the
// count it sees excludes the cycle in progress.
func (n *Network) Cycles() uint64 {
	return n.cycleCount.Load()
}

// GateNames returns declared gate names in declaration order. It takes
// the network lock and therefore must not be called from a gate
// behavior; Evaluate holds the lock for the whole cycle.
func (n *Network) GateNames() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	names := make([]string, len(n.gates))
	for i, node := range n.gates {
		names[i] = node.name
	}
	return names
}
