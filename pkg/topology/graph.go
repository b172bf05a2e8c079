// Package topology analyzes the shape of a design: cycles, orphans and
// dangling connections, plus a plain-text summary of the canvas.
package topology

import (
	"gonum.org/v1/gonum/graph/simple"

	"github.com/architech-studio/architech/pkg/model"
)

// DesignGraph is the directed component graph of a design
type DesignGraph struct {
	graph     *simple.DirectedGraph
	ids       map[string]int64   // component id -> graph id
	names     map[int64]string   // graph id -> component id
	selfLoops map[string]bool    // components connected to themselves
	dangling  []model.Connection // connections with a missing endpoint
	nextID    int64
}

// NewDesignGraph builds the graph for design. Connections whose endpoints
// are not both components of the design are kept aside as dangling.
func NewDesignGraph(design model.Design) *DesignGraph {
	dg := &DesignGraph{
		graph:     simple.NewDirectedGraph(),
		ids:       make(map[string]int64),
		names:     make(map[int64]string),
		selfLoops: make(map[string]bool),
	}
	for _, c := range design.Components {
		dg.addComponent(c.ID)
	}
	for _, conn := range design.Connections {
		dg.addConnection(conn)
	}
	return dg
}

func (dg *DesignGraph) addComponent(id string) {
	if _, exists := dg.ids[id]; exists {
		return
	}
	dg.ids[id] = dg.nextID
	dg.names[dg.nextID] = id
	dg.graph.AddNode(simple.Node(dg.nextID))
	dg.nextID++
}

func (dg *DesignGraph) addConnection(conn model.Connection) {
	from, okFrom := dg.ids[conn.From]
	to, okTo := dg.ids[conn.To]
	if !okFrom || !okTo {
		dg.dangling = append(dg.dangling, conn)
		return
	}

	// simple graphs reject self edges
	if from == to {
		dg.selfLoops[conn.From] = true
		return
	}
	if !dg.graph.HasEdgeFromTo(from, to) {
		dg.graph.SetEdge(dg.graph.NewEdge(dg.graph.Node(from), dg.graph.Node(to)))
	}
}

// Len returns the number of components
func (dg *DesignGraph) Len() int {
	return len(dg.ids)
}

// ComponentID returns the component id of a graph node
func (dg *DesignGraph) ComponentID(id int64) string {
	return dg.names[id]
}

// Successors returns the ids of the components id connects to
func (dg *DesignGraph) Successors(id string) []string {
	return dg.neighbours(id, true)
}

// Predecessors returns the ids of the components connecting to id
func (dg *DesignGraph) Predecessors(id string) []string {
	return dg.neighbours(id, false)
}

func (dg *DesignGraph) neighbours(id string, outgoing bool) []string {
	nid, ok := dg.ids[id]
	if !ok {
		return nil
	}
	nodes := dg.graph.To(nid)
	if outgoing {
		nodes = dg.graph.From(nid)
	}
	var out []string
	for nodes.Next() {
		out = append(out, dg.names[nodes.Node().ID()])
	}
	return out
}

// degree reports whether a component has any incoming or outgoing edge
func (dg *DesignGraph) degree(id string) (in, out int) {
	nid := dg.ids[id]
	return dg.graph.To(nid).Len(), dg.graph.From(nid).Len()
}
