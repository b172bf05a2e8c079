package topology

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/graph/topo"

	"github.com/architech-studio/architech/pkg/model"
)

// Cycle is a group of components that reach each other through connections
type Cycle struct {
	Components []string `json:"components"` // Sorted component ids
}

// Report is the result of analyzing a design
type Report struct {
	Components  int                         `json:"components"`
	Connections int                         `json:"connections"`
	TypeCounts  map[model.ComponentType]int `json:"typeCounts"`
	Cycles      []Cycle                     `json:"cycles"`
	Orphans     []string                    `json:"orphans"`     // Components without any connection
	EntryPoints []string                    `json:"entryPoints"` // Components nothing connects to
	Dangling    []string                    `json:"dangling"`    // Connection ids with a missing endpoint
	Order       []string                    `json:"order"`       // Topological order when acyclic
}

// Acyclic reports whether the design has no cycles
func (r Report) Acyclic() bool {
	return len(r.Cycles) == 0
}

// Analyze inspects design. Ids in every list are sorted.
func Analyze(design model.Design) Report {
	dg := NewDesignGraph(design)
	report := Report{
		Components:  len(design.Components),
		Connections: len(design.Connections),
		TypeCounts:  make(map[model.ComponentType]int),
	}

	for _, c := range design.Components {
		report.TypeCounts[c.Type]++
	}

	for _, ids := range newTarjanSCC(dg.graph).findCycles() {
		cycle := Cycle{Components: make([]string, 0, len(ids))}
		for _, id := range ids {
			cycle.Components = append(cycle.Components, dg.ComponentID(id))
		}
		sort.Strings(cycle.Components)
		report.Cycles = append(report.Cycles, cycle)
	}
	for id := range dg.selfLoops {
		report.Cycles = append(report.Cycles, Cycle{Components: []string{id}})
	}
	sort.Slice(report.Cycles, func(i, j int) bool {
		return report.Cycles[i].Components[0] < report.Cycles[j].Components[0]
	})

	for id := range dg.ids {
		in, out := dg.degree(id)
		switch {
		case in == 0 && out == 0 && !dg.selfLoops[id]:
			report.Orphans = append(report.Orphans, id)
		case in == 0 && out > 0:
			report.EntryPoints = append(report.EntryPoints, id)
		}
	}
	sort.Strings(report.Orphans)
	sort.Strings(report.EntryPoints)

	for _, conn := range dg.dangling {
		report.Dangling = append(report.Dangling, conn.ID)
	}
	sort.Strings(report.Dangling)

	if report.Acyclic() {
		if sorted, err := topo.SortStabilized(dg.graph, nil); err == nil {
			for _, n := range sorted {
				report.Order = append(report.Order, dg.ComponentID(n.ID()))
			}
		}
	}
	return report
}

// Summary renders a plain-text description of the canvas: one line per
// component, one per connection, then the analysis findings.
func Summary(design model.Design) string {
	report := Analyze(design)

	names := make(map[string]string, len(design.Components))
	for _, c := range design.Components {
		names[c.ID] = c.Name
	}
	label := func(id string) string {
		if name := names[id]; name != "" {
			return name
		}
		return id
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Design with %d components and %d connections.\n", report.Components, report.Connections)

	if len(design.Components) > 0 {
		b.WriteString("\nComponents:\n")
		for _, c := range design.Components {
			fmt.Fprintf(&b, "- %s (%s", label(c.ID), c.Type)
			if c.Category != "" {
				fmt.Fprintf(&b, ", %s", c.Category)
			}
			b.WriteString(")")
			if props := formatProperties(c.Properties); props != "" {
				fmt.Fprintf(&b, ": %s", props)
			}
			b.WriteString("\n")
		}
	}

	if len(design.Connections) > 0 {
		b.WriteString("\nConnections:\n")
		for _, conn := range design.Connections {
			fmt.Fprintf(&b, "- %s -> %s", label(conn.From), label(conn.To))
			if p := conn.Properties.Protocol; p != "" {
				fmt.Fprintf(&b, " via %s", p)
			}
			if conn.Properties.Latency > 0 {
				fmt.Fprintf(&b, ", %gms latency", conn.Properties.Latency)
			}
			b.WriteString("\n")
		}
	}

	var findings []string
	for _, cycle := range report.Cycles {
		labels := make([]string, 0, len(cycle.Components))
		for _, id := range cycle.Components {
			labels = append(labels, label(id))
		}
		findings = append(findings, "Cycle between "+strings.Join(labels, ", "))
	}
	for _, id := range report.Orphans {
		findings = append(findings, label(id)+" is not connected")
	}
	for _, id := range report.Dangling {
		findings = append(findings, "Connection "+id+" has a missing endpoint")
	}
	if len(findings) > 0 {
		b.WriteString("\nFindings:\n")
		for _, f := range findings {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	return b.String()
}

func formatProperties(props map[string]any) string {
	if len(props) == 0 {
		return ""
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		if k == "customProperties" || k == "description" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, props[k]))
	}
	return strings.Join(parts, ", ")
}
