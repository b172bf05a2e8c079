package topology

import (
	"reflect"
	"strings"
	"testing"

	"github.com/architech-studio/architech/pkg/model"
)

func comp(id string, t model.ComponentType) model.Component {
	return model.Component{ID: id, Name: strings.ToUpper(id), Type: t}
}

func conn(id, from, to string) model.Connection {
	return model.Connection{ID: id, From: from, To: to, Properties: model.DefaultConnectionProperties()}
}

func TestAnalyze_NoCycles(t *testing.T) {
	design := model.Design{
		Components: []model.Component{
			comp("lb", model.TypeLoadBalancer),
			comp("api", model.TypeGenericService),
			comp("db", model.TypeDatabase),
		},
		Connections: []model.Connection{
			conn("k1", "lb", "api"),
			conn("k2", "api", "db"),
		},
	}

	report := Analyze(design)

	if !report.Acyclic() {
		t.Errorf("Expected no cycles, found %v", report.Cycles)
	}
	if len(report.Orphans) != 0 {
		t.Errorf("Expected no orphans, got %v", report.Orphans)
	}
	if !reflect.DeepEqual(report.EntryPoints, []string{"lb"}) {
		t.Errorf("Expected entry point lb, got %v", report.EntryPoints)
	}
	if !reflect.DeepEqual(report.Order, []string{"lb", "api", "db"}) {
		t.Errorf("Unexpected topological order %v", report.Order)
	}
	if report.TypeCounts[model.TypeDatabase] != 1 {
		t.Errorf("Expected 1 database, got %d", report.TypeCounts[model.TypeDatabase])
	}
}

func TestAnalyze_ThreeNodeCycle(t *testing.T) {
	design := model.Design{
		Components: []model.Component{
			comp("a", model.TypeGenericService),
			comp("b", model.TypeGenericService),
			comp("c", model.TypeGenericService),
			comp("d", model.TypeCache),
		},
		Connections: []model.Connection{
			conn("k1", "a", "b"),
			conn("k2", "b", "c"),
			conn("k3", "c", "a"),
			conn("k4", "c", "d"),
		},
	}

	report := Analyze(design)

	if len(report.Cycles) != 1 {
		t.Fatalf("Expected 1 cycle, got %d", len(report.Cycles))
	}
	if !reflect.DeepEqual(report.Cycles[0].Components, []string{"a", "b", "c"}) {
		t.Errorf("Expected cycle a, b, c, got %v", report.Cycles[0].Components)
	}
	if report.Order != nil {
		t.Errorf("Cyclic designs have no order, got %v", report.Order)
	}
}

func TestAnalyze_SelfLoopAndDangling(t *testing.T) {
	design := model.Design{
		Components: []model.Component{
			comp("q", model.TypeMessageQueue),
			comp("lonely", model.TypeCache),
		},
		Connections: []model.Connection{
			conn("k1", "q", "q"),
			conn("k2", "q", "ghost"),
		},
	}

	report := Analyze(design)

	if len(report.Cycles) != 1 || report.Cycles[0].Components[0] != "q" {
		t.Errorf("Expected self loop on q, got %v", report.Cycles)
	}
	if !reflect.DeepEqual(report.Orphans, []string{"lonely"}) {
		t.Errorf("Expected orphan lonely, got %v", report.Orphans)
	}
	if !reflect.DeepEqual(report.Dangling, []string{"k2"}) {
		t.Errorf("Expected dangling k2, got %v", report.Dangling)
	}
}

func TestAnalyze_Empty(t *testing.T) {
	report := Analyze(model.Design{})
	if report.Components != 0 || len(report.Cycles) != 0 || len(report.Orphans) != 0 {
		t.Errorf("Expected empty report, got %+v", report)
	}
}

func TestDesignGraphNeighbours(t *testing.T) {
	dg := NewDesignGraph(model.Design{
		Components: []model.Component{
			comp("a", model.TypeGenericService),
			comp("b", model.TypeGenericService),
		},
		Connections: []model.Connection{conn("k1", "a", "b"), conn("k2", "a", "b")},
	})

	if dg.Len() != 2 {
		t.Errorf("Expected 2 nodes, got %d", dg.Len())
	}
	if got := dg.Successors("a"); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("Expected successors [b], got %v", got)
	}
	if got := dg.Predecessors("b"); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("Expected predecessors [a], got %v", got)
	}
	if got := dg.Successors("missing"); got != nil {
		t.Errorf("Expected nil for unknown component, got %v", got)
	}
}

func TestSummary(t *testing.T) {
	design := model.Design{
		Components: []model.Component{
			{ID: "api", Name: "Orders API", Type: model.TypeGenericService, Category: "Compute",
				Properties: map[string]any{"instanceCount": 3, "description": "skip me"}},
			{ID: "db", Name: "Orders DB", Type: model.TypeDatabase, Category: "Storage"},
			{ID: "cache", Name: "Cache", Type: model.TypeCache},
		},
		Connections: []model.Connection{conn("k1", "api", "db")},
	}

	summary := Summary(design)
	t.Logf("Summary:\n%s", summary)

	for _, want := range []string{
		"Design with 3 components and 1 connections.",
		"- Orders API (GenericService, Compute): instanceCount=3",
		"- Orders API -> Orders DB via HTTP/S, 100ms latency",
		"- Cache is not connected",
	} {
		if !strings.Contains(summary, want) {
			t.Errorf("Summary missing %q", want)
		}
	}
	if strings.Contains(summary, "skip me") {
		t.Errorf("Summary should omit descriptions")
	}
}
