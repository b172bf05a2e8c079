package model

import "testing"

func TestDefaultMetrics(t *testing.T) {
	m := DefaultMetrics()
	if len(m.LatencyHistory) != LatencyHistoryLength {
		t.Fatalf("Expected %d history points, got %d", LatencyHistoryLength, len(m.LatencyHistory))
	}
	if m.LatencyHistory[0].Time != "0s" || m.LatencyHistory[19].Time != "38s" {
		t.Errorf("Unexpected labels %q..%q", m.LatencyHistory[0].Time, m.LatencyHistory[19].Time)
	}

	clone := m.Clone()
	clone.LatencyHistory[0].Latency = 42
	if m.LatencyHistory[0].Latency != 0 {
		t.Error("Clone should not share the latency history")
	}
}

func TestGetPropertyGroups(t *testing.T) {
	tests := []struct {
		typ       ComponentType
		essential []string
	}{
		{TypeGenericService, []string{"instanceCount", "cpu", "memory"}},
		{TypeDatabase, []string{"type", "storageCapacity", "replicationFactor"}},
		{TypeMessageQueue, []string{"type", "throughput", "latency"}},
		{TypeLoadBalancer, []string{"algorithm", "healthCheckInterval"}},
		{TypeCache, []string{"type", "capacity", "hitRate"}},
		{TypeAPIGateway, []string{"authentication", "rateLimiting", "requestPerSecondLimit"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			groups := GetPropertyGroups(tt.typ)
			if len(groups.Essential) != len(tt.essential) {
				t.Fatalf("Expected %v, got %v", tt.essential, groups.Essential)
			}
			for i, key := range tt.essential {
				if groups.Essential[i] != key {
					t.Errorf("Expected essential[%d]=%s, got %s", i, key, groups.Essential[i])
				}
			}
		})
	}

	unknown := GetPropertyGroups("Mainframe")
	if len(unknown.Essential) != 0 || len(unknown.Advanced) != 0 {
		t.Errorf("Expected empty groups for unknown type, got %+v", unknown)
	}
}

func TestNewComponentDraft(t *testing.T) {
	c, ok := NewComponentDraft(TypeCache, "", 10, 20)
	if !ok {
		t.Fatal("Expected draft for known type")
	}
	if c.Name != "Cache" || c.Category != "Storage" || c.Status != ComponentOK {
		t.Errorf("Unexpected draft %+v", c)
	}
	if c.Position.X != 10 || c.Position.Y != 20 {
		t.Errorf("Unexpected position %+v", c.Position)
	}

	// Defaults must be copied so drafts don't share state
	c.Properties["type"] = "Memcached"
	again, _ := NewComponentDraft(TypeCache, "", 0, 0)
	if again.Properties["type"] != "Redis" {
		t.Error("Palette defaults were mutated through a draft")
	}

	if _, ok := NewComponentDraft("Mainframe", "", 0, 0); ok {
		t.Error("Expected no draft for unknown type")
	}
}

func TestPaletteOrdering(t *testing.T) {
	entries := Palette()
	if len(entries) != 6 {
		t.Fatalf("Expected 6 palette entries, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Category > entries[i].Category {
			t.Errorf("Palette not ordered by category at %d", i)
		}
	}
	for _, e := range entries {
		if e.Color == "" || e.Color == "gray" {
			t.Errorf("Expected a category color for %s", e.Type)
		}
	}
}
