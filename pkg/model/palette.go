package model

import "sort"

// ComponentType identifies a palette entry and drives property editing
type ComponentType string

const (
	TypeGenericService ComponentType = "GenericService"
	TypeDatabase       ComponentType = "Database"
	TypeMessageQueue   ComponentType = "MessageQueue"
	TypeLoadBalancer   ComponentType = "LoadBalancer"
	TypeCache          ComponentType = "Cache"
	TypeAPIGateway     ComponentType = "APIGateway"
)

// PropertyGroups splits a component's property keys for the property panel
type PropertyGroups struct {
	Essential []string `json:"essential"`
	Advanced  []string `json:"advanced"`
}

// PaletteEntry describes a component that can be dragged onto the canvas
type PaletteEntry struct {
	Type       ComponentType  `json:"type"`
	Name       string         `json:"name"`
	Category   string         `json:"category"`
	Icon       string         `json:"icon"`
	Color      string         `json:"color"`
	Defaults   map[string]any `json:"defaults"`
	Properties PropertyGroups `json:"propertyGroups"`
}

var palette = map[ComponentType]PaletteEntry{
	TypeGenericService: {
		Type:     TypeGenericService,
		Name:     "Service",
		Category: "Compute",
		Icon:     "server",
		Defaults: map[string]any{
			"instanceCount": 1, "cpu": "1 vCPU", "memory": "512MB",
			"description": "", "requestPerSecond": 100, "latency": 50, "errorRate": 0.01,
			"dependencies": []string{}, "customProperties": "{}",
		},
		Properties: PropertyGroups{
			Essential: []string{"instanceCount", "cpu", "memory"},
			Advanced:  []string{"description", "requestPerSecond", "latency", "errorRate", "dependencies", "customProperties"},
		},
	},
	TypeDatabase: {
		Type:     TypeDatabase,
		Name:     "Database",
		Category: "Storage",
		Icon:     "database",
		Defaults: map[string]any{
			"type": "PostgreSQL", "storageCapacity": "100GB", "replicationFactor": 3,
			"description": "", "readLatency": 5, "writeLatency": 10, "maxConnections": 100, "customProperties": "{}",
		},
		Properties: PropertyGroups{
			Essential: []string{"type", "storageCapacity", "replicationFactor"},
			Advanced:  []string{"description", "readLatency", "writeLatency", "maxConnections", "customProperties"},
		},
	},
	TypeMessageQueue: {
		Type:     TypeMessageQueue,
		Name:     "Message Queue",
		Category: "Messaging",
		Icon:     "mail",
		Defaults: map[string]any{
			"type": "Kafka", "throughput": 1000, "latency": 5,
			"description": "", "retentionPeriod": "7d", "customProperties": "{}",
		},
		Properties: PropertyGroups{
			Essential: []string{"type", "throughput", "latency"},
			Advanced:  []string{"description", "retentionPeriod", "customProperties"},
		},
	},
	TypeLoadBalancer: {
		Type:     TypeLoadBalancer,
		Name:     "Load Balancer",
		Category: "Networking",
		Icon:     "network",
		Defaults: map[string]any{
			"algorithm": "round-robin", "healthCheckInterval": 30,
			"description": "", "backendServices": []string{}, "customProperties": "{}",
		},
		Properties: PropertyGroups{
			Essential: []string{"algorithm", "healthCheckInterval"},
			Advanced:  []string{"description", "backendServices", "customProperties"},
		},
	},
	TypeCache: {
		Type:     TypeCache,
		Name:     "Cache",
		Category: "Storage",
		Icon:     "zap",
		Defaults: map[string]any{
			"type": "Redis", "capacity": "1GB", "hitRate": 0.9,
			"description": "", "evictionPolicy": "LRU", "customProperties": "{}",
		},
		Properties: PropertyGroups{
			Essential: []string{"type", "capacity", "hitRate"},
			Advanced:  []string{"description", "evictionPolicy", "customProperties"},
		},
	},
	TypeAPIGateway: {
		Type:     TypeAPIGateway,
		Name:     "API Gateway",
		Category: "Networking",
		Icon:     "shield",
		Defaults: map[string]any{
			"authentication": true, "rateLimiting": true, "requestPerSecondLimit": 1000,
			"description": "", "customProperties": "{}",
		},
		Properties: PropertyGroups{
			Essential: []string{"authentication", "rateLimiting", "requestPerSecondLimit"},
			Advanced:  []string{"description", "customProperties"},
		},
	},
}

// category colors used by the canvas
var categoryColors = map[string]string{
	"Compute":    "blue",
	"Storage":    "green",
	"Messaging":  "orange",
	"Networking": "purple",
}

// LookupPalette returns the palette entry for a component type
func LookupPalette(t ComponentType) (PaletteEntry, bool) {
	entry, ok := palette[t]
	if !ok {
		return PaletteEntry{}, false
	}
	entry.Color = CategoryColor(entry.Category)
	entry.Defaults = copyProperties(entry.Defaults)
	return entry, true
}

// Palette returns all palette entries ordered by category then name
func Palette() []PaletteEntry {
	entries := make([]PaletteEntry, 0, len(palette))
	for t := range palette {
		entry, _ := LookupPalette(t)
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Category != entries[j].Category {
			return entries[i].Category < entries[j].Category
		}
		return entries[i].Name < entries[j].Name
	})
	return entries
}

// GetPropertyGroups returns the essential/advanced property keys for a type.
// Unknown types have no groups.
func GetPropertyGroups(t ComponentType) PropertyGroups {
	entry, ok := palette[t]
	if !ok {
		return PropertyGroups{Essential: []string{}, Advanced: []string{}}
	}
	return entry.Properties
}

// CategoryColor returns the rendering color for a palette category
func CategoryColor(category string) string {
	if c, ok := categoryColors[category]; ok {
		return c
	}
	return "gray"
}

// NewComponentDraft builds the component a palette drop sends to the façade.
// The façade assigns the final id.
func NewComponentDraft(t ComponentType, name string, x, y float64) (Component, bool) {
	entry, ok := LookupPalette(t)
	if !ok {
		return Component{}, false
	}
	if name == "" {
		name = entry.Name
	}
	c := Component{
		Type:       t,
		Name:       name,
		Category:   entry.Category,
		Icon:       entry.Icon,
		Status:     ComponentOK,
		Properties: entry.Defaults,
	}
	c.Position.X = x
	c.Position.Y = y
	return c, true
}

func copyProperties(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
