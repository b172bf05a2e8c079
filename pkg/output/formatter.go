package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/architech-studio/architech/pkg/model"
	"github.com/architech-studio/architech/pkg/store"
	"github.com/architech-studio/architech/pkg/topology"
)

var (
	bold   = color.New(color.Bold)
	red    = color.New(color.FgRed)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

// StateColor picks the color of a simulation state label
func StateColor(s model.SimulationState) *color.Color {
	switch s {
	case model.SimulationRunning:
		return green
	case model.SimulationPaused:
		return yellow
	}
	return faint
}

// StatusColor picks the color of a component status
func StatusColor(s model.ComponentStatus) *color.Color {
	switch s {
	case model.ComponentActive, model.ComponentOK:
		return green
	case model.ComponentWarning:
		return yellow
	case model.ComponentError:
		return red
	}
	return faint
}

func levelColor(l model.LogLevel) *color.Color {
	switch l {
	case model.LogError:
		return red
	case model.LogWarn:
		return yellow
	}
	return cyan
}

// PrintProjects lists projects, marking the current one
func PrintProjects(w io.Writer, projects []model.Project, currentID string) {
	bold.Fprintln(w, "Projects")
	bold.Fprintln(w, "========")
	if len(projects) == 0 {
		faint.Fprintln(w, "No projects yet")
		return
	}
	for _, p := range projects {
		marker := " "
		if p.ID == currentID {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-8s ", marker, p.ID)
		if p.ID == currentID {
			green.Fprint(w, p.Name)
		} else {
			fmt.Fprint(w, p.Name)
		}
		if p.Description != "" {
			faint.Fprintf(w, "  %s", p.Description)
		}
		fmt.Fprintln(w)
	}
}

// PrintPalette lists the components that can be placed on the canvas,
// grouped by category
func PrintPalette(w io.Writer, entries []model.PaletteEntry) {
	bold.Fprintln(w, "Component Palette")
	bold.Fprintln(w, "=================")
	category := ""
	for _, e := range entries {
		if e.Category != category {
			category = e.Category
			cyan.Fprintf(w, "%s\n", category)
		}
		fmt.Fprintf(w, "  %-16s %-14s", e.Type, e.Name)
		faint.Fprintf(w, " %s\n", strings.Join(e.Properties.Essential, ", "))
	}
}

// PrintReport prints the structure analysis of a design
func PrintReport(w io.Writer, title string, report topology.Report) {
	bold.Fprintf(w, "Design Analysis - %s\n", title)
	bold.Fprintln(w, strings.Repeat("=", len("Design Analysis - ")+len(title)))
	fmt.Fprintf(w, "Components: %d\n", report.Components)
	fmt.Fprintf(w, "Connections: %d\n", report.Connections)

	if len(report.TypeCounts) > 0 {
		types := make([]string, 0, len(report.TypeCounts))
		for t := range report.TypeCounts {
			types = append(types, string(t))
		}
		sort.Strings(types)
		for _, t := range types {
			cyan.Fprintf(w, "  %-16s %d\n", t, report.TypeCounts[model.ComponentType(t)])
		}
	}
	fmt.Fprintln(w)

	if len(report.EntryPoints) > 0 {
		fmt.Fprintf(w, "Entry points: %s\n", strings.Join(report.EntryPoints, ", "))
	}
	if len(report.Order) > 0 {
		fmt.Fprintf(w, "Request order: %s\n", strings.Join(report.Order, " -> "))
	}

	problems := len(report.Cycles) + len(report.Orphans) + len(report.Dangling)
	if len(report.Cycles) > 0 {
		red.Fprintln(w, "CYCLES:")
		for _, c := range report.Cycles {
			yellow.Fprintf(w, "  %s\n", strings.Join(c.Components, " <-> "))
		}
	}
	if len(report.Orphans) > 0 {
		yellow.Fprintf(w, "Unconnected: %s\n", strings.Join(report.Orphans, ", "))
	}
	if len(report.Dangling) > 0 {
		red.Fprintf(w, "Dangling connections: %s\n", strings.Join(report.Dangling, ", "))
	}

	if problems == 0 {
		green.Fprintln(w, "✓ No structural problems found")
	} else {
		yellow.Fprintf(w, "Summary: %d problem(s)\n", problems)
	}
}

// PrintTick prints one progress line of a running simulation
func PrintTick(w io.Writer, s store.AppState) {
	m := s.Metrics
	fmt.Fprintf(w, "[%6.1fs %3.0f%%] ", s.SimulationTime, s.SimulationProgress)
	StateColor(s.SimulationState).Fprintf(w, "%-8s", s.SimulationState)
	fmt.Fprintf(w, " requests=%.0f latency=%.1fms throughput=%.0f ", m.TotalRequests, m.AvgLatency, m.Throughput)
	errorRateColor(m.ErrorRate).Fprintf(w, "errors=%.1f%%", m.ErrorRate*100)
	fmt.Fprintln(w)
}

func errorRateColor(rate float64) *color.Color {
	switch {
	case rate >= 0.1:
		return red
	case rate > 0:
		return yellow
	}
	return green
}

// PrintSimulationSummary prints the final metrics, component health and
// the warnings and errors recorded during the run
func PrintSimulationSummary(w io.Writer, s store.AppState) {
	bold.Fprintln(w, "Simulation Summary")
	bold.Fprintln(w, "==================")
	fmt.Fprintf(w, "Simulated: %.1fs of %.0fs (%.0f%%)\n", s.SimulationTime, s.TotalDuration, s.SimulationProgress)
	fmt.Fprintf(w, "Total requests: %.0f\n", s.Metrics.TotalRequests)
	fmt.Fprintf(w, "Average latency: %.1fms\n", s.Metrics.AvgLatency)
	fmt.Fprintf(w, "Throughput: %.0f\n", s.Metrics.Throughput)
	errorRateColor(s.Metrics.ErrorRate).Fprintf(w, "Error rate: %.1f%%\n", s.Metrics.ErrorRate*100)
	fmt.Fprintln(w)

	if len(s.Components) > 0 {
		bold.Fprintln(w, "Components:")
		for _, c := range s.Components {
			fmt.Fprintf(w, "  %-24s ", c.Name)
			StatusColor(c.Status).Fprintf(w, "%s", c.Status)
			if c.Metrics != nil {
				faint.Fprintf(w, "  cpu=%.0f%% mem=%.0f%% latency=%.0fms", c.Metrics.CPU, c.Metrics.Memory, c.Metrics.Latency)
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}

	if len(s.Events) == 0 {
		green.Fprintln(w, "✓ No warnings or errors")
		return
	}
	red.Fprintf(w, "EVENTS (%d):\n", len(s.Events))
	for _, e := range s.Events {
		c := yellow
		if e.Type == "error" {
			c = red
		}
		c.Fprintf(w, "  %6.1fs %-7s ", e.Time, e.Type)
		fmt.Fprintln(w, e.Message)
	}
}

// PrintLogs prints up to limit log entries, most recent first
func PrintLogs(w io.Writer, logs []model.LogEntry, limit int) {
	if limit <= 0 || limit > len(logs) {
		limit = len(logs)
	}
	for _, l := range logs[:limit] {
		faint.Fprintf(w, "%s ", l.Timestamp.Format("15:04:05"))
		levelColor(l.Level).Fprintf(w, "%-5s ", strings.ToUpper(string(l.Level)))
		if l.Component != "" {
			cyan.Fprintf(w, "%s: ", l.Component)
		}
		fmt.Fprintln(w, l.Message)
	}
}
