// Package fixtures loads seed designs for the dev server from JSON files
// and can reload them when the files change.
package fixtures

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/architech-studio/architech/pkg/api"
	"github.com/architech-studio/architech/pkg/logging"
	"github.com/architech-studio/architech/pkg/model"
	"github.com/architech-studio/architech/pkg/topology"
)

// Fixture is the content of one seed file
type Fixture struct {
	Path    string      `json:"-"`
	Project ProjectSeed `json:"project"`
	Design  DesignSeed  `json:"design"`
}

type ProjectSeed struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type DesignSeed struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Components  []model.Component  `json:"components"`
	Connections []model.Connection `json:"connections"`
}

// Sink receives loaded fixtures. *devserver.Server implements it.
type Sink interface {
	Seed(p api.Project, d api.Design) (api.Project, api.Design)
}

// IsFixture reports whether path names a seed file
func IsFixture(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// Load reads and validates one seed file. A missing project id defaults to
// the file name without extension, so reloading a file replaces its project.
func Load(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("failed to read fixture: %w", err)
	}

	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return Fixture{}, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	f.Path = path

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if f.Project.ID == "" {
		f.Project.ID = stem
	}
	if f.Project.Name == "" {
		f.Project.Name = stem
	}
	if f.Design.Name == "" {
		f.Design.Name = f.Project.Name
	}

	if err := f.validate(); err != nil {
		return Fixture{}, fmt.Errorf("invalid fixture %s: %w", path, err)
	}
	return f, nil
}

func (f Fixture) validate() error {
	seen := make(map[string]bool, len(f.Design.Components))
	for i, c := range f.Design.Components {
		if c.ID == "" {
			return fmt.Errorf("component %d has no id", i)
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate component id %q", c.ID)
		}
		seen[c.ID] = true
	}

	report := topology.Analyze(f.design())
	if len(report.Dangling) > 0 {
		return fmt.Errorf("connections with missing endpoints: %s", strings.Join(report.Dangling, ", "))
	}
	return nil
}

func (f Fixture) design() model.Design {
	return model.Design{Components: f.Design.Components, Connections: f.Design.Connections}
}

// Records converts the fixture into dev server records
func (f Fixture) Records() (api.Project, api.Design) {
	data := api.EmptyDesignData()
	if f.Design.Components != nil {
		data.Nodes = f.Design.Components
	}
	if f.Design.Connections != nil {
		data.Edges = f.Design.Connections
	}
	project := api.Project{
		ID:          f.Project.ID,
		Name:        f.Project.Name,
		Description: f.Project.Description,
	}
	design := api.Design{
		Name:        f.Design.Name,
		Description: f.Design.Description,
		DesignData:  data,
	}
	return project, design
}

// LoadDir loads every seed file in dir, sorted by name. A file that fails
// to load is reported and skipped.
func LoadDir(dir string) ([]Fixture, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && IsFixture(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	fixtures := make([]Fixture, 0, len(names))
	for _, name := range names {
		f, err := Load(filepath.Join(dir, name))
		if err != nil {
			logging.Warn("skipping fixture", "path", name, "error", err)
			continue
		}
		fixtures = append(fixtures, f)
	}
	return fixtures, nil
}

// Apply seeds every fixture into sink
func Apply(sink Sink, fixtures []Fixture) {
	for _, f := range fixtures {
		p, d := f.Records()
		sink.Seed(p, d)
	}
}

// SeedDir loads dir and seeds it into sink, returning the number of fixtures applied
func SeedDir(sink Sink, dir string) (int, error) {
	fixtures, err := LoadDir(dir)
	if err != nil {
		return 0, err
	}
	Apply(sink, fixtures)
	logging.Info("loaded fixtures", "dir", dir, "count", len(fixtures))
	return len(fixtures), nil
}
