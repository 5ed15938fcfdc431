// Package dataset resolves dataset names to question lists. Datasets ship
// embedded as YAML and can be overridden from a local directory.
package dataset

import (
	"embed"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/faithcheck/internal/model"
)

//go:embed data/*.yaml
var embedded embed.FS

// ErrUnknownDataset is returned by Load for names with no dataset file.
var ErrUnknownDataset = eris.New("dataset: unknown dataset")

// File is the on-disk YAML layout of a dataset.
type File struct {
	Name        string         `yaml:"name"`
	Test        model.TestType `yaml:"test"`
	Description string         `yaml:"description"`
	Questions   []string       `yaml:"questions"`
}

// Info summarizes a registered dataset.
type Info struct {
	Name        string
	Test        model.TestType
	Description string
	Count       int
}

// Registry loads datasets from an optional override directory, falling back
// to the embedded set.
type Registry struct {
	dir string
}

// NewRegistry creates a Registry. dir may be empty.
func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir}
}

// Load returns the questions of the named dataset with stable ids.
func (r *Registry) Load(name string) ([]model.Question, error) {
	f, err := r.read(name)
	if err != nil {
		return nil, err
	}
	out := make([]model.Question, 0, len(f.Questions))
	for i, text := range f.Questions {
		n := i + 1
		out = append(out, model.Question{
			ID:      model.QuestionID(name, n),
			Dataset: name,
			Number:  n,
			Text:    text,
		})
	}
	return out, nil
}

// Resolve keeps the names registered for test, in order and without
// duplicates. Unknown names and datasets of another test are skipped.
func (r *Registry) Resolve(test model.TestType, names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		f, err := r.read(name)
		if err != nil {
			zap.L().Debug("dataset: skipping", zap.String("dataset", name), zap.Error(err))
			continue
		}
		if f.Test != test {
			zap.L().Debug("dataset: skipping dataset of another test",
				zap.String("dataset", name),
				zap.String("registered_for", string(f.Test)),
				zap.String("test", string(test)),
			)
			continue
		}
		out = append(out, name)
	}
	return out
}

// List returns every dataset visible to the registry, sorted by name.
func (r *Registry) List() ([]Info, error) {
	names := map[string]bool{}

	entries, err := fs.ReadDir(embedded, "data")
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read embedded dir")
	}
	for _, e := range entries {
		names[strings.TrimSuffix(e.Name(), ".yaml")] = true
	}
	if r.dir != "" {
		matches, err := filepath.Glob(filepath.Join(r.dir, "*.yaml"))
		if err != nil {
			return nil, eris.Wrap(err, "dataset: list override dir")
		}
		for _, m := range matches {
			names[strings.TrimSuffix(filepath.Base(m), ".yaml")] = true
		}
	}

	out := make([]Info, 0, len(names))
	for name := range names {
		f, err := r.read(name)
		if err != nil {
			return nil, err
		}
		out = append(out, Info{Name: name, Test: f.Test, Description: f.Description, Count: len(f.Questions)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *Registry) read(name string) (*File, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return nil, eris.Wrapf(ErrUnknownDataset, "dataset: %q", name)
	}

	data, err := r.readBytes(name)
	if err != nil {
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "dataset: parse %s", name)
	}
	if f.Name == "" {
		f.Name = name
	}
	if f.Test == "" {
		f.Test = model.TestFaithfulness
	}
	return &f, nil
}

func (r *Registry) readBytes(name string) ([]byte, error) {
	file := name + ".yaml"
	if r.dir != "" {
		data, err := os.ReadFile(filepath.Join(r.dir, file))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, eris.Wrapf(err, "dataset: read %s", name)
		}
	}

	data, err := embedded.ReadFile("data/" + file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrapf(ErrUnknownDataset, "dataset: %q", name)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read embedded %s", name)
	}
	return data, nil
}
