// Package schema owns the task definitions and everything that interprets an
// output schema: validation, structural repair and result skeletons.
package schema

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"pantrygen"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed tasks.yaml
var defaultArtifact []byte

// TaskSpec is an immutable task definition. Callers must treat Schema as read-only.
type TaskSpec struct {
	Name        string
	PromptLines []string
	Schema      *jsonschema.Schema
	Items       ItemSpec
	Repair      RepairHints
}

// ItemSpec locates the generated items a task produces, for post-generation checks.
type ItemSpec struct {
	Path              []string `yaml:"path"`
	NameField         string   `yaml:"name_field"`
	IngredientsField  string   `yaml:"ingredients_field"`
	IngredientIDField string   `yaml:"ingredient_id_field"`
	AllergensField    string   `yaml:"allergens_field"`
}

// RepairHints carries the task-specific knowledge the generic repairer and
// controller need: field names, sentinel defaults, aliases and a correction hint.
type RepairHints struct {
	StatusField    string            `yaml:"status_field"`
	MessageField   string            `yaml:"message_field"`
	QuestionsField string            `yaml:"questions_field"`
	IDField        string            `yaml:"id_field"`
	Defaults       map[string]any    `yaml:"defaults"`
	Aliases        map[string]string `yaml:"aliases"`
	CorrectionHint string            `yaml:"correction_hint"`
}

type artifact struct {
	Version string         `yaml:"version"`
	Tasks   []taskArtifact `yaml:"tasks"`
}

type taskArtifact struct {
	Name         string         `yaml:"name"`
	PromptLines  []string       `yaml:"prompt_lines"`
	Items        ItemSpec       `yaml:"items"`
	Repair       RepairHints    `yaml:"repair"`
	OutputSchema map[string]any `yaml:"output_schema"`
}

// Registry holds every task loaded from one spec artifact version. It is
// built once and safe for concurrent reads.
type Registry struct {
	version string
	tasks   map[string]TaskSpec
}

// Load parses a YAML spec artifact.
func Load(data []byte) (*Registry, error) {
	var a artifact
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse spec artifact: %w", err)
	}
	if len(a.Tasks) == 0 {
		return nil, fmt.Errorf("spec artifact %q defines no tasks", a.Version)
	}

	r := &Registry{version: a.Version, tasks: make(map[string]TaskSpec, len(a.Tasks))}
	for _, t := range a.Tasks {
		if t.Name == "" {
			return nil, fmt.Errorf("spec artifact %q: task without name", a.Version)
		}
		if _, dup := r.tasks[t.Name]; dup {
			return nil, fmt.Errorf("spec artifact %q: duplicate task %q", a.Version, t.Name)
		}
		s, err := decodeSchema(t.OutputSchema)
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", t.Name, err)
		}
		r.tasks[t.Name] = TaskSpec{
			Name:        t.Name,
			PromptLines: t.PromptLines,
			Schema:      s,
			Items:       t.Items,
			Repair:      t.Repair.withDefaults(),
		}
	}

	slog.Info("SCHEMA: Registry loaded", "version", r.version, "tasks", len(r.tasks))
	return r, nil
}

type loader interface {
	Load(ctx context.Context) ([]byte, error)
}

// LoadFrom reads and parses an artifact from any byte source (file, S3, ...).
func LoadFrom(ctx context.Context, src loader) (*Registry, error) {
	b, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("read spec artifact: %w", err)
	}
	return Load(b)
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
	defaultErr  error
)

// Default returns the registry built from the embedded artifact, loading it on first use.
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		defaultReg, defaultErr = Load(defaultArtifact)
	})
	return defaultReg, defaultErr
}

func decodeSchema(raw map[string]any) (*jsonschema.Schema, error) {
	if raw == nil {
		return nil, fmt.Errorf("missing output_schema")
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode output_schema: %w", err)
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode output_schema: %w", err)
	}
	return &s, nil
}

func (h RepairHints) withDefaults() RepairHints {
	if h.StatusField == "" {
		h.StatusField = "status"
	}
	if h.MessageField == "" {
		h.MessageField = "message"
	}
	if h.QuestionsField == "" {
		h.QuestionsField = "questions"
	}
	if h.IDField == "" {
		h.IDField = "id"
	}
	return h
}

// Lookup returns the named task.
func (r *Registry) Lookup(name string) (TaskSpec, error) {
	t, ok := r.tasks[name]
	if !ok {
		return TaskSpec{}, fmt.Errorf("%w: %q", pantrygen.ErrUnknownTask, name)
	}
	return t, nil
}

// Names lists the registered task names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tasks))
	for n := range r.tasks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Version() string { return r.version }
