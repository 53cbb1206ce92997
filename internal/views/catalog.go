// Package views declares the list views of the console: their filters,
// searchable and sortable fields, and where their rows come from.
package views

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/telhawk-systems/console/pkg/listview"
)

//go:embed catalog.yaml
var builtin []byte

// ErrUnknownView is returned when a view name is not in the catalog.
var ErrUnknownView = errors.New("unknown view")

// Mode says where a view's rows come from.
type Mode string

const (
	ModeRemote Mode = "remote"
	ModeLocal  Mode = "local"
)

type catalogFile struct {
	Views []viewDef `yaml:"views"`
}

type viewDef struct {
	Name            string      `yaml:"name"`
	Title           string      `yaml:"title"`
	Mode            Mode        `yaml:"mode"`
	Resource        string      `yaml:"resource"`
	Columns         []string    `yaml:"columns"`
	SearchFields    []string    `yaml:"search_fields"`
	SortFields      []string    `yaml:"sort_fields"`
	PageSizes       []int       `yaml:"page_sizes"`
	DefaultPageSize int         `yaml:"default_page_size"`
	SearchKey       string      `yaml:"search_key"`
	SearchParam     string      `yaml:"search_param"`
	Filters         []filterDef `yaml:"filters"`
}

type filterDef struct {
	Key     string   `yaml:"key"`
	Kind    string   `yaml:"kind"`
	Field   string   `yaml:"field"`
	Param   string   `yaml:"param"`
	Label   string   `yaml:"label"`
	Multi   string   `yaml:"multi"`
	Default string   `yaml:"default"`
	Options []string `yaml:"options"`
}

// View is one catalog entry.
type View struct {
	Name     string
	Title    string
	Mode     Mode
	Resource string
	Columns  []string

	def viewDef
}

// Spec builds a fresh, validated listview.Spec. Every call returns a new
// value so views never share mutable declarations.
func (v *View) Spec() *listview.Spec {
	spec, err := buildSpec(v.def)
	if err != nil {
		// Catalog construction already built this definition once.
		panic(fmt.Sprintf("views: %s: %v", v.Name, err))
	}
	return spec
}

// Catalog is an ordered, immutable set of views.
type Catalog struct {
	views  []*View
	byName map[string]*View
}

// Option adjusts view definitions while a catalog is parsed.
type Option func(*viewDef)

// WithPageSizes applies a page-size allow-list to views that declare none.
func WithPageSizes(sizes []int, defaultSize int) Option {
	return func(d *viewDef) {
		if len(d.PageSizes) > 0 || len(sizes) == 0 {
			return
		}
		d.PageSizes = slices.Clone(sizes)
		if d.DefaultPageSize == 0 || !slices.Contains(sizes, d.DefaultPageSize) {
			d.DefaultPageSize = defaultSize
		}
	}
}

// Default returns the built-in catalog.
func Default(opts ...Option) (*Catalog, error) {
	return Parse(builtin, opts...)
}

// Load parses a catalog from r.
func Load(r io.Reader, opts ...Option) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data, opts...)
}

// Parse builds a catalog from YAML.
func Parse(data []byte, opts ...Option) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(file.Views) == 0 {
		return nil, errors.New("catalog declares no views")
	}

	c := &Catalog{byName: make(map[string]*View, len(file.Views))}
	for _, def := range file.Views {
		for _, opt := range opts {
			opt(&def)
		}
		if def.Mode == "" {
			def.Mode = ModeRemote
		}
		if def.Mode != ModeRemote && def.Mode != ModeLocal {
			return nil, fmt.Errorf("view %s: unknown mode %q", def.Name, def.Mode)
		}
		if _, dup := c.byName[def.Name]; dup {
			return nil, fmt.Errorf("view %s: declared twice", def.Name)
		}
		if _, err := buildSpec(def); err != nil {
			return nil, err
		}
		v := &View{
			Name:     def.Name,
			Title:    def.Title,
			Mode:     def.Mode,
			Resource: def.Resource,
			Columns:  def.Columns,
			def:      def,
		}
		if v.Resource == "" {
			v.Resource = v.Name
		}
		if v.Title == "" {
			v.Title = v.Name
		}
		c.views = append(c.views, v)
		c.byName[v.Name] = v
	}
	return c, nil
}

// Get looks a view up by name.
func (c *Catalog) Get(name string) (*View, error) {
	v, ok := c.byName[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, name)
	}
	return v, nil
}

// All returns the views in declaration order.
func (c *Catalog) All() []*View {
	return slices.Clone(c.views)
}

// Names returns the view names in declaration order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.views))
	for i, v := range c.views {
		out[i] = v.Name
	}
	return out
}

func buildSpec(def viewDef) (*listview.Spec, error) {
	spec := &listview.Spec{
		Name:            def.Name,
		SearchFields:    slices.Clone(def.SearchFields),
		SortFields:      slices.Clone(def.SortFields),
		PageSizes:       slices.Clone(def.PageSizes),
		DefaultPageSize: def.DefaultPageSize,
		SearchKey:       def.SearchKey,
		SearchParam:     def.SearchParam,
	}
	for _, fd := range def.Filters {
		kind, ok := listview.ParseFilterKind(fd.Kind)
		if !ok {
			return nil, fmt.Errorf("view %s: filter %s: unknown kind %q", def.Name, fd.Key, fd.Kind)
		}
		f := listview.FilterDef{
			Key:     fd.Key,
			Kind:    kind,
			Field:   fd.Field,
			Param:   fd.Param,
			Label:   fd.Label,
			Options: slices.Clone(fd.Options),
		}
		switch strings.ToLower(fd.Multi) {
		case "", "omit":
			f.Multi = listview.MultiOmit
		case "join":
			f.Multi = listview.MultiJoin
		default:
			return nil, fmt.Errorf("view %s: filter %s: unknown multi policy %q", def.Name, fd.Key, fd.Multi)
		}
		if fd.Default != "" {
			value, ok := listview.ParseFilterValue(f, fd.Default)
			if !ok {
				return nil, fmt.Errorf("view %s: filter %s: bad default %q", def.Name, fd.Key, fd.Default)
			}
			f.Default = value
		}
		spec.Filters = append(spec.Filters, f)
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("view %s: %w", def.Name, err)
	}
	return spec, nil
}
