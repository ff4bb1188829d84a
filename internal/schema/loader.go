package schema

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// YAML shapes for declared schemas. Decoding is fail-closed: unknown fields
// at any level are a load error so typos never silently drop settings.

type tableYAML struct {
	Table            string            `yaml:"table"`
	Comment          string            `yaml:"comment"`
	Columns          []columnYAML      `yaml:"columns"`
	PrimaryKey       *primaryKeyYAML   `yaml:"primary_key"`
	CheckConstraints []checkYAML       `yaml:"check_constraints"`
	LiquidClustering []string          `yaml:"liquid_clustering"`
	PartitionedBy    []string          `yaml:"partitioned_by"`
	TableProperties  map[string]string `yaml:"table_properties"`
}

type columnYAML struct {
	Name       string          `yaml:"name"`
	Type       string          `yaml:"type"`
	Nullable   *bool           `yaml:"nullable"`
	Default    string          `yaml:"default"`
	Generated  string          `yaml:"generated"`
	Check      string          `yaml:"check"`
	ForeignKey *foreignKeyYAML `yaml:"foreign_key"`
	Comment    string          `yaml:"comment"`
}

type primaryKeyYAML struct {
	Columns []string `yaml:"columns"`
	Rely    bool     `yaml:"rely"`
}

type checkYAML struct {
	Name       string `yaml:"name"`
	Expression string `yaml:"expression"`
}

type foreignKeyYAML struct {
	Table  string `yaml:"table"`
	Column string `yaml:"column"`
}

type schemaYAML struct {
	Tables []tableYAML `yaml:"tables"`
}

// Load reads a declared schema from a single YAML file or a directory of
// per-table YAML files.
func Load(fsys afero.Fs, path string) (*Schema, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: schema path %q does not exist", ErrLoad, path)
	}
	if info.IsDir() {
		return loadDirectory(fsys, path)
	}
	return loadFile(fsys, path)
}

func loadDirectory(fsys afero.Fs, dir string) (*Schema, error) {
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read schema directory %q: %v", ErrLoad, dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	out := NewSchema()
	for _, name := range names {
		path := filepath.Join(dir, name)
		raw, err := afero.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("%w: read %q: %v", ErrLoad, path, err)
		}
		var ty tableYAML
		if err := decodeStrict(raw, &ty); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoad, path, err)
		}
		table, err := buildTable(ty)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoad, path, err)
		}
		out.Tables[table.Name] = table
	}
	return out, nil
}

func loadFile(fsys afero.Fs, path string) (*Schema, error) {
	raw, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %q: %v", ErrLoad, path, err)
	}
	var sy schemaYAML
	if err := decodeStrict(raw, &sy); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoad, path, err)
	}

	out := NewSchema()
	for _, ty := range sy.Tables {
		table, err := buildTable(ty)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoad, path, err)
		}
		out.Tables[table.Name] = table
	}
	return out, nil
}

func decodeStrict(raw []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	return dec.Decode(out)
}

func buildTable(ty tableYAML) (*Table, error) {
	if strings.TrimSpace(ty.Table) == "" {
		return nil, fmt.Errorf("table definition missing %q field", "table")
	}
	if len(ty.LiquidClustering) > MaxClusteringColumns {
		return nil, fmt.Errorf("table %q declares %d liquid clustering columns, limit is %d",
			ty.Table, len(ty.LiquidClustering), MaxClusteringColumns)
	}

	columns := make([]Column, 0, len(ty.Columns))
	seen := make(map[string]struct{}, len(ty.Columns))
	for _, cy := range ty.Columns {
		col, err := buildColumn(cy)
		if err != nil {
			return nil, fmt.Errorf("table %q: %v", ty.Table, err)
		}
		if _, dup := seen[col.Name]; dup {
			return nil, fmt.Errorf("table %q: duplicate column %q", ty.Table, col.Name)
		}
		seen[col.Name] = struct{}{}
		columns = append(columns, col)
	}

	var pk *PrimaryKey
	if ty.PrimaryKey != nil {
		if len(ty.PrimaryKey.Columns) == 0 {
			return nil, fmt.Errorf("table %q: primary_key requires columns", ty.Table)
		}
		pk = &PrimaryKey{Columns: ty.PrimaryKey.Columns, Rely: ty.PrimaryKey.Rely}
	}

	checks := make([]CheckConstraint, 0, len(ty.CheckConstraints))
	for _, cy := range ty.CheckConstraints {
		if cy.Name == "" || cy.Expression == "" {
			return nil, fmt.Errorf("table %q: check constraints require name and expression", ty.Table)
		}
		checks = append(checks, CheckConstraint{Name: cy.Name, Expression: cy.Expression})
	}

	return &Table{
		Name:             ty.Table,
		Columns:          columns,
		PrimaryKey:       pk,
		CheckConstraints: checks,
		LiquidClustering: ty.LiquidClustering,
		PartitionedBy:    ty.PartitionedBy,
		TableProperties:  ty.TableProperties,
		Comment:          ty.Comment,
	}, nil
}

func buildColumn(cy columnYAML) (Column, error) {
	if strings.TrimSpace(cy.Name) == "" {
		return Column{}, fmt.Errorf("column missing name")
	}
	if strings.TrimSpace(cy.Type) == "" {
		return Column{}, fmt.Errorf("column %q missing type", cy.Name)
	}

	nullable := true
	if cy.Nullable != nil {
		nullable = *cy.Nullable
	}

	var fk *ForeignKey
	if cy.ForeignKey != nil {
		if cy.ForeignKey.Table == "" || cy.ForeignKey.Column == "" {
			return Column{}, fmt.Errorf("column %q: foreign_key requires table and column", cy.Name)
		}
		fk = &ForeignKey{Table: cy.ForeignKey.Table, Column: cy.ForeignKey.Column}
	}

	return Column{
		Name:       cy.Name,
		Type:       cy.Type,
		Nullable:   nullable,
		Default:    cy.Default,
		Generated:  cy.Generated,
		Check:      cy.Check,
		ForeignKey: fk,
		Comment:    cy.Comment,
	}, nil
}
