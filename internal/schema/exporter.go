package schema

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Export shapes mirror the loader's YAML layout; optional fields carry
// omitempty so round-tripped files stay minimal.

type tableExport struct {
	Table            string            `yaml:"table"`
	Comment          string            `yaml:"comment,omitempty"`
	Columns          []columnExport    `yaml:"columns"`
	PrimaryKey       *primaryKeyYAML   `yaml:"primary_key,omitempty"`
	CheckConstraints []checkYAML       `yaml:"check_constraints,omitempty"`
	LiquidClustering []string          `yaml:"liquid_clustering,omitempty"`
	PartitionedBy    []string          `yaml:"partitioned_by,omitempty"`
	TableProperties  map[string]string `yaml:"table_properties,omitempty"`
}

type columnExport struct {
	Name       string          `yaml:"name"`
	Type       string          `yaml:"type"`
	Nullable   *bool           `yaml:"nullable,omitempty"`
	Default    string          `yaml:"default,omitempty"`
	Generated  string          `yaml:"generated,omitempty"`
	Check      string          `yaml:"check,omitempty"`
	ForeignKey *foreignKeyYAML `yaml:"foreign_key,omitempty"`
	Comment    string          `yaml:"comment,omitempty"`
}

// ExportTableYAML renders one table as a declared-schema YAML document.
func ExportTableYAML(table *Table) (string, error) {
	out, err := yaml.Marshal(exportTable(table))
	if err != nil {
		return "", fmt.Errorf("marshal table %q: %w", table.Name, err)
	}
	return string(out), nil
}

// ExportToDirectory writes one <table>.yaml per table and returns the
// created paths in table-name order.
func ExportToDirectory(fsys afero.Fs, s *Schema, dir string) ([]string, error) {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export directory %q: %w", dir, err)
	}

	created := make([]string, 0, len(s.Tables))
	for _, name := range s.TableNames() {
		content, err := ExportTableYAML(s.Table(name))
		if err != nil {
			return nil, err
		}
		path := filepath.Join(dir, name+".yaml")
		if err := afero.WriteFile(fsys, path, []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("write %q: %w", path, err)
		}
		created = append(created, path)
	}
	return created, nil
}

func exportTable(table *Table) tableExport {
	out := tableExport{
		Table:            table.Name,
		Comment:          table.Comment,
		LiquidClustering: table.LiquidClustering,
		PartitionedBy:    table.PartitionedBy,
		TableProperties:  table.TableProperties,
	}

	for _, col := range table.Columns {
		ce := columnExport{
			Name:      col.Name,
			Type:      col.Type,
			Default:   col.Default,
			Generated: col.Generated,
			Check:     col.Check,
			Comment:   col.Comment,
		}
		if !col.Nullable {
			nullable := false
			ce.Nullable = &nullable
		}
		if col.ForeignKey != nil {
			ce.ForeignKey = &foreignKeyYAML{
				Table:  col.ForeignKey.Table,
				Column: col.ForeignKey.Column,
			}
		}
		out.Columns = append(out.Columns, ce)
	}

	if table.PrimaryKey != nil {
		out.PrimaryKey = &primaryKeyYAML{
			Columns: table.PrimaryKey.Columns,
			Rely:    table.PrimaryKey.Rely,
		}
	}

	for _, cc := range table.CheckConstraints {
		out.CheckConstraints = append(out.CheckConstraints, checkYAML{
			Name:       cc.Name,
			Expression: cc.Expression,
		})
	}

	return out
}
