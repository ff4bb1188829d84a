package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/charlieyou/ucmt/internal/codegen"
	"github.com/charlieyou/ucmt/internal/config"
	"github.com/charlieyou/ucmt/internal/dbsql"
	"github.com/charlieyou/ucmt/internal/migrate"
	"github.com/charlieyou/ucmt/internal/schema"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check that the live catalog matches the declared schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := resolveConfig(cmd)
			declared, err := loadDeclaredSchema(cfg)
			if err != nil {
				return err
			}
			client, err := connect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			observed, err := introspectSchema(cmd.Context(), client, cfg)
			if err != nil {
				return err
			}
			result := schema.Validate(declared, observed)
			if result.OK {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is in sync")
				return nil
			}
			for _, issue := range result.Issues {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", issue.Kind, issue.Message)
			}
			return fmt.Errorf("schema validation failed with %d issue(s)", len(result.Issues))
		},
	}
}

func newDiffCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show changes between the live catalog and the declared schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := resolveConfig(cmd)
			changes, err := computeChanges(cmd, cfg)
			if err != nil {
				return err
			}
			if len(changes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no changes")
				return nil
			}
			for _, change := range changes {
				fmt.Fprintln(cmd.OutOrStdout(), describeChange(change))
			}
			return nil
		},
	}
	cmd.Flags().Bool("online", false, "introspect the live catalog as the comparison source")
	return cmd
}

func newGenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <description>",
		Short: "Generate a migration file from schema changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := resolveConfig(cmd)
			description := args[0]

			changes, err := computeChanges(cmd, cfg)
			if err != nil {
				return err
			}
			if len(changes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no changes to migrate")
				return nil
			}
			if !ResolveBoolFlag(cmd, "allow-destructive") {
				if destructive := destructiveChanges(changes); len(destructive) > 0 {
					for _, change := range destructive {
						fmt.Fprintln(cmd.ErrOrStderr(), describeChange(change))
					}
					return fmt.Errorf("refusing to generate %d destructive change(s) without --allow-destructive", len(destructive))
				}
			}

			sql, err := codegen.NewGenerator().Generate(changes, description)
			if err != nil {
				return err
			}

			fsys := afero.NewOsFs()
			path := ResolveStringFlag(cmd, "output")
			if path == "" {
				version, err := nextVersion(fsys, cfg.MigrationsPath)
				if err != nil {
					return err
				}
				if err := fsys.MkdirAll(cfg.MigrationsPath, 0o755); err != nil {
					return fmt.Errorf("create migrations directory: %w", err)
				}
				path = filepath.Join(cfg.MigrationsPath, fmt.Sprintf("V%03d__%s.sql", version, slugify(description)))
			}
			if err := afero.WriteFile(fsys, path, []byte(sql), 0o644); err != nil {
				return fmt.Errorf("write migration file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().Bool("online", false, "introspect the live catalog as the comparison source")
	cmd.Flags().Bool("allow-destructive", false, "allow generation of destructive changes")
	cmd.Flags().String("output", "", "write the migration to this path instead of the migrations directory")
	return cmd
}

func newExportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Export the live catalog schema to YAML definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := resolveConfig(cmd)
			client, err := connect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			observed, err := introspectSchema(cmd.Context(), client, cfg)
			if err != nil {
				return err
			}
			written, err := schema.ExportToDirectory(afero.NewOsFs(), observed, cfg.SchemaPath)
			if err != nil {
				return err
			}
			for _, path := range written {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			}
			return nil
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show applied migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := resolveConfig(cmd)
			client, err := connect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			store, err := openStateStore(cmd.Context(), client, cfg)
			if err != nil {
				return err
			}
			applied, err := store.ListApplied(cmd.Context())
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
				return nil
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"Version", "Name", "Applied At", "Success", "Error"})
			for _, a := range applied {
				tw.AppendRow(table.Row{a.Version, a.Name, a.AppliedAt.Format("2006-01-02 15:04:05"), a.Success, a.Error})
			}
			tw.Render()
			return nil
		},
	}
}

func newPlanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := resolveConfig(cmd)
			migrations, err := migrate.ParseDir(afero.NewOsFs(), cfg.MigrationsPath)
			if err != nil {
				return err
			}
			client, err := connect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			store, err := openStateStore(cmd.Context(), client, cfg)
			if err != nil {
				return err
			}
			applied, err := store.ListApplied(cmd.Context())
			if err != nil {
				return err
			}
			appliedSet := make(map[int]struct{}, len(applied))
			for _, a := range applied {
				appliedSet[a.Version] = struct{}{}
			}

			pending := migrate.Plan(migrations, appliedSet)
			if len(pending) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no pending migrations")
				return nil
			}
			for _, p := range pending {
				fmt.Fprintf(cmd.OutOrStdout(), "V%d__%s (%s)\n", p.Version, p.Name, p.Path)
			}
			return nil
		},
	}
}

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := resolveConfig(cmd)
			migrations, err := migrate.ParseDir(afero.NewOsFs(), cfg.MigrationsPath)
			if err != nil {
				return err
			}
			client, err := connect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			store, err := openStateStore(cmd.Context(), client, cfg)
			if err != nil {
				return err
			}
			runner := migrate.NewRunner(store, migrationExecutor(client), cfg.Catalog, cfg.Schema, commandLogger(cmd))
			return runner.Apply(cmd.Context(), migrations, ResolveBoolFlag(cmd, "dry-run"))
		},
	}
	cmd.Flags().Bool("dry-run", false, "log the plan without executing anything")
	return cmd
}

// migrationExecutor runs each statement of a migration script in order.
func migrationExecutor(client dbsql.Client) migrate.Executor {
	return func(ctx context.Context, sql string, version int) error {
		for _, stmt := range dbsql.SplitStatements(sql) {
			if err := client.Execute(ctx, stmt); err != nil {
				return fmt.Errorf("version %d: %w", version, err)
			}
		}
		return nil
	}
}

// computeChanges diffs the declared schema against either the live
// catalog or an empty baseline.
func computeChanges(cmd *cobra.Command, cfg *config.Config) ([]schema.Change, error) {
	target, err := loadDeclaredSchema(cfg)
	if err != nil {
		return nil, err
	}

	source := schema.NewSchema()
	if ResolveBoolFlag(cmd, "online") {
		client, err := connect(cmd.Context(), cfg)
		if err != nil {
			return nil, err
		}
		defer client.Close()
		source, err = introspectSchema(cmd.Context(), client, cfg)
		if err != nil {
			return nil, err
		}
	}
	return schema.Diff(source, target), nil
}

func destructiveChanges(changes []schema.Change) []schema.Change {
	var out []schema.Change
	for _, change := range changes {
		if change.Destructive {
			out = append(out, change)
		}
	}
	return out
}

func describeChange(change schema.Change) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", change.Type, change.TableName)
	if change.Destructive {
		b.WriteString(" [destructive]")
	}
	if change.Unsupported {
		b.WriteString(" [unsupported]")
	}
	if change.Message != "" {
		b.WriteString(" (" + change.Message + ")")
	}
	return b.String()
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(description string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(description), "_")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		// V001__.sql would not parse back; give the file a usable name.
		return "migration"
	}
	return slug
}

// nextVersion returns one past the highest migration version on disk.
func nextVersion(fsys afero.Fs, dir string) (int, error) {
	exists, err := afero.DirExists(fsys, dir)
	if err != nil {
		return 0, fmt.Errorf("check migrations directory: %w", err)
	}
	if !exists {
		return 1, nil
	}
	migrations, err := migrate.ParseDir(fsys, dir)
	if err != nil {
		return 0, err
	}
	if len(migrations) == 0 {
		return 1, nil
	}
	return migrations[len(migrations)-1].Version + 1, nil
}
