package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/charlieyou/ucmt/internal/config"
	"github.com/charlieyou/ucmt/internal/dbsql"
	"github.com/charlieyou/ucmt/internal/migrate"
	"github.com/charlieyou/ucmt/internal/schema"
)

// Exit codes: 0 success, 1 operation failure, 2 configuration failure.
const (
	exitOK     = 0
	exitError  = 1
	exitConfig = 2
)

// Execute runs the CLI and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		if errors.Is(err, config.ErrConfig) {
			return exitConfig
		}
		return exitError
	}
	return exitOK
}

// NewRootCommand builds the ucmt command tree.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "ucmt",
		Short:         "Schema migration tool for Unity Catalog Delta tables",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return InitViperFromCommand(cmd, ViperConfig{
				EnvPrefix:    "UCMT",
				ConfigEnvVar: "UCMT_CONFIG",
				ConfigName:   ".ucmt",
			})
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.String("config", "", "path to config file")
	pf.String("catalog", "", "target catalog")
	pf.String("schema", "", "target schema")
	pf.String("schema-path", "", "directory of declared table definitions")
	pf.String("migrations-path", "", "directory of migration files")
	pf.String("state-table", "", "name of the migration state table")

	root.AddCommand(
		newValidateCommand(),
		newDiffCommand(),
		newGenerateCommand(),
		newExportCommand(),
		newStatusCommand(),
		newPlanCommand(),
		newRunCommand(),
	)
	return root
}

// resolveConfig merges environment config with command-line overrides.
func resolveConfig(cmd *cobra.Command) *config.Config {
	cfg := config.Load()
	if v := ResolveStringFlag(cmd, "catalog"); v != "" {
		cfg.Catalog = v
	}
	if v := ResolveStringFlag(cmd, "schema"); v != "" {
		cfg.Schema = v
	}
	if v := ResolveStringFlag(cmd, "schema-path"); v != "" {
		cfg.SchemaPath = v
	}
	if v := ResolveStringFlag(cmd, "migrations-path"); v != "" {
		cfg.MigrationsPath = v
	}
	if v := ResolveStringFlag(cmd, "state-table"); v != "" {
		cfg.StateTable = v
	}
	return cfg
}

// connect validates warehouse settings and opens a client.
func connect(ctx context.Context, cfg *config.Config) (*dbsql.DatabricksClient, error) {
	if err := cfg.ValidateForDBOps(); err != nil {
		return nil, err
	}
	client := dbsql.NewDatabricksClient(cfg.Host, cfg.HTTPPath, cfg.Token)
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

func introspectSchema(ctx context.Context, client dbsql.Client, cfg *config.Config) (*schema.Schema, error) {
	return schema.NewIntrospector(client, cfg.Catalog, cfg.Schema).Introspect(ctx)
}

func openStateStore(ctx context.Context, client dbsql.Client, cfg *config.Config) (migrate.StateStore, error) {
	return migrate.NewDeltaStateStore(ctx, client, cfg.Catalog, cfg.Schema, cfg.StateTable)
}

func commandLogger(cmd *cobra.Command) *log.Logger {
	return log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
}

func loadDeclaredSchema(cfg *config.Config) (*schema.Schema, error) {
	return schema.Load(afero.NewOsFs(), cfg.SchemaPath)
}
