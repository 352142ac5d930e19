// Command sparkql is a thin shell over the query-context binding:
// it connects to a gateway session and forwards SQL, table and cache
// operations.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gaganworks/spark/sparksql"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sparkql",
		Short:         "Run SQL and table operations against a Spark gateway session",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newSQLCmd(),
		newTablesCmd(),
		newCacheCmd(),
		newUncacheCmd(),
		newClearCacheCmd(),
		newDropTempCmd(),
		newLoadCmd(),
	)
	return rootCmd
}

// connect opens a fresh session from env config.
func connect() (*sparksql.SQLContext, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return sparksql.Connect(cfg)
}

// printDataFrame reports the remote handle and its resolved schema.
func printDataFrame(cmd *cobra.Command, df *sparksql.DataFrame) error {
	schema, err := df.Schema()
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return err
	}
	cmd.Printf("ref: %s\nschema: %s\n", df.Ref(), raw)
	return nil
}

func newSQLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sql <statement>",
		Short: "Execute a SQL statement in the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := connect()
			if err != nil {
				return err
			}
			df, err := ctx.SQL(args[0])
			if err != nil {
				return err
			}
			return printDataFrame(cmd, df)
		},
	}
}

func newTablesCmd() *cobra.Command {
	var database string
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List the session's table names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, err := connect()
			if err != nil {
				return err
			}
			names, err := ctx.TableNames(database)
			if err != nil {
				return err
			}
			for _, name := range names {
				cmd.Println(name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&database, "database", "", "database to scope the listing to")
	return cmd
}

func newCacheCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cache <table>",
		Short: "Cache a table in the engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, err := connect()
			if err != nil {
				return err
			}
			return ctx.CacheTable(args[0])
		},
	}
}

func newUncacheCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uncache <table>",
		Short: "Remove a table from the engine's cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, err := connect()
			if err != nil {
				return err
			}
			return ctx.UncacheTable(args[0])
		},
	}
}

func newClearCacheCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-cache",
		Short: "Remove every cached table from the session",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, err := connect()
			if err != nil {
				return err
			}
			return ctx.ClearCache()
		},
	}
}

func newDropTempCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drop-temp <table>",
		Short: "Drop a temporary table from the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, err := connect()
			if err != nil {
				return err
			}
			return ctx.DropTempTable(args[0])
		},
	}
}

func newLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <json|parquet> <path>...",
		Short: "Load files into a DataFrame and print its schema",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := connect()
			if err != nil {
				return err
			}
			var df *sparksql.DataFrame
			switch args[0] {
			case "json":
				df, err = ctx.JSONFile(args[1:]...)
			case "parquet":
				df, err = ctx.ParquetFile(args[1:]...)
			default:
				return fmt.Errorf("unknown format %q, expected json or parquet", args[0])
			}
			if err != nil {
				return err
			}
			return printDataFrame(cmd, df)
		},
	}
	return cmd
}
