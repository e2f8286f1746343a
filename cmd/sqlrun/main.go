// Package main provides the sqlrun command-line interface: it reads a SQL
// script, executes it statement by statement against a configured database
// and renders the results in the terminal.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/lib/pq"
	_ "github.com/snowflakedb/gosnowflake"
)

var (
	cfgFile string
	profile string
)

var rootCmd = &cobra.Command{
	Use:   "sqlrun",
	Short: "Execute SQL scripts against any configured database",
	Long: `sqlrun splits a SQL script into statements and executes them one by one,
with variable substitution, statement history and per-statement savepoints.

Connections are configured via flags, environment variables (SQLRUN_*) or
profiles in the config file (~/.sqlrun.yaml by default).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI application.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.sqlrun.yaml)")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "connection profile from the config file")
	rootCmd.PersistentFlags().String("driver", "duckdb", "database driver (duckdb, postgres, snowflake)")
	rootCmd.PersistentFlags().String("dsn", "", "database connection string")
	rootCmd.PersistentFlags().String("vendor", "", "SQL dialect (defaults to the driver name)")

	for _, flag := range []string{"driver", "dsn", "vendor"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".sqlrun")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SQLRUN")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "warning: failed to read config: %v\n", err)
		}
	}
}

// connectionSetting resolves a setting, letting a named profile override the
// top-level value.
func connectionSetting(key string) string {
	if profile != "" {
		if v := viper.GetString("profiles." + profile + "." + key); v != "" {
			return v
		}
	}
	return viper.GetString(key)
}

func main() {
	Execute()
}
