// Package cmd provides the tagdoc command-line interface.
//
// Configuration is read from several sources, highest priority first:
//
//  1. Command-line flags (--config, --log-level, serve --port, ...)
//  2. TAGDOC_CONFIG_FILE: path to a configuration file
//  3. Environment variables following TAGDOC_<SECTION>_<OPTION>, for
//     example TAGDOC_SERVER_PORT or TAGDOC_CACHE_ENABLED
//  4. .tagdoc.yml in the working directory
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/conneroisu/tagdoc/internal/config"
	"github.com/conneroisu/tagdoc/internal/engine"
	"github.com/conneroisu/tagdoc/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tagdoc",
	Short: "Render tag documents",
	Long: `tagdoc parses and renders HTML templates extended with namespaced tags:
placeholders, templates, taglib registrations, template imports and inline
expressions, bound to a controller through a <@controller class="..." @> directive.

Quick Start:
  tagdoc render VENDOR\site main --set title=Home
  tagdoc render -f page.html --data page.yaml
  tagdoc inspect page.html
  tagdoc serve`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .tagdoc.yml, can also use TAGDOC_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig selects the configuration file and enables TAGDOC_ environment
// overrides. A missing configuration file is not an error.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("TAGDOC_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tagdoc")
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setup loads the configuration and builds the logger and engine every
// command works with.
func setup(cmd *cobra.Command) (*config.Config, logging.Logger, *engine.Engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, engine.New(cfg, engine.WithLogger(logger)), nil
}

func newLogger(cfg *config.Config, out io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Log.Format,
		Output:    out,
		Component: "cli",
	}), nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
