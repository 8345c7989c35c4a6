// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the gdoc-to-md CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mudcube/gdoc-to-md/internal/logging"
	"github.com/mudcube/gdoc-to-md/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds client credentials loaded from the secrets directory
// at startup.
var loadedSecrets secrets.Secrets

// rootCmd converts a tree of Drive placeholders in place.
var rootCmd = &cobra.Command{
	Use:   "gdoc-to-md [flags] <source_dir>",
	Short: "Convert Google Drive placeholders to Markdown and CSV",
	Long: `gdoc-to-md walks a local directory mirroring Google Drive and converts
every .gdoc placeholder to Markdown with YAML frontmatter and every .gsheet
placeholder to CSV, writing each output next to its placeholder.

Google Docs are exported from Drive as DOCX and converted with pandoc
(locally or in a container with --pandoc-image), or exported as HTML and
converted in process with --converter html.
Google Sheets are exported directly as CSV (first sheet only). Runs are
safe to repeat: --skip-existing leaves converted files untouched, and a
failed conversion never replaces an existing output.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.New(viper.GetString(keyLogLevel), os.Stderr)
		s, err := secrets.Load(viper.GetString(keySecretsDir), logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		logger.Debug().Str("dir", s.Dir).Bool("client_id", s.Get(secrets.ClientID) != "").
			Bool("client_secret", s.Get(secrets.ClientSecret) != "").Msg("loaded secrets")
		return nil
	},
	RunE: runConvert,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./gdoc-to-md.yaml or ~/.config/gdoc-to-md/gdoc-to-md.yaml)")
	registerFlags(rootCmd)
	cobra.CheckErr(bindFlags(rootCmd.Flags(), viper.GetViper()))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("gdoc-to-md")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "gdoc-to-md"))
		}
	}

	viper.SetEnvPrefix("GDOC_TO_MD")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// Defaults shared by flags and viper.
const (
	defaultPandoc         = "pandoc"
	defaultCredentials    = "credentials.json"
	defaultTokenPath      = "token.json"
	defaultSecretsDir     = ".secrets"
	defaultLogLevel       = "warn"
	defaultWorkers        = 1
	defaultRateLimit      = 5.0
	defaultExportTimeout  = 60 * time.Second
	defaultConvertTimeout = 120 * time.Second
)
