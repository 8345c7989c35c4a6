// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mudcube/gdoc-to-md/pkg/types"
)

// Viper keys. Each flag binds to the key of the same name with dashes
// replaced by underscores; the rest are config file or environment only.
const (
	keyGdocOnly          = "gdoc_only"
	keyGsheetOnly        = "gsheet_only"
	keySkipExisting      = "skip_existing"
	keyKeepIntermediates = "keep_intermediates"
	keyDryRun            = "dry_run"
	keyLimit             = "limit"
	keyWorkers           = "workers"
	keyJSON              = "json"
	keyCredentialsPath   = "credentials_path"
	keyClientID          = "client_id"
	keyClientSecret      = "client_secret"
	keyTokenPath         = "token_path"
	keySecretsDir        = "secrets_dir"
	keyLogLevel          = "log_level"
	keyConverter         = "converter"
	keyPandoc            = "pandoc"
	keyPandocImage       = "pandoc_image"
	keyContainerRuntime  = "container_runtime"
	keyRateLimit         = "rate_limit"
	keyMaxRetries        = "max_retries"
	keyExportTimeout     = "export_timeout"
	keyConvertTimeout    = "convert_timeout"
)

// registerFlags declares the conversion flags on cmd.
func registerFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Bool("gdoc-only", false, "convert only Google Docs (.gdoc)")
	f.Bool("gsheet-only", false, "convert only Google Sheets (.gsheet)")
	f.Bool("skip-existing", false, "skip placeholders whose output already exists")
	f.Bool("keep-intermediates", false, "keep the Docs export under intermediates/ (DOCX exports are recorded as docx_path)")
	f.Bool("dry-run", false, "report what would be converted without exporting or writing anything")
	f.Int("limit", 0, "convert at most N files (skipped files do not count; 0 means no limit)")
	f.Int("workers", defaultWorkers, "number of files converted concurrently")
	f.Bool("json", false, "print the run summary as JSON")
	f.String("credentials-path", defaultCredentials, "OAuth client credentials JSON")
	f.String("client-id", "", "OAuth client ID (alternative to --credentials-path)")
	f.String("client-secret", "", "OAuth client secret (alternative to --credentials-path)")
	f.String("token-path", defaultTokenPath, "cached OAuth token")
	f.String("secrets-dir", defaultSecretsDir, "directory holding client-id and client-secret files")
	f.String("log-level", defaultLogLevel, "log level: debug, info, warn, or error")
	f.String("converter", types.ConverterPandoc, "Google Docs converter: pandoc (DOCX export) or html (HTML export, no pandoc needed)")
	f.String("pandoc", defaultPandoc, "pandoc binary name or path")
	f.String("pandoc-image", "", "run pandoc from this container image via docker or podman")
	f.String("container-runtime", "", "container engine for --pandoc-image: docker or podman (default: first available)")

	cmd.MarkFlagsMutuallyExclusive("gdoc-only", "gsheet-only")
}

// bindFlags binds every flag in fs to v and installs the defaults for
// settings without a flag.
func bindFlags(fs *pflag.FlagSet, v *viper.Viper) error {
	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		if err := v.BindPFlag(flagKey(f.Name), f); err != nil {
			errs = append(errs, fmt.Errorf("binding --%s: %w", f.Name, err))
		}
	})

	v.SetDefault(keyRateLimit, defaultRateLimit)
	v.SetDefault(keyMaxRetries, 0)
	v.SetDefault(keyExportTimeout, defaultExportTimeout)
	v.SetDefault(keyConvertTimeout, defaultConvertTimeout)
	return errors.Join(errs...)
}

func flagKey(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// loadConfig resolves the run configuration from v. Invalid combinations
// are reported as *types.ConfigurationError.
func loadConfig(v *viper.Viper, sourceDir string) (types.Config, error) {
	cfg := types.Config{
		SourceDir: sourceDir,
		Run: types.RunOptions{
			GdocOnly:     v.GetBool(keyGdocOnly),
			GsheetOnly:   v.GetBool(keyGsheetOnly),
			SkipExisting: v.GetBool(keySkipExisting),
			DryRun:       v.GetBool(keyDryRun),
			Limit:        v.GetInt(keyLimit),
			Workers:      v.GetInt(keyWorkers),
		},
		Auth: types.AuthConfig{
			CredentialsPath: v.GetString(keyCredentialsPath),
			ClientID:        v.GetString(keyClientID),
			ClientSecret:    v.GetString(keyClientSecret),
			TokenPath:       v.GetString(keyTokenPath),
			SecretsDir:      v.GetString(keySecretsDir),
		},
		Drive: types.DriveConfig{
			ExportTimeout: v.GetDuration(keyExportTimeout),
			RateLimit:     v.GetFloat64(keyRateLimit),
			MaxRetries:    v.GetInt(keyMaxRetries),
			UserAgent:     "gdoc-to-md/" + version,
		},
		Conversion: types.ConversionConfig{
			Converter:         v.GetString(keyConverter),
			Pandoc:            v.GetString(keyPandoc),
			PandocImage:       v.GetString(keyPandocImage),
			ContainerRuntime:  v.GetString(keyContainerRuntime),
			ConvertTimeout:    v.GetDuration(keyConvertTimeout),
			KeepIntermediates: v.GetBool(keyKeepIntermediates),
		},
		LogLevel: v.GetString(keyLogLevel),
	}

	switch {
	case cfg.Run.GdocOnly && cfg.Run.GsheetOnly:
		return cfg, &types.ConfigurationError{Setting: keyGdocOnly, Err: errors.New("--gdoc-only and --gsheet-only are mutually exclusive")}
	case cfg.Run.Limit < 0:
		return cfg, &types.ConfigurationError{Setting: keyLimit, Err: fmt.Errorf("must not be negative, got %d", cfg.Run.Limit)}
	case cfg.Run.Workers < 1:
		return cfg, &types.ConfigurationError{Setting: keyWorkers, Err: fmt.Errorf("must be at least 1, got %d", cfg.Run.Workers)}
	case cfg.Conversion.Converter != types.ConverterPandoc && cfg.Conversion.Converter != types.ConverterHTML:
		return cfg, &types.ConfigurationError{Setting: keyConverter, Err: fmt.Errorf("want %s or %s, got %q", types.ConverterPandoc, types.ConverterHTML, cfg.Conversion.Converter)}
	case cfg.Drive.MaxRetries < 0:
		return cfg, &types.ConfigurationError{Setting: keyMaxRetries, Err: fmt.Errorf("must not be negative, got %d", cfg.Drive.MaxRetries)}
	}

	if cfg.Conversion.Pandoc == "" {
		cfg.Conversion.Pandoc = defaultPandoc
	}
	if cfg.Drive.ExportTimeout <= 0 {
		cfg.Drive.ExportTimeout = defaultExportTimeout
	}
	if cfg.Conversion.ConvertTimeout <= 0 {
		cfg.Conversion.ConvertTimeout = defaultConvertTimeout
	}
	return cfg, nil
}
