// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// DriveConfig holds settings for the Drive export client.
type DriveConfig struct {
	// ExportTimeout bounds a single export call (default 60s).
	ExportTimeout time.Duration `json:"export_timeout" yaml:"export_timeout" mapstructure:"export_timeout"`

	// RateLimit is the sustained number of Drive requests per second
	// (default 5). Zero disables limiting.
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit"`

	// MaxRetries is the number of retries on HTTP 429. The default 0 keeps
	// exports fail-fast.
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// UserAgent is sent with every Drive request.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// AuthConfig locates OAuth client credentials and the token cache.
type AuthConfig struct {
	// CredentialsPath is the OAuth client JSON downloaded from the Google
	// Cloud console (default "credentials.json").
	CredentialsPath string `json:"credentials_path" yaml:"credentials_path" mapstructure:"credentials_path"`

	// ClientID and ClientSecret are an inline alternative to CredentialsPath.
	ClientID     string `json:"client_id,omitempty" yaml:"client_id,omitempty" mapstructure:"client_id"`
	ClientSecret string `json:"-" yaml:"client_secret,omitempty" mapstructure:"client_secret"`

	// TokenPath is the cached OAuth token (default "token.json").
	TokenPath string `json:"token_path" yaml:"token_path" mapstructure:"token_path"`

	// SecretsDir holds client-id and client-secret files used when no
	// inline credentials are given (default ".secrets").
	SecretsDir string `json:"secrets_dir" yaml:"secrets_dir" mapstructure:"secrets_dir"`
}

// Docs converter backends.
const (
	ConverterPandoc = "pandoc"
	ConverterHTML   = "html"
)

// ConversionConfig holds settings for the conversion stage.
type ConversionConfig struct {
	// Converter selects the Docs backend: ConverterPandoc (DOCX export,
	// default) or ConverterHTML (HTML export, converted in process).
	Converter string `json:"converter" yaml:"converter" mapstructure:"converter"`

	// Pandoc is the pandoc binary name or path (default "pandoc").
	Pandoc string `json:"pandoc" yaml:"pandoc" mapstructure:"pandoc"`

	// PandocImage, when set, runs pandoc inside this container image
	// through docker or podman instead of the local binary.
	PandocImage string `json:"pandoc_image,omitempty" yaml:"pandoc_image,omitempty" mapstructure:"pandoc_image"`

	// ContainerRuntime pins the engine used for PandocImage ("docker" or
	// "podman"). Empty tries docker, then podman.
	ContainerRuntime string `json:"container_runtime,omitempty" yaml:"container_runtime,omitempty" mapstructure:"container_runtime"`

	// ConvertTimeout bounds a single pandoc invocation (default 120s).
	ConvertTimeout time.Duration `json:"convert_timeout" yaml:"convert_timeout" mapstructure:"convert_timeout"`

	// KeepIntermediates retains the exported DOCX beside the Markdown.
	KeepIntermediates bool `json:"keep_intermediates" yaml:"keep_intermediates" mapstructure:"keep_intermediates"`
}

// RunOptions are the per-invocation switches that shape walking and planning.
type RunOptions struct {
	GdocOnly     bool `json:"gdoc_only" yaml:"gdoc_only"`
	GsheetOnly   bool `json:"gsheet_only" yaml:"gsheet_only"`
	SkipExisting bool `json:"skip_existing" yaml:"skip_existing"`
	DryRun       bool `json:"dry_run" yaml:"dry_run"`

	// Limit caps CONVERT/PREVIEW decisions. Zero means unlimited.
	Limit int `json:"limit" yaml:"limit"`

	// Workers is the number of files converted concurrently (default 1).
	Workers int `json:"workers" yaml:"workers"`
}

// Config groups every setting for one run.
type Config struct {
	SourceDir  string           `json:"source_dir" yaml:"source_dir"`
	Run        RunOptions       `json:"run" yaml:"run"`
	Auth       AuthConfig       `json:"auth" yaml:"auth"`
	Drive      DriveConfig      `json:"drive" yaml:"drive"`
	Conversion ConversionConfig `json:"conversion" yaml:"conversion"`
	LogLevel   string           `json:"log_level" yaml:"log_level"`
}
