package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config represents the merged result of flags, environment variables and the codefmt.toml config file.
type Config struct {
	AllowMissingPass bool     `mapstructure:"allow-missing-pass" toml:"allow-missing-pass,omitempty"`
	ClearCache       bool     `mapstructure:"clear-cache" toml:"-"` // not allowed in config
	Excludes         []string `mapstructure:"excludes" toml:"excludes,omitempty"`
	LogAll           bool     `mapstructure:"log-all" toml:"log-all,omitempty"`
	NoCache          bool     `mapstructure:"no-cache" toml:"-"` // not allowed in config
	Project          string   `mapstructure:"project" toml:"-"`
	Solution         bool     `mapstructure:"solution" toml:"-"`
	Verbose          uint8    `mapstructure:"verbose" toml:"verbose,omitempty"`
	WorkingDirectory string   `mapstructure:"working-dir" toml:"-"`
	Write            bool     `mapstructure:"write" toml:"write,omitempty"`

	Options Options `mapstructure:"options" toml:"options,omitempty"`

	PassConfigs map[string]*Pass `mapstructure:"pass" toml:"pass,omitempty"`
}

// Options is the baseline option bag applied to every file unless a per-directory
// override file says otherwise.
type Options struct {
	// IndentStyle is either "space" or "tab".
	IndentStyle string `mapstructure:"indent_style" toml:"indent_style,omitempty"`
	// IndentSize is the number of columns per indentation level.
	IndentSize int `mapstructure:"indent_size" toml:"indent_size,omitempty"`
	// TabWidth is the number of columns a tab character occupies when measuring existing indentation.
	TabWidth int `mapstructure:"tab_width" toml:"tab_width,omitempty"`
	// EndOfLine is either "lf" or "crlf".
	EndOfLine string `mapstructure:"end_of_line" toml:"end_of_line,omitempty"`

	TrimTrailingWhitespace bool `mapstructure:"trim_trailing_whitespace" toml:"trim_trailing_whitespace,omitempty"`
	InsertFinalNewline     bool `mapstructure:"insert_final_newline"     toml:"insert_final_newline,omitempty"`

	// MaxBlankLines collapses runs of blank lines down to the given count. Zero disables the check.
	MaxBlankLines int `mapstructure:"max_blank_lines" toml:"max_blank_lines,omitempty"`
}

// Pass describes an external command registered as a formatting pass.
type Pass struct {
	// Command is the command to invoke when applying this Pass.
	Command string `mapstructure:"command" toml:"command"`
	// Options are an optional list of args to be passed to Command.
	Options []string `mapstructure:"options,omitempty" toml:"options,omitempty"`
	// Includes is a list of glob patterns used to determine whether this Pass should be applied against a path.
	Includes []string `mapstructure:"includes,omitempty" toml:"includes,omitempty"`
	// Excludes is an optional list of glob patterns used to exclude certain files from this Pass.
	Excludes []string `mapstructure:"excludes,omitempty" toml:"excludes,omitempty"`
	// Indicates the order of precedence when executing this Pass in a sequence of passes.
	Priority int `mapstructure:"priority,omitempty" toml:"priority,omitempty"`
}

// SetFlags appends our flags to the provided flag set.
// We have a flag matching most entries in Config, taking care to ensure the name matches the field name defined in the
// mapstructure tag.
func SetFlags(fs *pflag.FlagSet) {
	fs.Bool(
		"allow-missing-pass", false,
		"Do not exit with error if a configured pass command is missing. (env $CODEFMT_ALLOW_MISSING_PASS)",
	)
	fs.BoolP(
		"clear-cache", "c", false,
		"Reset the evaluation cache. Use in case the cache is not precise enough. (env $CODEFMT_CLEAR_CACHE)",
	)
	fs.StringSlice(
		"excludes", nil,
		"Exclude files or directories matching the specified globs. (env $CODEFMT_EXCLUDES)",
	)
	fs.Bool(
		"log-all", false,
		"Log every workspace diagnostic instead of throttling repeated warnings. (env $CODEFMT_LOG_ALL)",
	)
	fs.Bool(
		"no-cache", false,
		"Ignore the evaluation cache entirely. Useful for CI. (env $CODEFMT_NO_CACHE)",
	)
	fs.StringP(
		"project", "p", "",
		"Restrict formatting to the named project. (env $CODEFMT_PROJECT)",
	)
	fs.BoolP(
		"solution", "s", false,
		"Treat the target path as a solution manifest instead of a project manifest. (env $CODEFMT_SOLUTION)",
	)
	fs.CountP(
		"verbose", "v",
		"Set the verbosity of logs e.g. -vv. (env $CODEFMT_VERBOSE)",
	)
	fs.StringP(
		"working-dir", "C", ".",
		"Run as if codefmt was started in the specified working directory instead of the current working "+
			"directory. (env $CODEFMT_WORKING_DIR)",
	)
	fs.BoolP(
		"write", "w", false,
		"Persist formatted changes back to disk. Without this flag codefmt only reports what would change. "+
			"(env $CODEFMT_WRITE)",
	)
}

// NewViper creates a Viper instance pre-configured with the following options:
// * TOML config type
// * automatic env enabled
// * `CODEFMT_` env prefix for environment variables
// * replacement of `-` and `.` with `_` when mapping flags to env e.g. `options.indent_style` =>
// `CODEFMT_OPTIONS_INDENT_STYLE`.
func NewViper() (*viper.Viper, error) {
	v := viper.New()

	// enforce toml (may open this up to other formats in the future)
	v.SetConfigType("toml")

	// allow env overrides for config and flags
	v.SetEnvPrefix("codefmt")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	// baseline option defaults, overridden by the config file, env or flags
	v.SetDefault("options.indent_style", "space")
	v.SetDefault("options.indent_size", 4)
	v.SetDefault("options.tab_width", 4)
	v.SetDefault("options.end_of_line", "lf")
	v.SetDefault("options.trim_trailing_whitespace", true)
	v.SetDefault("options.insert_final_newline", true)
	v.SetDefault("options.max_blank_lines", 0)

	return v, nil
}

// FromViper takes a viper instance and produces a Config instance.
func FromViper(v *viper.Viper) (*Config, error) {
	configReset := map[string]any{
		"clear-cache": false,
		"no-cache":    false,
		"project":     "",
		"solution":    false,
		"working-dir": ".",
	}

	// reset certain values which are not allowed to be specified in the config file
	if err := v.MergeConfigMap(configReset); err != nil {
		return nil, fmt.Errorf("failed to overwrite config values: %w", err)
	}

	var err error

	cfg := &Config{}

	if err = v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// resolve the working directory to an absolute path
	cfg.WorkingDirectory, err = filepath.Abs(cfg.WorkingDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for working directory: %w", err)
	}

	if err := cfg.Options.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the enum-like option values, falling back to defaults where they were left unset
// (e.g. in tests which construct an Options directly).
func (o *Options) Validate() error {
	if o.IndentStyle == "" {
		o.IndentStyle = "space"
	}

	if o.IndentStyle != "space" && o.IndentStyle != "tab" {
		return fmt.Errorf("invalid indent_style '%s', expected space or tab", o.IndentStyle)
	}

	if o.EndOfLine == "" {
		o.EndOfLine = "lf"
	}

	if o.EndOfLine != "lf" && o.EndOfLine != "crlf" {
		return fmt.Errorf("invalid end_of_line '%s', expected lf or crlf", o.EndOfLine)
	}

	if o.IndentSize < 0 {
		return fmt.Errorf("invalid indent_size %d, expected a positive count", o.IndentSize)
	}

	if o.IndentSize == 0 {
		o.IndentSize = 4
	}

	if o.TabWidth < 0 {
		return fmt.Errorf("invalid tab_width %d, expected a positive count", o.TabWidth)
	}

	if o.TabWidth == 0 {
		o.TabWidth = o.IndentSize
	}

	if o.MaxBlankLines < 0 {
		return fmt.Errorf("invalid max_blank_lines %d, expected zero or a positive count", o.MaxBlankLines)
	}

	return nil
}

func Find(searchDir string, fileNames ...string) (string, error) {
	for _, f := range fileNames {
		path := filepath.Join(searchDir, f)
		if fileExists(path) {
			return path, nil
		}
	}

	return "", fmt.Errorf("could not find %s in %s", fileNames, searchDir)
}

func FindUp(searchDir string, fileNames ...string) (path string, dir string, err error) {
	for _, dir := range eachDir(searchDir) {
		for _, f := range fileNames {
			path := filepath.Join(dir, f)
			if fileExists(path) {
				return path, dir, nil
			}
		}
	}

	return "", "", fmt.Errorf("could not find %s in %s", fileNames, searchDir)
}

func eachDir(path string) (paths []string) {
	path, err := filepath.Abs(path)
	if err != nil {
		return
	}

	paths = []string{path}

	if path == "/" {
		return
	}

	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == os.PathSeparator {
			path = path[:i]
			if path == "" {
				path = "/"
			}

			paths = append(paths, path)
		}
	}

	return
}

func fileExists(path string) bool {
	// Some broken filesystems like SSHFS return file information on stat() but
	// then cannot open the file. So we use os.Open.
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	// Next, check that the file is a regular file.
	fi, err := f.Stat()
	if err != nil {
		return false
	}

	return fi.Mode().IsRegular()
}
