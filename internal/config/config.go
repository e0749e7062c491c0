// Package config loads gglsbl client settings from layered INI files.
//
// Configuration files are looked for in the following locations:
//  1. <directory of the executable>/etc/config.ini (bundled defaults)
//  2. /etc/gglsbl-rest/config.ini (system wide)
//  3. ~/.config/gglsbl-rest.ini (user specific)
//
// Every file that exists is merged in that order, so a key set in a later
// file overrides the same key from an earlier one. Each file holds one INI
// section per profile:
//
//	[DEFAULT]
//	ignore_proxy = yes
//
//	[default]
//	remote_host = scanner.local
//	remote_port = 5000
//
// Keys of the [DEFAULT] section apply to every profile that does not set
// them. Section names are case-sensitive, so [Staging] and [staging] are two
// profiles; key names are not. A file must start with a section header.
//
// # Environment Variables
//
// Environment variables override file values. Use the GGLSBL_ prefix, the
// profile name and the key, joined with underscores:
//   - GGLSBL_DEFAULT_REMOTE_HOST=scanner.internal
//   - GGLSBL_DEFAULT_REMOTE_PORT=5001
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

const (
	// DefaultProfile is the section read when no profile is given.
	DefaultProfile = "default"

	// DefaultTimeout applies when a profile has no timeout key.
	DefaultTimeout = 10 * time.Second

	envPrefix = "GGLSBL"
)

// Required keys every profile must define with a non-empty value.
var RequiredOptions = []string{"ignore_proxy", "remote_host", "remote_port"}

var (
	// ErrConfiguration is wrapped by every error Load returns.
	ErrConfiguration = errors.New("configuration error")

	ErrNoConfigFiles   = fmt.Errorf("%w: no configuration files found", ErrConfiguration)
	ErrProfileNotFound = fmt.Errorf("%w: profile not found", ErrConfiguration)
	ErrMissingOption   = fmt.Errorf("%w: missing required option", ErrConfiguration)
	ErrEmptyOption     = fmt.Errorf("%w: option missing value", ErrConfiguration)

	ErrMissingSectionHeader = fmt.Errorf("%w: file contains no section headers", ErrConfiguration)
)

// Settings is a resolved configuration profile.
type Settings struct {
	// Profile is the INI section the settings were read from
	Profile string `yaml:"profile" validate:"required"`

	// RemoteHost is the hostname or address of the gglsbl-rest service
	RemoteHost string `yaml:"remote_host" validate:"required"`

	// RemotePort is the port the service listens on
	RemotePort string `yaml:"remote_port" validate:"required,numeric"`

	// IgnoreProxy disables proxy environment variables for requests
	IgnoreProxy bool `yaml:"ignore_proxy"`

	// TLS switches the client to https with certificate verification
	TLS bool `yaml:"ssl"`

	// Timeout bounds each request
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`

	// Files lists the configuration files that were merged, in order
	Files []string `yaml:"files,omitempty" validate:"-"`
}

// DefaultPaths returns the configuration search path, lowest precedence first.
func DefaultPaths() []string {
	var paths []string

	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), "etc", "config.ini"))
	}
	paths = append(paths, "/etc/gglsbl-rest/config.ini")
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "gglsbl-rest.ini"))
	}

	return paths
}

// Load merges the existing files among paths and returns the settings of
// profile. When paths is empty DefaultPaths is used.
func Load(profile string, paths ...string) (*Settings, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	if len(paths) == 0 {
		paths = DefaultPaths()
	}

	var found []string
	for _, p := range paths {
		if fileExists(p) {
			found = append(found, p)
		}
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w at these paths: %s", ErrNoConfigFiles, strings.Join(paths, ", "))
	}

	values, err := readProfile(profile, found)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	section := strings.ToLower(profile)
	if err := v.MergeConfigMap(map[string]any{section: values}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	key := func(name string) string { return section + "." + name }

	for _, op := range RequiredOptions {
		if !v.IsSet(key(op)) {
			return nil, fmt.Errorf("%w: %s", ErrMissingOption, op)
		}
		if strings.TrimSpace(v.GetString(key(op))) == "" {
			return nil, fmt.Errorf("%w: %s", ErrEmptyOption, op)
		}
	}

	ignoreProxy, err := ParseBool(v.GetString(key("ignore_proxy")))
	if err != nil {
		return nil, fmt.Errorf("%w: ignore_proxy: %v", ErrConfiguration, err)
	}

	useTLS := false
	if v.IsSet(key("ssl")) {
		if useTLS, err = ParseBool(v.GetString(key("ssl"))); err != nil {
			return nil, fmt.Errorf("%w: ssl: %v", ErrConfiguration, err)
		}
	}

	timeout := DefaultTimeout
	if v.IsSet(key("timeout")) {
		if timeout, err = ParseTimeout(v.GetString(key("timeout"))); err != nil {
			return nil, fmt.Errorf("%w: timeout: %v", ErrConfiguration, err)
		}
	}

	s := &Settings{
		Profile:     profile,
		RemoteHost:  strings.TrimSpace(v.GetString(key("remote_host"))),
		RemotePort:  strings.TrimSpace(v.GetString(key("remote_port"))),
		IgnoreProxy: ignoreProxy,
		TLS:         useTLS,
		Timeout:     timeout,
		Files:       found,
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return s, nil
}

// readProfile merges files in order and returns the keys of profile, with
// keys of the [DEFAULT] section filling in those the profile does not set.
func readProfile(profile string, files []string) (map[string]any, error) {
	for _, p := range files {
		if err := checkSectionHeader(p); err != nil {
			return nil, err
		}
	}

	sources := make([]any, 0, len(files)-1)
	for _, p := range files[1:] {
		sources = append(sources, p)
	}
	f, err := ini.LoadSources(ini.LoadOptions{InsensitiveKeys: true}, files[0], sources...)
	if err != nil {
		return nil, fmt.Errorf("%w: error reading config files: %v", ErrConfiguration, err)
	}

	sec, err := f.GetSection(profile)
	if profile == ini.DefaultSection || err != nil {
		return nil, fmt.Errorf("%w: no section named '%s' in configuration files: %s",
			ErrProfileNotFound, profile, strings.Join(files, ", "))
	}

	values := make(map[string]any)
	for _, k := range f.Section(ini.DefaultSection).Keys() {
		values[k.Name()] = k.Value()
	}
	for _, k := range sec.Keys() {
		values[k.Name()] = k.Value()
	}
	return values, nil
}

// checkSectionHeader rejects files whose first key comes before any
// section header.
func checkSectionHeader(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: error reading config file %s: %v", ErrConfiguration, path, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}
		if line[0] != '[' {
			return fmt.Errorf("%w: %s", ErrMissingSectionHeader, path)
		}
		return nil
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks the settings before any request is made.
func (s *Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: invalid %s: failed '%s' check", ErrConfiguration, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return nil
}

// ParseBool accepts the boolean spellings INI files commonly use:
// 1/yes/true/on and 0/no/false/off, case-insensitively.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "yes", "true", "on":
		return true, nil
	case "0", "no", "false", "off":
		return false, nil
	default:
		return false, fmt.Errorf("not a boolean: %q", s)
	}
}

// ParseTimeout accepts a Go duration ("2500ms", "5s") or a plain number of
// seconds ("10", "2.5").
func ParseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a duration: %q", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Write stores s as a profile section in a new INI file at path. An
// existing file is only replaced when overwrite is set.
func Write(path string, s *Settings, overwrite bool) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if !overwrite && fileExists(path) {
		return fmt.Errorf("config file already exists: %s", path)
	}

	f := ini.Empty()
	sec, err := f.NewSection(s.Profile)
	if err != nil {
		return fmt.Errorf("failed to create section %s: %w", s.Profile, err)
	}
	values := [][2]string{
		{"remote_host", s.RemoteHost},
		{"remote_port", s.RemotePort},
		{"ignore_proxy", formatBool(s.IgnoreProxy)},
		{"ssl", formatBool(s.TLS)},
		{"timeout", s.Timeout.String()},
	}
	for _, kv := range values {
		if _, err := sec.NewKey(kv[0], kv[1]); err != nil {
			return fmt.Errorf("failed to set %s: %w", kv[0], err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return f.SaveTo(path)
}

func formatBool(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
