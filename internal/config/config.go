// Package config discovers, reads and merges the persisted configuration
// with command-line overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/sagshome/ImageClean-sub000/internal/infra/fsx"
)

const (
	// ErrCodeNotFound means an explicitly named config file does not exist.
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid means the file cannot be read or parsed, or a field is
	// not valid.
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingPath means input or output is given neither on the
	// command line nor in the file.
	ErrCodeMissingPath = "config_missing_path"
)

// FileName is the config file looked up in the working directory.
const FileName = "imageclean.json"

// Policy flag names, shared by the JSON file and the CLI override map.
const (
	KeyKeepOriginals    = "keep_originals"
	KeyConvert          = "convert"
	KeyArchiveConverted = "archive_converted"
	KeyFixDate          = "fix_date"
	KeyMatchDate        = "match_date"
	KeyCheckSmall       = "check_small"
	KeyRollover         = "rollover"
	KeyRecreate         = "recreate"
	KeyManifest         = "manifest"
)

// CLIArgs carries command-line values. Bools holds only the policy flags that
// were explicitly set, so "-keep=false" can override "keep_originals": true.
type CLIArgs struct {
	ConfigPath string
	Input      string
	Output     string
	Execute    bool
	Bools      map[string]bool
}

// FileConfig is the parsed imageclean.json.
type FileConfig struct {
	Input            string   `json:"input"`
	Output           string   `json:"output"`
	KeepOriginals    *bool    `json:"keep_originals,omitempty"`
	Convert          *bool    `json:"convert,omitempty"`
	ArchiveConverted *bool    `json:"archive_converted,omitempty"`
	FixDate          *bool    `json:"fix_date,omitempty"`
	MatchDate        *bool    `json:"match_date,omitempty"`
	CheckSmall       *bool    `json:"check_small,omitempty"`
	Rollover         *bool    `json:"rollover,omitempty"`
	Recreate         *bool    `json:"recreate,omitempty"`
	Manifest         *bool    `json:"manifest,omitempty"`
	IgnoreFolders    []string `json:"ignore_folders,omitempty"`
}

// EffectiveConfig is the merged, normalized configuration the run consumes.
type EffectiveConfig struct {
	ConfigPath string // "" when no file was read

	Input  string
	Output string

	Execute          bool
	KeepOriginals    bool
	Convert          bool
	ArchiveConverted bool
	FixDate          bool
	MatchDate        bool
	CheckSmall       bool
	Rollover         bool
	Recreate         bool
	Manifest         bool

	IgnoreFolders []string
}

// Error is a configuration error carrying an error code.
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s: config file %q not found", e.Code, e.Path)
	case ErrCodeMissingPath:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s: config file %q is invalid: %v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s: config file %q is invalid", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code extracts the error code from err, or "" when err is not an *Error.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Load finds and reads the config file, then merges CLI overrides.
//
// Discovery: cli.ConfigPath when given (must exist), else <cwd>/imageclean.json
// (optional). Precedence for every field: explicit CLI value > file > default.
// Relative paths in the file resolve against the file's directory; relative
// CLI paths resolve against cwd.
func Load(fs afero.Fs, cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	explicit := strings.TrimSpace(cli.ConfigPath) != ""
	if explicit {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
	}
	fc, exists, err := readFileConfig(fs, cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if explicit && !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}
	if !exists {
		cfgPath = ""
	}
	return merge(cwdAbs, cfgPath, cli, fc)
}

func merge(cwd, cfgPath string, cli CLIArgs, fc FileConfig) (EffectiveConfig, error) {
	fileBase := cwd
	if cfgPath != "" {
		fileBase = filepath.Dir(cfgPath)
	}
	pick := func(cliVal, fileVal string) string {
		if strings.TrimSpace(cliVal) != "" {
			return absCleanFrom(cwd, cliVal)
		}
		if strings.TrimSpace(fileVal) != "" {
			return absCleanFrom(fileBase, fileVal)
		}
		return ""
	}
	eff := EffectiveConfig{
		ConfigPath: cfgPath,
		Input:      pick(cli.Input, fc.Input),
		Output:     pick(cli.Output, fc.Output),
		Execute:    cli.Execute,
	}
	if eff.Input == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingPath, Path: cfgPath, Err: errors.New("input root is not set")}
	}
	if eff.Output == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingPath, Path: cfgPath, Err: errors.New("output root is not set")}
	}

	boolean := func(key string, fileVal *bool, def bool) bool {
		if v, ok := cli.Bools[key]; ok {
			return v
		}
		if fileVal != nil {
			return *fileVal
		}
		return def
	}
	eff.KeepOriginals = boolean(KeyKeepOriginals, fc.KeepOriginals, true)
	eff.Convert = boolean(KeyConvert, fc.Convert, false)
	eff.ArchiveConverted = boolean(KeyArchiveConverted, fc.ArchiveConverted, false)
	eff.FixDate = boolean(KeyFixDate, fc.FixDate, false)
	eff.MatchDate = boolean(KeyMatchDate, fc.MatchDate, false)
	eff.CheckSmall = boolean(KeyCheckSmall, fc.CheckSmall, false)
	eff.Rollover = boolean(KeyRollover, fc.Rollover, true)
	eff.Recreate = boolean(KeyRecreate, fc.Recreate, false)
	eff.Manifest = boolean(KeyManifest, fc.Manifest, false)

	for _, name := range fc.IgnoreFolders {
		if name = strings.TrimSpace(name); name != "" {
			eff.IgnoreFolders = append(eff.IgnoreFolders, name)
		}
	}
	return eff, nil
}

// File returns the persisted form of eff.
func (eff EffectiveConfig) File() FileConfig {
	b := func(v bool) *bool { return &v }
	return FileConfig{
		Input:            eff.Input,
		Output:           eff.Output,
		KeepOriginals:    b(eff.KeepOriginals),
		Convert:          b(eff.Convert),
		ArchiveConverted: b(eff.ArchiveConverted),
		FixDate:          b(eff.FixDate),
		MatchDate:        b(eff.MatchDate),
		CheckSmall:       b(eff.CheckSmall),
		Rollover:         b(eff.Rollover),
		Recreate:         b(eff.Recreate),
		Manifest:         b(eff.Manifest),
		IgnoreFolders:    append([]string(nil), eff.IgnoreFolders...),
	}
}

// Save writes fc to path atomically as indented JSON.
func Save(fs afero.Fs, path string, fc FileConfig) error {
	b, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomic(fs, filepath.Dir(path), filepath.Base(path), append(b, '\n'))
}

// absCleanFrom makes p absolute against base and cleans it.
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig reads and parses a JSON config file. exists reports whether
// the file was there; a missing file is not an error.
func readFileConfig(fs afero.Fs, path string) (fc FileConfig, exists bool, err error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
