package run

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/sagshome/ImageClean-sub000/internal/config"
	"github.com/sagshome/ImageClean-sub000/internal/infra/fsx"
	"github.com/sagshome/ImageClean-sub000/internal/relocate"
)

// Init prepares an output library: the root, its side areas and the state
// directory. When cfgPath is set and free, eff is saved there as a starting
// config. It returns the paths it created.
func Init(fs afero.Fs, eff config.EffectiveConfig, cfgPath string) ([]string, error) {
	var created []string
	dirs := []string{
		eff.Output,
		filepath.Join(eff.Output, relocate.DuplicatesDir),
		filepath.Join(eff.Output, relocate.MigratedDir),
		filepath.Join(eff.Output, relocate.StateDir),
	}
	for _, dir := range dirs {
		if fsx.Exists(fs, dir) {
			continue
		}
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return created, fmt.Errorf("init: create %s: %w", dir, err)
		}
		created = append(created, dir)
	}

	if cfgPath == "" || fsx.Exists(fs, cfgPath) {
		return created, nil
	}
	if err := config.Save(fs, cfgPath, eff.File()); err != nil {
		return created, fmt.Errorf("init: %w", err)
	}
	return append(created, cfgPath), nil
}
