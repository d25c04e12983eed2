package fsbackend

import (
	"bytes"
	"path/filepath"

	"github.com/ashbourne/gitkit/backend"
	"github.com/ashbourne/gitkit/internal/gitpath"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
	"gopkg.in/ini.v1"
)

// setDefaultCfg set and persists the default git configuration for
// the repository
func (b *Backend) setDefaultCfg() error {
	cfg := ini.Empty()

	// Core
	core, err := cfg.NewSection(backend.CfgCore)
	if err != nil {
		return xerrors.Errorf("could not create core section: %w", err)
	}
	coreCfg := map[string]string{
		backend.CfgCoreFormatVersion:     "0",
		backend.CfgCoreFileMode:          "true",
		backend.CfgCoreBare:              "false",
		backend.CfgCoreLogAllRefUpdate:   "true",
		backend.CfgCoreIgnoreCase:        "true",
		backend.CfgCorePrecomposeUnicode: "true",
	}
	for k, v := range coreCfg {
		if _, err := core.NewKey(k, v); err != nil {
			return xerrors.Errorf("could not set %s: %w", k, err)
		}
	}
	buf := new(bytes.Buffer)
	if _, err := cfg.WriteTo(buf); err != nil {
		return xerrors.Errorf("could not serialize config: %w", err)
	}
	return afero.WriteFile(b.fs, filepath.Join(b.root, gitpath.ConfigPath), buf.Bytes(), 0o644)
}
