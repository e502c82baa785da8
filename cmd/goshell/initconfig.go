package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/posixsh/posh/interp"
	"github.com/posixsh/posh/syntax"
)

// goshellConfig is the optional startup file's shape: a short allowlist
// of shell options to flip and an rc script to source before the
// requested command or script runs (SPEC_FULL.md's DOMAIN STACK entry
// for github.com/BurntSushi/toml).
type goshellConfig struct {
	Options struct {
		ErrExit   bool `toml:"errexit"`
		NoUnset   bool `toml:"nounset"`
		PipeFail  bool `toml:"pipefail"`
		GlobStar  bool `toml:"globstar"`
		ExtGlob   bool `toml:"extglob"`
		NullGlob  bool `toml:"nullglob"`
	} `toml:"options"`
	RCFile string `toml:"rcfile"`
}

// loadInitConfig applies an optional goshell.toml (explicit path via
// -rcfile, or ~/.goshellrc.toml) before the main script runs. Parse or
// source errors are reported but never abort startup, since a broken
// rc file shouldn't make the shell itself unusable.
func loadInitConfig(sh *interp.Shell, explicitPath string) {
	path := explicitPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		path = filepath.Join(home, ".goshellrc.toml")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(os.Stderr, "goshell:", err)
		}
		return
	}
	var cfg goshellConfig
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		fmt.Fprintln(os.Stderr, "goshell: config:", err)
		return
	}

	sh.Opts.ErrExit = cfg.Options.ErrExit
	sh.Opts.NoUnset = cfg.Options.NoUnset
	sh.Opts.PipeFail = cfg.Options.PipeFail
	sh.Opts.GlobStar = cfg.Options.GlobStar
	sh.Opts.ExtGlob = cfg.Options.ExtGlob
	sh.Opts.NullGlob = cfg.Options.NullGlob

	if cfg.RCFile != "" {
		rc, err := os.ReadFile(cfg.RCFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "goshell:", err)
			return
		}
		prog, err := syntax.Parse(cfg.RCFile, string(rc))
		if err != nil {
			fmt.Fprintln(os.Stderr, "goshell:", err)
			return
		}
		if _, err := sh.Run(prog); err != nil {
			fmt.Fprintln(os.Stderr, "goshell:", err)
		}
	}
}
