package cfg

import (
	"cmp"
	"fmt"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath string `long:"db" env:"RSS_PIPE_DB" default:"db.sqlite3" description:"Path to the SQLite database file"`

	// Server configuration
	BindAddr string `long:"bind" env:"RSS_PIPE_BIND" default:"127.0.0.1:5080" description:"Address the HTTP server listens on"`

	// Egress configuration
	ProxyAddr string `long:"proxy" env:"RSS_PIPE_PROXY" description:"SOCKS5 proxy address for HTTPS egress (host:port, empty for direct)"`

	// Push configuration
	BarkAddr string `long:"bark" env:"RSS_PIPE_BARK" description:"Bark push destination URL (empty for console preview only)"`

	// Fever API configuration
	FeverPath string `long:"fever" env:"RSS_PIPE_FEVER" default:"/fever" description:"Mount path for the Fever sync API"`
	FeverAuth string `long:"auth" env:"RSS_PIPE_AUTH" description:"API key accepted by the Fever sync API"`

	// Transform configuration
	ScriptPath string `long:"script" env:"RSS_PIPE_SCRIPT" description:"Path to the transform program invoked for /invoke requests"`

	Debug bool `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:     raw.DBPath,
		BindAddr:   raw.BindAddr,
		ProxyAddr:  raw.ProxyAddr,
		BarkAddr:   raw.BarkAddr,
		FeverPath:  raw.FeverPath,
		FeverAuth:  raw.FeverAuth,
		ScriptPath: raw.ScriptPath,
		Debug:      raw.Debug,
		Version:    GetVersion(),
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// Set replaces the global configuration. Intended for tests.
func Set(c *Cfg) {
	globalCfg = c
}
