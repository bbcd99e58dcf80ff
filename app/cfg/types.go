package cfg

type Cfg struct {
	// Storage configuration
	DBPath string

	// Server configuration
	BindAddr string

	// Egress configuration
	ProxyAddr string

	// Push configuration
	BarkAddr string

	// Fever API configuration
	FeverPath string
	FeverAuth string

	// Transform configuration
	ScriptPath string

	// Application metadata
	Debug   bool
	Version string
}
