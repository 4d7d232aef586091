package types

import "time"

// FetchConfig holds shared HTTP settings used when inputs are given as
// URLs instead of local paths.
type FetchConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "pageforge/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// MaxRetries is the number of retry attempts for failed requests
	// (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// Isolation identifies the worker execution boundary.
type Isolation string

const (
	// IsolationProcess runs every chunk in its own child process, so a
	// crash while parsing one chunk cannot take down its siblings.
	IsolationProcess Isolation = "process"

	// IsolationOff runs chunks on goroutines inside the main process.
	IsolationOff Isolation = "off"
)

// RunConfig holds settings for the transformation run itself.
type RunConfig struct {
	// Workers is the number of concurrent chunk workers (default: the
	// number of CPUs).
	Workers int `json:"workers" yaml:"workers"`

	// Isolation selects the worker boundary: process or off.
	Isolation Isolation `json:"isolation" yaml:"isolation"`

	// TempDir overrides the parent directory for per-run scratch space
	// (default: the system temp directory).
	TempDir string `json:"temp_dir" yaml:"temp_dir"`
}

// LedgerConfig holds settings for the run-history database.
type LedgerConfig struct {
	// Path is the SQLite database file (default ~/.pageforge/history.db).
	Path string `json:"path" yaml:"path"`

	// Disabled turns off history recording entirely.
	Disabled bool `json:"disabled" yaml:"disabled"`
}

// ToolConfig groups all configuration blocks for the tool.
type ToolConfig struct {
	Run    RunConfig    `json:"run" yaml:"run"`
	Fetch  FetchConfig  `json:"fetch" yaml:"fetch"`
	Ledger LedgerConfig `json:"ledger" yaml:"ledger"`

	// LogLevel sets the console log threshold: trace, debug, info,
	// warn, or error.
	LogLevel string `json:"log_level" yaml:"log_level"`
}
