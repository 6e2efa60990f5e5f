package types

// CommonConf holds the concurrency budgets of a run.
type CommonConf struct {
	DetailWorkers     int `ini:"detail_workers"`
	ProbeWorkers      int `ini:"probe_workers"`
	PageFailureBudget int `ini:"page_failure_budget"`
}

// FetchConf configures the HTTP fetch layer.
type FetchConf struct {
	TimeoutSeconds int     `ini:"timeout_seconds"`
	MaxRetries     int     `ini:"max_retries"`
	BackoffMillis  int     `ini:"backoff_ms"`
	RatePerSecond  float64 `ini:"rate_per_second"` // 0 disables the limiter
	HeaderProfile  string  `ini:"header_profile"`  // brave, firefox, chrome or random
	TLSFingerprint string  `ini:"tls_fingerprint"` // none or chrome
}

// ProxyConf configures the proxy pool.
type ProxyConf struct {
	Enabled             bool   `ini:"enabled"`
	Source              string `ini:"source"`     // inline list: host:port[:user:pass] separated by ",,"
	File                string `ini:"file"`       // txt or csv candidate file
	RemoteURL           string `ini:"remote_url"` // plain-text or html proxy list
	ProbeURL            string `ini:"probe_url"`
	ProbeTimeoutSeconds int    `ini:"probe_timeout_seconds"`
	OnExhausted         string `ini:"on_exhausted"` // direct or abort
	ReportFile          string `ini:"report_file"`
}

// HarvestConf holds the search input and the output location.
type HarvestConf struct {
	Keywords  string `ini:"keywords"`
	Locations string `ini:"locations"`
	Output    string `ini:"output"`
}

// WebConf controls the optional progress feed.
type WebConf struct {
	Port int `ini:"port"`
}

// LogConf contains logging specific configuration
type LogConf struct {
	Level string `ini:"level"`
	File  string `ini:"file"`
}

// Config is the unified harvester configuration.
type Config struct {
	CommonConf  `ini:"common"`
	FetchConf   `ini:"fetch"`
	ProxyConf   `ini:"proxy"`
	HarvestConf `ini:"harvest"`
	WebConf     `ini:"web"`
	LogConf     `ini:"log"`
}

// Proxy pool fallback policies.
const (
	OnExhaustedDirect = "direct"
	OnExhaustedAbort  = "abort"
)

// DefaultConfig returns a Config populated with the stock values.
func DefaultConfig() *Config {
	return &Config{
		CommonConf: CommonConf{
			DetailWorkers:     10,
			ProbeWorkers:      15,
			PageFailureBudget: 3,
		},
		FetchConf: FetchConf{
			TimeoutSeconds: 20,
			MaxRetries:     3,
			BackoffMillis:  500,
			HeaderProfile:  "brave",
			TLSFingerprint: "none",
		},
		ProxyConf: ProxyConf{
			ProbeURL:            "http://httpbin.org/ip",
			ProbeTimeoutSeconds: 10,
			OnExhausted:         OnExhaustedAbort,
		},
		HarvestConf: HarvestConf{
			Output: "output.csv",
		},
		LogConf: LogConf{
			Level: "info",
		},
	}
}
