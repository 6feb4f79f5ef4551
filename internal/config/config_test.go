package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFile_YAML(t *testing.T) {
	yamlContent := `
logs:
  - ping_log_002.txt
report: error
debounce: 2
overload_window: 5
overload_threshold: 150.5
subnets:
  - 10.20.0.0/16
ingest: https://test.example.com/events
`

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configFile, []byte(yamlContent), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(configFile)
	if err != nil {
		t.Fatalf("failed to load YAML config: %v", err)
	}

	if len(cfg.Logs) != 1 || cfg.Logs[0] != "ping_log_002.txt" {
		t.Errorf("unexpected logs: %v", cfg.Logs)
	}
	if cfg.Report != ReportError {
		t.Errorf("expected report 'error', got %s", cfg.Report)
	}
	if cfg.Debounce != 2 {
		t.Errorf("expected debounce 2, got %d", cfg.Debounce)
	}
	if cfg.OverloadWindow != 5 {
		t.Errorf("expected overload_window 5, got %d", cfg.OverloadWindow)
	}
	if cfg.OverloadThreshold != 150.5 {
		t.Errorf("expected overload_threshold 150.5, got %v", cfg.OverloadThreshold)
	}
	if cfg.NetworkDebounce != 3 {
		t.Errorf("expected default network_debounce 3, got %d", cfg.NetworkDebounce)
	}
	if cfg.Ingest != "https://test.example.com/events" {
		t.Errorf("expected ingest URL, got %s", cfg.Ingest)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	jsonContent := `{
		"logs": ["a.txt", "b.txt"],
		"format": "jsonl",
		"concurrency": 4,
		"metrics_addr": ":8080"
	}`

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.json")
	if err := os.WriteFile(configFile, []byte(jsonContent), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(configFile)
	if err != nil {
		t.Fatalf("failed to load JSON config: %v", err)
	}

	if len(cfg.Logs) != 2 {
		t.Errorf("expected 2 logs, got %v", cfg.Logs)
	}
	if cfg.Format != "jsonl" {
		t.Errorf("expected format 'jsonl', got %s", cfg.Format)
	}
	if cfg.Concurrency != 4 {
		t.Errorf("expected concurrency 4, got %d", cfg.Concurrency)
	}
	if cfg.MetricsAddr != ":8080" {
		t.Errorf("expected metrics_addr ':8080', got %s", cfg.MetricsAddr)
	}
}

func TestLoadFromFile_UnsupportedExtension(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configFile, []byte("logs = []"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(configFile); err == nil {
		t.Error("expected error for .toml config")
	}
}

func TestSetDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	if cfg.Report != ReportNetwork {
		t.Errorf("expected default report 'network', got %s", cfg.Report)
	}
	if cfg.Format != "text" {
		t.Errorf("expected default format 'text', got %s", cfg.Format)
	}
	if cfg.Debounce != 1 || cfg.OverloadWindow != 3 || cfg.NetworkDebounce != 3 {
		t.Errorf("unexpected default counts: debounce=%d window=%d network=%d",
			cfg.Debounce, cfg.OverloadWindow, cfg.NetworkDebounce)
	}
	if cfg.OverloadThreshold != 100 {
		t.Errorf("expected default threshold 100, got %v", cfg.OverloadThreshold)
	}
	if cfg.BatchFlushSec != 2 {
		t.Errorf("expected default batch_flush_sec 2, got %d", cfg.BatchFlushSec)
	}
	if cfg.RedisQueueKey != "pingscope:records" {
		t.Errorf("unexpected default queue key: %s", cfg.RedisQueueKey)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		c := Config{Logs: []string{"ping.txt"}}
		c.SetDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "queue instead of logs", mutate: func(c *Config) { c.Logs = nil; c.RedisQueueAddr = "localhost:6379" }},
		{name: "no input", mutate: func(c *Config) { c.Logs = nil }, wantErr: true},
		{name: "watch without logs", mutate: func(c *Config) {
			c.Logs = nil
			c.RedisQueueAddr = "localhost:6379"
			c.Watch = true
		}, wantErr: true},
		{name: "unknown report", mutate: func(c *Config) { c.Report = "latency" }, wantErr: true},
		{name: "unknown format", mutate: func(c *Config) { c.Format = "xml" }, wantErr: true},
		{name: "zero debounce", mutate: func(c *Config) { c.Debounce = 0 }, wantErr: true},
		{name: "zero window", mutate: func(c *Config) { c.OverloadWindow = 0 }, wantErr: true},
		{name: "negative threshold", mutate: func(c *Config) { c.OverloadThreshold = -1 }, wantErr: true},
		{name: "zero network debounce", mutate: func(c *Config) { c.NetworkDebounce = 0 }, wantErr: true},
		{name: "bad subnet", mutate: func(c *Config) { c.Subnets = []string{"10.20.0.0"} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubnetPrefixes(t *testing.T) {
	cfg := &Config{Subnets: []string{"10.20.0.0/16", " 192.168.1.0/24 "}}
	got, err := cfg.SubnetPrefixes()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1].String() != "192.168.1.0/24" {
		t.Errorf("unexpected prefixes: %v", got)
	}
}

func TestMergeWithFlags(t *testing.T) {
	cfg := &Config{
		Logs:     []string{"original.txt"},
		Report:   ReportDowntime,
		Debounce: 2,
	}
	cfg.SetDefaults()

	flags := map[string]interface{}{
		"logs":   []string{"new.txt"},
		"format": "csv",
		"ingest": "https://new.example.com",
	}

	cfg.MergeWithFlags(flags)

	if cfg.Logs[0] != "new.txt" {
		t.Errorf("expected logs to be overridden, got %v", cfg.Logs)
	}
	if cfg.Report != ReportDowntime {
		t.Errorf("expected report to remain 'downtime', got %s", cfg.Report)
	}
	if cfg.Debounce != 2 {
		t.Errorf("expected debounce to remain 2, got %d", cfg.Debounce)
	}
	if cfg.Format != "csv" {
		t.Errorf("expected format csv, got %s", cfg.Format)
	}
	if cfg.Ingest != "https://new.example.com" {
		t.Errorf("expected ingest to be set, got %s", cfg.Ingest)
	}
}

func TestMergeWithFlags_Continuous(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	cfg.MergeWithFlags(map[string]interface{}{"continuous": 5, "overload_window": 2})

	if cfg.Debounce != 5 || cfg.NetworkDebounce != 5 {
		t.Errorf("expected counts set to 5, got debounce=%d network=%d", cfg.Debounce, cfg.NetworkDebounce)
	}
	if cfg.OverloadWindow != 2 {
		t.Errorf("expected explicit window to win over continuous, got %d", cfg.OverloadWindow)
	}
}

func TestLoadFromFile_ExplicitZeroIsRejected(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configFile, []byte("logs: [ping.log]\ndebounce: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(configFile)
	if err != nil {
		t.Fatalf("failed to load YAML config: %v", err)
	}
	if cfg.Debounce != 0 {
		t.Errorf("expected explicit debounce 0 to survive loading, got %d", cfg.Debounce)
	}
	if cfg.OverloadWindow != 3 {
		t.Errorf("expected default overload_window 3, got %d", cfg.OverloadWindow)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected debounce 0 to fail validation")
	}
}

func TestMergeWithFlags_OutOfRangeIsRejected(t *testing.T) {
	tests := []struct {
		name  string
		flags map[string]interface{}
	}{
		{"negative debounce", map[string]interface{}{"debounce": -1}},
		{"zero window", map[string]interface{}{"overload_window": 0}},
		{"negative threshold", map[string]interface{}{"overload_threshold": -5.0}},
		{"zero network debounce", map[string]interface{}{"network_debounce": 0}},
		{"zero concurrency", map[string]interface{}{"concurrency": 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Logs: []string{"ping.log"}}
			cfg.SetDefaults()
			cfg.MergeWithFlags(tt.flags)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected %v to fail validation", tt.flags)
			}
		})
	}
}

func TestMergeWithFlags_ExplicitFalse(t *testing.T) {
	cfg := &Config{Watch: true, Publish: true}
	cfg.SetDefaults()
	cfg.MergeWithFlags(map[string]interface{}{"watch": false, "publish": false})
	if cfg.Watch || cfg.Publish {
		t.Errorf("expected explicit false to override file, got watch=%v publish=%v", cfg.Watch, cfg.Publish)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis.test:6379")
	t.Setenv("REDIS_QUEUE_ADDR", "queue.test:6379")
	t.Setenv("REDIS_QUEUE_KEY", "test:queue")
	t.Setenv("PINGSCOPE_DSN", "postgres://localhost/pings")

	cfg := &Config{}
	cfg.LoadFromEnv()

	if cfg.RedisAddr != "redis.test:6379" {
		t.Errorf("expected RedisAddr from env, got %s", cfg.RedisAddr)
	}
	if cfg.RedisQueueAddr != "queue.test:6379" {
		t.Errorf("expected RedisQueueAddr from env, got %s", cfg.RedisQueueAddr)
	}
	if cfg.RedisQueueKey != "test:queue" {
		t.Errorf("expected RedisQueueKey from env, got %s", cfg.RedisQueueKey)
	}
	if cfg.DSN != "postgres://localhost/pings" {
		t.Errorf("expected DSN from env, got %s", cfg.DSN)
	}
}

func TestPublishing(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"nothing configured", Config{}, false},
		{"explicit publish", Config{Publish: true}, true},
		{"ingest url", Config{Ingest: "https://ingest.example.com"}, true},
		{"sql dsn", Config{DSN: "postgres://localhost/pings"}, true},
	}
	for _, tt := range tests {
		if got := tt.cfg.Publishing(); got != tt.want {
			t.Errorf("%s: Publishing() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
