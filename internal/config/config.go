package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net/netip"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Report kinds.
const (
	ReportDowntime = "downtime"
	ReportOverload = "overload"
	ReportError    = "error"
	ReportNetwork  = "network"
)

// Config represents the complete configuration for pingscope
type Config struct {
	// Input
	Logs   []string `yaml:"logs" json:"logs"`
	Watch  bool     `yaml:"watch" json:"watch"`
	Report string   `yaml:"report" json:"report"`
	Format string   `yaml:"format" json:"format"`

	// Detection
	Debounce          int      `yaml:"debounce" json:"debounce"`
	OverloadWindow    int      `yaml:"overload_window" json:"overload_window"`
	OverloadThreshold float64  `yaml:"overload_threshold" json:"overload_threshold"`
	NetworkDebounce   int      `yaml:"network_debounce" json:"network_debounce"`
	SkipHostDowntime  bool     `yaml:"skip_host_downtime" json:"skip_host_downtime"`
	SkipHostOverload  bool     `yaml:"skip_host_overload" json:"skip_host_overload"`
	Subnets           []string `yaml:"subnets" json:"subnets"`
	Concurrency       int      `yaml:"concurrency" json:"concurrency"`

	// Publishing
	Publish        bool    `yaml:"publish" json:"publish"`
	Ingest         string  `yaml:"ingest" json:"ingest"`
	SpoolDir       string  `yaml:"spool_dir" json:"spool_dir"`
	BatchMaxEvents int     `yaml:"batch_max_events" json:"batch_max_events"`
	BatchFlushSec  int     `yaml:"batch_flush_sec" json:"batch_flush_sec"`
	IngestRate     float64 `yaml:"ingest_rate" json:"ingest_rate"`
	DSN            string  `yaml:"dsn" json:"dsn"`
	Table          string  `yaml:"table" json:"table"`

	// mTLS
	MTLSCert string `yaml:"mtls_cert" json:"mtls_cert"`
	MTLSKey  string `yaml:"mtls_key" json:"mtls_key"`
	MTLSCA   string `yaml:"mtls_ca" json:"mtls_ca"`

	// Observability
	MetricsAddr  string `yaml:"metrics_addr" json:"metrics_addr"`
	OTELEndpoint string `yaml:"otel_endpoint" json:"otel_endpoint"`
	OTELInsecure bool   `yaml:"otel_insecure" json:"otel_insecure"`
	OTELService  string `yaml:"otel_service" json:"otel_service"`

	// Redis
	RedisAddr      string `yaml:"redis_addr" json:"redis_addr"`
	RedisQueueAddr string `yaml:"redis_queue_addr" json:"redis_queue_addr"`
	RedisQueueKey  string `yaml:"redis_queue_key" json:"redis_queue_key"`
}

// SetDefaults sets default values for the configuration
func (c *Config) SetDefaults() {
	if c.Report == "" {
		c.Report = ReportNetwork
	}
	if c.Format == "" {
		c.Format = "text"
	}
	if c.Debounce == 0 {
		c.Debounce = 1
	}
	if c.OverloadWindow == 0 {
		c.OverloadWindow = 3
	}
	if c.OverloadThreshold == 0 {
		c.OverloadThreshold = 100
	}
	if c.NetworkDebounce == 0 {
		c.NetworkDebounce = 3
	}
	if c.Concurrency == 0 {
		c.Concurrency = 8
	}
	if c.SpoolDir == "" {
		c.SpoolDir = "spool"
	}
	if c.BatchMaxEvents == 0 {
		c.BatchMaxEvents = 500
	}
	if c.BatchFlushSec == 0 {
		c.BatchFlushSec = 2
	}
	if c.IngestRate == 0 {
		c.IngestRate = 10
	}
	if c.Table == "" {
		c.Table = "ping_events"
	}
	if c.OTELService == "" {
		c.OTELService = "pingscope"
	}
	if c.RedisQueueKey == "" {
		c.RedisQueueKey = "pingscope:records"
	}
}

// Uniform sets every detector count to n, as the combined reports do.
func (c *Config) Uniform(n int) {
	c.Debounce = n
	c.OverloadWindow = n
	c.NetworkDebounce = n
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if len(c.Logs) == 0 && c.RedisQueueAddr == "" {
		return fmt.Errorf("at least one log file or a redis queue is required")
	}
	if c.Watch && len(c.Logs) == 0 {
		return fmt.Errorf("watch needs log files")
	}
	switch c.Report {
	case ReportDowntime, ReportOverload, ReportError, ReportNetwork:
	default:
		return fmt.Errorf("unknown report %q (use downtime, overload, error or network)", c.Report)
	}
	switch strings.ToLower(c.Format) {
	case "text", "json", "jsonl", "ndjson", "csv":
	default:
		return fmt.Errorf("unsupported output format %q (use text, json, jsonl or csv)", c.Format)
	}
	if c.Debounce < 1 {
		return fmt.Errorf("debounce must be at least 1")
	}
	if c.OverloadWindow < 1 {
		return fmt.Errorf("overload_window must be at least 1")
	}
	if !(c.OverloadThreshold > 0) {
		return fmt.Errorf("overload_threshold must be > 0")
	}
	if c.NetworkDebounce < 1 {
		return fmt.Errorf("network_debounce must be at least 1")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}
	if c.BatchMaxEvents < 1 {
		return fmt.Errorf("batch_max_events must be at least 1")
	}
	if c.BatchFlushSec < 1 {
		return fmt.Errorf("batch_flush_sec must be at least 1")
	}
	if !(c.IngestRate > 0) {
		return fmt.Errorf("ingest_rate must be > 0")
	}
	if _, err := c.SubnetPrefixes(); err != nil {
		return err
	}
	return nil
}

// SubnetPrefixes parses the configured subnets.
func (c *Config) SubnetPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(c.Subnets))
	for _, s := range c.Subnets {
		p, err := netip.ParsePrefix(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("invalid subnet %q: %w", s, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// LoadFromFile loads configuration from a YAML or JSON file
func LoadFromFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Defaults go in first so keys the file sets, zero included, win.
	var config Config
	config.SetDefaults()
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (use .yaml, .yml, or .json)", ext)
	}

	return &config, nil
}

// MergeWithFlags merges command-line flags with file configuration
// Command-line flags take precedence over file configuration. Numeric and
// boolean keys are applied as given; callers pass only flags the user set,
// so an explicit out-of-range value is left for Validate to reject.
func (c *Config) MergeWithFlags(flags map[string]interface{}) {
	if v, ok := flags["logs"].([]string); ok && len(v) > 0 {
		c.Logs = v
	}
	if v, ok := flags["watch"].(bool); ok {
		c.Watch = v
	}
	if v, ok := flags["report"].(string); ok && v != "" {
		c.Report = v
	}
	if v, ok := flags["format"].(string); ok && v != "" {
		c.Format = v
	}
	if v, ok := flags["continuous"].(int); ok {
		c.Uniform(v)
	}
	if v, ok := flags["debounce"].(int); ok {
		c.Debounce = v
	}
	if v, ok := flags["overload_window"].(int); ok {
		c.OverloadWindow = v
	}
	if v, ok := flags["overload_threshold"].(float64); ok {
		c.OverloadThreshold = v
	}
	if v, ok := flags["network_debounce"].(int); ok {
		c.NetworkDebounce = v
	}
	if v, ok := flags["skip_host_downtime"].(bool); ok {
		c.SkipHostDowntime = v
	}
	if v, ok := flags["skip_host_overload"].(bool); ok {
		c.SkipHostOverload = v
	}
	if v, ok := flags["subnets"].([]string); ok && len(v) > 0 {
		c.Subnets = v
	}
	if v, ok := flags["concurrency"].(int); ok {
		c.Concurrency = v
	}
	if v, ok := flags["publish"].(bool); ok {
		c.Publish = v
	}
	if v, ok := flags["ingest"].(string); ok && v != "" {
		c.Ingest = v
	}
	if v, ok := flags["spool_dir"].(string); ok && v != "" {
		c.SpoolDir = v
	}
	if v, ok := flags["dsn"].(string); ok && v != "" {
		c.DSN = v
	}
	if v, ok := flags["table"].(string); ok && v != "" {
		c.Table = v
	}
	if v, ok := flags["redis_queue_addr"].(string); ok && v != "" {
		c.RedisQueueAddr = v
	}
	if v, ok := flags["metrics_addr"].(string); ok && v != "" {
		c.MetricsAddr = v
	}
	if v, ok := flags["otel_endpoint"].(string); ok && v != "" {
		c.OTELEndpoint = v
	}
	if v, ok := flags["otel_insecure"].(bool); ok {
		c.OTELInsecure = v
	}
	if v, ok := flags["otel_service"].(string); ok && v != "" {
		c.OTELService = v
	}
	if v, ok := flags["mtls_cert"].(string); ok && v != "" {
		c.MTLSCert = v
	}
	if v, ok := flags["mtls_key"].(string); ok && v != "" {
		c.MTLSKey = v
	}
	if v, ok := flags["mtls_ca"].(string); ok && v != "" {
		c.MTLSCA = v
	}
}

// Publishing reports whether events go to any sink besides the report.
func (c *Config) Publishing() bool {
	return c.Publish || c.Ingest != "" || c.DSN != ""
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("REDIS_QUEUE_ADDR"); v != "" {
		c.RedisQueueAddr = v
	}
	if v := os.Getenv("REDIS_QUEUE_KEY"); v != "" {
		c.RedisQueueKey = v
	}
	if v := os.Getenv("PINGSCOPE_DSN"); v != "" {
		c.DSN = v
	}
}
