// Package config assembles the configuration for the whole pipeline.
// Each stage owns its config struct; this package composes them,
// supplies defaults, and validates the result.
package config

import (
	"os"

	"github.com/pawtrawl/pawtrawl/internal/classifier"
	"github.com/pawtrawl/pawtrawl/internal/crawlclient"
	"github.com/pawtrawl/pawtrawl/internal/extract"
	"github.com/pawtrawl/pawtrawl/internal/llm"
	"github.com/pawtrawl/pawtrawl/internal/logging"
	"github.com/pawtrawl/pawtrawl/internal/merger"
	"github.com/pawtrawl/pawtrawl/internal/pipeline"
	"github.com/pawtrawl/pawtrawl/internal/retention"
)

// Config is the full pipeline configuration.
type Config struct {
	Crawl      crawlclient.Config       `mapstructure:"crawl" yaml:"crawl"`
	LLM        llm.Config               `mapstructure:"llm" yaml:"llm"`
	Classifier classifier.Config        `mapstructure:"classifier" yaml:"classifier"`
	Merger     merger.Config            `mapstructure:"merger" yaml:"merger"`
	Extraction extract.Config           `mapstructure:"extraction" yaml:"extraction"`
	Retention  retention.Config         `mapstructure:"retention" yaml:"retention"`
	Pipeline   pipeline.Config          `mapstructure:"pipeline" yaml:"pipeline"`
	Scheduler  pipeline.SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Logging    logging.Config           `mapstructure:"logging" yaml:"logging"`

	// CrawlAPIKeyEnv and LLMAPIKeyEnv name environment variables that
	// override the inline keys, keeping secrets out of config files.
	CrawlAPIKeyEnv string `mapstructure:"crawl_api_key_env" yaml:"crawl_api_key_env"`
	LLMAPIKeyEnv   string `mapstructure:"llm_api_key_env" yaml:"llm_api_key_env"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Crawl:          crawlclient.DefaultConfig(),
		LLM:            llm.DefaultConfig(),
		Classifier:     classifier.DefaultConfig(),
		Merger:         merger.DefaultConfig(),
		Extraction:     extract.DefaultConfig(),
		Retention:      retention.DefaultConfig(),
		Pipeline:       pipeline.DefaultConfig(),
		Scheduler:      pipeline.DefaultSchedulerConfig(),
		Logging:        logging.DefaultConfig(),
		CrawlAPIKeyEnv: "FIRECRAWL_API_KEY",
		LLMAPIKeyEnv:   "OPENAI_API_KEY",
	}
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.Retention.DatabasePath == "" {
		return ErrEmptyDatabasePath
	}
	if c.Retention.MaxVersions <= 0 {
		return ErrInvalidMaxVersions
	}
	if c.Retention.RetentionDays <= 0 || c.Retention.RecrawlDays <= 0 {
		return ErrInvalidRetentionPolicy
	}
	if c.Classifier.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.Merger.MinRelevanceScore < 0 || c.Merger.MinRelevanceScore > 1 {
		return ErrInvalidRelevanceThreshold
	}
	if c.Pipeline.OutputDir == "" || c.Pipeline.StorageDir == "" {
		return ErrEmptyOutputDir
	}
	return nil
}

// ResolveSecrets fills API keys from the configured environment
// variables when set. Environment values take precedence over inline
// config.
func (c *Config) ResolveSecrets() {
	if c.CrawlAPIKeyEnv != "" {
		if key := os.Getenv(c.CrawlAPIKeyEnv); key != "" {
			c.Crawl.APIKey = key
		}
	}
	if c.LLMAPIKeyEnv != "" {
		if key := os.Getenv(c.LLMAPIKeyEnv); key != "" {
			c.LLM.APIKey = key
		}
	}
}
