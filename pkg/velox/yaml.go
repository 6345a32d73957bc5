package velox

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/veloxcache/velox/pkg/cache/memory"
)

// fileOptions is the YAML representation of Options. Durations use Go
// duration syntax ("30s", "5m").
type fileOptions struct {
	MaxItems                 int     `yaml:"max_items"`
	MaxExpiration            string  `yaml:"max_expiration"`
	DefaultExpiration        string  `yaml:"default_expiration"`
	EvictionPolicy           string  `yaml:"eviction_policy"`
	EvictionSamplePercentage float64 `yaml:"eviction_sample_percentage"`
	EnableBackgroundCleanup  *bool   `yaml:"enable_background_cleanup"`
	CleanupInterval          string  `yaml:"cleanup_interval"`
	CleanupBatchSize         int     `yaml:"cleanup_batch_size"`
	EnableStatistics         *bool   `yaml:"enable_statistics"`
	EnableFastPath           *bool   `yaml:"enable_fast_path"`
	FastPathTrackMetrics     *bool   `yaml:"fast_path_track_metrics"`
	CountWaiterMisses        bool    `yaml:"count_waiter_misses"`
	ShardCount               int     `yaml:"shard_count"`
	MaxTagMappings           int64   `yaml:"max_tag_mappings"`
}

// LoadOptions reads Options from a YAML file, starting from
// DefaultOptions and overriding the fields the file sets.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("load options: %w", err)
	}
	return parseOptions(data)
}

func parseOptions(data []byte) (Options, error) {
	var f fileOptions
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Options{}, fmt.Errorf("parse options: %w", err)
	}

	opts := DefaultOptions()
	if f.MaxItems > 0 {
		opts.MaxItems = f.MaxItems
	}
	if err := setDuration(&opts.MaxExpiration, "max_expiration", f.MaxExpiration); err != nil {
		return Options{}, err
	}
	if err := setDuration(&opts.DefaultExpiration, "default_expiration", f.DefaultExpiration); err != nil {
		return Options{}, err
	}
	if f.EvictionPolicy != "" {
		policy, err := memory.ParseEvictionPolicy(f.EvictionPolicy)
		if err != nil {
			return Options{}, fmt.Errorf("parse options: %w", err)
		}
		opts.EvictionPolicy = policy
	}
	if f.EvictionSamplePercentage > 0 {
		opts.EvictionSamplePercentage = f.EvictionSamplePercentage
	}
	if f.EnableBackgroundCleanup != nil {
		opts.EnableBackgroundCleanup = *f.EnableBackgroundCleanup
	}
	if err := setDuration(&opts.CleanupInterval, "cleanup_interval", f.CleanupInterval); err != nil {
		return Options{}, err
	}
	if f.CleanupBatchSize > 0 {
		opts.CleanupBatchSize = f.CleanupBatchSize
	}
	if f.EnableStatistics != nil {
		opts.EnableStatistics = *f.EnableStatistics
	}
	if f.EnableFastPath != nil {
		opts.EnableFastPath = *f.EnableFastPath
	}
	if f.FastPathTrackMetrics != nil {
		opts.FastPathTrackMetrics = *f.FastPathTrackMetrics
	}
	opts.CountWaiterMisses = f.CountWaiterMisses
	if f.ShardCount > 0 {
		opts.ShardCount = f.ShardCount
	}
	if f.MaxTagMappings > 0 {
		opts.MaxTagMappings = f.MaxTagMappings
	}

	if err := opts.Validate(); err != nil {
		return Options{}, fmt.Errorf("parse options: %w", err)
	}
	return opts, nil
}

func setDuration(dst *time.Duration, field, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse options: %s: %w", field, err)
	}
	*dst = d
	return nil
}
