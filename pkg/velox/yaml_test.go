package velox

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/veloxcache/velox/pkg/cache/memory"
)

func TestParseOptions_OverridesDefaults(t *testing.T) {
	opts, err := parseOptions([]byte(`
max_items: 500
max_expiration: 1h
default_expiration: 5m
eviction_policy: lfu-precise
eviction_sample_percentage: 0.25
enable_background_cleanup: false
cleanup_interval: 30s
cleanup_batch_size: 200
enable_statistics: false
enable_fast_path: false
count_waiter_misses: true
shard_count: 64
max_tag_mappings: 5000
`))
	if err != nil {
		t.Fatalf("parseOptions failed: %v", err)
	}

	if opts.MaxItems != 500 {
		t.Errorf("MaxItems = %d, want 500", opts.MaxItems)
	}
	if opts.MaxExpiration != time.Hour {
		t.Errorf("MaxExpiration = %v, want 1h", opts.MaxExpiration)
	}
	if opts.DefaultExpiration != 5*time.Minute {
		t.Errorf("DefaultExpiration = %v, want 5m", opts.DefaultExpiration)
	}
	if opts.EvictionPolicy != memory.EvictionLFUPrecise {
		t.Errorf("EvictionPolicy = %v, want LFU-precise", opts.EvictionPolicy)
	}
	if opts.EvictionSamplePercentage != 0.25 {
		t.Errorf("EvictionSamplePercentage = %v, want 0.25", opts.EvictionSamplePercentage)
	}
	if opts.EnableBackgroundCleanup {
		t.Error("EnableBackgroundCleanup should be overridden to false")
	}
	if opts.CleanupInterval != 30*time.Second {
		t.Errorf("CleanupInterval = %v, want 30s", opts.CleanupInterval)
	}
	if opts.CleanupBatchSize != 200 {
		t.Errorf("CleanupBatchSize = %d, want 200", opts.CleanupBatchSize)
	}
	if opts.EnableStatistics {
		t.Error("EnableStatistics should be overridden to false")
	}
	if opts.EnableFastPath {
		t.Error("EnableFastPath should be overridden to false")
	}
	if !opts.CountWaiterMisses {
		t.Error("CountWaiterMisses should be true")
	}
	if opts.ShardCount != 64 {
		t.Errorf("ShardCount = %d, want 64", opts.ShardCount)
	}
	if opts.MaxTagMappings != 5000 {
		t.Errorf("MaxTagMappings = %d, want 5000", opts.MaxTagMappings)
	}
}

func TestParseOptions_EmptyFileKeepsDefaults(t *testing.T) {
	opts, err := parseOptions([]byte("{}"))
	if err != nil {
		t.Fatalf("parseOptions failed: %v", err)
	}

	def := DefaultOptions()
	if opts.MaxItems != def.MaxItems {
		t.Errorf("MaxItems = %d, want default %d", opts.MaxItems, def.MaxItems)
	}
	if opts.EvictionPolicy != def.EvictionPolicy {
		t.Errorf("EvictionPolicy = %v, want default %v", opts.EvictionPolicy, def.EvictionPolicy)
	}
	if !opts.EnableFastPath || !opts.EnableStatistics {
		t.Error("boolean defaults lost when the file omits them")
	}
}

func TestParseOptions_Invalid(t *testing.T) {
	if _, err := parseOptions([]byte("eviction_policy: random")); err == nil {
		t.Error("unknown eviction policy must fail")
	}
	if _, err := parseOptions([]byte("max_expiration: soon")); err == nil {
		t.Error("malformed duration must fail")
	}
	if _, err := parseOptions([]byte(":::not yaml")); err == nil {
		t.Error("malformed yaml must fail")
	}
}

func TestLoadOptions_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.yaml")
	if err := os.WriteFile(path, []byte("max_items: 42\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	opts, err := LoadOptions(path)
	if err != nil {
		t.Fatalf("LoadOptions failed: %v", err)
	}
	if opts.MaxItems != 42 {
		t.Errorf("MaxItems = %d, want 42", opts.MaxItems)
	}

	if _, err := LoadOptions(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file must fail")
	}
}
