package rgraph

import (
	"fmt"
	"math"
	"os"
	"runtime"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/rgraph/internal/datastore"
	"github.com/hupe1980/rgraph/internal/kvstore"
	"github.com/hupe1980/rgraph/internal/snapshot"
	"github.com/hupe1980/rgraph/internal/table"
	"github.com/hupe1980/rgraph/resource"
)

// Size is a byte count written as a human string ("64MiB", "1.5 GB") in
// configuration files.
type Size uint64

// String formats s with IEC units.
func (s Size) String() string {
	return humanize.IBytes(uint64(s))
}

// UnmarshalYAML accepts a human size string or a plain integer.
func (s *Size) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}
	n, err := humanize.ParseBytes(str)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*s = Size(n)
	return nil
}

// MarshalYAML writes s with IEC units when that is exact.
func (s Size) MarshalYAML() (any, error) {
	str := s.String()
	if n, err := humanize.ParseBytes(str); err == nil && n == uint64(s) {
		return str, nil
	}
	return uint64(s), nil
}

// RegionConfig sizes the four parts of a memory node region.
type RegionConfig struct {
	VertexProperties Size `yaml:"vertex_properties"`
	EdgeProperties   Size `yaml:"edge_properties"`
	VertexTable      Size `yaml:"vertex_table"`
	EdgeTable        Size `yaml:"edge_table"`

	// VertexExtRatio is the vertex table share, in percent, reserved for
	// overflow neighbors and property keys.
	VertexExtRatio int `yaml:"vertex_ext_ratio"`
	// EdgeExtRatio is the edge table share reserved for property keys.
	EdgeExtRatio int `yaml:"edge_ext_ratio"`
	// HeaderRatio is the slot header share of each property store.
	HeaderRatio int `yaml:"header_ratio"`
}

// Total returns the region size.
func (r RegionConfig) Total() uint64 {
	return uint64(r.VertexProperties) + uint64(r.EdgeProperties) + uint64(r.VertexTable) + uint64(r.EdgeTable)
}

// Config is the memory node configuration file.
type Config struct {
	Region RegionConfig `yaml:"region"`

	// Workers is the number of bulk-load workers. 0 means GOMAXPROCS.
	Workers int `yaml:"workers,omitempty"`

	// Listen is the TCP address the responder serves on.
	Listen string `yaml:"listen"`

	// MemoryLimit caps the region size. 0 means unlimited.
	MemoryLimit Size `yaml:"memory_limit,omitempty"`
	// IOLimit caps snapshot and responder traffic in bytes per second.
	// 0 means unlimited.
	IOLimit Size `yaml:"io_limit,omitempty"`

	// Compression is the snapshot block codec: none, lz4 or zstd.
	Compression string `yaml:"compression"`
}

// DefaultConfig returns a configuration for a 256 MiB region.
func DefaultConfig() Config {
	return Config{
		Region: RegionConfig{
			VertexProperties: 64 << 20,
			EdgeProperties:   64 << 20,
			VertexTable:      64 << 20,
			EdgeTable:        64 << 20,
			VertexExtRatio:   table.DefaultVertexExtRatio,
			EdgeExtRatio:     table.DefaultEdgeExtRatio,
			HeaderRatio:      kvstore.DefaultHeaderRatio,
		},
		Listen:      ":7471",
		Compression: "zstd",
	}
}

// LoadConfig reads a YAML configuration file. Fields it leaves out keep
// their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML on top of DefaultConfig and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks sizes, ratios and the codec name, and that every part of
// the region can hold at least one record or bucket.
func (c Config) Validate() error {
	r := c.Region
	if r.Total() == 0 || r.Total() > math.MaxInt64 {
		return fmt.Errorf("%w: region size %d", ErrInvalidConfig, r.Total())
	}
	for name, ratio := range map[string]int{
		"vertex_ext_ratio": r.VertexExtRatio,
		"edge_ext_ratio":   r.EdgeExtRatio,
		"header_ratio":     r.HeaderRatio,
	} {
		if ratio < 0 || ratio >= 100 {
			return fmt.Errorf("%w: %s %d not in [0, 100)", ErrInvalidConfig, name, ratio)
		}
	}
	if _, err := kvstore.ComputeGeometry(uint64(r.VertexProperties), r.HeaderRatio); err != nil {
		return fmt.Errorf("%w: vertex_properties: %w", ErrInvalidConfig, err)
	}
	if _, err := kvstore.ComputeGeometry(uint64(r.EdgeProperties), r.HeaderRatio); err != nil {
		return fmt.Errorf("%w: edge_properties: %w", ErrInvalidConfig, err)
	}
	if _, err := table.ComputeGeometry(uint64(r.VertexTable), table.VertexRecordSize, r.VertexExtRatio); err != nil {
		return fmt.Errorf("%w: vertex_table: %w", ErrInvalidConfig, err)
	}
	if _, err := table.ComputeGeometry(uint64(r.EdgeTable), table.EdgeRecordSize, r.EdgeExtRatio); err != nil {
		return fmt.Errorf("%w: edge_table: %w", ErrInvalidConfig, err)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers %d", ErrInvalidConfig, c.Workers)
	}
	if c.MemoryLimit > 0 && uint64(c.MemoryLimit) < r.Total() {
		return fmt.Errorf("%w: region of %s exceeds memory_limit %s", ErrInvalidConfig, Size(r.Total()), c.MemoryLimit)
	}
	if _, err := snapshot.ParseCompression(c.Compression); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// SnapshotCompression returns the parsed codec.
func (c Config) SnapshotCompression() Compression {
	comp, _ := snapshot.ParseCompression(c.Compression)
	return comp
}

// ResourceConfig returns the limits for a resource.Controller.
func (c Config) ResourceConfig() resource.Config {
	workers := int64(c.Workers)
	if workers <= 0 {
		workers = int64(runtime.GOMAXPROCS(0))
	}
	return resource.Config{
		MemoryLimitBytes:   int64(c.MemoryLimit),
		MaxLoadWorkers:     workers,
		IOLimitBytesPerSec: int64(c.IOLimit),
	}
}

func (r RegionConfig) storeConfig() datastore.Config {
	return datastore.Config{
		VertexPropertyBytes: uint64(r.VertexProperties),
		EdgePropertyBytes:   uint64(r.EdgeProperties),
		VertexTableBytes:    uint64(r.VertexTable),
		EdgeTableBytes:      uint64(r.EdgeTable),
		VertexExtRatio:      r.VertexExtRatio,
		EdgeExtRatio:        r.EdgeExtRatio,
		HeaderRatio:         r.HeaderRatio,
	}
}

func regionConfig(c datastore.Config) RegionConfig {
	return RegionConfig{
		VertexProperties: Size(c.VertexPropertyBytes),
		EdgeProperties:   Size(c.EdgePropertyBytes),
		VertexTable:      Size(c.VertexTableBytes),
		EdgeTable:        Size(c.EdgeTableBytes),
		VertexExtRatio:   c.VertexExtRatio,
		EdgeExtRatio:     c.EdgeExtRatio,
		HeaderRatio:      c.HeaderRatio,
	}
}
