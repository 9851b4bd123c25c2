package analyzer

import (
	"os"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ColumnsConfig accepts a mapping from logical field to one column name or
// an ordered list of them:
//
//	columns:
//	  level: [level, event_type]
//	  uid: user_id
//
// or a list of field/names pairs:
//
//	columns:
//	  - field: level
//	    names: [level, event_type]
type ColumnsConfig struct {
	Aliases ColumnAliases
}

func (c *ColumnsConfig) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	aliases := ColumnAliases{}
	switch value.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(value.Content); i += 2 {
			k := value.Content[i]
			v := value.Content[i+1]
			field := strings.TrimSpace(k.Value)
			if field == "" {
				continue
			}
			// Values may be a single column name or a list of them.
			switch v.Kind {
			case yaml.ScalarNode:
				if name := strings.TrimSpace(v.Value); name != "" {
					aliases[Field(field)] = []string{name}
				}
			case yaml.SequenceNode:
				var names []string
				if err := v.Decode(&names); err != nil {
					return err
				}
				aliases[Field(field)] = names
			default:
				return errors.Errorf("columns.%s: expected a name or a list of names", field)
			}
		}
	case yaml.SequenceNode:
		var items []struct {
			Field string   `yaml:"field"`
			Names []string `yaml:"names"`
		}
		if err := value.Decode(&items); err != nil {
			return err
		}
		for _, it := range items {
			if f := strings.TrimSpace(it.Field); f != "" {
				aliases[Field(f)] = it.Names
			}
		}
	default:
		return nil
	}
	c.Aliases = aliases
	return nil
}

type DatabaseConfig struct {
	Path      string `yaml:"path"`
	BatchSize int    `yaml:"batch_size"`
}

type ServerConfig struct {
	ListenAddr    string            `yaml:"listen_addr"`
	UploadDir     string            `yaml:"upload_dir"`
	MaxUploadSize datasize.ByteSize `yaml:"max_upload_size"`
}

type TimestampConfig struct {
	// Location applies to timestamps that carry no offset. Defaults to UTC.
	Location string   `yaml:"location"`
	Layouts  []string `yaml:"layouts"`
}

type QueryConfig struct {
	DefaultPageSize int `yaml:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size"`
}

type RunnerFileConfig struct {
	Inputs         []string `yaml:"inputs"`
	ArchiveDir     string   `yaml:"archive_dir"`
	ErrorDir       string   `yaml:"error_dir"`
	SkipDuplicates bool     `yaml:"skip_duplicates"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type FileConfig struct {
	Database  DatabaseConfig   `yaml:"database"`
	Server    ServerConfig     `yaml:"server"`
	Columns   ColumnsConfig    `yaml:"columns"`
	Timestamp TimestampConfig  `yaml:"timestamp"`
	Query     QueryConfig      `yaml:"query"`
	Runner    RunnerFileConfig `yaml:"runner"`
	Log       LogConfig        `yaml:"log"`
}

// DefaultConfig is used when no config file is given.
func DefaultConfig() *FileConfig {
	cfg := &FileConfig{}
	cfg.applyDefaults()
	return cfg
}

func LoadConfig(path string) (*FileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %q", path)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %q", path)
	}
	return &cfg, nil
}

func (c *FileConfig) applyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = "sls_logs.db"
	}
	if c.Database.BatchSize <= 0 {
		c.Database.BatchSize = DefaultBatchSize
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":3000"
	}
	if c.Server.UploadDir == "" {
		c.Server.UploadDir = os.TempDir()
	}
	if c.Server.MaxUploadSize == 0 {
		c.Server.MaxUploadSize = 50 * datasize.MB
	}
	if c.Query.DefaultPageSize <= 0 {
		c.Query.DefaultPageSize = DefaultPageSize
	}
	if c.Query.MaxPageSize <= 0 {
		c.Query.MaxPageSize = MaxPageSize
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "logfmt"
	}
}

func (c *FileConfig) Validate() error {
	if _, err := c.ColumnAliases(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Query.DefaultPageSize > c.Query.MaxPageSize {
		return errors.Errorf("query.default_page_size %d exceeds query.max_page_size %d", c.Query.DefaultPageSize, c.Query.MaxPageSize)
	}
	return nil
}

// ColumnAliases returns the built-in alias table with configured overrides applied.
func (c *FileConfig) ColumnAliases() (ColumnAliases, error) {
	return DefaultColumnAliases().Merge(c.Columns.Aliases)
}

func (c *FileConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timestamp.Location)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.Wrapf(err, "timestamp.location %q", name)
	}
	return loc, nil
}

// PipelineConfig resolves the ingestion settings. Validate must have passed.
func (c *FileConfig) PipelineConfig() (PipelineConfig, error) {
	columns, err := c.ColumnAliases()
	if err != nil {
		return PipelineConfig{}, err
	}
	loc, err := c.Location()
	if err != nil {
		return PipelineConfig{}, err
	}
	return PipelineConfig{
		Columns:   columns,
		Location:  loc,
		Layouts:   c.Timestamp.Layouts,
		BatchSize: c.Database.BatchSize,
	}, nil
}
