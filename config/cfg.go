package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	MediaConfig struct {
		Download    bool `yaml:"download"`
		JPEGQuality int  `yaml:"jpeg_quality_level" validate:"min=40,max=100"`
		MaxWidth    int  `yaml:"max_width" validate:"gte=0"`
		ConvertWebp bool `yaml:"convert_webp"`
	}

	CoverConfig struct {
		Generate bool `yaml:"generate"`
		Width    int  `yaml:"width" validate:"min=600"`
		Height   int  `yaml:"height" validate:"min=800"`
	}

	ExcerptConfig struct {
		Enable    bool `yaml:"enable"`
		Sentences int  `yaml:"sentences" validate:"min=1,max=10"`
	}

	PreviewConfig struct {
		Enable bool `yaml:"enable"`
	}

	BundleConfig struct {
		Enable bool `yaml:"enable"`
		FixZip bool `yaml:"fix_zip"`
	}

	TweetsConfig struct {
		Resolve bool `yaml:"resolve"`
		Timeout int  `yaml:"timeout_sec" validate:"gte=0"`
	}

	DocumentConfig struct {
		OutputNameTemplate    string        `yaml:"output_name_template"`
		FileNameTransliterate bool          `yaml:"file_name_transliterate"`
		Media                 MediaConfig   `yaml:"media"`
		Cover                 CoverConfig   `yaml:"cover"`
		Excerpt               ExcerptConfig `yaml:"excerpt"`
		Preview               PreviewConfig `yaml:"preview"`
		Bundle                BundleConfig  `yaml:"bundle"`
		Tweets                TweetsConfig  `yaml:"tweets"`
	}

	AuthConfig struct {
		Bearer    SecretString `yaml:"bearer"`
		AuthToken SecretString `yaml:"auth_token"`
		CSRFToken SecretString `yaml:"csrf_token"`
		UserAgent string       `yaml:"user_agent"`
	}

	HistoryConfig struct {
		Enable bool   `yaml:"enable"`
		Path   string `yaml:"path" sanitize:"path_clean,assure_dir_exists_for_file"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Document  DocumentConfig `yaml:"document"`
		Auth      AuthConfig     `yaml:"auth"`
		History   HistoryConfig  `yaml:"history"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

const (
	// NOTE: must match yaml field name above, alternative is to use struct
	// field name and reflection which I want to avoid for now
	OutputNameTemplateFieldName TemplateFieldName = "output_name_template"
	UserAgentFieldName          TemplateFieldName = "user_agent"
)

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(OutputNameTemplateFieldName)),
	gencfg.WithDoNotExpandField(string(UserAgentFieldName)),
)

// TweetTimeout converts the configured lookup budget to a duration, zero
// meaning no per-article limit.
func (c TweetsConfig) TweetTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration tamplate to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
