package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	sprig "github.com/go-task/slim-sprig/v3"
	"github.com/gosimple/slug"
	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"

	"cvstyle/common"
	"cvstyle/units"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	TokensConfig struct {
		// Path to token table (YAML or CSS), built-in table when empty.
		Path      string            `yaml:"path,omitempty"`
		Fallbacks map[string]string `yaml:"fallbacks"`
		Groups    []string          `yaml:"groups,omitempty" validate:"dive,required"`
	}

	EnginesConfig struct {
		Enabled   []common.Engine  `yaml:"enabled" validate:"min=1,dive,oneof=interactive-preview print-raster word-processing"`
		Direction common.Direction `yaml:"direction" validate:"oneof=ltr rtl"`
	}

	DocumentConfig struct {
		BulletPosition string         `yaml:"bullet_position" validate:"required"`
		TextPosition   string         `yaml:"text_position" validate:"required"`
		BulletRoles    map[string]int `yaml:"bullet_roles" validate:"min=1,dive,min=0,max=8"`
		Glyphs         string         `yaml:"glyphs"`
		Budget         time.Duration  `yaml:"budget" validate:"gte=0"`
		ManualBullets  bool           `yaml:"manual_bullets"`
		StripShadowing bool           `yaml:"strip_shadowing"`
		ReplaceStyles  bool           `yaml:"replace_styles"`
	}

	OutputConfig struct {
		Directory     string `yaml:"directory,omitempty"`
		NameTemplate  string `yaml:"name_template" validate:"required"`
		Transliterate bool   `yaml:"transliterate"`
	}

	CacheConfig struct {
		Path   string        `yaml:"path,omitempty"`
		MaxAge time.Duration `yaml:"max_age" validate:"gte=0"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Tokens    TokensConfig   `yaml:"tokens"`
		Engines   EnginesConfig  `yaml:"engines"`
		Document  DocumentConfig `yaml:"document"`
		Output    OutputConfig   `yaml:"output"`
		Cache     CacheConfig    `yaml:"cache"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

const (
	// NOTE: must match yaml field name above
	OutputNameTemplateFieldName TemplateFieldName = "name_template"
)

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(OutputNameTemplateFieldName)),
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// only fields we defined are allowed, so no yaml.Unmarshal here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, fmt.Errorf("failed to sanitize configuration: %w", err)
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, fmt.Errorf("failed to validate configuration: %w", err)
		}
		if err := cfg.check(); err != nil {
			return nil, fmt.Errorf("failed to validate configuration: %w", err)
		}
	}
	return cfg, nil
}

// check verifies values validator tags cannot express.
func (cfg *Config) check() error {
	if _, _, err := cfg.Document.Positions(); err != nil {
		return err
	}
	if _, err := template.New("name").Funcs(sprig.FuncMap()).Parse(cfg.Output.NameTemplate); err != nil {
		return fmt.Errorf("bad output name template: %w", err)
	}
	return nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
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
		return nil, fmt.Errorf("failed to marshal config to yaml: %w", err)
	}
	return data, nil
}

// Positions parses bullet glyph and text start positions.
func (conf *DocumentConfig) Positions() (bullet, text units.Length, err error) {
	if bullet, err = units.Parse(conf.BulletPosition); err != nil {
		return units.Length{}, units.Length{}, fmt.Errorf("bullet position: %w", err)
	}
	if text, err = units.Parse(conf.TextPosition); err != nil {
		return units.Length{}, units.Length{}, fmt.Errorf("text position: %w", err)
	}
	if _, err = units.DeriveIndent(bullet, text); err != nil {
		return units.Length{}, units.Length{}, err
	}
	return bullet, text, nil
}

// CleanFileName removes characters not allowed in file names and leading
// dots which would make file hidden.
func CleanFileName(in string) string {
	forbidden := forbiddenNameChars + string(os.PathSeparator) + string(os.PathListSeparator) + "/"
	out := strings.Map(func(sym rune) rune {
		if sym < 0x20 || strings.ContainsRune(forbidden, sym) {
			return -1
		}
		return sym
	}, in)
	out = platformFileName(strings.TrimLeft(out, "."))
	if len(out) == 0 {
		out = "_bad_file_name_"
	}
	return out
}

// NameValues are available to output name template.
type NameValues struct {
	Name    string
	Engine  string
	Tokens  string
	Version string
}

// OutputName expands name template and removes characters not allowed in
// file names. Name is transliterated when requested.
func (conf *OutputConfig) OutputName(values NameValues, ext string) (string, error) {
	tmpl, err := template.New(string(OutputNameTemplateFieldName)).Funcs(sprig.FuncMap()).Parse(conf.NameTemplate)
	if err != nil {
		return "", fmt.Errorf("bad output name template: %w", err)
	}
	buf := new(strings.Builder)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", fmt.Errorf("unable to expand output name template: %w", err)
	}
	name := strings.TrimSpace(buf.String())
	if conf.Transliterate {
		name = slug.Make(name)
	}
	return CleanFileName(name) + ext, nil
}
