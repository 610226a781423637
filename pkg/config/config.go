package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const DefaultConfigFilename = "config.yaml"

// File is the on-disk dashboard configuration. Every field is optional;
// command-line flags override what is set here.
type File struct {
	Server          string   `yaml:"server,omitempty" validate:"omitempty,url"`
	Projects        []string `yaml:"projects,omitempty" validate:"dive,required"`
	CredentialsFile string   `yaml:"credentials_file,omitempty"`
	Overscan        int      `yaml:"overscan,omitempty" validate:"gte=0"`
	FollowThreshold int      `yaml:"follow_threshold,omitempty" validate:"gte=0"`
	MarkersJS       []string `yaml:"markers_js,omitempty" validate:"dive,required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// DefaultPath returns $XDG_CONFIG_HOME/loopdash/config.yaml (or the platform
// equivalent).
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "user config dir")
	}
	return filepath.Join(dir, "loopdash", DefaultConfigFilename), nil
}

func LoadFromFile(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	var cfg File
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse config yaml")
	}
	cfg.resolvePaths(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", path)
	}
	return &cfg, nil
}

func LoadOptional(path string) (*File, error) {
	_, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, errors.Wrap(err, "stat config")
	}
	return LoadFromFile(path)
}

func (f *File) Validate() error {
	if err := validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			parts := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				parts = append(parts, fe.Namespace()+": failed "+fe.Tag())
			}
			return errors.New(strings.Join(parts, "; "))
		}
		return err
	}
	return nil
}

// relative paths in the file are relative to the file itself
func (f *File) resolvePaths(base string) {
	if f.CredentialsFile != "" && !filepath.IsAbs(f.CredentialsFile) {
		f.CredentialsFile = filepath.Join(base, f.CredentialsFile)
	}
	for i, p := range f.MarkersJS {
		if p != "" && !filepath.IsAbs(p) {
			f.MarkersJS[i] = filepath.Join(base, p)
		}
	}
}
