package transform

import (
	_ "embed"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/asyrjasalo/augent/pkg/errors"
	"github.com/asyrjasalo/augent/pkg/types"
)

//go:embed platforms.toml
var defaultPlatforms []byte

// rawBytesProvider feeds in-memory bytes to koanf.
type rawBytesProvider struct {
	bytes []byte
}

func (p *rawBytesProvider) ReadBytes() ([]byte, error) {
	return p.bytes, nil
}

func (p *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New(errors.ErrInternal, "rawBytesProvider does not support Read")
}

// LoadPlatforms returns the platform set for a workspace: the embedded
// defaults, replaced wholesale when the workspace manifest declares its
// own [[platforms]] tables.
func LoadPlatforms(manifestPath string) ([]types.Platform, error) {
	k := koanf.New(".")

	if err := k.Load(&rawBytesProvider{bytes: defaultPlatforms}, toml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "cannot load built-in platform definitions")
	}

	if manifestPath != "" {
		if _, err := os.Stat(manifestPath); err == nil {
			override := koanf.New(".")
			if err := override.Load(file.Provider(manifestPath), toml.Parser()); err != nil {
				return nil, errors.Wrapf(err, errors.ErrManifestParse,
					"cannot load platform overrides from %s", manifestPath)
			}
			if override.Exists("platforms") {
				k = override
			}
		}
	}

	var cfg struct {
		Platforms []types.Platform `koanf:"platforms"`
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrManifestParse, "invalid platform definitions")
	}

	for _, p := range cfg.Platforms {
		if p.ID == "" || p.Root == "" {
			return nil, errors.New(errors.ErrInvalidInput, "platform definition missing id or root")
		}
		for _, rule := range p.Rules {
			if !rule.Strategy.Valid() {
				return nil, errors.Newf(errors.ErrInvalidInput,
					"platform %s rule %q has unknown merge strategy %q", p.ID, rule.Source, string(rule.Strategy))
			}
		}
	}
	return cfg.Platforms, nil
}

// Detect returns the platforms active in a workspace: every platform
// with a present marker, plus fallback platforms only when nothing else
// matched.
func Detect(fsys types.FS, workspaceRoot string, platforms []types.Platform) []types.Platform {
	var active, fallback []types.Platform
	for _, p := range platforms {
		present := false
		for _, marker := range p.Markers {
			if _, err := fsys.Stat(filepath.Join(workspaceRoot, marker)); err == nil {
				present = true
				break
			}
		}
		if !present {
			continue
		}
		if p.Fallback {
			fallback = append(fallback, p)
		} else {
			active = append(active, p)
		}
	}
	if len(active) == 0 {
		return fallback
	}
	return active
}

// Find returns the platform with the given id.
func Find(platforms []types.Platform, id string) (types.Platform, error) {
	for _, p := range platforms {
		if p.ID == id {
			return p, nil
		}
	}
	return types.Platform{}, errors.Newf(errors.ErrPlatformUnknown, "unknown platform %q", id)
}
