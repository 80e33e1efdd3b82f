package transform

import (
	"path"
	"strings"

	"github.com/rs/zerolog"

	"github.com/asyrjasalo/augent/pkg/errors"
	"github.com/asyrjasalo/augent/pkg/logging"
	"github.com/asyrjasalo/augent/pkg/types"
)

// Result is one planned output for a universal path on one platform:
// where the artifact goes (workspace-relative) and how conflicts at
// that path are resolved.
type Result struct {
	Output   string
	Strategy types.MergeStrategy
}

// Engine maps universal resource paths to platform-specific outputs
// using each platform's ordered rule list.
type Engine struct {
	logger zerolog.Logger
}

// NewEngine creates a transform engine.
func NewEngine() *Engine {
	return &Engine{logger: logging.GetLogger("transform")}
}

// Resolve applies the platform's rules to a universal path. The first
// matching rule wins. No matching rule means the resource is simply not
// installed for this platform; that is not an error.
func (e *Engine) Resolve(universal string, platform types.Platform) ([]Result, error) {
	for _, rule := range platform.Rules {
		capture, ok := matchGlob(rule.Source, universal)
		if !ok {
			continue
		}

		target, err := expandTarget(rule.Target, capture)
		if err != nil {
			return nil, err
		}
		if rule.Extension != "" {
			target = replaceExtension(target, rule.Extension)
		}

		output := path.Clean(path.Join(platform.Root, target))
		if strings.HasPrefix(output, "../") || output == ".." {
			return nil, errors.Newf(errors.ErrInvalidInput,
				"rule %q on platform %s escapes the workspace (target %q)",
				rule.Source, platform.ID, rule.Target)
		}

		strategy := rule.Strategy
		if !strategy.Valid() {
			return nil, errors.Newf(errors.ErrInvalidInput,
				"rule %q on platform %s has unknown merge strategy %q",
				rule.Source, platform.ID, string(strategy))
		}

		e.logger.Trace().
			Str("universal", universal).
			Str("platform", platform.ID).
			Str("output", output).
			Str("strategy", string(strategy)).
			Msg("Transform rule matched")

		return []Result{{Output: output, Strategy: strategy}}, nil
	}
	return nil, nil
}

// replaceExtension swaps the target's extension for the rule override.
// The override includes its leading dot.
func replaceExtension(target, ext string) string {
	existing := path.Ext(target)
	return strings.TrimSuffix(target, existing) + ext
}
