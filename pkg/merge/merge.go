package merge

import (
	"bytes"
	"encoding/json"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/asyrjasalo/augent/pkg/errors"
	"github.com/asyrjasalo/augent/pkg/logging"
	"github.com/asyrjasalo/augent/pkg/types"
)

// Merger applies a merge strategy to reconcile new content with
// whatever already exists at a target path.
type Merger struct {
	logger zerolog.Logger
}

// New creates a Merger.
func New() *Merger {
	return &Merger{logger: logging.GetLogger("merge")}
}

// Apply merges incoming content into existing content under the given
// strategy. existing is nil when the target path does not exist yet.
// bundle tags the contribution for the composite strategy.
func (m *Merger) Apply(strategy types.MergeStrategy, existing, incoming []byte, bundle string) ([]byte, error) {
	switch strategy {
	case types.MergeReplace:
		return incoming, nil
	case types.MergeShallow:
		return m.mergeStructured(existing, incoming, false)
	case types.MergeDeep:
		return m.mergeStructured(existing, incoming, true)
	case types.MergeComposite:
		return m.mergeComposite(existing, incoming, bundle), nil
	default:
		return nil, errors.Newf(errors.ErrInvalidInput, "unknown merge strategy %q", string(strategy))
	}
}

// mergeStructured implements the shallow and deep strategies over JSON
// objects. Output is re-encoded with sorted keys and two-space
// indentation, so merging is deterministic regardless of input
// formatting.
func (m *Merger) mergeStructured(existing, incoming []byte, deep bool) ([]byte, error) {
	newObj, err := parseObject(incoming, "incoming")
	if err != nil {
		return nil, err
	}

	if len(bytes.TrimSpace(existing)) == 0 {
		return encodeObject(newObj)
	}

	oldObj, err := parseObject(existing, "existing")
	if err != nil {
		return nil, err
	}

	var merged map[string]interface{}
	if deep {
		merged = deepMerge(oldObj, newObj)
	} else {
		merged = shallowMerge(oldObj, newObj)
	}
	return encodeObject(merged)
}

func parseObject(data []byte, which string) (map[string]interface{}, error) {
	var obj map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return nil, errors.Wrapf(err, errors.ErrMergeFailure,
			"%s content is not a structured object", which)
	}
	return obj, nil
}

func encodeObject(obj map[string]interface{}) ([]byte, error) {
	out, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrMergeFailure, "cannot encode merged content")
	}
	return append(out, '\n'), nil
}

// shallowMerge overwrites top-level keys from new content; keys present
// only in existing content are kept. Nested structure below an affected
// key is replaced, not merged.
func shallowMerge(old, new map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(old)+len(new))
	for k, v := range old {
		out[k] = v
	}
	for k, v := range new {
		out[k] = v
	}
	return out
}

// deepMerge merges key-wise recursively. Nested objects merge by the
// same rule; arrays concatenate with structural duplicate removal. An
// explicit null in new content overrides the key with null. It does
// not delete the key.
func deepMerge(old, new map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(old)+len(new))
	for k, v := range old {
		out[k] = v
	}
	for k, newVal := range new {
		oldVal, present := out[k]
		if !present {
			out[k] = newVal
			continue
		}
		oldMap, oldIsMap := oldVal.(map[string]interface{})
		newMap, newIsMap := newVal.(map[string]interface{})
		if oldIsMap && newIsMap {
			out[k] = deepMerge(oldMap, newMap)
			continue
		}
		oldArr, oldIsArr := oldVal.([]interface{})
		newArr, newIsArr := newVal.([]interface{})
		if oldIsArr && newIsArr {
			out[k] = mergeArrays(oldArr, newArr)
			continue
		}
		out[k] = newVal
	}
	return out
}

// mergeArrays concatenates old then new, dropping elements structurally
// equal to one already present.
func mergeArrays(old, new []interface{}) []interface{} {
	out := make([]interface{}, 0, len(old)+len(new))
	contains := func(v interface{}) bool {
		for _, existing := range out {
			if reflect.DeepEqual(existing, v) {
				return true
			}
		}
		return false
	}
	for _, v := range old {
		if !contains(v) {
			out = append(out, v)
		}
	}
	for _, v := range new {
		if !contains(v) {
			out = append(out, v)
		}
	}
	return out
}
