package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// FieldChange is one rendered before/after difference between two snapshots.
type FieldChange struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// IsInitialCreation reports whether the before-state is empty or absent.
// Used to relabel the rendered diff header from "Before" to "Initial Values".
func IsInitialCreation(before json.RawMessage) bool {
	return len(flattenSnapshot(before)) == 0
}

// ComputeDiff flattens both snapshots into dot-separated paths, unions their
// key sets, and emits a rendered change for every path whose values are not
// deep-equal under canonical JSON serialization. Arrays and primitives are
// terminal leaves; arrays of objects are compared and rendered as a unit.
func ComputeDiff(before, after json.RawMessage) []FieldChange {
	flatBefore := flattenSnapshot(before)
	flatAfter := flattenSnapshot(after)

	keys := make(map[string]bool, len(flatBefore)+len(flatAfter))
	for k := range flatBefore {
		keys[k] = true
	}
	for k := range flatAfter {
		keys[k] = true
	}

	paths := make([]string, 0, len(keys))
	for k := range keys {
		paths = append(paths, k)
	}
	sort.Strings(paths)

	changes := make([]FieldChange, 0, len(paths))
	for _, path := range paths {
		b, hasBefore := flatBefore[path]
		a, hasAfter := flatAfter[path]
		if hasBefore && hasAfter && canonicalEqual(b, a) {
			continue
		}
		changes = append(changes, FieldChange{
			Field:  humanizePath(path),
			Before: formatValue(b),
			After:  formatValue(a),
		})
	}
	return changes
}

// flattenSnapshot unmarshals a raw snapshot and flattens nested objects into
// dot-separated paths. Non-object snapshots (null, scalars, arrays) flatten
// to the empty map, matching the "empty/absent" semantics of creation diffs.
func flattenSnapshot(raw json.RawMessage) map[string]any {
	out := make(map[string]any)
	if len(raw) == 0 {
		return out
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return out
	}
	flatten(obj, "", out)
	return out
}

func flatten(obj map[string]any, prefix string, out map[string]any) {
	for key, value := range obj {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			flatten(nested, path, out)
			continue
		}
		out[path] = value
	}
}

// canonicalEqual compares two leaf values by canonical JSON serialization.
// encoding/json sorts object keys, which is canonical enough for snapshots
// that round-tripped through JSON.
func canonicalEqual(a, b any) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(aj, bj)
}

// humanizePath renders a dot path as arrow-joined title-cased segments:
// "reminders.defaultChannel" → "Reminders → Default Channel".
func humanizePath(path string) string {
	segments := strings.Split(path, ".")
	for i, seg := range segments {
		segments[i] = humanizeSegment(seg)
	}
	return strings.Join(segments, " → ")
}

func humanizeSegment(seg string) string {
	var words []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}
	for _, r := range seg {
		switch {
		case r == '_' || r == '-':
			flush()
		case unicode.IsUpper(r):
			flush()
			current.WriteRune(r)
		default:
			current.WriteRune(r)
		}
	}
	flush()

	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// formatValue renders a leaf value for human consumption:
// null → "—", bool → "Yes"/"No", timestamp string → date string,
// empty array → "None", non-empty array → comma-joined, object → compact
// JSON, everything else → string coercion.
func formatValue(v any) string {
	switch value := v.(type) {
	case nil:
		return "—"
	case bool:
		if value {
			return "Yes"
		}
		return "No"
	case string:
		if t, err := time.Parse(time.RFC3339, value); err == nil {
			return t.Format("Jan 2, 2006")
		}
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case []any:
		if len(value) == 0 {
			return "None"
		}
		parts := make([]string, len(value))
		for i, elem := range value {
			if _, isObj := elem.(map[string]any); isObj {
				compact, err := json.Marshal(elem)
				if err == nil {
					parts[i] = string(compact)
					continue
				}
			}
			parts[i] = formatValue(elem)
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		compact, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprintf("%v", value)
		}
		return string(compact)
	default:
		return fmt.Sprintf("%v", value)
	}
}
