package llm

import (
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/caba/constants"
)

// wrapperKeys are the object keys models use to wrap a trip array.
var wrapperKeys = []string{"trips", "bookings", "records", "data", "rides"}

var (
	reFence       = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	reMoneyStrip  = regexp.MustCompile(`(?i)(rs\.?|inr|usd|eur|gbp|₹|\$|€|£|,|\s)`)
	reTwoDecimals = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)
)

// NormalizeResponse turns a model's raw reply into the shape the schema checks:
//   - strips markdown code fences and leading/trailing prose around the JSON
//   - accepts a single trip object, an array of trips, or an object wrapping the array
//   - maps key synonyms onto the field catalog and drops unknown keys and nulls
//   - coerces scalars to trimmed strings and money to plain decimals
//   - defaults visits to 1
//
// Values that cannot be coerced are left as they are so that validation rejects them.
// The second return lists what was dropped or renamed, for logging.
func NormalizeResponse(raw string) ([]any, []string, error) {
	v, err := decodeLenient(raw)
	if err != nil {
		return nil, nil, err
	}

	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case map[string]any:
		if inner, ok := unwrap(t); ok {
			items = inner
		} else {
			items = []any{t}
		}
	default:
		return nil, nil, fmt.Errorf("expected a JSON array or object, got %T", v)
	}

	var notes []string
	out := make([]any, 0, len(items))
	for i, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			out = append(out, it)
			continue
		}
		rec, n := normalizeTrip(m)
		for _, note := range n {
			notes = append(notes, fmt.Sprintf("[%d] %s", i, note))
		}
		out = append(out, rec)
	}
	return out, notes, nil
}

func decodeLenient(raw string) (any, error) {
	s := strings.TrimSpace(raw)
	if m := reFence.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v, nil
	}
	// prose around the payload: take the outermost bracketed span
	start := strings.IndexAny(s, "[{")
	end := strings.LastIndexAny(s, "]}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON found in response")
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), &v); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return v, nil
}

// unwrap picks the trip array by wrapperKeys priority so a reply carrying
// several wrappers always yields the same rows.
func unwrap(m map[string]any) ([]any, bool) {
	keys := slices.Sorted(maps.Keys(m))
	for _, w := range wrapperKeys {
		for _, k := range keys {
			if !strings.EqualFold(strings.TrimSpace(k), w) {
				continue
			}
			if arr, ok := m[k].([]any); ok {
				return arr, true
			}
		}
	}
	return nil, false
}

func normalizeTrip(m map[string]any) (map[string]any, []string) {
	out := make(map[string]any, len(m))
	var notes []string

	// exact catalog keys win over synonyms; sorted so the winner among synonyms is stable
	for _, k := range slices.Sorted(maps.Keys(m)) {
		v := m[k]
		f, ok := constants.CanonicalField(k)
		if !ok {
			notes = append(notes, k+"(unknown)")
			continue
		}
		if v == nil {
			notes = append(notes, k+"(null)")
			continue
		}
		if _, exists := out[f]; exists && k != f {
			notes = append(notes, k+"(duplicate)")
			continue
		}
		if k != f {
			notes = append(notes, k+"->"+f)
		}
		out[f] = coerce(v)
	}

	for _, f := range constants.MoneyFields {
		if s, ok := out[f].(string); ok {
			out[f] = normalizeMoney(s)
		}
	}
	if s, ok := out[constants.FieldVisits].(string); ok && s == "" {
		out[constants.FieldVisits] = constants.DefaultVisits
	}
	if _, ok := out[constants.FieldVisits]; !ok {
		out[constants.FieldVisits] = constants.DefaultVisits
	}
	return out, notes
}

func coerce(v any) any {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return v
	}
}

// normalizeMoney reduces "₹ 1,250.00" or "Rs. 250" to a plain decimal.
func normalizeMoney(s string) string {
	s = reMoneyStrip.ReplaceAllString(s, "")
	s = strings.TrimSuffix(s, "/-")
	if s == "" || reTwoDecimals.MatchString(s) {
		return s
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return strconv.FormatFloat(f, 'f', 2, 64)
	}
	return s
}
