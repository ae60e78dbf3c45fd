package fetchly

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Param is a single query parameter.
type Param struct {
	Key   string
	Value any
}

// Params is an ordered list of query parameters. Order is preserved when the
// query string is built.
//
// Example:
//
//	fetchly.Params{
//	    {Key: "page", Value: 1},
//	    {Key: "sort_by", Value: "title"},
//	}
type Params []Param

// ParamsFromMap converts a map into Params ordered by key.
func ParamsFromMap(m map[string]any) Params {
	if m == nil {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	params := make(Params, 0, len(keys))
	for _, k := range keys {
		params = append(params, Param{Key: k, Value: m[k]})
	}
	return params
}

// Merge returns a new list holding p overlaid with override. Keys already in p
// keep their position and take the overriding value; new keys are appended in
// override's order.
func (p Params) Merge(override Params) Params {
	if p == nil && override == nil {
		return nil
	}

	out := make(Params, len(p), len(p)+len(override))
	copy(out, p)

	index := make(map[string]int, len(out))
	for i, param := range out {
		index[param.Key] = i
	}

	for _, param := range override {
		if i, ok := index[param.Key]; ok {
			out[i].Value = param.Value
			continue
		}
		index[param.Key] = len(out)
		out = append(out, param)
	}
	return out
}

// Get returns the value stored under key.
func (p Params) Get(key string) (any, bool) {
	for _, param := range p {
		if param.Key == key {
			return param.Value, true
		}
	}
	return nil, false
}

// UnmarshalYAML decodes a YAML mapping while keeping the document order.
func (p *Params) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("fetchly: params must be a mapping, got line %d", node.Line)
	}

	params := make(Params, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var value any
		if err := node.Content[i+1].Decode(&value); err != nil {
			return fmt.Errorf("fetchly: param %q: %w", node.Content[i].Value, err)
		}
		params = append(params, Param{Key: node.Content[i].Value, Value: value})
	}
	*p = params
	return nil
}

// StringifyParams renders params as a query string suffix.
//
// The result always starts with "?". Pairs whose value is nil, a nil pointer,
// the empty string or NaN are skipped; false and 0 are kept. Keys and values
// are written verbatim, without percent-encoding.
//
// Example:
//
//	fetchly.StringifyParams(fetchly.Params{{"page", 1}, {"q", ""}, {"all", false}})
//	// "?page=1&all=false"
func StringifyParams(params Params) string {
	var b strings.Builder
	b.WriteByte('?')

	first := true
	for _, param := range params {
		value, ok := paramValue(param.Value)
		if !ok {
			continue
		}
		if !first {
			b.WriteByte('&')
		}
		first = false
		b.WriteString(param.Key)
		b.WriteByte('=')
		b.WriteString(value)
	}
	return b.String()
}

// paramValue coerces v to its query string form. ok is false when the pair
// must be dropped.
func paramValue(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, val != ""
	case float64:
		return formatFloat(val, 64)
	case float32:
		return formatFloat(float64(val), 32)
	case bool:
		return strconv.FormatBool(val), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", false
		}
		return paramValue(rv.Elem().Interface())
	}
	return fmt.Sprint(v), true
}

func formatFloat(f float64, bitSize int) (string, bool) {
	switch {
	case math.IsNaN(f):
		return "", false
	case math.IsInf(f, 1):
		return "Infinity", true
	case math.IsInf(f, -1):
		return "-Infinity", true
	}
	return strconv.FormatFloat(f, 'f', -1, bitSize), true
}
