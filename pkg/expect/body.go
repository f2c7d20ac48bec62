package expect

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/ohler55/ojg/jp"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BodyMatcher matches the decoded request body with a predicate. The body
// is decoded through the request's decoder chain; a decode failure fails
// the matcher with the decode error as its reason.
func BodyMatcher(desc string, fn func(interface{}) bool) Matcher {
	if desc == "" {
		desc = "satisfies predicate"
	}
	return Matcher{
		Facet:    "body",
		Expected: desc,
		fn: func(v *RequestView) error {
			decoded, err := v.DecodedBody()
			if err != nil {
				return fmt.Errorf("body decode failed: %v", err)
			}
			if !fn(decoded) {
				return fmt.Errorf("decoded body does not satisfy: %s", desc)
			}
			return nil
		},
	}
}

// BodyEqualsMatcher matches when the decoded body deep-equals the value.
// JSON-shaped values on either side are normalized first so that e.g. a
// struct literal compares equal to the generic decoded map form.
func BodyEqualsMatcher(want interface{}) Matcher {
	return Matcher{
		Facet:    "body",
		Expected: fmt.Sprintf("equals %v", want),
		fn: func(v *RequestView) error {
			decoded, err := v.DecodedBody()
			if err != nil {
				return fmt.Errorf("body decode failed: %v", err)
			}
			if !looseEqual(decoded, want) {
				return fmt.Errorf("decoded body %v != %v", decoded, want)
			}
			return nil
		},
	}
}

// BodyBytesMatcher matches the raw body bytes exactly.
func BodyBytesMatcher(want []byte) Matcher {
	return Matcher{
		Facet:    "body",
		Expected: fmt.Sprintf("%d raw bytes", len(want)),
		fn: func(v *RequestView) error {
			if !reflect.DeepEqual(v.Body, want) {
				return fmt.Errorf("raw body differs (%d bytes, expected %d)", len(v.Body), len(want))
			}
			return nil
		},
	}
}

// BodyContainsMatcher matches when the raw body contains the substring.
func BodyContainsMatcher(substr string) Matcher {
	return Matcher{
		Facet:    "body",
		Expected: fmt.Sprintf("contains %q", substr),
		fn: func(v *RequestView) error {
			if !strings.Contains(string(v.Body), substr) {
				return fmt.Errorf("body does not contain %q", substr)
			}
			return nil
		},
	}
}

// BodyJSONPathMatcher matches when the JSONPath expression selects a value
// equal to expected in the JSON body. The path is parsed at configuration
// time; a malformed path is a configuration error.
func BodyJSONPathMatcher(path string, expected interface{}) (Matcher, error) {
	x, err := jp.ParseString(path)
	if err != nil {
		return Matcher{}, fmt.Errorf("invalid jsonpath %q: %w", path, err)
	}
	return Matcher{
		Facet:    "body:" + path,
		Expected: fmt.Sprintf("selects %v", expected),
		fn: func(v *RequestView) error {
			var data interface{}
			if err := json.Unmarshal(v.Body, &data); err != nil {
				return fmt.Errorf("body is not valid json: %v", err)
			}
			results := x.Get(data)
			if len(results) == 0 {
				return fmt.Errorf("%s selected nothing", path)
			}
			for _, got := range results {
				if looseEqual(got, expected) {
					return nil
				}
			}
			return fmt.Errorf("%s selected %v, expected %v", path, results[0], expected)
		},
	}, nil
}

// BodySchemaMatcher matches when the JSON body validates against the
// given JSON Schema document. The schema is compiled at configuration
// time; a malformed schema is a configuration error.
func BodySchemaMatcher(schemaJSON string) (Matcher, error) {
	schema, err := jsonschema.CompileString("body.schema.json", schemaJSON)
	if err != nil {
		return Matcher{}, fmt.Errorf("invalid body schema: %w", err)
	}
	return Matcher{
		Facet:    "body",
		Expected: "validates against schema",
		fn: func(v *RequestView) error {
			var data interface{}
			if err := json.Unmarshal(v.Body, &data); err != nil {
				return fmt.Errorf("body is not valid json: %v", err)
			}
			if err := schema.Validate(data); err != nil {
				return fmt.Errorf("schema validation failed: %v", err)
			}
			return nil
		},
	}, nil
}

// BodyExprMatcher matches when the expression evaluates to true. The
// expression sees the request as `method`, `path`, `query`, `headers`,
// and the decoded body as `body`. Compiled at configuration time.
func BodyExprMatcher(code string) (Matcher, error) {
	program, err := expr.Compile(code, expr.AllowUndefinedVariables())
	if err != nil {
		return Matcher{}, fmt.Errorf("invalid expression %q: %w", code, err)
	}
	return Matcher{
		Facet:    "body",
		Expected: fmt.Sprintf("expr %q", code),
		fn: func(v *RequestView) error {
			decoded, err := v.DecodedBody()
			if err != nil {
				return fmt.Errorf("body decode failed: %v", err)
			}
			ok, err := runBoolProgram(program, map[string]interface{}{
				"body":    decoded,
				"method":  v.Method,
				"path":    v.Path,
				"query":   map[string][]string(v.Query),
				"headers": map[string][]string(v.Headers),
			})
			if err != nil {
				return fmt.Errorf("expression failed: %v", err)
			}
			if !ok {
				return fmt.Errorf("expression %q is false", code)
			}
			return nil
		},
	}, nil
}

func runBoolProgram(program *vm.Program, env map[string]interface{}) (bool, error) {
	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression returned %T, want bool", out)
	}
	return b, nil
}

// looseEqual compares values after JSON normalization so typed structs,
// numeric kinds, and generic decoded forms compare by shape.
func looseEqual(a, b interface{}) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	na, err := jsonNormalize(a)
	if err != nil {
		return false
	}
	nb, err := jsonNormalize(b)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(na, nb)
}

func jsonNormalize(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
