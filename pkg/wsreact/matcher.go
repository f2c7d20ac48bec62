package wsreact

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// MessageMatcher decides whether an inbound frame triggers a rule.
// Matchers are pure and safe to share across connections.
type MessageMatcher struct {
	desc       string
	typeFilter MessageType // 0 matches any frame type
	fn         func(data []byte) bool
}

// Describe returns the matcher's human-readable form.
func (m *MessageMatcher) Describe() string {
	return m.desc
}

// Matches reports whether the frame triggers this matcher.
func (m *MessageMatcher) Matches(msgType MessageType, data []byte) bool {
	if m.typeFilter != 0 && m.typeFilter != msgType {
		return false
	}
	return m.fn(data)
}

// OfType restricts the matcher to one frame type.
func (m *MessageMatcher) OfType(t MessageType) *MessageMatcher {
	return &MessageMatcher{
		desc:       m.desc + " (" + t.String() + ")",
		typeFilter: t,
		fn:         m.fn,
	}
}

// MessageEquals matches the exact frame payload.
func MessageEquals(value string) *MessageMatcher {
	return &MessageMatcher{
		desc: fmt.Sprintf("message == %q", value),
		fn:   func(data []byte) bool { return string(data) == value },
	}
}

// MessageContains matches frames containing the substring.
func MessageContains(value string) *MessageMatcher {
	return &MessageMatcher{
		desc: fmt.Sprintf("message contains %q", value),
		fn:   func(data []byte) bool { return strings.Contains(string(data), value) },
	}
}

// MessagePrefix matches frames starting with the value.
func MessagePrefix(value string) *MessageMatcher {
	return &MessageMatcher{
		desc: fmt.Sprintf("message starts with %q", value),
		fn:   func(data []byte) bool { return strings.HasPrefix(string(data), value) },
	}
}

// MessageSuffix matches frames ending with the value.
func MessageSuffix(value string) *MessageMatcher {
	return &MessageMatcher{
		desc: fmt.Sprintf("message ends with %q", value),
		fn:   func(data []byte) bool { return strings.HasSuffix(string(data), value) },
	}
}

// MessagePattern matches frames against a regular expression. The
// pattern is compiled here so a bad expression fails at configuration
// time.
func MessagePattern(pattern string) (*MessageMatcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("wsreact: bad message pattern %q: %w", pattern, err)
	}
	return &MessageMatcher{
		desc: fmt.Sprintf("message matches /%s/", pattern),
		fn:   func(data []byte) bool { return re.Match(data) },
	}, nil
}

// MessageJSONPath matches JSON frames where the value at the JSONPath
// equals expected. Non-JSON frames never match.
func MessageJSONPath(path string, expected interface{}) (*MessageMatcher, error) {
	expr, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("wsreact: bad JSONPath %q: %w", path, err)
	}
	return &MessageMatcher{
		desc:       fmt.Sprintf("message %s == %v", path, expected),
		typeFilter: MessageText,
		fn: func(data []byte) bool {
			doc, err := oj.Parse(data)
			if err != nil {
				return false
			}
			for _, got := range expr.Get(doc) {
				if fmt.Sprintf("%v", got) == fmt.Sprintf("%v", expected) {
					return true
				}
			}
			return false
		},
	}, nil
}

// MessageSatisfies matches frames against an arbitrary predicate.
func MessageSatisfies(desc string, fn func(data []byte) bool) *MessageMatcher {
	return &MessageMatcher{desc: desc, fn: fn}
}
