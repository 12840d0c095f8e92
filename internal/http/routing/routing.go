package routing

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrNotFound is returned when no rule matches a path.
	ErrNotFound = errors.New("routing: not found")
	// ErrBuild is returned when no rule of an endpoint accepts the given values.
	ErrBuild = errors.New("routing: cannot build url")
)

// Values holds typed path parameters: string or int.
type Values map[string]any

// Int returns the integer value of key or 0.
func (v Values) Int(key string) int {
	n, _ := v[key].(int)
	return n
}

// String returns the string value of key or "".
func (v Values) String(key string) string {
	s, _ := v[key].(string)
	return s
}

// Rule maps a path pattern to an endpoint name.
type Rule struct {
	Pattern  string
	Endpoint string
	Defaults Values

	segments []segment
	order    int
}

// NewRule creates a rule. Patterns use <name>, <string:name>, <int:name> and
// <int(N):name> for zero-padded integers of exactly N digits.
func NewRule(pattern, endpoint string, defaults ...Values) Rule {
	rule := Rule{Pattern: pattern, Endpoint: endpoint}
	if len(defaults) > 0 {
		rule.Defaults = defaults[0]
	}
	return rule
}

// Submount prefixes every rule pattern with prefix.
func Submount(prefix string, rules ...[]Rule) []Rule {
	prefix = strings.TrimRight(prefix, "/")
	out := make([]Rule, 0)
	for _, group := range rules {
		for _, rule := range group {
			rule.Pattern = prefix + rule.Pattern
			out = append(out, rule)
		}
	}
	return out
}

// Rules is a shorthand turning single rules into a mountable group.
func Rules(rules ...Rule) []Rule { return rules }

type segmentKind int

const (
	segmentStatic segmentKind = iota
	segmentInt
	segmentString
)

type segment struct {
	kind   segmentKind
	text   string // static text or parameter name
	digits int    // fixed width for int segments, 0 for any
}

func (s segment) match(part string) (any, bool) {
	switch s.kind {
	case segmentStatic:
		return nil, part == s.text
	case segmentInt:
		if part == "" || (s.digits > 0 && len(part) != s.digits) {
			return nil, false
		}
		for _, r := range part {
			if r < '0' || r > '9' {
				return nil, false
			}
		}
		n, errConv := strconv.Atoi(part)
		if errConv != nil {
			return nil, false
		}
		return n, true
	default:
		if part == "" {
			return nil, false
		}
		decoded, errUnescape := url.PathUnescape(part)
		if errUnescape != nil {
			return nil, false
		}
		return decoded, true
	}
}

func (s segment) build(value any) (string, bool) {
	switch s.kind {
	case segmentStatic:
		return s.text, true
	case segmentInt:
		var n int
		switch v := value.(type) {
		case int:
			n = v
		case int64:
			n = int(v)
		case uint:
			n = int(v)
		case uint64:
			n = int(v)
		case string:
			parsed, errConv := strconv.Atoi(v)
			if errConv != nil {
				return "", false
			}
			n = parsed
		default:
			return "", false
		}
		if n < 0 {
			return "", false
		}
		if s.digits > 0 {
			return fmt.Sprintf("%0*d", s.digits, n), true
		}
		return strconv.Itoa(n), true
	default:
		text := fmt.Sprint(value)
		if value == nil || text == "" {
			return "", false
		}
		return url.PathEscape(text), true
	}
}

func parsePattern(pattern string) ([]segment, error) {
	trimmed := strings.Trim(pattern, "/")
	if trimmed == "" {
		return nil, nil
	}
	parts := strings.Split(trimmed, "/")
	out := make([]segment, 0, len(parts))
	for _, part := range parts {
		if !strings.HasPrefix(part, "<") {
			if strings.ContainsAny(part, "<>") {
				return nil, fmt.Errorf("routing: bad segment %q in %q", part, pattern)
			}
			out = append(out, segment{kind: segmentStatic, text: part})
			continue
		}
		if !strings.HasSuffix(part, ">") {
			return nil, fmt.Errorf("routing: unterminated parameter in %q", pattern)
		}
		spec := part[1 : len(part)-1]
		conv, name := "string", spec
		if idx := strings.LastIndex(spec, ":"); idx >= 0 {
			conv, name = spec[:idx], spec[idx+1:]
		}
		if name == "" {
			return nil, fmt.Errorf("routing: unnamed parameter in %q", pattern)
		}
		seg := segment{text: name}
		switch {
		case conv == "string":
			seg.kind = segmentString
		case conv == "int":
			seg.kind = segmentInt
		case strings.HasPrefix(conv, "int(") && strings.HasSuffix(conv, ")"):
			digits, errConv := strconv.Atoi(conv[4 : len(conv)-1])
			if errConv != nil || digits <= 0 {
				return nil, fmt.Errorf("routing: bad int width in %q", pattern)
			}
			seg.kind = segmentInt
			seg.digits = digits
		default:
			return nil, fmt.Errorf("routing: unknown converter %q in %q", conv, pattern)
		}
		out = append(out, seg)
	}
	return out, nil
}

// Map is an immutable rule table.
type Map struct {
	rules      []*Rule
	byEndpoint map[string][]*Rule
}

// New compiles the rule groups. Rules are tried most specific first: for
// paths of the same depth a static segment beats an int parameter which
// beats a string parameter; ties keep registration order.
func New(groups ...[]Rule) (*Map, error) {
	m := &Map{byEndpoint: make(map[string][]*Rule)}
	order := 0
	for _, group := range groups {
		for _, rule := range group {
			segments, errParse := parsePattern(rule.Pattern)
			if errParse != nil {
				return nil, errParse
			}
			r := rule
			r.segments = segments
			r.order = order
			order++
			m.rules = append(m.rules, &r)
			m.byEndpoint[r.Endpoint] = append(m.byEndpoint[r.Endpoint], &r)
		}
	}
	sort.SliceStable(m.rules, func(i, j int) bool {
		return moreSpecific(m.rules[i], m.rules[j])
	})
	return m, nil
}

// MustNew is New for static tables.
func MustNew(groups ...[]Rule) *Map {
	m, err := New(groups...)
	if err != nil {
		panic(err)
	}
	return m
}

func moreSpecific(a, b *Rule) bool {
	if len(a.segments) != len(b.segments) {
		return len(a.segments) > len(b.segments)
	}
	for i := range a.segments {
		if a.segments[i].kind != b.segments[i].kind {
			return a.segments[i].kind < b.segments[i].kind
		}
		if a.segments[i].kind == segmentInt && a.segments[i].digits != b.segments[i].digits {
			return a.segments[i].digits > b.segments[i].digits
		}
	}
	return false
}

// Match resolves path to an endpoint and its values. A trailing slash is optional.
func (m *Map) Match(path string) (string, Values, error) {
	trimmed := strings.Trim(path, "/")
	var parts []string
	if trimmed != "" {
		parts = strings.Split(trimmed, "/")
	}
	for _, rule := range m.rules {
		if len(rule.segments) != len(parts) {
			continue
		}
		values := Values{}
		matched := true
		for i, seg := range rule.segments {
			value, ok := seg.match(parts[i])
			if !ok {
				matched = false
				break
			}
			if seg.kind != segmentStatic {
				values[seg.text] = value
			}
		}
		if !matched {
			continue
		}
		for key, value := range rule.Defaults {
			if _, exists := values[key]; !exists {
				values[key] = value
			}
		}
		return rule.Endpoint, values, nil
	}
	return "", nil, ErrNotFound
}

// Has reports whether endpoint is registered.
func (m *Map) Has(endpoint string) bool {
	_, ok := m.byEndpoint[endpoint]
	return ok
}

// Build returns the canonical path for endpoint. Values that are not path
// parameters become query arguments. A rule with defaults is used only when
// the given values agree with them; among the rules that fit, the one
// consuming the most values wins and ties keep registration order.
func (m *Map) Build(endpoint string, values Values) (string, error) {
	candidates := m.byEndpoint[endpoint]
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: unknown endpoint %q", ErrBuild, endpoint)
	}
	var (
		best      *Rule
		bestPath  string
		bestUsed  map[string]struct{}
		bestScore = -1
	)
	for _, rule := range candidates {
		path, used, ok := rule.build(values)
		if !ok {
			continue
		}
		score := len(used)
		for key := range rule.Defaults {
			if _, given := values[key]; given {
				score++
			}
		}
		if score > bestScore {
			best, bestPath, bestUsed, bestScore = rule, path, used, score
		}
	}
	if best == nil {
		return "", fmt.Errorf("%w: %q with %v", ErrBuild, endpoint, values)
	}

	query := url.Values{}
	for key, value := range values {
		if _, isPath := bestUsed[key]; isPath || value == nil {
			continue
		}
		if _, isDefault := best.Defaults[key]; isDefault {
			continue
		}
		query.Set(key, fmt.Sprint(value))
	}
	if encoded := encodeQuery(query); encoded != "" {
		bestPath += "?" + encoded
	}
	return bestPath, nil
}

// encodeQuery is url.Values.Encode leaving path separators readable.
func encodeQuery(query url.Values) string {
	return queryUnescaper.Replace(query.Encode())
}

var queryUnescaper = strings.NewReplacer("%2F", "/", "%3A", ":")

func (r *Rule) build(values Values) (string, map[string]struct{}, bool) {
	for key, def := range r.Defaults {
		if given, ok := values[key]; ok && given != nil && fmt.Sprint(given) != fmt.Sprint(def) {
			return "", nil, false
		}
	}
	used := make(map[string]struct{})
	var b strings.Builder
	for _, seg := range r.segments {
		value := values[seg.text]
		if seg.kind != segmentStatic {
			if _, ok := values[seg.text]; !ok {
				return "", nil, false
			}
			used[seg.text] = struct{}{}
		}
		text, ok := seg.build(value)
		if !ok {
			return "", nil, false
		}
		b.WriteByte('/')
		b.WriteString(text)
	}
	if strings.HasSuffix(r.Pattern, "/") || len(r.segments) == 0 {
		b.WriteByte('/')
	}
	return b.String(), used, true
}
