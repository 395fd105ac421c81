package graphengine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/graphbolt/boltd/packstream"
)

var (
	reInteger = regexp.MustCompile(`^-?\d+$`)
	reFloat   = regexp.MustCompile(`^-?\d+\.\d+$`)
)

// parseLiteral parses one scalar literal: an integer, a float, a single- or
// double-quoted string, true/false, null, or a $-prefixed parameter
// reference resolved against params.
func parseLiteral(text string, params map[string]packstream.Value) (packstream.Value, error) {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return nil, fmt.Errorf("graphengine: empty literal")
	case strings.HasPrefix(text, "$"):
		name := strings.TrimPrefix(text, "$")
		v, ok := params[name]
		if !ok {
			return nil, fmt.Errorf("graphengine: undefined parameter %q", name)
		}
		return v, nil
	case strings.EqualFold(text, "null"):
		return nil, nil
	case strings.EqualFold(text, "true"):
		return true, nil
	case strings.EqualFold(text, "false"):
		return false, nil
	case len(text) >= 2 && text[0] == '\'' && text[len(text)-1] == '\'':
		return text[1 : len(text)-1], nil
	case len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"':
		return text[1 : len(text)-1], nil
	case reFloat.MatchString(text):
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("graphengine: bad float literal %q: %w", text, err)
		}
		return f, nil
	case reInteger.MatchString(text):
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("graphengine: bad integer literal %q: %w", text, err)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("graphengine: unrecognized literal %q", text)
	}
}

// parsePropMap parses a "{k: v, k2: v2}" body (braces included; an empty
// string yields an empty map) into a property map, resolving each value as
// a literal.
func parsePropMap(body string, params map[string]packstream.Value) (map[string]packstream.Value, error) {
	out := map[string]packstream.Value{}
	body = strings.TrimSpace(body)
	if body == "" {
		return out, nil
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(body, "{"), "}")
	for _, m := range rePropPair.FindAllStringSubmatch(inner, -1) {
		v, err := parseLiteral(m[2], params)
		if err != nil {
			return nil, err
		}
		out[m[1]] = v
	}
	return out, nil
}

// splitTopLevelCommas splits a comma-separated list, honoring single- and
// double-quoted string literals so commas inside them are not treated as
// separators.
func splitTopLevelCommas(s string) []string {
	var parts []string
	var cur strings.Builder
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			cur.WriteByte(c)
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
			cur.WriteByte(c)
		case c == ',':
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	parts = append(parts, cur.String())
	return parts
}

func normalizeSpace(s string) string {
	return strings.TrimSpace(s)
}
