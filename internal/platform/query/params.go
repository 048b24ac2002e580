package query

import (
	"net/url"
	"strings"
)

// Params is the open parameter map a Builder consumes. Values are string,
// []string (repeated parameter) or map[string]string (bracketed operator
// syntax such as appointmentFee[lt]=100).
type Params map[string]interface{}

// ParamsFromURL flattens url.Values into Params, folding bracketed keys into
// operator maps the way Express-style query parsers do.
func ParamsFromURL(values url.Values) Params {
	params := Params{}
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		if name, op, ok := splitBracket(key); ok {
			m, _ := params[name].(map[string]string)
			if m == nil {
				m = map[string]string{}
			}
			m[op] = vals[0]
			params[name] = m
			continue
		}
		if len(vals) > 1 {
			params[key] = append([]string(nil), vals...)
			continue
		}
		params[key] = vals[0]
	}
	return params
}

// splitBracket parses "fee[lt]" into ("fee", "lt", true).
func splitBracket(key string) (name, op string, ok bool) {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return "", "", false
	}
	return key[:open], key[open+1 : len(key)-1], true
}

// str returns the string form of a scalar parameter value, if it is one.
func str(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}
