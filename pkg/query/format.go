// Package query merges structured query values into URLs for redirects.
package query

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Values is a structured query. A value is a scalar, nil, or a slice of
// scalars; nil values contribute nothing when serialised.
type Values map[string]any

// FormatURL merges q into url. A leading "<protocol>://" or "//" and a single
// trailing "#fragment" are kept, empty path segments are dropped, and the
// serialised query is appended with "&" when url already carries exactly one
// "?", with "?" otherwise.
//
// A path rooted at a single "/" keeps no "//" prefix. An empty or nil q adds
// nothing; a non-empty q whose values are all nil still adds the separator.
func FormatURL(url string, q Values) string {
	var protocol string
	prefix := "//"

	if i := strings.Index(url, "://"); i != -1 {
		protocol = url[:i]
		url = url[i+3:]
	} else if strings.HasPrefix(url, "//") {
		url = url[2:]
	} else if strings.HasPrefix(url, "/") {
		prefix = ""
	}
	if protocol != "" {
		prefix = protocol + "://"
	}

	parts := strings.Split(url, "/")
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(parts[0])

	segments := make([]string, 0, len(parts)-1)
	for _, p := range parts[1:] {
		if p != "" {
			segments = append(segments, p)
		}
	}
	path := strings.Join(segments, "/")

	var hash string
	if pieces := strings.Split(path, "#"); len(pieces) == 2 {
		path, hash = pieces[0], pieces[1]
	}

	if path != "" {
		b.WriteString("/")
		b.WriteString(path)
	}

	if len(q) > 0 {
		if strings.Count(url, "?") == 1 {
			b.WriteString("&")
		} else {
			b.WriteString("?")
		}
		b.WriteString(FormatQuery(q))
	}

	if hash != "" {
		b.WriteString("#")
		b.WriteString(hash)
	}

	return b.String()
}

// FormatQuery serialises q as key=value pairs joined by "&", keys sorted
// ascending. Slices expand to one pair per element in slice order. Values are
// written verbatim, without percent-encoding.
func FormatQuery(q Values) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		if part := formatValue(key, q[key]); part != "" {
			pairs = append(pairs, part)
		}
	}
	return strings.Join(pairs, "&")
}

func formatValue(key string, val any) string {
	if isNil(val) {
		return ""
	}

	rv := reflect.ValueOf(val)
	if (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Type().Elem().Kind() != reflect.Uint8 {
		items := make([]string, rv.Len())
		for i := range rv.Len() {
			items[i] = key + "=" + scalar(rv.Index(i).Interface())
		}
		return strings.Join(items, "&")
	}

	return key + "=" + scalar(val)
}

func scalar(v any) string {
	if isNil(v) {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case fmt.Stringer:
		return s.String()
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		return scalar(rv.Elem().Interface())
	}
	return fmt.Sprint(v)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
