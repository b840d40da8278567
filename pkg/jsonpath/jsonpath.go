// Package jsonpath evaluates a small JSONPath subset against response bodies.
//
// Expressions such as "$.data.items[0].id" are translated to gjson paths.
// Filters, wildcards and recursive descent are not supported.
package jsonpath

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNotFound is returned when the path does not match anything in the document.
var ErrNotFound = errors.New("path not found")

// Lookup returns the value at path and whether it exists.
//
// Invalid JSON is reported as an error; a missing value is not.
func Lookup(body []byte, path string) (gjson.Result, bool, error) {
	if path == "" {
		return gjson.Result{}, false, fmt.Errorf("empty JSONPath expression")
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, false, fmt.Errorf("response body is not valid JSON")
	}

	result := gjson.GetBytes(body, ToGjson(path))
	return result, result.Exists(), nil
}

// Extract returns the value at path rendered as a string.
//
// JSON null is rendered as "null"; objects and arrays keep their raw JSON.
func Extract(body []byte, path string) (string, error) {
	result, ok, err := Lookup(body, path)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if result.Type == gjson.Null {
		return "null", nil
	}
	return result.String(), nil
}

// ToGjson converts a JSONPath expression to gjson path syntax.
//
//	$                 -> @this
//	$.users[0].name   -> users.0.name
//	$['a']["b"]       -> a.b
func ToGjson(path string) string {
	path = strings.TrimSpace(path)
	if path == "$" {
		return "@this"
	}

	path = strings.TrimPrefix(path, "$")
	if path == "" {
		return "@this"
	}

	// Quoted bracket keys become plain segments.
	for _, q := range []string{"'", "\""} {
		path = strings.ReplaceAll(path, "["+q, ".")
		path = strings.ReplaceAll(path, q+"]", "")
	}

	path = strings.ReplaceAll(path, "[", ".")
	path = strings.ReplaceAll(path, "]", "")

	// Collapse the separators introduced above.
	for strings.Contains(path, "..") {
		path = strings.ReplaceAll(path, "..", ".")
	}
	return strings.TrimPrefix(path, ".")
}
