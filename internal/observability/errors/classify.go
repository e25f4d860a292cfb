// Package errors provides error classification helpers for observability.
package errors

import (
	goerrors "errors"
	"reflect"
	"strings"

	apperrors "github.com/gitgauge/gitgauge/internal/errors"
)

// Classify returns a normalized error class name suitable for tagging metrics
// and logs. Application errors classify by their taxonomy code; anything else
// falls back to the innermost concrete type name.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	if code := apperrors.GetCode(err); code != "" {
		return "app_" + strings.ToLower(string(code))
	}

	for {
		inner := goerrors.Unwrap(err)
		if inner == nil {
			break
		}
		err = inner
	}
	return typeName(err)
}

func typeName(err error) string {
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}

	name := strings.ToLower(strings.ReplaceAll(t.String(), "*", ""))
	name = strings.ReplaceAll(name, ".", "_")
	if name == "" {
		return "unknown"
	}
	return name
}
