package validators

import (
	"reflect"
	"strings"
	"unicode/utf8"
)

// SanitizeString trims input and cuts it to at most maxLen runes. A
// non-positive maxLen only trims.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen <= 0 || utf8.RuneCountInString(trimmed) <= maxLen {
		return trimmed
	}
	return strings.TrimSpace(string([]rune(trimmed)[:maxLen]))
}

// trimStrings trims every exported string field reachable from dest, so
// whitespace-only names fail the "required" and "min" rules.
func trimStrings(v reflect.Value) {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if !v.IsNil() {
			trimStrings(v.Elem())
		}
	case reflect.Struct:
		for i := range v.NumField() {
			if v.Type().Field(i).IsExported() {
				trimStrings(v.Field(i))
			}
		}
	case reflect.Slice:
		for i := range v.Len() {
			trimStrings(v.Index(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(SanitizeString(v.String(), 0))
		}
	}
}
