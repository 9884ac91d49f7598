package extract

import "unicode/utf8"

// ContainsUnicode reports whether s has any character outside ASCII.
func ContainsUnicode(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return true
		}
	}
	return false
}

// UnicodeFields returns the names of fields whose value contains non-ASCII text.
func UnicodeFields(fields []Field) []string {
	var names []string
	for _, f := range fields {
		if ContainsUnicode(f.Value) {
			names = append(names, f.Name)
		}
	}
	return names
}

// EmptyFields returns the names of fields with no value.
func EmptyFields(fields []Field) []string {
	var names []string
	for _, f := range fields {
		if f.Value == "" {
			names = append(names, f.Name)
		}
	}
	return names
}
