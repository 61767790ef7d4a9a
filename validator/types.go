package validator

import (
	"sort"
	"strings"
)

const (
	// tagMessage overrides messages per rule:
	//	error_msg:"required:organization is required|gt:organization id must be positive"
	tagMessage    = "error_msg"
	ruleSeparator = "|"
	keyValueSep   = ":"
)

// ValidationError groups messages by JSON field path.
type ValidationError struct {
	Fields map[string][]string
}

func (v *ValidationError) Error() string {
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(strings.Join(v.Fields[k], ", "))
	}
	return sb.String()
}

func (v *ValidationError) Add(field, message string) {
	if v.Fields == nil {
		v.Fields = make(map[string][]string)
	}
	v.Fields[field] = append(v.Fields[field], message)
}
