package validator

import (
	"reflect"
	"strings"
	"sync"
)

// messageCache maps a struct type to its error_msg overrides, keyed by
// the struct namespace validator reports ("Req.Inner.Field") and then by
// rule.
type messageCache struct {
	types sync.Map // reflect.Type -> map[string]map[string]string
}

func (c *messageCache) lookup(t reflect.Type, namespace, rule string) string {
	if cached, ok := c.types.Load(t); ok {
		return cached.(map[string]map[string]string)[namespace][rule]
	}
	msgs := make(map[string]map[string]string)
	collectMessages(t, t.Name(), msgs, map[reflect.Type]bool{})
	actual, _ := c.types.LoadOrStore(t, msgs)
	return actual.(map[string]map[string]string)[namespace][rule]
}

func collectMessages(t reflect.Type, prefix string, out map[string]map[string]string, seen map[reflect.Type]bool) {
	if seen[t] {
		return
	}
	seen[t] = true
	defer delete(seen, t)

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		ns := prefix + "." + f.Name
		if tag := f.Tag.Get(tagMessage); tag != "" {
			out[ns] = parseMessageTag(tag)
		}
		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct {
			collectMessages(ft, ns, out, seen)
		}
	}
}

func parseMessageTag(tag string) map[string]string {
	rules := make(map[string]string)
	for _, part := range strings.Split(tag, ruleSeparator) {
		rule, msg, ok := strings.Cut(part, keyValueSep)
		if ok {
			rules[strings.TrimSpace(rule)] = strings.TrimSpace(msg)
		}
	}
	return rules
}
