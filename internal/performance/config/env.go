package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(name string) (string, bool)

// ExpandEnv replaces ${NAME} and ${NAME:-default} references in s.
//
// A '$' that does not open a reference is kept verbatim, and "$${" produces a
// literal "${". A variable that is set but empty expands to the empty string,
// except in the ":-" form where it takes the default. The names of referenced
// variables that are unset and have no default are returned in missing.
func ExpandEnv(s string, lookup LookupFunc) (out string, missing []string) {
	if !strings.Contains(s, "${") {
		return s, nil
	}

	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '$' {
			sb.WriteByte(s[i])
			continue
		}

		if strings.HasPrefix(s[i:], "$${") {
			sb.WriteString("${")
			i += 2
			continue
		}

		if !strings.HasPrefix(s[i:], "${") {
			sb.WriteByte('$')
			continue
		}

		end := strings.IndexByte(s[i+2:], '}')
		if end < 0 {
			// Unterminated reference, keep the rest as-is.
			sb.WriteString(s[i:])
			break
		}

		expr := s[i+2 : i+2+end]
		name, def, hasDefault := strings.Cut(expr, ":-")
		name = strings.TrimSpace(name)

		value, ok := lookup(name)
		switch {
		case hasDefault && value == "":
			sb.WriteString(def)
		case ok:
			sb.WriteString(value)
		default:
			missing = append(missing, name)
		}

		i += 2 + end
	}

	return sb.String(), missing
}

// InterpolateEnv resolves environment references in every template of the
// config: variables, default headers, and each step's URL, headers and body.
//
// It runs once, before any VU starts. Unresolvable references are collected
// into a ValidationErrors.
func InterpolateEnv(config *TestConfig, lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	errs := &ValidationErrors{}
	expand := func(field, value string) string {
		out, missing := ExpandEnv(value, lookup)
		for _, name := range missing {
			errs.Add(field, fmt.Sprintf("environment variable %s is not set", name))
		}
		return out
	}

	for _, key := range sortedKeys(config.Variables) {
		config.Variables[key] = expand("variables."+key, config.Variables[key])
	}
	for _, key := range sortedKeys(config.Headers) {
		config.Headers[key] = expand("headers."+key, config.Headers[key])
	}

	for i := range config.Scenario {
		step := &config.Scenario[i]
		prefix := fmt.Sprintf("scenario[%d]", i)

		step.URL = expand(prefix+".url", step.URL)
		step.Body = expand(prefix+".body", step.Body)
		for _, key := range sortedKeys(step.Headers) {
			step.Headers[key] = expand(prefix+".headers."+key, step.Headers[key])
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
