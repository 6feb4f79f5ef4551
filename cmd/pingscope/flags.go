package main

import (
	"flag"
	"strings"
)

// configKeys maps flag names that differ from their config keys.
var configKeys = map[string]string{
	"log":       "logs",
	"window":    "overload_window",
	"threshold": "overload_threshold",
	"queue":     "redis_queue_addr",
}

// explicitFlags keeps the values of the flags set on the command line,
// keyed the way Config.MergeWithFlags expects. Unset flags are left out so
// their zero defaults never mask the file, while an explicit bad value still
// reaches Validate.
func explicitFlags(fs *flag.FlagSet, values map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	fs.Visit(func(f *flag.Flag) {
		v, ok := values[f.Name]
		if !ok {
			return
		}
		key := f.Name
		if k, ok := configKeys[f.Name]; ok {
			key = k
		}
		out[key] = v
	})
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
