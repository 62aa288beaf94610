// Package mapping is the request/response mapping engine: it turns
// pagination, sort and filter intent into request fields and turns responses
// back into pagination state and table rows.
package mapping

import (
	"strings"

	"apimapper/internal/config"
	"apimapper/internal/util"
)

// Entry addresses one key in the query string or the JSON body. Value is
// ignored for removals.
type Entry struct {
	Location string
	Key      string
	Value    interface{}
}

// Fragment is one mapper's contribution to a request: keys to write, keys
// to remove, and recoverable problems met while building it.
type Fragment struct {
	Set      []Entry
	Remove   []Entry
	Warnings []string
}

func (f *Fragment) set(location, key string, value interface{}) {
	f.Set = append(f.Set, Entry{Location: location, Key: key, Value: value})
}

func (f *Fragment) remove(location, key string) {
	f.Remove = append(f.Remove, Entry{Location: location, Key: key})
}

func (f *Fragment) warn(msg string) {
	f.Warnings = append(f.Warnings, msg)
}

// Query returns the query writes as strings.
func (f Fragment) Query() map[string]string {
	out := make(map[string]string)
	for _, e := range f.Set {
		if e.Location == config.LocationQuery {
			out[e.Key] = util.Stringify(e.Value)
		}
	}
	return out
}

// Body returns the body writes.
func (f Fragment) Body() map[string]interface{} {
	out := make(map[string]interface{})
	for _, e := range f.Set {
		if e.Location == config.LocationBody {
			out[e.Key] = e.Value
		}
	}
	return out
}

// Removed returns the keys removed at a location.
func (f Fragment) Removed(location string) []string {
	var out []string
	for _, e := range f.Remove {
		if e.Location == location {
			out = append(out, e.Key)
		}
	}
	return out
}

// IsEmpty reports whether the fragment neither writes nor removes anything.
func (f Fragment) IsEmpty() bool {
	return len(f.Set) == 0 && len(f.Remove) == 0
}

// isServerMode reports whether a mode names the server, in any case.
func isServerMode(mode string) bool {
	return strings.EqualFold(strings.TrimSpace(mode), config.ModeServer)
}

// normalizeLocation lowercases a location; blank means the query string.
func normalizeLocation(loc string) string {
	loc = strings.ToLower(strings.TrimSpace(loc))
	if loc == "" {
		return config.LocationQuery
	}
	return loc
}

func otherLocation(loc string) string {
	if loc == config.LocationBody {
		return config.LocationQuery
	}
	return config.LocationBody
}
