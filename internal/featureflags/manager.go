// Package featureflags gates optional API surfaces per user.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Flags understood by the API.
const (
	// ImageUploads gates POST /api/images.
	ImageUploads = "image_uploads"
	// RealtimeStream gates WebSocket ticket issuance.
	RealtimeStream = "realtime_stream"
)

// Defaults apply when FEATURE_FLAGS does not mention a known flag.
var Defaults = map[string]string{
	ImageUploads:   "on",
	RealtimeStream: "on",
}

type rule struct {
	raw     string
	enabled bool
	// percent is >= 0 for N% rollouts and -1 otherwise.
	percent int
}

func parseRule(value string) (rule, bool) {
	switch value {
	case "on", "true", "1":
		return rule{raw: value, enabled: true, percent: -1}, true
	case "off", "false", "0":
		return rule{raw: value, percent: -1}, true
	}
	if pctRaw, ok := strings.CutSuffix(value, "%"); ok {
		pct, err := strconv.Atoi(pctRaw)
		if err != nil {
			return rule{}, false
		}
		return rule{raw: value, percent: min(max(pct, 0), 100)}, true
	}
	return rule{}, false
}

// Manager evaluates feature flags defined in a simple key=value list.
// Example: "image_uploads=on,realtime_stream=25%"
type Manager struct {
	rules map[string]rule
}

// NewManager creates a feature-flag manager from a comma-separated config
// string layered over Defaults. Malformed pairs are ignored.
func NewManager(raw string) *Manager {
	rules := make(map[string]rule, len(Defaults))
	for name, value := range Defaults {
		r, _ := parseRule(value)
		rules[name] = r
	}

	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		if r, ok := parseRule(value); ok {
			rules[key] = r
		}
	}

	return &Manager{rules: rules}
}

// Enabled returns whether a flag is enabled for a given user. Percentage
// rollouts are deterministic per (flag, user) and exclude anonymous callers.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	r, ok := m.rules[normalize(name)]
	if !ok {
		return false
	}
	switch {
	case r.percent < 0:
		return r.enabled
	case r.percent == 0:
		return false
	case r.percent == 100:
		return true
	case userID == 0:
		return false
	default:
		return rolloutBucket(name, userID) < r.percent
	}
}

// Names lists the configured flags in sorted order.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.rules))
	for name := range m.rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// State is one flag as seen by one caller.
type State struct {
	Name    string `json:"name"`
	Rule    string `json:"rule"`
	Enabled bool   `json:"enabled"`
}

// States evaluates every configured flag for userID, sorted by name.
func (m *Manager) States(userID uint) []State {
	if m == nil {
		return []State{}
	}
	out := make([]State, 0, len(m.rules))
	for _, name := range m.Names() {
		out = append(out, State{Name: name, Rule: m.rules[name].raw, Enabled: m.Enabled(name, userID)})
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fmt.Sprintf("%s:%d", normalize(name), userID)))
	return int(h.Sum32() % 100)
}
