// Package featureflags evaluates FEATURE_FLAGS, a comma-separated list of
// name=value pairs such as "reply_broadcast=on,compact_feed=25%".
package featureflags

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"strconv"
	"strings"

	"circle/internal/middleware"
)

// ReplyBroadcast gates the newReply realtime event.
const ReplyBroadcast = "reply_broadcast"

// defaults lists the flags the application reads. They appear in every
// snapshot, configured or not.
var defaults = map[string]bool{
	ReplyBroadcast: false,
}

// rule is one parsed flag value. percent is 0..100; on/off map to 100 and 0.
type rule struct {
	raw     string
	percent int
}

func (r rule) enabledFor(name string, userID uint) bool {
	switch {
	case r.percent <= 0:
		return false
	case r.percent >= 100:
		return true
	case userID == 0:
		// Anonymous callers have no stable bucket.
		return false
	default:
		return rolloutBucket(name, userID) < r.percent
	}
}

func parseRule(value string) (rule, error) {
	switch value {
	case "on", "true", "1":
		return rule{raw: value, percent: 100}, nil
	case "off", "false", "0":
		return rule{raw: value, percent: 0}, nil
	}
	pct, ok := strings.CutSuffix(value, "%")
	if !ok {
		return rule{}, fmt.Errorf("want on, off or N%%, got %q", value)
	}
	n, err := strconv.Atoi(strings.TrimSpace(pct))
	if err != nil || n < 0 || n > 100 {
		return rule{}, fmt.Errorf("rollout %q is not a percentage between 0 and 100", value)
	}
	return rule{raw: value, percent: n}, nil
}

// Manager holds the parsed flag rules. A nil Manager treats every flag as
// off.
type Manager struct {
	rules map[string]rule
}

// NewManager parses raw. Malformed entries are logged and ignored.
func NewManager(raw string) *Manager {
	m := &Manager{rules: make(map[string]rule)}

	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, value, ok := strings.Cut(entry, "=")
		name, value = normalize(name), normalize(value)
		if !ok || name == "" || value == "" {
			middleware.Logger.Warn("ignoring malformed feature flag", slog.String("entry", entry))
			continue
		}
		r, err := parseRule(value)
		if err != nil {
			middleware.Logger.Warn("ignoring feature flag",
				slog.String("flag", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		m.rules[name] = r
	}

	return m
}

// Enabled reports whether name is on for userID. Percentage rollouts hash
// (name, userID), so a user stays in or out of a rollout across requests and
// instances.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	name = normalize(name)
	r, ok := m.rules[name]
	if !ok {
		return defaults[name]
	}
	return r.enabledFor(name, userID)
}

// Raw returns the configured values as written, after normalization.
func (m *Manager) Raw() map[string]string {
	out := map[string]string{}
	if m == nil {
		return out
	}
	for name, r := range m.rules {
		out[name] = r.raw
	}
	return out
}

// Snapshot evaluates every configured and known flag for userID.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := map[string]bool{}
	if m == nil {
		return out
	}
	for name, on := range defaults {
		out[name] = on
	}
	for name, r := range m.rules {
		out[name] = r.enabledFor(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", name, userID)
	return int(h.Sum32() % 100)
}
