package envutil

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Source reads variables through a lookup function; a nil Source reads the
// process environment.
type Source func(string) string

func (s Source) get(name string) string {
	if s == nil {
		return strings.TrimSpace(os.Getenv(name))
	}
	return strings.TrimSpace(s(name))
}

func (s Source) String(name, def string) string {
	if v := s.get(name); v != "" {
		return v
	}
	return def
}

func (s Source) Int(name string, def int) int {
	v := s.get(name)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func (s Source) Float(name string, def float64) float64 {
	v := s.get(name)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func (s Source) Bool(name string, def bool) bool {
	switch strings.ToLower(s.get(name)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

// Duration accepts Go duration strings ("90s", "10m") or a bare number of seconds.
func (s Source) Duration(name string, def time.Duration) time.Duration {
	v := s.get(name)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

// List splits a comma separated value, dropping empty items.
func (s Source) List(name string, def []string) []string {
	v := s.get(name)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func String(name, def string) string { return Source(nil).String(name, def) }
func Int(name string, def int) int { return Source(nil).Int(name, def) }
func Bool(name string, def bool) bool { return Source(nil).Bool(name, def) }
func Duration(name string, def time.Duration) time.Duration { return Source(nil).Duration(name, def) }
