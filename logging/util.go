package logging

import (
	"fmt"
	"log/slog"
	"strings"
)

// LevelFromString is ParseLevel falling back to INFO for a missing or
// unknown level.
func LevelFromString(str *string) slog.Level {
	if str == nil {
		return slog.LevelInfo
	}
	lvl, err := ParseLevel(*str)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// ParseLevel accepts the slog level names in any case, with an optional
// offset like "INFO+2", and WARNING for WARN.
func ParseLevel(s string) (slog.Level, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "warning") {
		s = "WARN"
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return lvl, nil
}
