package util

import (
	"strconv"
	"strings"
)

func ParseInt(str string, fallback int) int {
	if v, err := strconv.Atoi(str); err == nil {
		return v
	}
	return fallback
}

func ParseBool(str string, fallback bool) bool {
	if v, err := strconv.ParseBool(str); err == nil {
		return v
	}
	return fallback
}

// ParseSize parses a byte size with an optional k, m or g suffix,
// for example "512", "64k" or "1g". Returns fallback on malformed input.
func ParseSize(str string, fallback int64) int64 {
	s := strings.ToLower(strings.TrimSpace(str))
	if s == "" {
		return fallback
	}

	mult := int64(1)
	switch s[len(s)-1] {
	case 'k':
		mult = 1 << 10
		s = s[:len(s)-1]
	case 'm':
		mult = 1 << 20
		s = s[:len(s)-1]
	case 'g':
		mult = 1 << 30
		s = s[:len(s)-1]
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return fallback
	}
	return v * mult
}
