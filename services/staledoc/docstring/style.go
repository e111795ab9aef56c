// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package docstring

import (
	"fmt"
	"strings"
)

// Style is a docstring convention.
type Style int

const (
	// StyleAutoDetect tries Google first and falls back to NumPy.
	StyleAutoDetect Style = iota

	// StyleGoogle reads an `Args:` section.
	StyleGoogle

	// StyleNumPy reads an underlined `Parameters` section.
	StyleNumPy
)

// String returns the configuration name of the style.
func (s Style) String() string {
	switch s {
	case StyleAutoDetect:
		return "auto"
	case StyleGoogle:
		return "google"
	case StyleNumPy:
		return "numpy"
	default:
		return "unknown"
	}
}

// ParseStyle parses a style name. The empty string selects auto-detection.
func ParseStyle(s string) (Style, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto", "autodetect", "auto-detect":
		return StyleAutoDetect, nil
	case "google":
		return StyleGoogle, nil
	case "numpy":
		return StyleNumPy, nil
	default:
		return StyleAutoDetect, fmt.Errorf("unknown docstring style %q (want google, numpy or auto)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Style) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Style) UnmarshalText(text []byte) error {
	parsed, err := ParseStyle(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
