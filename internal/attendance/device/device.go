// Package device derives a human-readable label from a User-Agent string.
// The label is informational and recorded with each clock-in.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

const maxLabelLength = 120

// Label returns e.g. "Chrome on Android (mobile)". Empty input yields "".
func Label(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return ""
	}
	ua := useragent.New(userAgent)
	if ua.Bot() {
		name, _ := ua.Browser()
		return truncate("bot: " + fallback(name, "unknown"))
	}

	browser, _ := ua.Browser()
	os := ua.OS()
	if os == "" {
		os = ua.Platform()
	}

	label := fallback(browser, "Unknown browser")
	if os != "" {
		label += " on " + simplifyOS(os)
	}
	if ua.Mobile() {
		label += " (mobile)"
	}
	return truncate(label)
}

// simplifyOS trims versioned names such as "Android 13" or "Windows 10".
func simplifyOS(os string) string {
	for _, family := range []string{"Android", "iPhone OS", "CPU iPhone OS", "Windows", "Mac OS X", "Linux"} {
		if strings.HasPrefix(os, family) {
			if family == "CPU iPhone OS" || family == "iPhone OS" {
				return "iOS"
			}
			return family
		}
	}
	return os
}

func fallback(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func truncate(s string) string {
	if len(s) > maxLabelLength {
		return s[:maxLabelLength]
	}
	return s
}
