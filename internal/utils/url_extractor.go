// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package utils

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/models"
)

// urlPattern matches HTTP and HTTPS URLs up to the next whitespace, quote or angle bracket.
var urlPattern = regexp.MustCompile(`https?://[^\s<>"]+`)

// trailingPunctuation is stripped from matched URLs since it usually ends the sentence
// around the link rather than the link itself.
const trailingPunctuation = ".,!?;:)]}"

// ExtractURLs returns the distinct HTTP(S) URLs found in text, in order of appearance.
func ExtractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	urls := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))

	for _, match := range matches {
		match = strings.TrimRight(match, trailingPunctuation)
		if _, ok := seen[match]; ok {
			continue
		}
		seen[match] = struct{}{}
		urls = append(urls, match)
	}

	return urls
}

// FindMeetingURL returns the first URL in text that belongs to a supported conferencing
// platform. Calendar invitations often carry the join link only in their description.
func FindMeetingURL(text string) (string, models.Platform, bool) {
	for _, candidate := range ExtractURLs(text) {
		if platform := DetectPlatform(candidate); platform != models.PlatformUnknown {
			return candidate, platform, true
		}
	}
	return "", models.PlatformUnknown, false
}

// ExtractDomain returns the host name of a URL without port, or the input when it cannot be parsed.
//   - "https://us04web.zoom.us/j/123" -> "us04web.zoom.us"
//   - "http://meet.google.com:443/abc" -> "meet.google.com"
func ExtractDomain(urlString string) string {
	parsed, err := url.Parse(urlString)
	if err != nil {
		return urlString
	}
	if parsed.Hostname() != "" {
		return parsed.Hostname()
	}
	if parsed.Host != "" {
		return parsed.Host
	}
	return urlString
}
