// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-bot-service/internal/domain/models"
)

var (
	// teamsIntlDomain matches country specific Teams domains such as teams.microsoft.de.
	teamsIntlDomain = regexp.MustCompile(`teams\.microsoft\.[a-z]{2,3}`)
	// zoomRegionalHost matches regional web client hosts such as us04web.zoom.us.
	zoomRegionalHost = regexp.MustCompile(`us\d+web\.zoom\.us`)
	zoomSubdomain    = regexp.MustCompile(`\w+\.zoom\.us`)
	zoomNumericID    = regexp.MustCompile(`\d{9,11}`)

	// zoomRegionalJoin captures the scheme and the regional join path to rewrite.
	zoomRegionalJoin = regexp.MustCompile(`(?i)^(@?https?://)(us\d+web\.zoom\.us/j/)`)

	// zoomPwdPrefix splits a pwd value into its canonical prefix (up to the digit after
	// the final period) and any trailing content.
	zoomPwdPrefix = regexp.MustCompile(`^(.+\.\d)(.*)$`)

	teamsMeetingID = regexp.MustCompile(`/meet/(\d+)`)
	zoomJoinID     = regexp.MustCompile(`/join/(\d{9,11})`)
	zoomShortID    = regexp.MustCompile(`/j/(\d{9,11})`)
)

// SupportedMeetingURLs lists example URL shapes accepted by the control plane.
var SupportedMeetingURLs = []string{
	"https://meet.google.com/*",
	"https://teams.microsoft.com/*",
	"https://teams.live.com/*",
	"https://teams.office.com/*",
	"https://zoom.us/j/*",
	"https://*.zoom.us/j/*",
}

// NormalizedMeeting is a classified meeting URL in its canonical form.
type NormalizedMeeting struct {
	Platform models.Platform
	URL      string
}

// NormalizeMeetingURL canonicalizes a meeting URL and classifies its platform.
// When a passcode is supplied out of band, an embedded Zoom passcode is trimmed so it
// cannot override the explicit one. Regional Zoom web client links are rewritten to the
// zoom.us/wc/join form. Normalizing an already normalized URL returns it unchanged.
func NormalizeMeetingURL(rawURL, passcode string) NormalizedMeeting {
	normalized := strings.TrimSpace(rawURL)
	if passcode != "" {
		normalized = stripZoomPasscode(normalized)
	}
	normalized = rewriteZoomRegionalURL(normalized)

	return NormalizedMeeting{
		Platform: DetectPlatform(normalized),
		URL:      normalized,
	}
}

// DetectPlatform classifies a meeting URL by well-known host names and path fragments.
func DetectPlatform(meetingURL string) models.Platform {
	if strings.TrimSpace(meetingURL) == "" {
		return models.PlatformUnknown
	}
	u := strings.ToLower(meetingURL)

	switch {
	case strings.Contains(u, "meet.google.com"), strings.Contains(u, "meet.google.co"):
		return models.PlatformGoogleMeet

	case strings.Contains(u, "teams.microsoft.com"),
		strings.Contains(u, "teams.live.com"),
		strings.Contains(u, "teams.office.com"),
		strings.Contains(u, "teams.microsoft.us"),
		strings.Contains(u, "teams.gov.microsoft.us"),
		strings.Contains(u, "teams.microsoftonline.com"),
		strings.Contains(u, "/l/meetup-join/"),
		strings.Contains(u, "/meet/"),
		strings.Contains(u, "microsoft") && (strings.Contains(u, "/teams/") || strings.Contains(u, "teamsmeetings")),
		teamsIntlDomain.MatchString(u),
		strings.Contains(u, "broadcasting.teams"):
		return models.PlatformTeams

	case strings.Contains(u, "zoom.us"),
		strings.Contains(u, "zoom.com"),
		strings.Contains(u, "zoom."),
		zoomRegionalHost.MatchString(u),
		zoomSubdomain.MatchString(u),
		strings.Contains(u, "/j/") && (strings.Contains(u, "zoom") || zoomNumericID.MatchString(u)):
		return models.PlatformZoom
	}

	return models.PlatformUnknown
}

// stripZoomPasscode trims the pwd query value of a Zoom link to its canonical prefix. When
// the link has no canonical pwd it drops a separate passcode parameter instead. Other URLs
// are returned unchanged. The order and encoding of the remaining query parameters are
// preserved.
func stripZoomPasscode(meetingURL string) string {
	if !strings.Contains(strings.ToLower(ExtractDomain(meetingURL)), "zoom.") {
		return meetingURL
	}
	base, rawQuery, found := strings.Cut(meetingURL, "?")
	if !found || rawQuery == "" {
		return meetingURL
	}
	rawQuery, fragment, hasFragment := strings.Cut(rawQuery, "#")

	params := strings.Split(rawQuery, "&")

	// A separate passcode parameter is dropped only when pwd has no canonical form.
	pwdCanonical := false
	for i, param := range params {
		name, value, _ := strings.Cut(param, "=")
		if name != "pwd" {
			continue
		}
		decoded, err := url.QueryUnescape(value)
		if err != nil {
			return meetingURL
		}
		if m := zoomPwdPrefix.FindStringSubmatch(decoded); m != nil {
			if m[2] != "" {
				params[i] = "pwd=" + url.QueryEscape(m[1])
			}
			pwdCanonical = true
		}
		break
	}

	if !pwdCanonical {
		kept := params[:0]
		for _, param := range params {
			if name, _, _ := strings.Cut(param, "="); name == "passcode" {
				continue
			}
			kept = append(kept, param)
		}
		params = kept
	}

	result := base
	if len(params) > 0 {
		result += "?" + strings.Join(params, "&")
	}
	if hasFragment {
		result += "#" + fragment
	}
	return result
}

// rewriteZoomRegionalURL turns <region>web.zoom.us/j/<id> links into zoom.us/wc/join/<id>.
func rewriteZoomRegionalURL(meetingURL string) string {
	return zoomRegionalJoin.ReplaceAllString(meetingURL, "${1}zoom.us/wc/join/")
}

// ExtractMeetingID derives a meeting id from the URL of a Teams or Zoom meeting. Teams ids are
// read from the URL as submitted, Zoom ids from the normalized URL. When nothing can be
// extracted a locally unique manual-<unix ms> id is returned.
func ExtractMeetingID(platform models.Platform, rawURL, normalizedURL string, now time.Time) string {
	switch platform {
	case models.PlatformTeams:
		if m := teamsMeetingID.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
	case models.PlatformZoom:
		if m := zoomJoinID.FindStringSubmatch(normalizedURL); m != nil {
			return m[1]
		}
		if m := zoomShortID.FindStringSubmatch(normalizedURL); m != nil {
			return m[1]
		}
	}
	return fmt.Sprintf("manual-%d", now.UnixMilli())
}

// NormalizeMeetingType maps the accepted spellings of a brain dump meeting onto
// models.MeetingTypeBrainDump; everything else is a regular meeting.
func NormalizeMeetingType(meetingType string) models.MeetingType {
	switch meetingType {
	case "brain-dump", "brain_dump":
		return models.MeetingTypeBrainDump
	default:
		return models.MeetingTypeRegular
	}
}
