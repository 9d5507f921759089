// Copyright (c) 2026 Vaultiq. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/taibuivan/vaultiq/internal/platform/constants"
)

// # Device Fingerprinting

// ErrNoDeviceSignal is returned when a request carries neither a device ID
// header nor a user agent, leaving nothing to fingerprint.
var ErrNoDeviceSignal = errors.New("fingerprint_no_device_signal")

// DefaultFingerprintGenerator derives a stable device fingerprint from
// request headers.
//
// The fingerprint is the lowercase hex SHA-256 of "deviceId|language|platform".
// The pipe-joined shape is fixed — stored fingerprints from cooperating
// replicas must hash identically.
type DefaultFingerprintGenerator struct{}

/*
Fingerprint implements [FingerprintGenerator].

Description: deviceId comes from X-Device-Id, falling back to the raw
User-Agent; if both are absent the request is unfingerprintable and an error
is returned. language is the Accept-Language value verbatim. platform is the
normalized Sec-CH-UA-Platform client hint, falling back to keyword detection
on the User-Agent.

Parameters:
  - request: *http.Request

Returns:
  - string: Lowercase hex SHA-256 digest
  - error: ErrNoDeviceSignal when no device identity signal exists
*/
func (DefaultFingerprintGenerator) Fingerprint(request *http.Request) (string, error) {
	if request == nil {
		return "", ErrNoDeviceSignal
	}

	userAgent := strings.TrimSpace(request.Header.Get(constants.HeaderUserAgent))

	deviceID := strings.TrimSpace(request.Header.Get(constants.HeaderXDeviceID))
	if deviceID == "" {
		deviceID = userAgent
	}
	if deviceID == "" {
		return "", ErrNoDeviceSignal
	}

	language := strings.TrimSpace(request.Header.Get(constants.HeaderAcceptLanguage))

	platform := normalizePlatformHint(request.Header.Get(constants.HeaderSecChUAPlatform))
	if platform == "" {
		platform = platformFromUserAgent(userAgent)
	}

	material := fmt.Sprintf("%s|%s|%s", deviceID, language, platform)
	digest := sha256.Sum256([]byte(material))
	return hex.EncodeToString(digest[:]), nil
}

// normalizePlatformHint strips the structured-header quoting from a
// Sec-CH-UA-Platform value and lowercases it ("Windows" -> windows).
func normalizePlatformHint(hint string) string {
	hint = strings.TrimSpace(hint)
	hint = strings.Trim(hint, `"`)
	return strings.ToLower(strings.TrimSpace(hint))
}

// platformFromUserAgent detects the platform from user-agent keywords, in
// specificity order so "Android" is not misread as linux.
func platformFromUserAgent(userAgent string) string {
	lowered := strings.ToLower(userAgent)

	switch {
	case strings.Contains(lowered, "android"):
		return "android"
	case strings.Contains(lowered, "iphone"), strings.Contains(lowered, "ipad"), strings.Contains(lowered, "ios"):
		return "ios"
	case strings.Contains(lowered, "windows"):
		return "windows"
	case strings.Contains(lowered, "mac os"), strings.Contains(lowered, "macintosh"):
		return "macos"
	case strings.Contains(lowered, "linux"):
		return "linux"
	default:
		return "unknown"
	}
}

// # Fingerprint Validation

// RecomputeFingerprintValidator checks a stored fingerprint by recomputing it
// from the presented request with the same generator.
type RecomputeFingerprintValidator struct {
	Generator FingerprintGenerator
}

/*
Matches implements [FingerprintValidator].

Description: Recomputes the fingerprint from the live request and compares it
to the stored value in constant time. An unfingerprintable request never
matches.

Parameters:
  - request: *http.Request
  - stored: string

Returns:
  - bool: true when the device identity still matches
*/
func (validator RecomputeFingerprintValidator) Matches(request *http.Request, stored string) bool {
	if stored == "" {
		return false
	}

	current, err := validator.Generator.Fingerprint(request)
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(current), []byte(stored)) == 1
}
