// Copyright (c) 2026 Vaultiq. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/*
TestFingerprint_Deterministic pins the digest shape: lowercase hex SHA-256 of
"deviceId|language|platform". Stored fingerprints from cooperating replicas
must hash identically.
*/
func TestFingerprint_Deterministic(t *testing.T) {
	generator := DefaultFingerprintGenerator{}

	request := deviceRequest("device-a", "en-US", `"Windows"`)

	first, err := generator.Fingerprint(request)
	require.NoError(t, err)
	second, err := generator.Fingerprint(request)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	expected := sha256.Sum256([]byte("device-a|en-US|windows"))
	assert.Equal(t, hex.EncodeToString(expected[:]), first)
}

/*
TestFingerprint_DeviceIDFallback verifies the fallback chain: X-Device-Id,
then User-Agent, then an error when neither exists.
*/
func TestFingerprint_DeviceIDFallback(t *testing.T) {
	generator := DefaultFingerprintGenerator{}

	t.Run("user_agent_fallback", func(t *testing.T) {
		request := deviceRequest("", "en", "")
		request.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")

		fingerprint, err := generator.Fingerprint(request)
		require.NoError(t, err)

		expected := sha256.Sum256([]byte("Mozilla/5.0 (X11; Linux x86_64)|en|linux"))
		assert.Equal(t, hex.EncodeToString(expected[:]), fingerprint)
	})

	t.Run("no_signal_errors", func(t *testing.T) {
		request := deviceRequest("", "", "")
		_, err := generator.Fingerprint(request)
		assert.ErrorIs(t, err, ErrNoDeviceSignal)
	})

	t.Run("nil_request_errors", func(t *testing.T) {
		_, err := generator.Fingerprint(nil)
		assert.ErrorIs(t, err, ErrNoDeviceSignal)
	})
}

/*
TestNormalizePlatformHint verifies structured-header unquoting and casing.
*/
func TestNormalizePlatformHint(t *testing.T) {
	tests := []struct {
		name     string
		hint     string
		expected string
	}{
		{"quoted", `"Windows"`, "windows"},
		{"unquoted", "macOS", "macos"},
		{"padded", `  "Android" `, "android"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizePlatformHint(tt.hint))
		})
	}
}

/*
TestPlatformFromUserAgent verifies keyword detection order, in particular
that Android beats the linux substring inside the same UA.
*/
func TestPlatformFromUserAgent(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		expected  string
	}{
		{"android_beats_linux", "Mozilla/5.0 (Linux; Android 14)", "android"},
		{"iphone", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0)", "ios"},
		{"windows", "Mozilla/5.0 (Windows NT 10.0; Win64)", "windows"},
		{"macos", "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0)", "macos"},
		{"linux", "Mozilla/5.0 (X11; Linux x86_64)", "linux"},
		{"unknown", "curl/8.5.0", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, platformFromUserAgent(tt.userAgent))
		})
	}
}

/*
TestRecomputeValidator verifies the default match semantics.
*/
func TestRecomputeValidator(t *testing.T) {
	generator := DefaultFingerprintGenerator{}
	validator := RecomputeFingerprintValidator{Generator: generator}

	request := deviceRequest("device-a", "en", `"Linux"`)
	stored, err := generator.Fingerprint(request)
	require.NoError(t, err)

	assert.True(t, validator.Matches(request, stored))
	assert.False(t, validator.Matches(deviceRequest("device-b", "en", `"Linux"`), stored))
	assert.False(t, validator.Matches(request, ""))
	assert.False(t, validator.Matches(deviceRequest("", "", ""), stored))
}
