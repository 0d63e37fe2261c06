// Package signature implements the device-to-server authentication digest.
//
// A device proves knowledge of its auth key by sending a lowercase hex digest
// over "deviceId:authKey:timestamp". Two schemes are supported: the legacy
// md5 digest used by deployed firmware, and a keyed HMAC-SHA256.
package signature

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Scheme selects the digest algorithm.
type Scheme string

const (
	SchemeMD5        Scheme = "md5"
	SchemeHMACSHA256 Scheme = "hmac-sha256"
)

// DefaultScheme is used when no scheme is configured.
const DefaultScheme = SchemeHMACSHA256

// ParseScheme converts a configuration value into a Scheme.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultScheme, nil
	case SchemeMD5:
		return SchemeMD5, nil
	case SchemeHMACSHA256:
		return SchemeHMACSHA256, nil
	}
	return "", fmt.Errorf("signature: unknown scheme '%s'", s)
}

// Sign returns the lowercase hex digest for the given inputs.
func Sign(scheme Scheme, deviceID, authKey, timestamp string) string {
	msg := deviceID + ":" + authKey + ":" + timestamp

	switch scheme {
	case SchemeMD5:
		sum := md5.Sum([]byte(msg))
		return hex.EncodeToString(sum[:])
	default:
		mac := hmac.New(sha256.New, []byte(authKey))
		mac.Write([]byte(msg))
		return hex.EncodeToString(mac.Sum(nil))
	}
}

// Verify recomputes the digest and compares it in constant time. A length
// mismatch yields false.
func Verify(scheme Scheme, deviceID, authKey, timestamp, signature string) bool {
	expected := Sign(scheme, deviceID, authKey, timestamp)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// ParseTimestamp parses an ISO-8601 / RFC 3339 timestamp with or without
// fractional seconds.
func ParseTimestamp(timestamp string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, timestamp)
}
