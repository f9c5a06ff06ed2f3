package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderTimestamp = "X-Webhook-Timestamp"

	DefaultTolerance = 300 * time.Second

	secretPrefix = "whsec_"
)

var (
	ErrMalformedSignature = errors.New("malformed signature")
	ErrMalformedTimestamp = errors.New("malformed timestamp")
)

// Signed is the output of Sign: a hex HMAC and the unix timestamp it covers.
type Signed struct {
	Signature string
	Timestamp int64
}

// Sign computes HMAC-SHA256(secret, "{ts}." + payload). A zero ts signs with the current time.
func Sign(payload []byte, secret string, ts time.Time) Signed {
	if ts.IsZero() {
		ts = time.Now()
	}
	unix := ts.Unix()
	return Signed{
		Signature: hex.EncodeToString(compute(payload, secret, unix)),
		Timestamp: unix,
	}
}

// Verify reports whether signature matches payload for timestamp and the timestamp
// lies within tolerance of now.
func Verify(payload []byte, signature, secret string, timestamp int64, tolerance time.Duration) bool {
	return verifyAt(payload, signature, secret, timestamp, tolerance, time.Now())
}

func verifyAt(payload []byte, signature, secret string, timestamp int64, tolerance time.Duration, now time.Time) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" || strings.TrimSpace(secret) == "" {
		return false
	}
	if !withinTolerance(timestamp, tolerance, now) {
		return false
	}

	candidate, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(candidate, compute(payload, secret, timestamp))
}

// VerifyComposite checks a "t=<unix>,v1=<hex>[,v1=<hex>]" header. Any matching v1 is accepted.
func VerifyComposite(payload []byte, header, secret string, tolerance time.Duration) bool {
	ts, candidates, err := parseComposite(header)
	if err != nil {
		return false
	}
	for _, sig := range candidates {
		if Verify(payload, sig, secret, ts, tolerance) {
			return true
		}
	}
	return false
}

// ParseHeaders resolves the simple scheme (hex signature plus timestamp header) and the
// composite scheme (t=..,v1=.. in the signature header) to one signature and timestamp.
func ParseHeaders(signatureHeader, timestampHeader string) (string, int64, error) {
	signatureHeader = strings.TrimSpace(signatureHeader)
	if signatureHeader == "" {
		return "", 0, ErrMalformedSignature
	}

	if strings.Contains(signatureHeader, "=") {
		ts, candidates, err := parseComposite(signatureHeader)
		if err != nil {
			return "", 0, err
		}
		return candidates[0], ts, nil
	}

	ts, err := parseTimestamp(timestampHeader)
	if err != nil {
		return "", 0, err
	}
	return signatureHeader, ts, nil
}

// FormatComposite renders the composite header value.
func FormatComposite(s Signed) string {
	return "t=" + strconv.FormatInt(s.Timestamp, 10) + ",v1=" + s.Signature
}

// Headers returns the outbound headers for a signed payload.
func Headers(payload []byte, secret string, ts time.Time) map[string]string {
	signed := Sign(payload, secret, ts)
	return map[string]string{
		HeaderSignature: signed.Signature,
		HeaderTimestamp: strconv.FormatInt(signed.Timestamp, 10),
	}
}

// PlainHMAC is the untimestamped hex HMAC-SHA256 of payload. Some gateways sign this way.
func PlainHMAC(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPlain compares signature with PlainHMAC in constant time.
func VerifyPlain(payload []byte, signature, secret string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" || strings.TrimSpace(secret) == "" {
		return false
	}
	candidate, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hmac.Equal(candidate, mac.Sum(nil))
}

// GenerateSecret returns "whsec_" followed by 32 random bytes in hex.
func GenerateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return secretPrefix + hex.EncodeToString(buf), nil
}

func compute(payload []byte, secret string, timestamp int64) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(payload)
	return mac.Sum(nil)
}

func withinTolerance(timestamp int64, tolerance time.Duration, now time.Time) bool {
	if timestamp <= 0 {
		return false
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	limit := int64(tolerance / time.Second)
	diff := now.Unix() - timestamp
	if diff < 0 {
		diff = -diff
	}
	return diff <= limit
}

func parseComposite(header string) (int64, []string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, nil, ErrMalformedSignature
	}

	var ts string
	v1 := make([]string, 0, 1)
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "t="):
			ts = strings.TrimSpace(strings.TrimPrefix(part, "t="))
		case strings.HasPrefix(part, "v1="):
			if sig := strings.TrimSpace(strings.TrimPrefix(part, "v1=")); sig != "" {
				v1 = append(v1, sig)
			}
		}
	}
	if len(v1) == 0 {
		return 0, nil, ErrMalformedSignature
	}

	unix, err := parseTimestamp(ts)
	if err != nil {
		return 0, nil, err
	}
	return unix, v1, nil
}

func parseTimestamp(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrMalformedTimestamp
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ts <= 0 {
		return 0, ErrMalformedTimestamp
	}
	return ts, nil
}
