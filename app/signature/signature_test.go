package signature

import (
	"encoding/hex"
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	payloads := [][]byte{
		[]byte(`{"event":"payment.success","amount":2999}`),
		[]byte(""),
		[]byte("plain text body"),
	}
	for _, payload := range payloads {
		signed := Sign(payload, "whsec_test", time.Time{})
		if !Verify(payload, signed.Signature, "whsec_test", signed.Timestamp, DefaultTolerance) {
			t.Fatalf("expected round trip to verify for %q", payload)
		}
	}
}

func TestVerifyRejectsMutatedPayload(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	signed := Sign(payload, "secret", time.Time{})

	mutated := append([]byte(nil), payload...)
	mutated[3] = 'X'
	if Verify(mutated, signed.Signature, "secret", signed.Timestamp, DefaultTolerance) {
		t.Fatal("expected mutated payload to fail verification")
	}
}

func TestVerifyRejectsMutatedSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	signed := Sign(payload, "secret", time.Time{})

	last := signed.Signature[len(signed.Signature)-1]
	replacement := byte('0')
	if last == '0' {
		replacement = '1'
	}
	bad := signed.Signature[:len(signed.Signature)-1] + string(replacement)
	if Verify(payload, bad, "secret", signed.Timestamp, DefaultTolerance) {
		t.Fatal("expected mutated signature to fail verification")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	signed := Sign(payload, "secret-a", time.Time{})
	if Verify(payload, signed.Signature, "secret-b", signed.Timestamp, DefaultTolerance) {
		t.Fatal("expected wrong secret to fail verification")
	}
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	old := time.Now().Add(-10 * time.Minute)
	signed := Sign(payload, "secret", old)

	if Verify(payload, signed.Signature, "secret", signed.Timestamp, 300*time.Second) {
		t.Fatal("expected stale timestamp to fail even though hmac matches")
	}
	if !Verify(payload, signed.Signature, "secret", signed.Timestamp, 15*time.Minute) {
		t.Fatal("expected wider tolerance to accept the same signature")
	}
}

func TestVerifyRejectsFutureTimestamp(t *testing.T) {
	payload := []byte(`{}`)
	future := time.Now().Add(6 * time.Minute)
	signed := Sign(payload, "secret", future)
	if Verify(payload, signed.Signature, "secret", signed.Timestamp, 300*time.Second) {
		t.Fatal("expected future timestamp beyond tolerance to fail")
	}
}

func TestVerifyAtToleranceBoundary(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	payload := []byte(`{}`)
	signed := Sign(payload, "secret", now.Add(-300*time.Second))
	if !verifyAt(payload, signed.Signature, "secret", signed.Timestamp, 300*time.Second, now) {
		t.Fatal("expected timestamp exactly at tolerance to verify")
	}
	if verifyAt(payload, signed.Signature, "secret", signed.Timestamp, 299*time.Second, now) {
		t.Fatal("expected timestamp past tolerance to fail")
	}
}

func TestVerifyRejectsNonPositiveTimestamp(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	payload := []byte(`{"id":"evt_1"}`)
	for _, ts := range []int64{math.MinInt64, -1, 0} {
		sig := hex.EncodeToString(compute(payload, "secret", ts))
		if verifyAt(payload, sig, "secret", ts, 300*time.Second, now) {
			t.Fatalf("expected timestamp %d to fail", ts)
		}
		if Verify(payload, sig, "secret", ts, 300*time.Second) {
			t.Fatalf("expected Verify to reject timestamp %d", ts)
		}
	}
}

func TestVerifyComposite(t *testing.T) {
	payload := []byte(`{"id":"evt_composite"}`)
	signed := Sign(payload, "secret", time.Time{})
	header := FormatComposite(signed)

	if !VerifyComposite(payload, header, "secret", DefaultTolerance) {
		t.Fatal("expected composite header to verify")
	}

	rotated := "t=" + strconv.FormatInt(signed.Timestamp, 10) + ",v1=deadbeef,v1=" + signed.Signature
	if !VerifyComposite(payload, rotated, "secret", DefaultTolerance) {
		t.Fatal("expected any matching v1 to verify")
	}

	if VerifyComposite(payload, "v1="+signed.Signature, "secret", DefaultTolerance) {
		t.Fatal("expected header without t= to fail")
	}
}

func TestParseHeadersSimpleAndComposite(t *testing.T) {
	payload := []byte(`{"id":"evt"}`)
	signed := Sign(payload, "secret", time.Time{})

	sig, ts, err := ParseHeaders(signed.Signature, strconv.FormatInt(signed.Timestamp, 10))
	if err != nil {
		t.Fatalf("unexpected error for simple scheme: %v", err)
	}
	if sig != signed.Signature || ts != signed.Timestamp {
		t.Fatalf("unexpected simple parse: sig=%s ts=%d", sig, ts)
	}

	sig, ts, err = ParseHeaders(FormatComposite(signed), "")
	if err != nil {
		t.Fatalf("unexpected error for composite scheme: %v", err)
	}
	if sig != signed.Signature || ts != signed.Timestamp {
		t.Fatalf("unexpected composite parse: sig=%s ts=%d", sig, ts)
	}
}

func TestParseHeadersErrors(t *testing.T) {
	if _, _, err := ParseHeaders("", "123"); !errors.Is(err, ErrMalformedSignature) {
		t.Fatalf("expected ErrMalformedSignature, got %v", err)
	}
	if _, _, err := ParseHeaders("abcdef", ""); !errors.Is(err, ErrMalformedTimestamp) {
		t.Fatalf("expected ErrMalformedTimestamp for missing timestamp, got %v", err)
	}
	if _, _, err := ParseHeaders("abcdef", "yesterday"); !errors.Is(err, ErrMalformedTimestamp) {
		t.Fatalf("expected ErrMalformedTimestamp for non-numeric timestamp, got %v", err)
	}
	if _, _, err := ParseHeaders("t=abc,v1=ff", ""); !errors.Is(err, ErrMalformedTimestamp) {
		t.Fatalf("expected ErrMalformedTimestamp for composite, got %v", err)
	}
}

func TestPlainHMAC(t *testing.T) {
	payload := []byte(`{"type":"payment"}`)
	sig := PlainHMAC(payload, "mp-secret")
	if !VerifyPlain(payload, sig, "mp-secret") {
		t.Fatal("expected plain hmac to verify")
	}
	if VerifyPlain(payload, sig, "other") {
		t.Fatal("expected plain hmac with other secret to fail")
	}
	if VerifyPlain(payload, "not-hex", "mp-secret") {
		t.Fatal("expected non-hex signature to fail")
	}
}

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := GenerateSecret()
	if !strings.HasPrefix(a, "whsec_") || len(a) != len("whsec_")+64 {
		t.Fatalf("unexpected secret format: %s", a)
	}
	if a == b {
		t.Fatal("expected distinct secrets")
	}
}

func TestHeaders(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	headers := Headers([]byte(`{}`), "secret", now)
	if headers[HeaderTimestamp] != "1700000000" {
		t.Fatalf("unexpected timestamp header: %s", headers[HeaderTimestamp])
	}
	if headers[HeaderSignature] != Sign([]byte(`{}`), "secret", now).Signature {
		t.Fatal("unexpected signature header")
	}
}
