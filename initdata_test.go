package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"
)

const testBotToken = "123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11"

// Known-answer fixture: digest precomputed for testBotToken over the sorted
// check-string "auth_date=...\nquery_id=...\nuser=...".
const knownGoodInitData = "query_id=AAHdF6IQAAAAAN0XohDhrOrc" +
	"&user=%7B%22id%22%3A279058397%2C%22first_name%22%3A%22Vladislav%22%2C%22last_name%22%3A%22Kibenko%22%2C%22username%22%3A%22vdkfrost%22%2C%22language_code%22%3A%22ru%22%2C%22is_premium%22%3Atrue%7D" +
	"&auth_date=1700000000" +
	"&hash=e9bb4bff463b1c1fbe537e8afd266631013c5bf676f1afbbbf0b1cdfbdd842a1"

// signInitData builds a signed payload from scratch using the same two-level
// keyed-hash chain the verifier checks, so tests can mint fresh payloads for
// arbitrary field sets.
func signInitData(t *testing.T, botToken string, fields map[string]string) string {
	t.Helper()

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+fields[k])
	}

	secret := hmac.New(sha256.New, []byte(botToken))
	secret.Write([]byte(initDataKeyContext))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))

	q := url.Values{}
	for k, v := range fields {
		q.Set(k, v)
	}
	q.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return q.Encode()
}

func TestVerifyKnownAnswer(t *testing.T) {
	v := InitDataVerifier{BotToken: testBotToken}
	if !v.Verify(knownGoodInitData) {
		t.Fatal("expected precomputed payload to verify")
	}
}

func TestVerifySignedPayload(t *testing.T) {
	v := InitDataVerifier{BotToken: testBotToken}
	raw := signInitData(t, testBotToken, map[string]string{
		"auth_date": "1699999999",
		"user":      `{"id":42,"first_name":"Ada"}`,
	})
	if !v.Verify(raw) {
		t.Fatalf("expected signed payload to verify: %s", raw)
	}
}

func TestVerifyRejections(t *testing.T) {
	v := InitDataVerifier{BotToken: testBotToken}

	tamperedHash := strings.TrimSuffix(knownGoodInitData, "1") + "2"
	tamperedField := strings.Replace(knownGoodInitData, "auth_date=1700000000", "auth_date=1700000001", 1)
	extraField := knownGoodInitData + "&premium_bonus=9999"

	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty payload", raw: ""},
		{name: "no hash field", raw: "auth_date=1700000000&user=x"},
		{name: "tampered hash", raw: tamperedHash},
		{name: "tampered field", raw: tamperedField},
		{name: "extra field not covered by hash", raw: extraField},
		{name: "malformed percent encoding", raw: "user=%zz&hash=abcd"},
		{name: "garbage hash", raw: "auth_date=1700000000&hash=nothex"},
		{name: "wrong token", raw: signInitData(t, "other-token", map[string]string{"auth_date": "1"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if v.Verify(tt.raw) {
				t.Fatalf("expected verification to fail for %q", tt.raw)
			}
		})
	}
}

func TestVerifyDuplicateKeysLastWins(t *testing.T) {
	v := InitDataVerifier{BotToken: testBotToken}

	// The digest covers auth_date=1700000000; a decoy first occurrence must
	// be ignored, and a decoy last occurrence must break verification.
	decoyFirst := "auth_date=1&" + knownGoodInitData
	if !v.Verify(decoyFirst) {
		t.Fatal("expected last occurrence of a duplicate key to win")
	}

	decoyLast := knownGoodInitData + "&auth_date=1"
	if v.Verify(decoyLast) {
		t.Fatal("expected trailing duplicate to change the check-string and fail")
	}
}

func TestVerifyUnconfiguredTokenBypass(t *testing.T) {
	v := InitDataVerifier{BotToken: ""}

	for _, raw := range []string{"", "garbage", knownGoodInitData} {
		if !v.Verify(raw) {
			t.Fatalf("expected bypass to accept %q", raw)
		}
	}
}

func TestVerifyMaxAge(t *testing.T) {
	authDate := time.Unix(1700000000, 0)
	now := authDate.Add(1 * time.Hour)

	fresh := InitDataVerifier{
		BotToken: testBotToken,
		MaxAge:   24 * time.Hour,
		now:      func() time.Time { return now },
	}
	if !fresh.Verify(knownGoodInitData) {
		t.Fatal("expected payload within max age to verify")
	}

	stale := InitDataVerifier{
		BotToken: testBotToken,
		MaxAge:   30 * time.Minute,
		now:      func() time.Time { return now },
	}
	if stale.Verify(knownGoodInitData) {
		t.Fatal("expected payload older than max age to fail")
	}
}
