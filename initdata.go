package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// initDataKeyContext is the domain-separation constant the platform uses when
// deriving the verification key from the bot token. It is part of the wire
// protocol and must not change.
const initDataKeyContext = "WebAppData"

// InitDataVerifier checks that a mini-app launch payload was signed by the
// platform with the bot token. An empty BotToken disables verification
// entirely; that mode exists for local development only and is warned about
// on every call.
type InitDataVerifier struct {
	BotToken string

	// MaxAge, when positive, rejects payloads whose auth_date is older than
	// this. Zero disables the freshness check.
	MaxAge time.Duration

	// now is overridable in tests; nil means time.Now.
	now func() time.Time
}

// Verify reports whether raw is an authentic init data payload. All failure
// modes (empty payload, missing hash, malformed encoding, digest mismatch,
// stale auth_date) report false; Verify never returns an error.
func (v InitDataVerifier) Verify(raw string) bool {
	if v.BotToken == "" {
		log.Println("⚠️  BOT_TOKEN not set; accepting UNVERIFIED init data")
		return true
	}
	if raw == "" {
		return false
	}

	values, err := url.ParseQuery(raw)
	if err != nil {
		return false
	}

	hashValues, ok := values["hash"]
	if !ok || len(hashValues) == 0 {
		return false
	}
	gotHash := hashValues[len(hashValues)-1]
	delete(values, "hash")

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		vs := values[k]
		// Duplicate keys: last occurrence wins.
		lines = append(lines, k+"="+vs[len(vs)-1])
	}
	checkString := strings.Join(lines, "\n")

	secret := hmac.New(sha256.New, []byte(v.BotToken))
	secret.Write([]byte(initDataKeyContext))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(checkString))
	wantHash := hex.EncodeToString(mac.Sum(nil))

	if subtle.ConstantTimeCompare([]byte(wantHash), []byte(gotHash)) != 1 {
		return false
	}

	if v.MaxAge > 0 {
		if authDates, ok := values["auth_date"]; ok && len(authDates) > 0 {
			unix, err := strconv.ParseInt(authDates[len(authDates)-1], 10, 64)
			if err != nil {
				return false
			}
			now := time.Now()
			if v.now != nil {
				now = v.now()
			}
			if now.Sub(time.Unix(unix, 0)) > v.MaxAge {
				return false
			}
		}
	}

	return true
}
