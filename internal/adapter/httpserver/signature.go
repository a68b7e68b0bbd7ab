package httpserver

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// verifySignature checks a GitHub X-Hub-Signature-256 header against the
// HMAC-SHA256 digest of the request body. Comparison is constant-time.
func verifySignature(secret, body []byte, header string) error {
	if header == "" {
		return errors.New("missing X-Hub-Signature-256 header")
	}

	hexDigest, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return errors.New("malformed signature header")
	}

	got, err := hex.DecodeString(hexDigest)
	if err != nil {
		return errors.New("malformed signature header")
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(body)

	if !hmac.Equal(got, mac.Sum(nil)) {
		return errors.New("signature mismatch")
	}

	return nil
}
