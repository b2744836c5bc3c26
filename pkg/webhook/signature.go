package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderTimestamp = "X-Webhook-Timestamp"
	HeaderID        = "X-Webhook-ID"
)

// SignatureHeaders carries a payload signature.
type SignatureHeaders struct {
	Signature string
	Timestamp int64
	ID        string
}

func (s SignatureHeaders) Headers() map[string]string {
	return map[string]string{
		HeaderSignature: s.Signature,
		HeaderTimestamp: strconv.FormatInt(s.Timestamp, 10),
		HeaderID:        s.ID,
	}
}

// SignPayload signs HMAC-SHA256(secret, "<unix timestamp>.<payload>").
func SignPayload(secret string, payload []byte) (SignatureHeaders, error) {
	if secret == "" {
		return SignatureHeaders{}, fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}
	ts := time.Now().Unix()
	return SignatureHeaders{
		Signature: sign(secret, ts, payload),
		Timestamp: ts,
		ID:        uuid.NewString(),
	}, nil
}

// VerifyRequest checks the signature headers of r against payload.
// Signatures older than maxAge (when positive) are rejected.
func VerifyRequest(secret string, payload []byte, h http.Header, maxAge time.Duration) error {
	if secret == "" {
		return fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}
	got := h.Get(HeaderSignature)
	ts, err := strconv.ParseInt(h.Get(HeaderTimestamp), 10, 64)
	if got == "" || err != nil {
		return ErrInvalidSignature
	}
	if maxAge > 0 {
		age := time.Since(time.Unix(ts, 0))
		if age > maxAge || age < -time.Minute {
			return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
		}
	}
	if !hmac.Equal([]byte(sign(secret, ts, payload)), []byte(got)) {
		return ErrInvalidSignature
	}
	return nil
}

func sign(secret string, ts int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = fmt.Fprintf(mac, "%d.%s", ts, payload)
	return hex.EncodeToString(mac.Sum(nil))
}
