package billing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82/webhook"
)

var (
	// ErrSignatureMissing is returned when the signature header is absent or
	// the deployment has no webhook secret configured.
	ErrSignatureMissing = errors.New("billing: missing webhook signature")
	// ErrVerificationFailed is returned when the signature does not match the
	// payload under the provider's signing scheme.
	ErrVerificationFailed = errors.New("billing: webhook signature verification failed")
)

// Verifier authenticates inbound webhook payloads against the shared secret
// before any event reaches the reducer. Forged or tampered payloads must not
// be able to grant Pro status.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: strings.TrimSpace(secret)}
}

// Verify checks the signature header against the raw payload and decodes the
// event envelope. It performs no I/O and touches no state.
func (v *Verifier) Verify(payload []byte, signatureHeader string) (Event, error) {
	if strings.TrimSpace(signatureHeader) == "" || v.secret == "" {
		return Event{}, ErrSignatureMissing
	}

	ev, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	return DecodeEvent(&ev)
}
