package signing

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/oljc/arcoserve/pkg/constants"
	"github.com/oljc/arcoserve/pkg/errors"
)

// Credential is the long-lived signing identity shared with a client.
type Credential struct {
	AccessKeyID string
	SecretKey   string
}

// Envelope is the signature material extracted from request headers.
type Envelope struct {
	Date              string
	ShortDate         string
	Fingerprint       string
	Credential        string
	SignedHeaderNames string
	Signature         string
}

// Signer verifies inbound request signatures and produces outbound ones.
// It is stateless and safe for concurrent use; every call works on fresh
// hash instances.
type Signer struct {
	cred Credential
	// now is injectable for tests.
	now func() time.Time
}

// NewSigner creates a Signer for the given credential.
func NewSigner(cred Credential) *Signer {
	return &Signer{cred: cred, now: time.Now}
}

// WithClock overrides the signer's clock. Intended for tests.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	s.now = now
	return s
}

// Sign computes the signature for the request and returns the value of the
// Authorization header. The X-Date and X-Fingerprint headers must already be
// set on the request; body is the raw request body.
func (s *Signer) Sign(r *http.Request, body []byte) (string, error) {
	date := r.Header.Get(constants.HeaderDate)
	fingerprint := r.Header.Get(constants.HeaderFingerprint)
	if date == "" || fingerprint == "" {
		return "", errors.ErrSignatureMissing
	}
	if len(date) < 8 {
		return "", errors.ErrSignatureMalformed
	}

	canonical := BuildCanonicalRequest(r, body)
	signedHeaders := canonical.SignedHeaderNames
	credentialScope := s.credentialScope(date[:8], fingerprint)
	signature := s.computeSignature(date, fingerprint, credentialScope, canonical.String())

	return fmt.Sprintf("%s Credential=%s,SignedHeaders=%s,Signature=%s",
		constants.SignAlgorithm, credentialScope, signedHeaders, signature), nil
}

// Verify checks the request's signature envelope against the canonical form of
// the request. It is a pure function of request, credential and clock; failures
// come back as the typed signature errors.
func (s *Signer) Verify(r *http.Request, body []byte, maxAge time.Duration) error {
	env, err := ExtractEnvelope(r)
	if err != nil {
		return err
	}

	ts, parseErr := time.Parse(constants.SignDateFormat, env.Date)
	if parseErr != nil {
		return errors.ErrSignatureMalformed.WithCause(parseErr)
	}
	if s.now().UTC().After(ts.Add(maxAge)) {
		return errors.ErrSignatureExpired
	}

	canonical := BuildCanonicalRequest(r, body)
	credentialScope := s.credentialScope(env.ShortDate, env.Fingerprint)
	expected := s.computeSignature(env.Date, env.Fingerprint, credentialScope, canonical.String())

	if !equalConstTime(expected, env.Signature) {
		return errors.ErrSignatureMismatch
	}
	return nil
}

// ExtractEnvelope pulls the signature material out of the request headers.
// Missing headers yield SignatureMissing; a badly shaped Authorization header
// yields SignatureMalformed.
func ExtractEnvelope(r *http.Request) (*Envelope, error) {
	date := r.Header.Get(constants.HeaderDate)
	fingerprint := r.Header.Get(constants.HeaderFingerprint)
	auth := r.Header.Get(constants.HeaderAuthorization)

	if date == "" || fingerprint == "" || auth == "" {
		return nil, errors.ErrSignatureMissing
	}
	if len(date) < 8 {
		return nil, errors.ErrSignatureMalformed
	}

	rest, found := strings.CutPrefix(auth, constants.SignAlgorithm+" ")
	if !found {
		return nil, errors.ErrSignatureMalformed
	}

	env := &Envelope{Date: date, ShortDate: date[:8], Fingerprint: fingerprint}
	for _, part := range strings.Split(rest, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, errors.ErrSignatureMalformed
		}
		switch key {
		case "Credential":
			env.Credential = value
		case "SignedHeaders":
			env.SignedHeaderNames = value
		case "Signature":
			env.Signature = value
		}
	}
	if env.Credential == "" || env.Signature == "" {
		return nil, errors.ErrSignatureMalformed
	}
	return env, nil
}

// credentialScope renders accessKeyId/shortDate/fingerprint/scopeTag.
func (s *Signer) credentialScope(shortDate, fingerprint string) string {
	return strings.Join([]string{s.cred.AccessKeyID, shortDate, fingerprint, constants.SignScopeTag}, "/")
}

// computeSignature runs the scoped key chain. Each stage keys the next HMAC
// with the previous stage's hex output; this matches deployed clients, so the
// hex-string keying must not be "fixed" to raw bytes.
func (s *Signer) computeSignature(date, fingerprint, credentialScope, canonicalRequest string) string {
	stringToSign := strings.Join([]string{
		constants.SignAlgorithm,
		date,
		credentialScope,
		SHA256Hex([]byte(canonicalRequest)),
	}, "\n")

	kDate := HMACSHA256Hex(s.cred.SecretKey, date)
	kFingerprint := HMACSHA256Hex(kDate, fingerprint)
	kSigning := HMACSHA256Hex(kFingerprint, constants.SignScopeTag)
	return HMACSHA256Hex(kSigning, stringToSign)
}
