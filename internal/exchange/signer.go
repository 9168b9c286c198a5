package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"strings"
	"time"

	"notitrade/internal/config"
	"notitrade/internal/exception"
)

const (
	signatureMethod  = "HmacSHA256"
	signatureVersion = "2"
	timestampLayout  = "2006-01-02T15:04:05"
)

// SigningError reports credentials or parameters that cannot be signed.
type SigningError struct {
	Reason string
}

func (e *SigningError) Error() string {
	return "cannot sign request: " + e.Reason
}

func (e *SigningError) Unwrap() error {
	return exception.ErrSigning
}

// CanonicalQuery URL-encodes params sorted by key.
func CanonicalQuery(params map[string]string) string {
	values := make(url.Values, len(params))
	for k, v := range params {
		values.Set(k, v)
	}
	return values.Encode()
}

// Signature computes base64(HMAC-SHA256(secret, method\nhost\npath\nquery)).
// host is lowercased; every other part is used as given.
func Signature(secret string, params map[string]string, method, host, path string) string {
	payload := strings.Join([]string{
		method,
		strings.ToLower(host),
		path,
		CanonicalQuery(params),
	}, "\n")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Signer signs requests with a fixed set of credentials.
type Signer struct {
	creds config.Credentials
	now   func() time.Time
}

func NewSigner(creds config.Credentials) *Signer {
	return &Signer{creds: creds, now: time.Now}
}

func (s *Signer) Sign(params map[string]string, method, host, path string) (string, error) {
	if s.creds.Secret() == "" {
		return "", &SigningError{Reason: "secret key is empty"}
	}
	if method == "" || host == "" || path == "" {
		return "", &SigningError{Reason: "method, host and path are required"}
	}
	return Signature(s.creds.Secret(), params, method, host, path), nil
}

// AuthParams returns the parameters every authenticated call signs,
// stamped with the current UTC time.
func (s *Signer) AuthParams() (map[string]string, error) {
	if s.creds.Key() == "" {
		return nil, &SigningError{Reason: "api key is empty"}
	}
	return map[string]string{
		"AccessKeyId":      s.creds.Key(),
		"SignatureMethod":  signatureMethod,
		"SignatureVersion": signatureVersion,
		"Timestamp":        s.now().UTC().Format(timestampLayout),
	}, nil
}

// SignedQuery returns the auth params plus their Signature as url.Values.
func (s *Signer) SignedQuery(method, host, path string) (url.Values, error) {
	params, err := s.AuthParams()
	if err != nil {
		return nil, err
	}

	signature, err := s.Sign(params, method, host, path)
	if err != nil {
		return nil, err
	}

	query := make(url.Values, len(params)+1)
	for k, v := range params {
		query.Set(k, v)
	}
	query.Set("Signature", signature)
	return query, nil
}
