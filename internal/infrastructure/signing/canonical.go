package signing

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// CanonicalRequest is the deterministic representation of an HTTP request used
// as the HMAC input. It is derived per request and discarded after verification.
type CanonicalRequest struct {
	Method            string
	Path              string
	CanonicalQuery    string
	CanonicalHeaders  string
	SignedHeaderNames string
	BodyHash          string
}

// String renders the canonical request in wire order. Field order and the
// single-newline separators are part of the contract; any change breaks interop
// with deployed clients.
func (c *CanonicalRequest) String() string {
	return strings.Join([]string{
		c.Method,
		c.Path,
		c.CanonicalQuery,
		c.CanonicalHeaders,
		c.SignedHeaderNames,
		c.BodyHash,
	}, "\n")
}

// ignoredHeaders lists transport and negotiation headers excluded from signing.
// Lowercase; the sec-* family is matched by prefix.
var ignoredHeaders = map[string]struct{}{
	"authorization":   {},
	"content-type":    {},
	"content-length":  {},
	"user-agent":      {},
	"host":            {},
	"connection":      {},
	"cache-control":   {},
	"accept-encoding": {},
	"accept-language": {},
	"origin":          {},
	"referer":         {},
	"pragma":          {},
	"expect":          {},
}

func isIgnoredHeader(name string) bool {
	if strings.HasPrefix(name, "sec-") {
		return true
	}
	_, ok := ignoredHeaders[name]
	return ok
}

// BuildCanonicalRequest derives the canonical form of the request. The body is
// passed separately so the caller can restore it for downstream handlers.
func BuildCanonicalRequest(r *http.Request, body []byte) *CanonicalRequest {
	path := r.URL.Path
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	signedNames, canonicalHeaders := canonicalizeHeaders(r.Header)

	return &CanonicalRequest{
		Method:            strings.ToUpper(r.Method),
		Path:              path,
		CanonicalQuery:    CanonicalQuery(r.URL.Query()),
		CanonicalHeaders:  canonicalHeaders,
		SignedHeaderNames: signedNames,
		BodyHash:          HashBody(r.Header.Get("Content-Type"), body),
	}
}

// CanonicalQuery renders query parameters as sorted escaped key=value pairs
// joined by '&'. Multi-valued keys produce one pair per value. An empty query
// yields the empty string.
func CanonicalQuery(params url.Values) string {
	if len(params) == 0 {
		return ""
	}

	pairs := make([]string, 0, len(params))
	for key, values := range params {
		escapedKey := uriEscape(key)
		if len(values) == 0 {
			pairs = append(pairs, escapedKey+"=")
			continue
		}
		for _, v := range values {
			pairs = append(pairs, escapedKey+"="+uriEscape(v))
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return comparePair(pairs[i], pairs[j]) < 0
	})
	return strings.Join(pairs, "&")
}

// comparePair orders key=value strings by key first, then value.
func comparePair(a, b string) int {
	ak, av, _ := strings.Cut(a, "=")
	bk, bv, _ := strings.Cut(b, "=")
	if c := strings.Compare(ak, bk); c != 0 {
		return c
	}
	return strings.Compare(av, bv)
}

func canonicalizeHeaders(header http.Header) (signedNames, canonical string) {
	names := make([]string, 0, len(header))
	for name := range header {
		lower := strings.ToLower(name)
		if isIgnoredHeader(lower) {
			continue
		}
		if header.Get(name) == "" {
			continue
		}
		names = append(names, lower)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, name+":"+normalizeHeaderValue(header.Get(name)))
	}
	return strings.Join(names, ";"), strings.Join(lines, "\n")
}

// normalizeHeaderValue trims the value and collapses internal whitespace runs
// to a single space.
func normalizeHeaderValue(v string) string {
	return strings.Join(strings.Fields(v), " ")
}

// HashBody hashes the request body after content-type aware normalization.
// JSON bodies are re-serialized with recursively sorted object keys, so client
// and server key order never matters. Form bodies are decoded and re-encoded
// under the canonical query rules. Everything else hashes raw.
func HashBody(contentType string, body []byte) string {
	if len(body) == 0 {
		return SHA256Hex(nil)
	}

	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "application/x-www-form-urlencoded"):
		return hashFormBody(string(body))
	case strings.Contains(ct, "application/json"):
		return hashJSONBody(body)
	default:
		return SHA256Hex(body)
	}
}

func hashFormBody(form string) string {
	if strings.TrimSpace(form) == "" {
		return SHA256Hex(nil)
	}

	var pairs []string
	for _, part := range strings.Split(form, "&") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		if decoded, err := url.QueryUnescape(key); err == nil {
			key = decoded
		}
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		pairs = append(pairs, uriEscape(key)+"="+uriEscape(value))
	}
	sort.Strings(pairs)
	return SHA256Hex([]byte(strings.Join(pairs, "&")))
}

func hashJSONBody(body []byte) string {
	normalized, err := stableJSON(body)
	if err != nil {
		// Not actually JSON despite the content type; hash as-is.
		return SHA256Hex(body)
	}
	return SHA256Hex(normalized)
}

// stableJSON re-serializes a JSON document with object keys in sorted order at
// every nesting level. Numbers keep their original text via json.Number, and
// HTML escaping is disabled to stay byte-compatible with clients.
func stableJSON(body []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	// Encoder appends a newline that is not part of the document.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

const hexDigits = "0123456789abcdef"

// uriEscape percent-encodes everything outside the unreserved set
// {A-Z a-z 0-9 - _ . ~}, emitting %20 for space and lowercase hex otherwise.
func uriEscape(s string) string {
	var buf strings.Builder
	buf.Grow(len(s))
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch {
		case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9',
			b == '-', b == '_', b == '.', b == '~':
			buf.WriteByte(b)
		default:
			buf.WriteByte('%')
			buf.WriteByte(hexDigits[b>>4])
			buf.WriteByte(hexDigits[b&0x0f])
		}
	}
	return buf.String()
}
