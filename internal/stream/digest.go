package stream

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"virtual-camera/internal/logger"
	"virtual-camera/internal/metrics"
)

// DefaultRealm is the authentication realm presented in challenges.
const DefaultRealm = "Virtual Security Camera"

// DigestAuth gates routes behind HTTP Digest authentication (RFC 2617,
// MD5). It is layered in only when explicitly enabled; the server runs
// unauthenticated by default. Nonces are random per challenge and not
// replay-tracked.
type DigestAuth struct {
	Username string
	Password string
	Realm    string
}

// NewDigestAuth returns an auth gate for one credential pair.
func NewDigestAuth(username, password string) *DigestAuth {
	return &DigestAuth{
		Username: username,
		Password: password,
		Realm:    DefaultRealm,
	}
}

// Middleware wraps a handler with a digest challenge.
func (a *DigestAuth) Middleware(m *metrics.Metrics, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.authorize(r) {
			next(w, r)
			return
		}

		if m != nil {
			m.AuthFailures.Add(1)
		}
		logger.Debug("Auth", "%s - unauthorized %s %s", r.RemoteAddr, r.Method, r.URL.Path)
		w.Header().Set("WWW-Authenticate",
			fmt.Sprintf(`Digest realm=%q, nonce=%q, qop="auth"`, a.Realm, newNonce()))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}
}

func (a *DigestAuth) authorize(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Digest ") {
		return false
	}

	params := parseDigestParams(strings.TrimPrefix(header, "Digest "))
	username := params["username"]
	nonce := params["nonce"]
	uri := params["uri"]
	response := params["response"]
	if username == "" || nonce == "" || uri == "" || response == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(username), []byte(a.Username)) != 1 {
		return false
	}

	expected := a.Response(r.Method, uri, nonce, params["qop"], params["nc"], params["cnonce"])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(response)) == 1
}

// Response computes the expected digest response for a request. With
// qop empty the qop-less form is used; otherwise qop, nc and cnonce
// join the hash input.
func (a *DigestAuth) Response(method, uri, nonce, qop, nc, cnonce string) string {
	ha1 := md5hex(a.Username + ":" + a.Realm + ":" + a.Password)
	ha2 := md5hex(method + ":" + uri)
	if qop == "" {
		return md5hex(ha1 + ":" + nonce + ":" + ha2)
	}
	return md5hex(strings.Join([]string{ha1, nonce, nc, cnonce, qop, ha2}, ":"))
}

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func newNonce() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// parseDigestParams splits `k="v", k2=v2` pairs, honoring quotes.
func parseDigestParams(s string) map[string]string {
	params := make(map[string]string)
	for len(s) > 0 {
		eq := strings.IndexByte(s, '=')
		if eq < 0 {
			break
		}
		key := strings.TrimSpace(s[:eq])
		s = s[eq+1:]

		var value string
		if strings.HasPrefix(s, `"`) {
			end := strings.IndexByte(s[1:], '"')
			if end < 0 {
				break
			}
			value = s[1 : end+1]
			s = s[end+2:]
		} else if comma := strings.IndexByte(s, ','); comma >= 0 {
			value = strings.TrimSpace(s[:comma])
			s = s[comma:]
		} else {
			value = strings.TrimSpace(s)
			s = ""
		}
		params[key] = value

		s = strings.TrimPrefix(strings.TrimSpace(s), ",")
		s = strings.TrimSpace(s)
	}
	return params
}
