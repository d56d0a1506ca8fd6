package digest

import (
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strings"
)

const (
	schemeDigest = "Digest"

	qopAuth    = "auth"
	qopAuthInt = "auth-int"

	sessSuffix = "-SESS"
)

var algorithms = map[string]func() hash.Hash{
	"MD5":         md5.New,
	"SHA-256":     sha256.New,
	"SHA-512-256": sha512.New512_256,
}

var quoter = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// Challenge is one Digest challenge taken from a WWW-Authenticate header.
type Challenge struct {
	Realm  string
	Nonce  string
	Opaque string
	// QOP is the quality of protection selected from the offered list:
	// "auth", "auth-int", or empty when the server offered none.
	QOP string
	// Algorithm is the algorithm token as sent by the server. Empty means
	// MD5 and is omitted from the Authorization header.
	Algorithm string
	Stale     bool
}

// FindChallenge returns the first Digest challenge among the values of a
// WWW-Authenticate header.
func FindChallenge(values []string) (Challenge, error) {
	if len(values) == 0 {
		return Challenge{}, malformed("missing WWW-Authenticate header")
	}
	for _, v := range values {
		scheme, _ := splitScheme(v)
		if strings.EqualFold(scheme, schemeDigest) {
			return ParseChallenge(v)
		}
	}
	return Challenge{}, malformed("no Digest challenge in %q", strings.Join(values, ", "))
}

// ParseChallenge parses a single WWW-Authenticate value of the Digest scheme.
func ParseChallenge(header string) (Challenge, error) {
	scheme, rest := splitScheme(header)
	if !strings.EqualFold(scheme, schemeDigest) {
		return Challenge{}, malformed("scheme %q is not Digest", scheme)
	}

	params, err := parseParams(rest)
	if err != nil {
		return Challenge{}, malformed("parse challenge: %v", err)
	}

	realm, ok := params["realm"]
	if !ok {
		return Challenge{}, malformed("challenge has no realm")
	}
	nonce := params["nonce"]
	if nonce == "" {
		return Challenge{}, malformed("challenge has no nonce")
	}

	c := Challenge{
		Realm:     realm,
		Nonce:     nonce,
		Opaque:    params["opaque"],
		Algorithm: params["algorithm"],
		Stale:     strings.EqualFold(params["stale"], "true"),
	}

	if offered, ok := params["qop"]; ok {
		c.QOP = selectQOP(offered)
		if c.QOP == "" {
			return Challenge{}, unsupported("qop %q", offered)
		}
	}
	if _, err := c.hasher(); err != nil {
		return Challenge{}, &AuthError{Reason: ReasonUnsupportedChallenge, Err: err}
	}
	return c, nil
}

// Authorization computes the Authorization header value answering c for a
// request with the given method and request URI.
//
// cnonce is required when a qop was selected or the algorithm is a -sess
// variant. nc is the nonce count, rendered as eight hex digits.
func (c Challenge) Authorization(creds Credentials, method, uri, cnonce string, nc uint32) (string, error) {
	newHash, err := c.hasher()
	if err != nil {
		return "", err
	}
	sess := strings.HasSuffix(strings.ToUpper(c.Algorithm), sessSuffix)
	if (c.QOP != "" || sess) && cnonce == "" {
		return "", errors.New("digest: cnonce is required")
	}

	h := func(parts ...string) string {
		hh := newHash()
		hh.Write([]byte(strings.Join(parts, ":")))
		return hex.EncodeToString(hh.Sum(nil))
	}

	ha1 := h(creds.Username, c.Realm, creds.Password)
	if sess {
		ha1 = h(ha1, c.Nonce, cnonce)
	}

	ha2 := h(method, uri)
	if c.QOP == qopAuthInt {
		// GET carries no entity body.
		ha2 = h(method, uri, h(""))
	}

	count := fmt.Sprintf("%08x", nc)

	var response string
	if c.QOP != "" {
		response = h(ha1, c.Nonce, count, cnonce, c.QOP, ha2)
	} else {
		response = h(ha1, c.Nonce, ha2)
	}

	fields := []string{
		quoted("username", creds.Username),
		quoted("realm", c.Realm),
		quoted("nonce", c.Nonce),
		quoted("uri", uri),
	}
	if c.Algorithm != "" {
		fields = append(fields, "algorithm="+c.Algorithm)
	}
	fields = append(fields, quoted("response", response))
	if c.Opaque != "" {
		fields = append(fields, quoted("opaque", c.Opaque))
	}
	if c.QOP != "" {
		fields = append(fields, "qop="+c.QOP, "nc="+count, quoted("cnonce", cnonce))
	}

	return schemeDigest + " " + strings.Join(fields, ", "), nil
}

func (c Challenge) hasher() (func() hash.Hash, error) {
	if c.Algorithm == "" {
		return md5.New, nil
	}
	name := strings.TrimSuffix(strings.ToUpper(c.Algorithm), sessSuffix)
	newHash, ok := algorithms[name]
	if !ok {
		return nil, fmt.Errorf("digest: unsupported algorithm %q", c.Algorithm)
	}
	return newHash, nil
}

func selectQOP(offered string) string {
	var authInt bool
	for _, q := range strings.Split(offered, ",") {
		switch strings.ToLower(strings.TrimSpace(q)) {
		case qopAuth:
			return qopAuth
		case qopAuthInt:
			authInt = true
		}
	}
	if authInt {
		return qopAuthInt
	}
	return ""
}

func quoted(key, value string) string {
	return key + `="` + quoter.Replace(value) + `"`
}

func splitScheme(header string) (scheme, rest string) {
	header = strings.TrimSpace(header)
	i := strings.IndexAny(header, " \t")
	if i < 0 {
		return header, ""
	}
	return header[:i], header[i+1:]
}

// parseParams parses a comma separated list of auth-params. Keys are
// lower-cased; quoted values are unescaped.
func parseParams(s string) (map[string]string, error) {
	params := make(map[string]string)
	for {
		s = strings.TrimLeft(s, " \t,")
		if s == "" {
			return params, nil
		}

		eq := strings.IndexByte(s, '=')
		if eq <= 0 {
			return nil, fmt.Errorf("expected key=value at %q", s)
		}
		key := strings.ToLower(strings.TrimSpace(s[:eq]))
		s = strings.TrimLeft(s[eq+1:], " \t")

		if strings.HasPrefix(s, `"`) {
			var b strings.Builder
			i, closed := 1, false
			for ; i < len(s); i++ {
				ch := s[i]
				if ch == '\\' && i+1 < len(s) {
					i++
					b.WriteByte(s[i])
					continue
				}
				if ch == '"' {
					closed = true
					break
				}
				b.WriteByte(ch)
			}
			if !closed {
				return nil, fmt.Errorf("unterminated quoted value for %q", key)
			}
			params[key] = b.String()
			s = s[i+1:]
			continue
		}

		end := strings.IndexByte(s, ',')
		if end < 0 {
			end = len(s)
		}
		params[key] = strings.TrimSpace(s[:end])
		s = s[end:]
	}
}
