// Package sessioncode turns a session id plus an opaque connection
// description into the single string two players copy-paste to each other.
package sessioncode

import (
	"bytes"
	"compress/flate"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"io"
	"strings"
)

// Alphabet is the 32-symbol set session ids draw from: digits 2-9 and the
// uppercase letters minus the 0/O and 1/I confusables. Exactly 32 symbols,
// so a random byte mod 32 is a perfectly uniform draw.
const Alphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// idLength is fixed; the code format is "<id>:<payload>".
const idLength = 6

const fragmentKey = "#join="

type Role string

const (
	RoleOffer  Role = "offer"
	RoleAnswer Role = "answer"
)

// Code is a decoded session code.
type Code struct {
	ID          string
	Role        Role
	Description []byte
}

// payload is the compressed half of the code. The description stays an
// uninterpreted blob; only the transport layer knows what's inside.
type payload struct {
	Role        Role   `json:"role"`
	Description []byte `json:"description"`
}

// GenerateID draws 6 independent uniform symbols from Alphabet. crypto/rand
// keeps the draw unbiased; the id is a human label, not a secret.
func GenerateID() string {
	buf := make([]byte, idLength)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		panic("sessioncode: crypto/rand unavailable: " + err.Error())
	}
	id := make([]byte, idLength)
	for i, b := range buf {
		id[i] = Alphabet[int(b)%32]
	}
	return string(id)
}

// ValidID reports whether s is exactly 6 characters of the alphabet.
func ValidID(s string) bool {
	if len(s) != idLength {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune(Alphabet, r) {
			return false
		}
	}
	return true
}

// Encode binds id, role and description into one copyable string. The
// description is deflated before base64 purely to shorten the paste.
func Encode(id string, role Role, description []byte) (string, bool) {
	if !ValidID(id) || len(description) == 0 {
		return "", false
	}
	if role != RoleOffer && role != RoleAnswer {
		return "", false
	}

	body, err := json.Marshal(payload{Role: role, Description: description})
	if err != nil {
		return "", false
	}

	var compressed bytes.Buffer
	w, err := flate.NewWriter(&compressed, flate.BestCompression)
	if err != nil {
		return "", false
	}
	if _, err := w.Write(body); err != nil {
		return "", false
	}
	if err := w.Close(); err != nil {
		return "", false
	}

	return id + ":" + base64.RawURLEncoding.EncodeToString(compressed.Bytes()), true
}

// Decode is the inverse of Encode. Every malformed input path returns
// ok=false so the caller can show a recoverable error instead of crashing.
func Decode(code string) (Code, bool) {
	id, blob, found := strings.Cut(strings.TrimSpace(code), ":")
	if !found || !ValidID(id) || blob == "" {
		return Code{}, false
	}

	compressed, err := base64.RawURLEncoding.DecodeString(blob)
	if err != nil {
		return Code{}, false
	}

	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()
	body, err := io.ReadAll(r)
	if err != nil {
		return Code{}, false
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Code{}, false
	}
	if (p.Role != RoleOffer && p.Role != RoleAnswer) || len(p.Description) == 0 {
		return Code{}, false
	}

	return Code{ID: id, Role: p.Role, Description: p.Description}, true
}

// ExtractFromURL pulls a session code out of a shareable link fragment
// ("...#join=<code>"). Pure string transform; no network state involved.
func ExtractFromURL(url string) (string, bool) {
	i := strings.LastIndex(url, fragmentKey)
	if i < 0 {
		return "", false
	}
	code := url[i+len(fragmentKey):]
	if code == "" {
		return "", false
	}
	return code, true
}

// WithJoinCode writes a session code into a link's fragment, replacing any
// fragment already present.
func WithJoinCode(url, code string) string {
	if i := strings.IndexByte(url, '#'); i >= 0 {
		url = url[:i]
	}
	return url + fragmentKey + code
}
