package sessioncode

import (
	"bytes"
	"strings"
	"testing"
)

func TestGenerateID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		id := GenerateID()
		if len(id) != 6 {
			t.Fatalf("want 6 characters, got %q", id)
		}
		for _, r := range id {
			if !strings.ContainsRune(Alphabet, r) {
				t.Fatalf("id %q contains %q outside the alphabet", id, r)
			}
		}
		seen[id] = true
	}
	// 200 draws from 32^6 colliding down to a handful would mean the RNG
	// is broken, not unlucky.
	if len(seen) < 190 {
		t.Fatalf("expected mostly distinct ids, got %d distinct of 200", len(seen))
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	desc := []byte(`{"type":"offer","sdp":"v=0\r\no=- 4611731400430051336 2 IN IP4 127.0.0.1\r\n"}`)

	for _, role := range []Role{RoleOffer, RoleAnswer} {
		code, ok := Encode("A3K9PW", role, desc)
		if !ok {
			t.Fatalf("encode failed for role %q", role)
		}
		if !strings.HasPrefix(code, "A3K9PW:") {
			t.Fatalf("code missing id prefix: %q", code)
		}

		decoded, ok := Decode(code)
		if !ok {
			t.Fatalf("decode failed for %q", code)
		}
		if decoded.ID != "A3K9PW" || decoded.Role != role {
			t.Fatalf("want (A3K9PW, %s), got (%s, %s)", role, decoded.ID, decoded.Role)
		}
		if !bytes.Equal(decoded.Description, desc) {
			t.Fatalf("description mangled: %q", decoded.Description)
		}
	}
}

func TestEncodeRejectsBadInputs(t *testing.T) {
	desc := []byte("blob")
	if _, ok := Encode("short", RoleOffer, desc); ok {
		t.Fatal("accepted short id")
	}
	if _, ok := Encode("A3K9P0", RoleOffer, desc); ok {
		t.Fatal("accepted id with 0 outside the alphabet")
	}
	if _, ok := Encode("A3K9PW", Role("spectator"), desc); ok {
		t.Fatal("accepted unknown role")
	}
	if _, ok := Encode("A3K9PW", RoleOffer, nil); ok {
		t.Fatal("accepted empty description")
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		code string
	}{
		{name: "empty", code: ""},
		{name: "no delimiter", code: "A3K9PW"},
		{name: "id too short", code: "A3K:abcd"},
		{name: "id outside alphabet", code: "A3K9P1:abcd"},
		{name: "payload not base64", code: "A3K9PW:!!!"},
		{name: "payload not deflate", code: "A3K9PW:aGVsbG8"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got, ok := Decode(tc.code); ok {
				t.Fatalf("expected invalid, got %+v", got)
			}
		})
	}
}

func TestURLFragmentHelpers(t *testing.T) {
	desc := []byte("blob")
	code, ok := Encode("A3K9PW", RoleOffer, desc)
	if !ok {
		t.Fatal("encode failed")
	}

	url := WithJoinCode("https://example.com/play#old", code)
	if !strings.HasPrefix(url, "https://example.com/play#join=") {
		t.Fatalf("unexpected url: %q", url)
	}

	got, ok := ExtractFromURL(url)
	if !ok || got != code {
		t.Fatalf("want %q, got %q (ok=%v)", code, got, ok)
	}

	if _, ok := ExtractFromURL("https://example.com/play"); ok {
		t.Fatal("extracted code from url without fragment")
	}
	if _, ok := ExtractFromURL("https://example.com/play#join="); ok {
		t.Fatal("extracted empty code")
	}
}
