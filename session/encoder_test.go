package session

import (
	"errors"
	"testing"
	"time"
)

func TestEncodeDecode(t *testing.T) {
	now := time.UnixMilli(time.Now().UnixMilli())
	in := &Session{CreatedAt: now, ExpiresAt: now.Add(time.Hour), IPAddress: "::1", UserAgent: "ua"}
	value, err := Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := Decode(value)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.ExpiresAt.Equal(in.ExpiresAt) || !out.CreatedAt.Equal(in.CreatedAt) || out.IPAddress != "::1" {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestDecodeRejectsCorruptValues(t *testing.T) {
	for _, v := range []string{"", "nopipe", "abc|{}", "123|not-json", `123|{"v":1,"e":456}`, `123|{"v":9,"e":123}`} {
		if _, err := Decode(v); !errors.Is(err, ErrCorruptSession) {
			t.Fatalf("%q: expected ErrCorruptSession, got %v", v, err)
		}
	}
}

func FuzzDecode(f *testing.F) {
	f.Add("1700000000000|{\"v\":1,\"c\":1,\"e\":1700000000000}")
	f.Add("|")
	f.Fuzz(func(t *testing.T, input string) {
		s, err := Decode(input)
		if err == nil && s == nil {
			t.Fatal("nil session without error")
		}
	})
}
