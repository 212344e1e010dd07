//go:build !integration

package security

import (
	"errors"
	"strings"
	"testing"
)

func TestSealOpen(t *testing.T) {
	svc, err := NewEncryptionService("frase secreta")
	if err != nil {
		t.Fatal(err)
	}

	t.Run("round trip with fresh nonces", func(t *testing.T) {
		a, err := svc.Seal("¿Cuánto cuesta el envío?")
		if err != nil {
			t.Fatal(err)
		}
		b, _ := svc.Seal("¿Cuánto cuesta el envío?")
		if a == b {
			t.Fatal("two seals of the same text must differ")
		}
		if !strings.HasPrefix(a, sealedPrefix) || strings.Contains(a, "envío") {
			t.Fatalf("unexpected sealed form %q", a)
		}
		got, err := svc.Open(a)
		if err != nil || got != "¿Cuánto cuesta el envío?" {
			t.Fatalf("Open = %q, %v", got, err)
		}
	})

	t.Run("plaintext rows pass through", func(t *testing.T) {
		got, err := svc.Open("hola")
		if err != nil || got != "hola" {
			t.Fatalf("Open = %q, %v", got, err)
		}
	})

	t.Run("wrong key fails", func(t *testing.T) {
		sealed, _ := svc.Seal("hola")
		other, _ := NewEncryptionService("otra frase")
		if _, err := other.Open(sealed); err == nil {
			t.Fatal("expected an authentication failure")
		}
	})

	t.Run("corrupt input", func(t *testing.T) {
		for _, in := range []string{sealedPrefix + "!!!", sealedPrefix + "AAAA"} {
			if _, err := svc.Open(in); err == nil {
				t.Errorf("Open(%q) should fail", in)
			}
		}
	})
}

func TestEmptyKey(t *testing.T) {
	if _, err := NewEncryptionService(""); !errors.Is(err, ErrEmptyKey) {
		t.Fatalf("err = %v", err)
	}
}
