package currency

import (
	"errors"
	"testing"
)

func TestValidateKnownCode(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Validate("usd"); err != nil {
		t.Fatalf("lowercase known code should validate: %v", err)
	}
	if err := reg.Validate(" BTC "); err != nil {
		t.Fatalf("padded known code should validate: %v", err)
	}
}

func TestValidateUnknownCode(t *testing.T) {
	reg := NewRegistry()
	err := reg.Validate("XXX")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown code should report ErrNotFound, got %v", err)
	}
}

func TestValidateMalformedCode(t *testing.T) {
	reg := NewRegistry()
	for _, code := range []string{"", "U", "TOOLONGG", "US D", "us1"} {
		if err := reg.Validate(code); err == nil {
			t.Fatalf("code %q should be rejected", code)
		}
	}
}

func TestGetAndDisplay(t *testing.T) {
	reg := NewRegistry()

	usd, err := reg.Get("USD")
	if err != nil {
		t.Fatalf("get USD: %v", err)
	}
	if usd.Kind != KindFiat {
		t.Fatalf("USD should be fiat, got %s", usd.Kind)
	}
	if usd.DisplayInfo() == "" {
		t.Fatal("display info should not be empty")
	}

	btc, err := reg.Get("btc")
	if err != nil {
		t.Fatalf("get btc: %v", err)
	}
	if btc.Kind != KindCrypto {
		t.Fatalf("BTC should be crypto, got %s", btc.Kind)
	}
}

func TestCodesSorted(t *testing.T) {
	codes := NewRegistry().Codes()
	if len(codes) == 0 {
		t.Fatal("registry should not be empty")
	}
	for i := 1; i < len(codes); i++ {
		if codes[i-1] >= codes[i] {
			t.Fatalf("codes not sorted: %v", codes)
		}
	}
}
