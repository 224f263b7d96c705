package webhook

import (
	"strings"
	"testing"
)

func TestSignAndValidate(t *testing.T) {
	body := []byte(`{"action":"labeled"}`)
	secret := []byte("s3cret")

	sig := Sign(body, secret)
	if !strings.HasPrefix(sig, "sha256=") {
		t.Fatalf("Sign = %q, want sha256= prefix", sig)
	}
	if err := ValidateSignature(sig, body, secret); err != nil {
		t.Errorf("ValidateSignature: %v", err)
	}
}

func TestValidateSignatureRejects(t *testing.T) {
	body := []byte("payload")
	secret := []byte("s3cret")
	sig := Sign(body, secret)

	tests := []struct {
		name      string
		signature string
		body      []byte
		secret    []byte
	}{
		{"wrong secret", sig, body, []byte("other")},
		{"tampered body", sig, []byte("payload2"), secret},
		{"missing prefix", strings.TrimPrefix(sig, "sha256="), body, secret},
		{"not hex", "sha256=zzzz", body, secret},
		{"empty", "", body, secret},
	}
	for _, tt := range tests {
		if err := ValidateSignature(tt.signature, tt.body, tt.secret); err == nil {
			t.Errorf("%s: validation should fail", tt.name)
		}
	}
}
