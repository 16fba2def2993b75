package signature_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/xraph/catcher/signature"
)

func TestSignKnownVector(t *testing.T) {
	payload := []byte(`{"c":"T1:orders","k":"evt_01h455vb4pex5vsknk084sn02q"}`)
	secret := "cursec_testsecret123"

	got := signature.NewSigner(secret).Sign(payload)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if got != expected {
		t.Errorf("Sign() = %q, want %q", got, expected)
	}
	if len(got) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(got))
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	signer := signature.NewSigner("cursec_roundtrip")
	payload := []byte(`{"c":"T1:orders","k":"evt_x"}`)

	sig := signer.Sign(payload)
	if !signer.Verify(payload, sig) {
		t.Error("Verify() returned false for valid signature")
	}
}

func TestVerifyTamperedPayload(t *testing.T) {
	signer := signature.NewSigner("cursec_tamper")
	sig := signer.Sign([]byte(`{"c":"T1:orders"}`))

	if signer.Verify([]byte(`{"c":"T2:orders"}`), sig) {
		t.Error("Verify() returned true for tampered payload")
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	payload := []byte(`{"data":"value"}`)
	sig := signature.Sign(payload, "cursec_correct")

	if signature.Verify(payload, "cursec_wrong", sig) {
		t.Error("Verify() returned true for wrong secret")
	}
}
