package push

import (
	"encoding/base64"
	"encoding/json"
	"testing"
)

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	// Public key is a base64url-encoded uncompressed P-256 point.
	pubBytes, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(pubBytes) != 65 {
		t.Errorf("public key length = %d, want 65", len(pubBytes))
	}

	// Private key is a base64url-encoded P-256 scalar.
	privBytes, err := base64.RawURLEncoding.DecodeString(priv)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	if len(privBytes) != 32 {
		t.Errorf("private key length = %d, want 32", len(privBytes))
	}

	pub2, _, _ := GenerateVAPIDKeys()
	if pub == pub2 {
		t.Error("expected different keys on second generation")
	}
}

func TestServiceConfigured(t *testing.T) {
	if !NewService("pub", "priv").Configured() {
		t.Error("expected Configured() = true with both keys")
	}
	if NewService("pub", "").Configured() {
		t.Error("expected Configured() = false with missing private key")
	}
	if got := NewService("pub", "priv").VAPIDPublicKey(); got != "pub" {
		t.Errorf("VAPIDPublicKey = %q, want pub", got)
	}
}

func TestPayloadJSON(t *testing.T) {
	data, err := json.Marshal(Payload{Title: "List purchased", Body: "Groceries", Tag: "purchase"})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if got["title"] != "List purchased" || got["tag"] != "purchase" {
		t.Errorf("payload json = %v", got)
	}
	if _, ok := got["url"]; ok {
		t.Error("empty url must be omitted")
	}
}
