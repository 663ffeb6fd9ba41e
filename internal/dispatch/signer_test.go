package dispatch

import "testing"

func TestSignIsDeterministic(t *testing.T) {
	s := NewSigner("platform-secret")
	body := []byte(`{"taskId":"t1","description":"work"}`)

	first := s.Sign(body)
	second := s.Sign(body)
	if first == "" || first != second {
		t.Fatalf("signatures differ for same body: %q vs %q", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("signature length = %d, want 64 hex chars", len(first))
	}
}

func TestSignDependsOnSecretAndBody(t *testing.T) {
	body := []byte(`{"taskId":"t1"}`)
	a := NewSigner("secret-a").Sign(body)
	b := NewSigner("secret-b").Sign(body)
	if a == b {
		t.Fatal("different secrets produced the same signature")
	}
	c := NewSigner("secret-a").Sign([]byte(`{"taskId":"t2"}`))
	if a == c {
		t.Fatal("different bodies produced the same signature")
	}
}

func TestVerify(t *testing.T) {
	s := NewSigner("platform-secret")
	body := []byte("payload")
	sig := s.Sign(body)

	if !s.Verify(body, sig) {
		t.Fatal("valid signature rejected")
	}
	if s.Verify([]byte("tampered"), sig) {
		t.Fatal("tampered body accepted")
	}
	if s.Verify(body, "not-hex") {
		t.Fatal("malformed signature accepted")
	}
}

func TestEmptySecretSignsNothing(t *testing.T) {
	if sig := NewSigner("").Sign([]byte("payload")); sig != "" {
		t.Fatalf("empty secret produced signature %q", sig)
	}
}
