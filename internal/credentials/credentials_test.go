package credentials

import "testing"

func TestVerifyReferenceVector(t *testing.T) {
	t.Parallel()

	key := "278d425bdf160c739803"
	secret := "7ad3773142a6692b25b8"
	socketID := "1234.1234"
	channel := "private-foobar"

	sig := Sign(secret, socketID, channel)
	auth := key + ":" + sig

	if !Verify(key, secret, auth, socketID, channel) {
		t.Fatalf("Verify() = false, want true for freshly signed message")
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	t.Parallel()
	secret := "secret"
	sig := Sign(secret, "1234.1234", "private-foobar")
	auth := "wrong-key:" + sig

	if Verify("real-key", secret, auth, "1234.1234", "private-foobar") {
		t.Fatal("Verify() = true, want false when key component mismatches")
	}
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	t.Parallel()
	key, secret := "key", "secret"
	sig := Sign(secret, "1234.1234", "private-foobar")
	auth := key + ":" + sig

	if Verify(key, secret, auth, "1234.1234", "private-other-channel") {
		t.Fatal("Verify() = true, want false when signed parts differ from verified parts")
	}
}

func TestVerifyRejectsMalformedSignature(t *testing.T) {
	t.Parallel()
	cases := []string{"", "no-colon-here", "key:not-hex-zzz", "key:" + "ab" + ":extra"}
	for _, c := range cases {
		if Verify("key", "secret", c, "1234.1234", "private-foobar") {
			t.Errorf("Verify(%q) = true, want false", c)
		}
	}
}

func TestGenerateKeyShapeAndUniqueness(t *testing.T) {
	t.Parallel()
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		k := GenerateKey()
		if len(k) != 24 {
			t.Fatalf("GenerateKey() length = %d, want 24", len(k))
		}
		for _, r := range k {
			if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
				t.Fatalf("GenerateKey() = %q contains non-alphanumeric rune %q", k, r)
			}
		}
		if seen[k] {
			t.Fatalf("GenerateKey() produced duplicate %q", k)
		}
		seen[k] = true
	}
}

func TestGenerateSecretShape(t *testing.T) {
	t.Parallel()
	s := GenerateSecret()
	if len(s) != 32 {
		t.Fatalf("GenerateSecret() length = %d, want 32", len(s))
	}
}
