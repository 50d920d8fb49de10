package adminauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

const testIssuer = "https://admin.test.example.com"

var testHashParams = HashParams{Memory: 19 * 1024, Iterations: 2, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type fakeRepository struct {
	hash string
	err  error
}

func (f *fakeRepository) GetPasswordHash(_ context.Context) (string, error) {
	return f.hash, f.err
}

func (f *fakeRepository) SetPasswordHash(_ context.Context, hash string) error {
	f.hash = hash
	return nil
}

func TestHashPasswordAndLogin(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("correct-horse-battery-staple", testHashParams)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	repo := &fakeRepository{hash: hash}

	tokenStr, err := Login(context.Background(), repo, "correct-horse-battery-staple", "super-secret-jwt-signing-key", 15*time.Minute, testIssuer)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	claims, err := ValidateToken(tokenStr, "super-secret-jwt-signing-key", testIssuer)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.Subject != subject {
		t.Errorf("Subject = %q, want %q", claims.Subject, subject)
	}
	if claims.ID == "" {
		t.Error("ID (JTI) is empty, want a generated correlation id")
	}
}

func TestLoginIssuesDistinctTokenIDs(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("correct-horse-battery-staple", testHashParams)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	repo := &fakeRepository{hash: hash}

	first, err := Login(context.Background(), repo, "correct-horse-battery-staple", "secret", 15*time.Minute, testIssuer)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	second, err := Login(context.Background(), repo, "correct-horse-battery-staple", "secret", 15*time.Minute, testIssuer)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	firstClaims, err := ValidateToken(first, "secret", testIssuer)
	if err != nil {
		t.Fatalf("ValidateToken(first) error = %v", err)
	}
	secondClaims, err := ValidateToken(second, "secret", testIssuer)
	if err != nil {
		t.Fatalf("ValidateToken(second) error = %v", err)
	}
	if firstClaims.ID == secondClaims.ID {
		t.Errorf("two separate logins got the same JTI %q, want distinct correlation ids", firstClaims.ID)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("right-password", testHashParams)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	repo := &fakeRepository{hash: hash}

	_, err = Login(context.Background(), repo, "wrong-password", "secret", 15*time.Minute, testIssuer)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Login() error = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginNotConfigured(t *testing.T) {
	t.Parallel()

	repo := &fakeRepository{hash: ""}

	_, err := Login(context.Background(), repo, "anything", "secret", 15*time.Minute, testIssuer)
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Login() error = %v, want ErrNotConfigured", err)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("pw", testHashParams)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	repo := &fakeRepository{hash: hash}

	tokenStr, err := Login(context.Background(), repo, "pw", "correct-secret", 15*time.Minute, testIssuer)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	_, err = ValidateToken(tokenStr, "wrong-secret", testIssuer)
	if err == nil {
		t.Fatal("ValidateToken() with wrong secret should return error")
	}
}

func TestValidateTokenExpired(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("pw", testHashParams)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	repo := &fakeRepository{hash: hash}

	tokenStr, err := Login(context.Background(), repo, "pw", "secret", -1*time.Minute, testIssuer)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	_, err = ValidateToken(tokenStr, "secret", testIssuer)
	if err == nil {
		t.Fatal("ValidateToken() with expired token should return error")
	}
}

func TestValidateTokenWrongIssuer(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("pw", testHashParams)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	repo := &fakeRepository{hash: hash}

	tokenStr, err := Login(context.Background(), repo, "pw", "secret", 15*time.Minute, testIssuer)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	_, err = ValidateToken(tokenStr, "secret", "https://wrong.example.com")
	if err == nil {
		t.Fatal("ValidateToken() with wrong issuer should return error")
	}
}

func TestValidateTokenMalformed(t *testing.T) {
	t.Parallel()

	_, err := ValidateToken("not.a.valid.jwt", "secret", testIssuer)
	if err == nil {
		t.Fatal("ValidateToken() with malformed token should return error")
	}
}
