package authutil

import (
	"strings"
	"testing"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse 99")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "correct horse 99" {
		t.Error("hash should not equal the plaintext")
	}
	if !CheckPassword("correct horse 99", hash) {
		t.Error("expected matching password to verify")
	}
	if CheckPassword("wrong password 1", hash) {
		t.Error("expected non-matching password to fail")
	}
}

func TestCheckPassword_InvalidHash(t *testing.T) {
	if CheckPassword("anything", "not-a-bcrypt-hash") {
		t.Error("expected malformed hash to fail verification")
	}
}

func TestValidatePassword_TooShort(t *testing.T) {
	if err := ValidatePassword("abc123"); err == nil {
		t.Error("expected short password to be rejected")
	}
}

func TestValidatePassword_LettersOnly(t *testing.T) {
	if err := ValidatePassword("onlyletters"); err == nil {
		t.Error("expected letters-only password to be rejected")
	}
}

func TestValidatePassword_DigitsOnly(t *testing.T) {
	if err := ValidatePassword("1234567890"); err == nil {
		t.Error("expected digits-only password to be rejected")
	}
}

func TestValidatePassword_Valid(t *testing.T) {
	if err := ValidatePassword("longenough42"); err != nil {
		t.Errorf("expected valid password to pass, got: %v", err)
	}
}

func TestPasswordRules_MentionsLength(t *testing.T) {
	if !strings.Contains(PasswordRules(), "10") {
		t.Error("expected password rules to state the minimum length")
	}
}

func TestIsValidEmail_Valid(t *testing.T) {
	valid := []string{
		"test@example.com",
		"user@domain.org",
		"name.surname@company.co.uk",
		"a@b.co",
	}
	for _, email := range valid {
		if !IsValidEmail(email) {
			t.Errorf("expected %q to be valid", email)
		}
	}
}

func TestIsValidEmail_Invalid(t *testing.T) {
	invalid := []string{
		"",
		"testexample.com",
		"test@@example.com",
		"@example.com",
		"test@example",
		"test@example.",
		"test@",
		"has space@example.com",
	}
	for _, email := range invalid {
		if IsValidEmail(email) {
			t.Errorf("expected %q to be invalid", email)
		}
	}
}
