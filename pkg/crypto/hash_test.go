package crypto

import (
	"errors"
	"strings"
	"testing"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("dashboard-secret")
	if err != nil {
		t.Fatalf("ошибка хеширования: %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$") {
		t.Errorf("ожидался bcrypt-хеш, получено %q", hash)
	}
}

func TestHashPassword_Empty(t *testing.T) {
	if _, err := HashPassword(""); !errors.Is(err, ErrEmptyPassword) {
		t.Errorf("ожидалась ErrEmptyPassword, получено %v", err)
	}
}

func TestHashPassword_TooLong(t *testing.T) {
	long := strings.Repeat("x", MaxPasswordLength+1)
	if _, err := HashPassword(long); !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("ожидалась ErrPasswordTooLong, получено %v", err)
	}
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct-password")
	if err != nil {
		t.Fatalf("ошибка хеширования: %v", err)
	}

	if err := VerifyPassword("correct-password", hash); err != nil {
		t.Errorf("верный пароль не прошёл проверку: %v", err)
	}
	if err := VerifyPassword("wrong-password", hash); !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("ожидалась ErrPasswordMismatch, получено %v", err)
	}
	if err := VerifyPassword("any", "not-a-bcrypt-hash"); !errors.Is(err, ErrInvalidHash) {
		t.Errorf("ожидалась ErrInvalidHash, получено %v", err)
	}
}

func TestCheckPasswordMatch(t *testing.T) {
	hash, _ := HashPassword("pw")
	if !CheckPasswordMatch("pw", hash) {
		t.Error("верный пароль должен совпадать")
	}
	if CheckPasswordMatch("other", hash) {
		t.Error("неверный пароль не должен совпадать")
	}
}
