package secrets

import (
	"encoding/hex"
	"strings"
	"testing"
)

func testKey() string {
	return strings.Repeat("ab", 32)
}

func TestSealOpenRoundtrip(t *testing.T) {
	box, err := NewBox(testKey())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	sealed, err := box.Seal("портальный-пароль")
	if err != nil {
		t.Fatalf("не ожидали ошибку шифрования: %v", err)
	}
	if strings.Contains(string(sealed), "портальный") {
		t.Fatalf("секрет не должен лежать в открытом виде")
	}
	opened, err := box.Open(sealed)
	if err != nil {
		t.Fatalf("не ожидали ошибку расшифровки: %v", err)
	}
	if opened != "портальный-пароль" {
		t.Fatalf("ожидали исходный секрет, получили %q", opened)
	}
}

func TestOpenWithWrongKeyFails(t *testing.T) {
	box, _ := NewBox(testKey())
	sealed, err := box.Seal("secret")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	other, _ := NewBox(strings.Repeat("cd", 32))
	if _, err := other.Open(sealed); err == nil {
		t.Fatalf("ожидали ошибку при чужом ключе")
	}
}

func TestNewBoxRejectsBadKey(t *testing.T) {
	if _, err := NewBox("zz"); err == nil {
		t.Fatalf("ожидали ошибку на некорректном hex")
	}
	short := hex.EncodeToString([]byte("short"))
	if _, err := NewBox(short); err == nil {
		t.Fatalf("ожидали ошибку на коротком ключе")
	}
}
