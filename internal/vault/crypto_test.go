package vault

import (
	"bytes"
	"testing"
)

var testKDF = KDFParams{Time: 1, Memory: 8 * 1024, Threads: 1}

func TestDeriveKey(t *testing.T) {
	key := DeriveKey([]byte("test-password"), make([]byte, saltLen), testKDF)
	if len(key) != keyLen {
		t.Errorf("expected %d byte key, got %d", keyLen, len(key))
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := []byte("fixed-salt-value")
	key1 := DeriveKey([]byte("password"), salt, testKDF)
	key2 := DeriveKey([]byte("password"), salt, testKDF)
	if !bytes.Equal(key1, key2) {
		t.Error("same password+salt should produce same key")
	}
}

func TestDeriveKeyDifferentPasswords(t *testing.T) {
	salt := []byte("fixed-salt-value")
	key1 := DeriveKey([]byte("password1"), salt, testKDF)
	key2 := DeriveKey([]byte("password2"), salt, testKDF)
	if bytes.Equal(key1, key2) {
		t.Error("different passwords should produce different keys")
	}
}

func TestDeriveKeyZeroParamsUseDefault(t *testing.T) {
	salt := []byte("fixed-salt-value")
	if !bytes.Equal(DeriveKey([]byte("pw"), salt, KDFParams{}), DeriveKey([]byte("pw"), salt, DefaultKDF)) {
		t.Error("zero KDF params should fall back to the defaults")
	}
}

func TestSealOpen(t *testing.T) {
	key := make([]byte, keyLen)
	plaintext := []byte("community=public")

	data, err := seal(key, plaintext, []byte("hdr"))
	if err != nil {
		t.Fatalf("seal() error: %v", err)
	}
	if bytes.Contains(data, plaintext) {
		t.Error("sealed data contains the plaintext")
	}

	got, err := open(key, data, []byte("hdr"))
	if err != nil {
		t.Fatalf("open() error: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("expected %q, got %q", plaintext, got)
	}
}

func TestOpenRejectsTampering(t *testing.T) {
	key := make([]byte, keyLen)
	data, err := seal(key, []byte("secret"), []byte("hdr"))
	if err != nil {
		t.Fatalf("seal() error: %v", err)
	}

	if _, err := open(key, data, []byte("other")); err == nil {
		t.Error("expected failure with different additional data")
	}

	data[len(data)-1] ^= 0xff
	if _, err := open(key, data, []byte("hdr")); err == nil {
		t.Error("expected failure with modified ciphertext")
	}

	if _, err := open(key, []byte("short"), nil); err == nil {
		t.Error("expected failure with truncated data")
	}
}
