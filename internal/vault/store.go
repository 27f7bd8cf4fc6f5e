package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const fileFormat = 1

// MasterKeyEnv names the environment variable holding the master password.
const MasterKeyEnv = "NOCWATCH_MASTER_KEY"

type vaultFile struct {
	Format int       `json:"format"`
	KDF    KDFParams `json:"kdf"`
	Salt   []byte    `json:"salt"`
	Data   []byte    `json:"data"`
}

// additionalData binds the ciphertext to the file's header fields.
func (f vaultFile) additionalData() []byte {
	return []byte(fmt.Sprintf("nocwatch-vault/%d/%d/%d/%d", f.Format, f.KDF.Time, f.KDF.Memory, f.KDF.Threads))
}

// FileStore is an encrypted, file-backed Provider.
type FileStore struct {
	mu    sync.RWMutex
	path  string
	key   []byte
	kdf   KDFParams
	salt  []byte
	creds map[string]Credential
}

// Open opens the vault at path, creating an empty one when the file does
// not exist.
func Open(path string, password []byte) (*FileStore, error) {
	s := &FileStore{
		path:  path,
		creds: make(map[string]Credential),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		salt, err := newSalt()
		if err != nil {
			return nil, err
		}
		s.salt = salt
		s.kdf = DefaultKDF
		s.key = DeriveKey(password, salt, s.kdf)
		return s, s.save()
	}
	if err != nil {
		return nil, err
	}

	var vf vaultFile
	if err := json.Unmarshal(data, &vf); err != nil {
		return nil, fmt.Errorf("corrupt vault: %w", err)
	}
	if vf.Format == 0 {
		vf.Format = fileFormat
	}
	if vf.Format != fileFormat {
		return nil, fmt.Errorf("unsupported vault format %d", vf.Format)
	}

	s.salt = vf.Salt
	s.kdf = vf.KDF.orDefault()
	vf.KDF = s.kdf
	s.key = DeriveKey(password, vf.Salt, s.kdf)

	plaintext, err := open(s.key, vf.Data, vf.additionalData())
	if err != nil {
		return nil, ErrDecrypt
	}
	if err := json.Unmarshal(plaintext, &s.creds); err != nil {
		return nil, fmt.Errorf("corrupt vault data: %w", err)
	}
	return s, nil
}

// save encrypts the credential map and replaces the file atomically.
func (s *FileStore) save() error {
	plaintext, err := json.Marshal(s.creds)
	if err != nil {
		return err
	}
	vf := vaultFile{Format: fileFormat, KDF: s.kdf, Salt: s.salt}
	vf.Data, err = seal(s.key, plaintext, vf.additionalData())
	if err != nil {
		return err
	}
	data, err := json.Marshal(vf)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".vault-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// List returns summaries of every credential, sorted by name.
func (s *FileStore) List() ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Summary, 0, len(s.creds))
	for _, c := range s.creds {
		out = append(out, c.Summarize())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *FileStore) Get(name string) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.creds[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return &c, nil
}

func (s *FileStore) Add(c Credential) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.creds[c.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, c.Name)
	}
	s.creds[c.Name] = c
	return s.save()
}

// Update replaces the credential called name, renaming it if c.Name differs.
func (s *FileStore) Update(name string, c Credential) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.creds[name]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if name != c.Name {
		if _, taken := s.creds[c.Name]; taken {
			return fmt.Errorf("%w: %s", ErrDuplicate, c.Name)
		}
		delete(s.creds, name)
	}
	s.creds[c.Name] = c
	return s.save()
}

func (s *FileStore) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.creds[name]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(s.creds, name)
	return s.save()
}
