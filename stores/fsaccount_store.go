// Package stores provides a filesystem-backed AccountStore that persists
// accounts as JSON files. It is intended for development and tests; the
// gorm and gae subpackages provide the production backends.
package stores

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	la "github.com/panyam/localauth"
)

// fsAccount is the on-disk representation. Unlike la.Account it serializes
// the sensitive fields - the files live in the store's private directory.
type fsAccount struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Email               string    `json:"email"`
	PasswordHash        string    `json:"password_hash"`
	ResetTokenHash      string    `json:"reset_token_hash,omitempty"`
	ResetTokenExpiresAt time.Time `json:"reset_token_expires_at,omitzero"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (f *fsAccount) toAccount() *la.Account {
	return &la.Account{
		ID:                  f.ID,
		Name:                f.Name,
		Email:               f.Email,
		PasswordHash:        f.PasswordHash,
		ResetTokenHash:      f.ResetTokenHash,
		ResetTokenExpiresAt: f.ResetTokenExpiresAt,
		CreatedAt:           f.CreatedAt,
		UpdatedAt:           f.UpdatedAt,
	}
}

func fromAccount(a *la.Account) *fsAccount {
	return &fsAccount{
		ID:                  a.ID,
		Name:                a.Name,
		Email:               a.Email,
		PasswordHash:        a.PasswordHash,
		ResetTokenHash:      a.ResetTokenHash,
		ResetTokenExpiresAt: a.ResetTokenExpiresAt,
		CreatedAt:           a.CreatedAt,
		UpdatedAt:           a.UpdatedAt,
	}
}

// FSAccountStore stores accounts as JSON files under StoragePath. Email
// uniqueness rides on an index file per email created with O_EXCL, and the
// multi-step operations (update, reset consumption) serialize on an
// in-process mutex - fine for a single-process dev setup, which is all this
// store is for.
type FSAccountStore struct {
	StoragePath string

	mu sync.Mutex
}

func NewFSAccountStore(storagePath string) *FSAccountStore {
	return &FSAccountStore{StoragePath: storagePath}
}

func (s *FSAccountStore) accountPath(id string) string {
	return filepath.Join(s.StoragePath, "accounts", id+".json")
}

func (s *FSAccountStore) emailPath(email string) string {
	return filepath.Join(s.StoragePath, "emails", url.PathEscape(email))
}

func (s *FSAccountStore) Create(acct *la.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	emailPath := s.emailPath(acct.Email)
	if err := os.MkdirAll(filepath.Dir(emailPath), 0755); err != nil {
		return err
	}

	// O_EXCL makes the email claim the atomic check-then-write step
	f, err := os.OpenFile(emailPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", la.ErrDuplicateAccount, acct.Email)
		}
		return err
	}
	if _, err := f.WriteString(acct.ID); err != nil {
		f.Close()
		os.Remove(emailPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(emailPath)
		return err
	}

	if err := s.saveAccount(fromAccount(acct)); err != nil {
		os.Remove(emailPath)
		return err
	}
	return nil
}

func (s *FSAccountStore) ByEmail(email string, includeSensitive bool) (*la.Account, error) {
	idBytes, err := os.ReadFile(s.emailPath(email))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", la.ErrAccountNotFound, email)
		}
		return nil, err
	}
	return s.ById(string(idBytes), includeSensitive)
}

func (s *FSAccountStore) ById(id string, includeSensitive bool) (*la.Account, error) {
	acct, err := s.loadAccount(id)
	if err != nil {
		return nil, err
	}
	out := acct.toAccount()
	if !includeSensitive {
		out = out.Sanitized()
	}
	return out, nil
}

func (s *FSAccountStore) Update(id string, updates la.AccountUpdates) (*la.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.loadAccount(id)
	if err != nil {
		return nil, err
	}

	if updates.Email != nil && *updates.Email != acct.Email {
		newPath := s.emailPath(*updates.Email)
		f, err := os.OpenFile(newPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err != nil {
			if os.IsExist(err) {
				return nil, fmt.Errorf("%w: %s", la.ErrDuplicateAccount, *updates.Email)
			}
			return nil, err
		}
		if _, err := f.WriteString(id); err != nil {
			f.Close()
			os.Remove(newPath)
			return nil, err
		}
		f.Close()
		os.Remove(s.emailPath(acct.Email))
		acct.Email = *updates.Email
	}
	if updates.Name != nil {
		acct.Name = *updates.Name
	}
	if updates.PasswordHash != nil {
		acct.PasswordHash = *updates.PasswordHash
	}
	acct.UpdatedAt = time.Now()

	if err := s.saveAccount(acct); err != nil {
		return nil, err
	}
	return acct.toAccount().Sanitized(), nil
}

func (s *FSAccountStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.loadAccount(id)
	if err != nil {
		return err
	}
	os.Remove(s.emailPath(acct.Email))
	return os.Remove(s.accountPath(id))
}

func (s *FSAccountStore) SetResetToken(id string, digest string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.loadAccount(id)
	if err != nil {
		return err
	}
	acct.ResetTokenHash = digest
	acct.ResetTokenExpiresAt = expiresAt
	acct.UpdatedAt = time.Now()
	return s.saveAccount(acct)
}

func (s *FSAccountStore) ClearResetToken(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.loadAccount(id)
	if err != nil {
		return err
	}
	acct.ResetTokenHash = ""
	acct.ResetTokenExpiresAt = time.Time{}
	acct.UpdatedAt = time.Now()
	return s.saveAccount(acct)
}

func (s *FSAccountStore) ConsumeResetToken(digest string, now time.Time, newPasswordHash string) (*la.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Full scan: acceptable here, the dev store holds a handful of
	// accounts. Production stores index the digest.
	entries, err := os.ReadDir(filepath.Join(s.StoragePath, "accounts"))
	if err != nil {
		return nil, la.ErrInvalidOrExpiredToken
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		acct, err := s.loadAccount(entry.Name()[:len(entry.Name())-len(".json")])
		if err != nil {
			continue
		}
		if acct.ResetTokenHash != digest || !now.Before(acct.ResetTokenExpiresAt) {
			continue
		}

		acct.PasswordHash = newPasswordHash
		acct.ResetTokenHash = ""
		acct.ResetTokenExpiresAt = time.Time{}
		acct.UpdatedAt = time.Now()
		if err := s.saveAccount(acct); err != nil {
			return nil, err
		}
		return acct.toAccount().Sanitized(), nil
	}
	return nil, la.ErrInvalidOrExpiredToken
}

func (s *FSAccountStore) loadAccount(id string) (*fsAccount, error) {
	data, err := os.ReadFile(s.accountPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", la.ErrAccountNotFound, id)
		}
		return nil, err
	}
	var acct fsAccount
	if err := json.Unmarshal(data, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

func (s *FSAccountStore) saveAccount(acct *fsAccount) error {
	path := s.accountPath(acct.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(acct, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomicFile(path, data)
}
