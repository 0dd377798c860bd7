//go:build !wasm
// +build !wasm

// Package gae provides a Google Cloud Datastore backed AccountStore.
package gae

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/iterator"

	la "github.com/panyam/localauth"
)

// Kind constants for Datastore entities
const (
	KindAccount      = "Account"
	KindAccountEmail = "AccountEmail"
)

// AccountEntity is the Datastore representation of an account.
type AccountEntity struct {
	Key                 *datastore.Key `datastore:"__key__"`
	Name                string         `datastore:"name,noindex"`
	Email               string         `datastore:"email"`
	PasswordHash        string         `datastore:"password_hash,noindex"`
	ResetTokenHash      string         `datastore:"reset_token_hash"`
	ResetTokenExpiresAt time.Time      `datastore:"reset_token_expires_at,noindex"`
	CreatedAt           time.Time      `datastore:"created_at,noindex"`
	UpdatedAt           time.Time      `datastore:"updated_at,noindex"`
}

// emailClaim reserves an email address. Its key name is the normalized
// email, so a transactional insert doubles as the uniqueness check.
type emailClaim struct {
	AccountID string `datastore:"account_id,noindex"`
}

// AccountStore implements la.AccountStore using Google Cloud Datastore
type AccountStore struct {
	client    *datastore.Client
	namespace string
	ctx       context.Context
}

// NewAccountStore creates a new Datastore-backed AccountStore
func NewAccountStore(client *datastore.Client, namespace string) *AccountStore {
	return &AccountStore{
		client:    client,
		namespace: namespace,
		ctx:       context.Background(),
	}
}

// WithContext returns a copy of the store with the given context
func (s *AccountStore) WithContext(ctx context.Context) *AccountStore {
	return &AccountStore{
		client:    s.client,
		namespace: s.namespace,
		ctx:       ctx,
	}
}

func (s *AccountStore) namespacedKey(kind, name string) *datastore.Key {
	key := datastore.NameKey(kind, name, nil)
	key.Namespace = s.namespace
	return key
}

func (s *AccountStore) entityToAccount(e *AccountEntity, includeSensitive bool) *la.Account {
	acct := &la.Account{
		ID:                  e.Key.Name,
		Name:                e.Name,
		Email:               e.Email,
		PasswordHash:        e.PasswordHash,
		ResetTokenHash:      e.ResetTokenHash,
		ResetTokenExpiresAt: e.ResetTokenExpiresAt,
		CreatedAt:           e.CreatedAt,
		UpdatedAt:           e.UpdatedAt,
	}
	if !includeSensitive {
		acct = acct.Sanitized()
	}
	return acct
}

// Create inserts the account and its email claim in one transaction. If
// the claim already exists another account owns the address.
func (s *AccountStore) Create(acct *la.Account) error {
	acctKey := s.namespacedKey(KindAccount, acct.ID)
	emailKey := s.namespacedKey(KindAccountEmail, acct.Email)

	_, err := s.client.RunInTransaction(s.ctx, func(tx *datastore.Transaction) error {
		var existing emailClaim
		err := tx.Get(emailKey, &existing)
		if err == nil {
			return fmt.Errorf("%w: %s", la.ErrDuplicateAccount, acct.Email)
		}
		if err != datastore.ErrNoSuchEntity {
			return err
		}

		if _, err := tx.Put(emailKey, &emailClaim{AccountID: acct.ID}); err != nil {
			return err
		}

		entity := &AccountEntity{
			Key:                 acctKey,
			Name:                acct.Name,
			Email:               acct.Email,
			PasswordHash:        acct.PasswordHash,
			ResetTokenHash:      acct.ResetTokenHash,
			ResetTokenExpiresAt: acct.ResetTokenExpiresAt,
			CreatedAt:           acct.CreatedAt,
			UpdatedAt:           acct.UpdatedAt,
		}
		_, err = tx.Put(acctKey, entity)
		return err
	})
	return err
}

func (s *AccountStore) ByEmail(email string, includeSensitive bool) (*la.Account, error) {
	var claim emailClaim
	if err := s.client.Get(s.ctx, s.namespacedKey(KindAccountEmail, email), &claim); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return nil, fmt.Errorf("%w: %s", la.ErrAccountNotFound, email)
		}
		return nil, err
	}
	return s.ById(claim.AccountID, includeSensitive)
}

func (s *AccountStore) ById(id string, includeSensitive bool) (*la.Account, error) {
	var entity AccountEntity
	key := s.namespacedKey(KindAccount, id)
	if err := s.client.Get(s.ctx, key, &entity); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return nil, fmt.Errorf("%w: %s", la.ErrAccountNotFound, id)
		}
		return nil, err
	}
	entity.Key = key
	return s.entityToAccount(&entity, includeSensitive), nil
}

func (s *AccountStore) Update(id string, updates la.AccountUpdates) (*la.Account, error) {
	acctKey := s.namespacedKey(KindAccount, id)

	var entity AccountEntity
	_, err := s.client.RunInTransaction(s.ctx, func(tx *datastore.Transaction) error {
		if err := tx.Get(acctKey, &entity); err != nil {
			if err == datastore.ErrNoSuchEntity {
				return fmt.Errorf("%w: %s", la.ErrAccountNotFound, id)
			}
			return err
		}
		entity.Key = acctKey

		if updates.Email != nil && *updates.Email != entity.Email {
			newEmailKey := s.namespacedKey(KindAccountEmail, *updates.Email)
			var existing emailClaim
			err := tx.Get(newEmailKey, &existing)
			if err == nil {
				return fmt.Errorf("%w: %s", la.ErrDuplicateAccount, *updates.Email)
			}
			if err != datastore.ErrNoSuchEntity {
				return err
			}
			if _, err := tx.Put(newEmailKey, &emailClaim{AccountID: id}); err != nil {
				return err
			}
			if err := tx.Delete(s.namespacedKey(KindAccountEmail, entity.Email)); err != nil {
				return err
			}
			entity.Email = *updates.Email
		}
		if updates.Name != nil {
			entity.Name = *updates.Name
		}
		if updates.PasswordHash != nil {
			entity.PasswordHash = *updates.PasswordHash
		}
		entity.UpdatedAt = time.Now()

		_, err := tx.Put(acctKey, &entity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.entityToAccount(&entity, false), nil
}

func (s *AccountStore) Delete(id string) error {
	acctKey := s.namespacedKey(KindAccount, id)
	_, err := s.client.RunInTransaction(s.ctx, func(tx *datastore.Transaction) error {
		var entity AccountEntity
		if err := tx.Get(acctKey, &entity); err != nil {
			if err == datastore.ErrNoSuchEntity {
				return fmt.Errorf("%w: %s", la.ErrAccountNotFound, id)
			}
			return err
		}
		if err := tx.Delete(s.namespacedKey(KindAccountEmail, entity.Email)); err != nil {
			return err
		}
		return tx.Delete(acctKey)
	})
	return err
}

func (s *AccountStore) SetResetToken(id string, digest string, expiresAt time.Time) error {
	return s.mutateAccount(id, func(entity *AccountEntity) {
		entity.ResetTokenHash = digest
		entity.ResetTokenExpiresAt = expiresAt
	})
}

func (s *AccountStore) ClearResetToken(id string) error {
	return s.mutateAccount(id, func(entity *AccountEntity) {
		entity.ResetTokenHash = ""
		entity.ResetTokenExpiresAt = time.Time{}
	})
}

func (s *AccountStore) mutateAccount(id string, mutate func(*AccountEntity)) error {
	acctKey := s.namespacedKey(KindAccount, id)
	_, err := s.client.RunInTransaction(s.ctx, func(tx *datastore.Transaction) error {
		var entity AccountEntity
		if err := tx.Get(acctKey, &entity); err != nil {
			if err == datastore.ErrNoSuchEntity {
				return fmt.Errorf("%w: %s", la.ErrAccountNotFound, id)
			}
			return err
		}
		entity.Key = acctKey
		mutate(&entity)
		entity.UpdatedAt = time.Now()
		_, err := tx.Put(acctKey, &entity)
		return err
	})
	return err
}

// ConsumeResetToken locates the account holding the digest, then swaps the
// password and clears the token inside a transaction keyed on the entity,
// so concurrent redemptions collapse to one winner.
func (s *AccountStore) ConsumeResetToken(digest string, now time.Time, newPasswordHash string) (*la.Account, error) {
	query := datastore.NewQuery(KindAccount).
		Namespace(s.namespace).
		FilterField("reset_token_hash", "=", digest).
		KeysOnly().
		Limit(1)

	it := s.client.Run(s.ctx, query)
	acctKey, err := it.Next(nil)
	if err == iterator.Done {
		return nil, la.ErrInvalidOrExpiredToken
	}
	if err != nil {
		return nil, err
	}

	var entity AccountEntity
	_, err = s.client.RunInTransaction(s.ctx, func(tx *datastore.Transaction) error {
		if err := tx.Get(acctKey, &entity); err != nil {
			return la.ErrInvalidOrExpiredToken
		}
		entity.Key = acctKey
		if entity.ResetTokenHash != digest || !now.Before(entity.ResetTokenExpiresAt) {
			return la.ErrInvalidOrExpiredToken
		}
		entity.PasswordHash = newPasswordHash
		entity.ResetTokenHash = ""
		entity.ResetTokenExpiresAt = time.Time{}
		entity.UpdatedAt = time.Now()
		_, err := tx.Put(acctKey, &entity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.entityToAccount(&entity, false), nil
}
