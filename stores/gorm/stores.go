//go:build !wasm
// +build !wasm

// Package gorm provides a GORM backed AccountStore for SQL databases.
package gorm

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	la "github.com/panyam/localauth"
)

// AutoMigrate runs database migrations for all localauth tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&AccountModel{})
}

// AccountStore implements la.AccountStore using GORM
type AccountStore struct {
	db *gorm.DB
}

func NewAccountStore(db *gorm.DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) Create(acct *la.Account) error {
	model := AccountToModel(acct)
	if err := s.db.Create(model).Error; err != nil {
		if isDuplicateErr(err) {
			return fmt.Errorf("%w: %s", la.ErrDuplicateAccount, acct.Email)
		}
		return err
	}
	return nil
}

func (s *AccountStore) ByEmail(email string, includeSensitive bool) (*la.Account, error) {
	var model AccountModel
	if err := s.db.First(&model, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", la.ErrAccountNotFound, email)
		}
		return nil, err
	}
	return sanitized(&model, includeSensitive), nil
}

func (s *AccountStore) ById(id string, includeSensitive bool) (*la.Account, error) {
	var model AccountModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", la.ErrAccountNotFound, id)
		}
		return nil, err
	}
	return sanitized(&model, includeSensitive), nil
}

func (s *AccountStore) Update(id string, updates la.AccountUpdates) (*la.Account, error) {
	fields := map[string]any{}
	if updates.Name != nil {
		fields["name"] = *updates.Name
	}
	if updates.Email != nil {
		fields["email"] = *updates.Email
	}
	if updates.PasswordHash != nil {
		fields["password_hash"] = *updates.PasswordHash
	}

	var model AccountModel
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", la.ErrAccountNotFound, id)
			}
			return err
		}
		if len(fields) == 0 {
			return nil
		}
		if err := tx.Model(&model).Updates(fields).Error; err != nil {
			if isDuplicateErr(err) {
				return fmt.Errorf("%w: %s", la.ErrDuplicateAccount, *updates.Email)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sanitized(&model, false), nil
}

func (s *AccountStore) Delete(id string) error {
	result := s.db.Delete(&AccountModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", la.ErrAccountNotFound, id)
	}
	return nil
}

func (s *AccountStore) SetResetToken(id string, digest string, expiresAt time.Time) error {
	result := s.db.Model(&AccountModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"reset_token_hash":       digest,
			"reset_token_expires_at": expiresAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", la.ErrAccountNotFound, id)
	}
	return nil
}

func (s *AccountStore) ClearResetToken(id string) error {
	return s.db.Model(&AccountModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"reset_token_hash":       "",
			"reset_token_expires_at": nil,
		}).Error
}

// ConsumeResetToken swaps the password and burns the token in one
// transaction so a secret can never be redeemed twice.
func (s *AccountStore) ConsumeResetToken(digest string, now time.Time, newPasswordHash string) (*la.Account, error) {
	var model AccountModel
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&model, "reset_token_hash = ? AND reset_token_expires_at > ?", digest, now).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return la.ErrInvalidOrExpiredToken
			}
			return err
		}
		return tx.Model(&model).Updates(map[string]any{
			"password_hash":          newPasswordHash,
			"reset_token_hash":       "",
			"reset_token_expires_at": nil,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	model.PasswordHash = newPasswordHash
	return sanitized(&model, false), nil
}

func sanitized(model *AccountModel, includeSensitive bool) *la.Account {
	acct := model.ToAccount()
	if !includeSensitive {
		acct = acct.Sanitized()
	}
	return acct
}

// isDuplicateErr matches gorm's translated error plus the raw constraint
// messages from drivers that don't translate (sqlite, older postgres).
func isDuplicateErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
