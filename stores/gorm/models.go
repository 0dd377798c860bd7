//go:build !wasm
// +build !wasm

package gorm

import (
	"time"

	la "github.com/panyam/localauth"
)

// AccountModel is the GORM model for accounts. The unique index on Email
// is what enforces the no-duplicate-signup rule under concurrency.
type AccountModel struct {
	ID                  string `gorm:"primaryKey;size:64"`
	Name                string `gorm:"size:255"`
	Email               string `gorm:"size:255;uniqueIndex"`
	PasswordHash        string `gorm:"size:128"`
	ResetTokenHash      string `gorm:"size:64;index"`
	ResetTokenExpiresAt *time.Time
	CreatedAt           time.Time `gorm:"autoCreateTime"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime"`
}

func (AccountModel) TableName() string {
	return "accounts"
}

func (m *AccountModel) ToAccount() *la.Account {
	acct := &la.Account{
		ID:             m.ID,
		Name:           m.Name,
		Email:          m.Email,
		PasswordHash:   m.PasswordHash,
		ResetTokenHash: m.ResetTokenHash,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.ResetTokenExpiresAt != nil {
		acct.ResetTokenExpiresAt = *m.ResetTokenExpiresAt
	}
	return acct
}

func AccountToModel(a *la.Account) *AccountModel {
	model := &AccountModel{
		ID:             a.ID,
		Name:           a.Name,
		Email:          a.Email,
		PasswordHash:   a.PasswordHash,
		ResetTokenHash: a.ResetTokenHash,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
	if !a.ResetTokenExpiresAt.IsZero() {
		t := a.ResetTokenExpiresAt
		model.ResetTokenExpiresAt = &t
	}
	return model
}
