package accounts

import (
	"database/sql"

	domain "github.com/apolyakov/fundledger/internal/repos/accounts"
)

var _ domain.Accounts = (*accountsRepo)(nil)

type accountsRepo struct{ db *sql.DB }

func New(db *sql.DB) *accountsRepo {
	return &accountsRepo{db: db}
}
