// ABOUTME: Database layer for the ledger economy plugin.
// ABOUTME: Manages ledger_accounts, ledger_banks, and ledger_bank_members tables.

package ledger

import (
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrNoAccount         = errors.New("account does not exist")
	ErrNoBank            = errors.New("bank does not exist")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) (*LedgerStore, error) {
	if db == nil {
		return nil, errors.New("ledger requires a database")
	}
	store := &LedgerStore{db: db}
	if err := store.initTables(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *LedgerStore) initTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS ledger_accounts (
			player TEXT PRIMARY KEY COLLATE NOCASE,
			balance REAL NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS ledger_banks (
			name TEXT PRIMARY KEY COLLATE NOCASE,
			owner TEXT NOT NULL,
			balance REAL NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS ledger_bank_members (
			bank TEXT NOT NULL COLLATE NOCASE,
			player TEXT NOT NULL COLLATE NOCASE,
			PRIMARY KEY (bank, player),
			FOREIGN KEY (bank) REFERENCES ledger_banks(name) ON DELETE CASCADE
		)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

type Account struct {
	Player  string
	Balance float64
}

type Bank struct {
	Name    string
	Owner   string
	Balance float64
	Members []string
}

// CreateAccount inserts an account with startBalance. It reports false when
// the account already exists.
func (s *LedgerStore) CreateAccount(player string, startBalance float64) (bool, error) {
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO ledger_accounts (player, balance) VALUES (?, ?)`,
		player, startBalance,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *LedgerStore) GetAccount(player string) (*Account, error) {
	var a Account
	err := s.db.QueryRow(
		`SELECT player, balance FROM ledger_accounts WHERE player = ?`, player,
	).Scan(&a.Player, &a.Balance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNoAccount, player)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// AdjustBalance adds delta to player's balance and returns the new balance.
// A negative delta that would overdraw the account fails with
// ErrInsufficientFunds and leaves the balance unchanged.
func (s *LedgerStore) AdjustBalance(player string, delta float64) (float64, error) {
	res, err := s.db.Exec(
		`UPDATE ledger_accounts
		 SET balance = balance + ?, updated_at = CURRENT_TIMESTAMP
		 WHERE player = ? AND balance + ? >= 0`,
		delta, player, delta,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		acct, err := s.GetAccount(player)
		if err != nil {
			return 0, err
		}
		return acct.Balance, fmt.Errorf("%w: %s has %.2f", ErrInsufficientFunds, player, acct.Balance)
	}
	acct, err := s.GetAccount(player)
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

func (s *LedgerStore) ListAccounts(limit, offset int) ([]Account, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT player, balance FROM ledger_accounts ORDER BY player LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.Player, &a.Balance); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// CreateBank inserts a bank owned by owner. It reports false when the name is
// already taken.
func (s *LedgerStore) CreateBank(name, owner string) (bool, error) {
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO ledger_banks (name, owner) VALUES (?, ?)`,
		name, owner,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *LedgerStore) DeleteBank(name string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM ledger_bank_members WHERE bank = ?`, name); err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM ledger_banks WHERE name = ?`, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNoBank, name)
	}
	return tx.Commit()
}

func (s *LedgerStore) GetBank(name string) (*Bank, error) {
	var b Bank
	err := s.db.QueryRow(
		`SELECT name, owner, balance FROM ledger_banks WHERE name = ?`, name,
	).Scan(&b.Name, &b.Owner, &b.Balance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNoBank, name)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT player FROM ledger_bank_members WHERE bank = ? ORDER BY player`, name,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			return nil, err
		}
		b.Members = append(b.Members, member)
	}
	return &b, rows.Err()
}

// AdjustBankBalance mirrors AdjustBalance for banks.
func (s *LedgerStore) AdjustBankBalance(name string, delta float64) (float64, error) {
	res, err := s.db.Exec(
		`UPDATE ledger_banks SET balance = balance + ? WHERE name = ? AND balance + ? >= 0`,
		delta, name, delta,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	bank, err := s.GetBank(name)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return bank.Balance, fmt.Errorf("%w: bank %s has %.2f", ErrInsufficientFunds, name, bank.Balance)
	}
	return bank.Balance, nil
}

func (s *LedgerStore) AddBankMember(bank, player string) error {
	if _, err := s.GetBank(bank); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO ledger_bank_members (bank, player) VALUES (?, ?)`,
		bank, player,
	)
	return err
}

func (s *LedgerStore) ListBanks(limit, offset int) ([]Bank, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT name, owner, balance FROM ledger_banks ORDER BY name LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var banks []Bank
	for rows.Next() {
		var b Bank
		if err := rows.Scan(&b.Name, &b.Owner, &b.Balance); err != nil {
			return nil, err
		}
		banks = append(banks, b)
	}
	return banks, rows.Err()
}
