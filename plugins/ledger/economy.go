// ABOUTME: Economy provider backed by the ledger store.
// ABOUTME: Amounts are rounded to two decimal places before they touch the database.

package ledger

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/2389/vault/plugins/core"
)

const fractionalDigits = 2

// Economy implements core.Economy over a LedgerStore.
type Economy struct {
	store        *LedgerStore
	log          logrus.FieldLogger
	startBalance float64
	enabled      atomic.Bool
}

func NewEconomy(store *LedgerStore, log logrus.FieldLogger, startBalance float64) *Economy {
	if log == nil {
		log = logrus.StandardLogger()
	}
	e := &Economy{store: store, log: log, startBalance: startBalance}
	e.enabled.Store(true)
	return e
}

func (e *Economy) Name() string { return "Ledger" }

func (e *Economy) IsEnabled() bool { return e.enabled.Load() }

func (e *Economy) HasBankSupport() bool { return true }

func (e *Economy) FractionalDigits() int { return fractionalDigits }

func (e *Economy) Format(amount float64) string {
	amount = round(amount)
	name := e.CurrencyNamePlural()
	if amount == 1 {
		name = e.CurrencyNameSingular()
	}
	return fmt.Sprintf("%.2f %s", amount, name)
}

func (e *Economy) CurrencyNameSingular() string { return "coin" }

func (e *Economy) CurrencyNamePlural() string { return "coins" }

func (e *Economy) HasAccount(player string) bool {
	_, err := e.store.GetAccount(player)
	return err == nil
}

func (e *Economy) CreateAccount(player string) bool {
	if strings.TrimSpace(player) == "" {
		return false
	}
	created, err := e.store.CreateAccount(player, e.startBalance)
	if err != nil {
		e.log.WithError(err).WithField("player", player).Error("create account failed")
		return false
	}
	return created
}

func (e *Economy) Balance(player string) float64 {
	acct, err := e.store.GetAccount(player)
	if err != nil {
		return 0
	}
	return acct.Balance
}

func (e *Economy) Has(player string, amount float64) bool {
	return e.Balance(player) >= amount
}

func (e *Economy) Withdraw(player string, amount float64) core.EconomyResponse {
	if amount < 0 {
		return core.Failed(0, e.Balance(player), "cannot withdraw negative funds")
	}
	return e.adjust(player, amount, -round(amount))
}

func (e *Economy) Deposit(player string, amount float64) core.EconomyResponse {
	if amount < 0 {
		return core.Failed(0, e.Balance(player), "cannot deposit negative funds")
	}
	return e.adjust(player, amount, round(amount))
}

func (e *Economy) adjust(player string, amount, delta float64) core.EconomyResponse {
	balance, err := e.store.AdjustBalance(player, delta)
	if err != nil {
		return e.failure(err, amount, balance)
	}
	return core.Succeeded(amount, balance)
}

func (e *Economy) CreateBank(name, owner string) core.EconomyResponse {
	created, err := e.store.CreateBank(name, owner)
	if err != nil {
		return e.failure(err, 0, 0)
	}
	if !created {
		return core.Failed(0, 0, "bank already exists")
	}
	return core.Succeeded(0, 0)
}

func (e *Economy) DeleteBank(name string) core.EconomyResponse {
	if err := e.store.DeleteBank(name); err != nil {
		return e.failure(err, 0, 0)
	}
	return core.Succeeded(0, 0)
}

func (e *Economy) BankBalance(name string) core.EconomyResponse {
	bank, err := e.store.GetBank(name)
	if err != nil {
		return e.failure(err, 0, 0)
	}
	return core.Succeeded(0, bank.Balance)
}

func (e *Economy) BankHas(name string, amount float64) core.EconomyResponse {
	bank, err := e.store.GetBank(name)
	if err != nil {
		return e.failure(err, amount, 0)
	}
	if bank.Balance < amount {
		return core.Failed(amount, bank.Balance, "bank does not have enough money")
	}
	return core.Succeeded(amount, bank.Balance)
}

func (e *Economy) BankWithdraw(name string, amount float64) core.EconomyResponse {
	if amount < 0 {
		return core.Failed(0, 0, "cannot withdraw negative funds")
	}
	balance, err := e.store.AdjustBankBalance(name, -round(amount))
	if err != nil {
		return e.failure(err, amount, balance)
	}
	return core.Succeeded(amount, balance)
}

func (e *Economy) BankDeposit(name string, amount float64) core.EconomyResponse {
	if amount < 0 {
		return core.Failed(0, 0, "cannot deposit negative funds")
	}
	balance, err := e.store.AdjustBankBalance(name, round(amount))
	if err != nil {
		return e.failure(err, amount, balance)
	}
	return core.Succeeded(amount, balance)
}

func (e *Economy) IsBankOwner(name, player string) core.EconomyResponse {
	bank, err := e.store.GetBank(name)
	if err != nil {
		return e.failure(err, 0, 0)
	}
	if !strings.EqualFold(bank.Owner, player) {
		return core.Failed(0, bank.Balance, "player is not the bank owner")
	}
	return core.Succeeded(0, bank.Balance)
}

func (e *Economy) IsBankMember(name, player string) core.EconomyResponse {
	bank, err := e.store.GetBank(name)
	if err != nil {
		return e.failure(err, 0, 0)
	}
	if strings.EqualFold(bank.Owner, player) {
		return core.Succeeded(0, bank.Balance)
	}
	for _, m := range bank.Members {
		if strings.EqualFold(m, player) {
			return core.Succeeded(0, bank.Balance)
		}
	}
	return core.Failed(0, bank.Balance, "player is not a bank member")
}

func (e *Economy) Banks() []string {
	banks, err := e.store.ListBanks(0, 0)
	if err != nil {
		e.log.WithError(err).Error("list banks failed")
		return nil
	}
	names := make([]string, 0, len(banks))
	for _, b := range banks {
		names = append(names, b.Name)
	}
	return names
}

// Accounts lists every player with an account, for balance conversion.
func (e *Economy) Accounts() []string {
	accounts, err := e.store.ListAccounts(0, 0)
	if err != nil {
		e.log.WithError(err).Error("list accounts failed")
		return nil
	}
	players := make([]string, 0, len(accounts))
	for _, a := range accounts {
		players = append(players, a.Player)
	}
	return players
}

// failure maps store errors to responses. Unexpected errors are logged.
func (e *Economy) failure(err error, amount, balance float64) core.EconomyResponse {
	switch {
	case errors.Is(err, ErrNoAccount), errors.Is(err, ErrNoBank), errors.Is(err, ErrInsufficientFunds):
		return core.Failed(amount, balance, err.Error())
	default:
		e.log.WithError(err).Error("ledger query failed")
		return core.Failed(amount, balance, "internal ledger error")
	}
}

func round(v float64) float64 {
	p := math.Pow10(fractionalDigits)
	return math.Round(v*p) / p
}
