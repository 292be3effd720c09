// ABOUTME: Moves every account balance from one registered economy provider to another.
// ABOUTME: Used when a server switches economy plugins without losing player money.

package convert

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/2389/vault/internal/services"
	"github.com/2389/vault/plugins/core"
)

var (
	ErrProviderNotFound = errors.New("economy provider not registered")
	ErrSameProvider     = errors.New("source and destination are the same provider")
	ErrNotListable      = errors.New("source economy cannot list its accounts")
)

// Failure is one account that could not be moved.
type Failure struct {
	Account string `json:"account"`
	Reason  string `json:"reason"`
}

// Result summarizes a conversion.
type Result struct {
	From     string    `json:"from"`
	To       string    `json:"to"`
	Accounts int       `json:"accounts"`
	Moved    int       `json:"moved"`
	Skipped  int       `json:"skipped"`
	Total    float64   `json:"total"`
	Failures []Failure `json:"failures,omitempty"`
}

// Converter moves balances between economy providers found in a registry.
type Converter struct {
	reg *services.Registry
	log logrus.FieldLogger
}

// New returns a Converter over reg.
func New(reg *services.Registry, log logrus.FieldLogger) *Converter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Converter{reg: reg, log: log.WithField("component", "convert")}
}

// Find returns the registered economy whose provider name matches name,
// ignoring case.
func (c *Converter) Find(name string) (core.Economy, error) {
	for _, rec := range c.reg.Providers(core.KindEconomy) {
		if !strings.EqualFold(rec.Provider, name) {
			continue
		}
		if eco, ok := rec.Handle.(core.Economy); ok {
			return eco, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrProviderNotFound, name)
}

// Convert deposits each source account's balance into the destination and
// withdraws it from the source. Accounts with no positive balance are
// skipped. A failed withdrawal reverses the matching deposit. Per-account
// failures are collected in the result; the returned error is reserved for
// setup problems and cancellation.
func (c *Converter) Convert(ctx context.Context, from, to string) (Result, error) {
	src, err := c.Find(from)
	if err != nil {
		return Result{}, err
	}
	dst, err := c.Find(to)
	if err != nil {
		return Result{}, err
	}
	if src == dst {
		return Result{}, fmt.Errorf("%w: %s", ErrSameProvider, src.Name())
	}
	lister, ok := src.(core.AccountLister)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrNotListable, src.Name())
	}

	res := Result{From: src.Name(), To: dst.Name()}
	log := c.log.WithFields(logrus.Fields{"from": res.From, "to": res.To})

	accounts := lister.Accounts()
	res.Accounts = len(accounts)
	for _, account := range accounts {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		balance := src.Balance(account)
		if balance <= 0 {
			res.Skipped++
			continue
		}

		if reason, ok := move(src, dst, account, balance); !ok {
			log.WithField("account", account).Warnf("conversion failed: %s", reason)
			res.Failures = append(res.Failures, Failure{Account: account, Reason: reason})
			continue
		}
		res.Moved++
		res.Total += balance
	}

	log.WithFields(logrus.Fields{
		"moved":    res.Moved,
		"skipped":  res.Skipped,
		"failures": len(res.Failures),
	}).Info("conversion finished")
	return res, nil
}

func move(src, dst core.Economy, account string, amount float64) (string, bool) {
	if !dst.HasAccount(account) && !dst.CreateAccount(account) {
		return "destination refused to create account", false
	}

	dep := dst.Deposit(account, amount)
	if !dep.Success() {
		return "deposit: " + dep.ErrorMsg, false
	}

	wd := src.Withdraw(account, amount)
	if !wd.Success() {
		if undo := dst.Withdraw(account, amount); !undo.Success() {
			return fmt.Sprintf("withdraw: %s (deposit not reversed: %s)", wd.ErrorMsg, undo.ErrorMsg), false
		}
		return "withdraw: " + wd.ErrorMsg, false
	}
	return "", true
}
