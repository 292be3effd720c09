// ABOUTME: Economy capability contract that economy providers implement.
// ABOUTME: Balances are float64 amounts in the provider's own currency.

package core

// ResponseType is the outcome of an economy transaction.
type ResponseType int

const (
	ResponseSuccess ResponseType = iota + 1
	ResponseFailure
	ResponseNotImplemented
)

func (t ResponseType) String() string {
	switch t {
	case ResponseSuccess:
		return "success"
	case ResponseFailure:
		return "failure"
	case ResponseNotImplemented:
		return "not_implemented"
	default:
		return "unknown"
	}
}

// EconomyResponse reports what an economy call did.
type EconomyResponse struct {
	Amount   float64      // amount modified by the call
	Balance  float64      // balance after the call
	Type     ResponseType // outcome
	ErrorMsg string       // set when Type is not ResponseSuccess
}

// Success reports whether the transaction went through.
func (r EconomyResponse) Success() bool {
	return r.Type == ResponseSuccess
}

// Succeeded builds a success response.
func Succeeded(amount, balance float64) EconomyResponse {
	return EconomyResponse{Amount: amount, Balance: balance, Type: ResponseSuccess}
}

// Failed builds a failure response.
func Failed(amount, balance float64, msg string) EconomyResponse {
	return EconomyResponse{Amount: amount, Balance: balance, Type: ResponseFailure, ErrorMsg: msg}
}

// NotImplemented is returned by providers that lack a feature, e.g. banks.
func NotImplemented(feature string) EconomyResponse {
	return EconomyResponse{Type: ResponseNotImplemented, ErrorMsg: feature + " not supported"}
}

// Economy is the contract for currency providers.
type Economy interface {
	Handle

	HasBankSupport() bool
	// FractionalDigits is the number of decimal places kept, or -1 if unbounded.
	FractionalDigits() int
	Format(amount float64) string
	CurrencyNameSingular() string
	CurrencyNamePlural() string

	HasAccount(player string) bool
	CreateAccount(player string) bool
	Balance(player string) float64
	Has(player string, amount float64) bool
	Withdraw(player string, amount float64) EconomyResponse
	Deposit(player string, amount float64) EconomyResponse

	CreateBank(name, owner string) EconomyResponse
	DeleteBank(name string) EconomyResponse
	BankBalance(name string) EconomyResponse
	BankHas(name string, amount float64) EconomyResponse
	BankWithdraw(name string, amount float64) EconomyResponse
	BankDeposit(name string, amount float64) EconomyResponse
	IsBankOwner(name, player string) EconomyResponse
	IsBankMember(name, player string) EconomyResponse
	Banks() []string
}

// AccountLister is implemented by economies that can enumerate their
// accounts. Balance conversion requires it on the source provider.
type AccountLister interface {
	Accounts() []string
}
