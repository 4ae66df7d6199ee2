package domain

import "github.com/shopspring/decimal"

// Account 持有現金餘額與一份 Outstanding
type Account struct {
	owner       string
	balance     decimal.Decimal
	outstanding Outstanding
}

func NewAccount(owner string, balance decimal.Decimal) *Account {
	return &Account{
		owner:   owner,
		balance: balance,
	}
}

// Owner 帳戶擁有者
func (a *Account) Owner() string {
	return a.owner
}

// Balance 現金餘額
func (a *Account) Balance() decimal.Decimal {
	return a.balance
}

// CheckSufficientFunds 檢查餘額是否足以支付
func (a *Account) CheckSufficientFunds(amount decimal.Decimal) error {
	if amount.GreaterThan(a.balance) {
		return InsufficientFunds(OpWithdraw, a.owner, amount, a.balance)
	}
	return nil
}

// Deposit 存款，金額合法性由 Ledger 負責
func (a *Account) Deposit(amount decimal.Decimal) {
	a.balance = a.balance.Add(amount)
}

// Withdraw 提款
func (a *Account) Withdraw(amount decimal.Decimal) error {
	if err := a.CheckSufficientFunds(amount); err != nil {
		return err
	}
	a.balance = a.balance.Sub(amount)
	return nil
}

func (a *Account) OutstandingBalance() decimal.Decimal {
	return a.outstanding.CurrentBalance()
}

func (a *Account) DrawOutstanding(amount decimal.Decimal) error {
	return a.outstanding.Append(amount)
}

func (a *Account) RepayOutstanding(amount decimal.Decimal) error {
	return a.outstanding.Subtract(amount)
}

func (a *Account) CheckOutstandingWithin(amount decimal.Decimal) error {
	return a.outstanding.CheckWithinBalance(amount)
}

// Outstanding 回傳帳戶所擁有的 Outstanding
func (a *Account) Outstanding() *Outstanding {
	return &a.outstanding
}

// Snapshot 回傳值拷貝，避免外部改寫內部狀態
func (a *Account) Snapshot() AccountSnapshot {
	return AccountSnapshot{
		Owner:       a.owner,
		Balance:     a.balance,
		Outstanding: a.outstanding.CurrentBalance(),
	}
}

// AccountSnapshot 帳戶的唯讀快照
type AccountSnapshot struct {
	Owner       string          `json:"owner"`
	Balance     decimal.Decimal `json:"balance"`
	Outstanding decimal.Decimal `json:"outstanding"`
}
