package domain

import "github.com/shopspring/decimal"

var (
	// 利率上下限 (百分比)
	MaxInterestRate = decimal.NewFromInt(1000)
	MinInterestRate = decimal.NewFromInt(-100)

	oneHundred = decimal.NewFromInt(100)
)

// Outstanding 追蹤單一帳戶的貸款餘額，餘額恆 >= 0
type Outstanding struct {
	balance decimal.Decimal
}

// CurrentBalance 回傳目前未償餘額
func (o *Outstanding) CurrentBalance() decimal.Decimal {
	return o.balance
}

// Append 增加未償餘額 (撥款)
func (o *Outstanding) Append(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return InvalidAmount(OpGrantOutstanding, "", amount)
	}
	o.balance = o.balance.Add(amount)
	return nil
}

// Subtract 減少未償餘額 (還款)
//
// Only the upper bound is checked here. Zero or negative amounts pass through;
// the ledger rejects them before calling.
func (o *Outstanding) Subtract(amount decimal.Decimal) error {
	if err := o.CheckWithinBalance(amount); err != nil {
		return err
	}
	o.balance = o.balance.Sub(amount)
	return nil
}

// CheckWithinBalance 檢查金額是否未超過未償餘額
func (o *Outstanding) CheckWithinBalance(amount decimal.Decimal) error {
	if amount.GreaterThan(o.balance) {
		return ExceedsBalance(OpRepayOutstanding, "", amount, o.balance)
	}
	return nil
}

// ConfirmAgainstPool 檢查撥款金額是否在營運資金範圍內
func (o *Outstanding) ConfirmAgainstPool(amount, poolFunds decimal.Decimal) error {
	if amount.GreaterThan(poolFunds) {
		return InsufficientPool(OpGrantOutstanding, "", amount, poolFunds)
	}
	return nil
}

// ApplyInterest 依百分比利率調整未償餘額: balance *= 1 + rate/100
//
// 參數:
//
//	ratePercent: 介於 -100 與 1000 之間
//
// 回傳:
//
//	error: ErrInvalidRate 或 ErrZeroBalanceInterest
func (o *Outstanding) ApplyInterest(ratePercent decimal.Decimal) error {
	if err := o.CheckInterest(ratePercent); err != nil {
		return err
	}
	factor := decimal.NewFromInt(1).Add(ratePercent.Div(oneHundred))
	o.balance = o.balance.Mul(factor)
	return nil
}

// CheckInterest 驗證利率與餘額，不做變更
func (o *Outstanding) CheckInterest(ratePercent decimal.Decimal) error {
	if ratePercent.GreaterThan(MaxInterestRate) || ratePercent.LessThan(MinInterestRate) {
		return InvalidRate("", ratePercent)
	}
	if o.balance.IsZero() {
		return ZeroBalanceInterest("", ratePercent)
	}
	return nil
}

// SetBalance 直接覆寫餘額，不做任何檢查 (管理/測試用)
func (o *Outstanding) SetBalance(value decimal.Decimal) {
	o.balance = value
}
