package domain

import "github.com/shopspring/decimal"

// Limits 單筆交易上限，三者皆須為正數
type Limits struct {
	MaxDeposit     decimal.Decimal `json:"max_deposit"`
	MaxWithdraw    decimal.Decimal `json:"max_withdraw"`
	MaxOutstanding decimal.Decimal `json:"max_outstanding"`
}

// Validate 檢查所有上限皆為正數
func (l Limits) Validate() error {
	if !l.MaxDeposit.IsPositive() {
		return InvalidAmount(OpSetLimits, "", l.MaxDeposit)
	}
	if !l.MaxWithdraw.IsPositive() {
		return InvalidAmount(OpSetLimits, "", l.MaxWithdraw)
	}
	if !l.MaxOutstanding.IsPositive() {
		return InvalidAmount(OpSetLimits, "", l.MaxOutstanding)
	}
	return nil
}

// LimitsUpdate 部分更新，nil 代表不變
type LimitsUpdate struct {
	MaxDeposit     *decimal.Decimal
	MaxWithdraw    *decimal.Decimal
	MaxOutstanding *decimal.Decimal
}

// Apply 回傳套用更新後的新上限
func (u LimitsUpdate) Apply(l Limits) Limits {
	if u.MaxDeposit != nil {
		l.MaxDeposit = *u.MaxDeposit
	}
	if u.MaxWithdraw != nil {
		l.MaxWithdraw = *u.MaxWithdraw
	}
	if u.MaxOutstanding != nil {
		l.MaxOutstanding = *u.MaxOutstanding
	}
	return l
}
