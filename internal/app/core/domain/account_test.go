package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccount(t *testing.T) {
	a := NewAccount("alice", d("5000"))

	assert.Equal(t, "alice", a.Owner())
	assertDecimal(t, "5000", a.Balance())
	assert.True(t, a.OutstandingBalance().IsZero())
}

func TestAccountDepositIsUnconditional(t *testing.T) {
	a := NewAccount("alice", d("100"))

	a.Deposit(d("50"))
	assertDecimal(t, "150", a.Balance())

	// validation belongs to the ledger
	a.Deposit(d("-20"))
	assertDecimal(t, "130", a.Balance())
}

func TestAccountWithdraw(t *testing.T) {
	a := NewAccount("alice", d("100"))

	require.NoError(t, a.Withdraw(d("30")))
	assertDecimal(t, "70", a.Balance())

	err := a.Withdraw(d("70.01"))
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assertDecimal(t, "70", a.Balance())

	le, ok := AsLedgerError(err)
	require.True(t, ok)
	assert.Equal(t, "alice", le.Owner)
	assertDecimal(t, "70.01", le.Amount)
	assertDecimal(t, "70", le.Bound)

	require.NoError(t, a.Withdraw(d("70")))
	assert.True(t, a.Balance().IsZero())
}

func TestAccountCheckSufficientFunds(t *testing.T) {
	a := NewAccount("bob", d("10"))

	assert.NoError(t, a.CheckSufficientFunds(d("10")))
	assert.ErrorIs(t, a.CheckSufficientFunds(d("11")), ErrInsufficientFunds)
}

func TestAccountOutstandingDelegation(t *testing.T) {
	a := NewAccount("carol", d("1000"))

	require.NoError(t, a.DrawOutstanding(d("400")))
	assertDecimal(t, "400", a.OutstandingBalance())
	assertDecimal(t, "1000", a.Balance())

	assert.ErrorIs(t, a.DrawOutstanding(d("0")), ErrInvalidAmount)
	assert.ErrorIs(t, a.CheckOutstandingWithin(d("401")), ErrExceedsBalance)
	assert.NoError(t, a.CheckOutstandingWithin(d("400")))

	require.NoError(t, a.RepayOutstanding(d("150")))
	assertDecimal(t, "250", a.OutstandingBalance())
	assert.ErrorIs(t, a.RepayOutstanding(d("300")), ErrExceedsBalance)

	require.NoError(t, a.Outstanding().ApplyInterest(d("10")))
	assertDecimal(t, "275", a.OutstandingBalance())
}

func TestAccountSnapshotIsCopy(t *testing.T) {
	a := NewAccount("dave", d("10"))
	require.NoError(t, a.DrawOutstanding(d("5")))

	snap := a.Snapshot()
	a.Deposit(d("90"))

	assertDecimal(t, "10", snap.Balance)
	assertDecimal(t, "5", snap.Outstanding)
	assert.Equal(t, "dave", snap.Owner)
}

func TestLedgerErrorMessage(t *testing.T) {
	err := LimitExceeded(OpDeposit, "alice", d("20000"), d("10000"))
	assert.Equal(t, "deposit: amount exceeds limit (owner=alice) requested=20000 limit=10000", err.Error())

	wrapped := fmt.Errorf("rpc: %w", err)
	assert.ErrorIs(t, wrapped, ErrLimitExceeded)
}

func TestLimits(t *testing.T) {
	l := Limits{MaxDeposit: d("100"), MaxWithdraw: d("50"), MaxOutstanding: d("1000")}
	require.NoError(t, l.Validate())

	md := d("200")
	zero := d("0")
	updated := LimitsUpdate{MaxDeposit: &md}.Apply(l)
	assertDecimal(t, "200", updated.MaxDeposit)
	assertDecimal(t, "50", updated.MaxWithdraw)
	assertDecimal(t, "100", l.MaxDeposit)

	bad := LimitsUpdate{MaxOutstanding: &zero}.Apply(l)
	assert.ErrorIs(t, bad.Validate(), ErrInvalidAmount)
}
