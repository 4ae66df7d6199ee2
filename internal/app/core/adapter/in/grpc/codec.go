package grpc

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
)

// 訊息欄位名稱，金額一律以字串傳遞
const (
	fieldOwner           = "owner"
	fieldAmount          = "amount"
	fieldStartingDeposit = "starting_deposit"
	fieldRate            = "rate"
	fieldRefID           = "ref_id"
	fieldBalance         = "balance"
	fieldOutstanding     = "outstanding"
	fieldAccount         = "account"
	fieldAccounts        = "accounts"
	fieldOperatingFunds  = "operating_funds"
	fieldTransactionID   = "transaction_id"
	fieldSeq             = "seq"
	fieldMaxDeposit      = "max_deposit"
	fieldMaxWithdraw     = "max_withdraw"
	fieldMaxOutstanding  = "max_outstanding"
)

func stringField(msg *structpb.Struct, key string) string {
	return msg.GetFields()[key].GetStringValue()
}

// decimalField 讀取金額欄位，接受字串或數字
func decimalField(msg *structpb.Struct, key string) (decimal.Decimal, bool, error) {
	v, ok := msg.GetFields()[key]
	if !ok {
		return decimal.Zero, false, nil
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		d, err := decimal.NewFromString(kind.StringValue)
		if err != nil {
			return decimal.Zero, true, fmt.Errorf("%s: %w", key, err)
		}
		return d, true, nil
	case *structpb.Value_NumberValue:
		// NaN / Inf 無法轉成 decimal
		if math.IsNaN(kind.NumberValue) || math.IsInf(kind.NumberValue, 0) {
			return decimal.Zero, true, fmt.Errorf("%s: not a finite number", key)
		}
		return decimal.NewFromFloat(kind.NumberValue), true, nil
	default:
		return decimal.Zero, true, fmt.Errorf("%s: expected decimal string", key)
	}
}

// requiredDecimal 同 decimalField，缺欄位或格式錯誤回傳 InvalidArgument
func requiredDecimal(msg *structpb.Struct, key string) (decimal.Decimal, error) {
	d, ok, err := decimalField(msg, key)
	if err != nil {
		return decimal.Zero, status.Errorf(codes.InvalidArgument, "invalid %v", err)
	}
	if !ok {
		return decimal.Zero, status.Errorf(codes.InvalidArgument, "%s is required", key)
	}
	return d, nil
}

func optionalDecimal(msg *structpb.Struct, key string) (*decimal.Decimal, error) {
	d, ok, err := decimalField(msg, key)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid %v", err)
	}
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func requiredOwner(msg *structpb.Struct) (string, error) {
	owner := stringField(msg, fieldOwner)
	if owner == "" {
		return "", status.Error(codes.InvalidArgument, "owner is required")
	}
	return owner, nil
}

func snapshotValue(s domain.AccountSnapshot) map[string]interface{} {
	return map[string]interface{}{
		fieldOwner:       s.Owner,
		fieldBalance:     s.Balance.String(),
		fieldOutstanding: s.Outstanding.String(),
	}
}

func receiptStruct(r domain.Receipt) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		fieldTransactionID:  r.TransactionID.String(),
		fieldSeq:            float64(r.Sequence),
		fieldAccount:        snapshotValue(r.Account),
		fieldOperatingFunds: r.OperatingFunds.String(),
	})
}

func limitsStruct(l domain.Limits) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		fieldMaxDeposit:     l.MaxDeposit.String(),
		fieldMaxWithdraw:    l.MaxWithdraw.String(),
		fieldMaxOutstanding: l.MaxOutstanding.String(),
	})
}

func parseSnapshot(msg *structpb.Struct) (domain.AccountSnapshot, error) {
	balance, err := requiredDecimal(msg, fieldBalance)
	if err != nil {
		return domain.AccountSnapshot{}, err
	}
	outstanding, err := requiredDecimal(msg, fieldOutstanding)
	if err != nil {
		return domain.AccountSnapshot{}, err
	}
	return domain.AccountSnapshot{
		Owner:       stringField(msg, fieldOwner),
		Balance:     balance,
		Outstanding: outstanding,
	}, nil
}

func parseReceipt(msg *structpb.Struct) (domain.Receipt, error) {
	id, err := uuid.Parse(stringField(msg, fieldTransactionID))
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("transaction_id: %w", err)
	}
	account, err := parseSnapshot(msg.GetFields()[fieldAccount].GetStructValue())
	if err != nil {
		return domain.Receipt{}, err
	}
	funds, err := requiredDecimal(msg, fieldOperatingFunds)
	if err != nil {
		return domain.Receipt{}, err
	}
	return domain.Receipt{
		TransactionID:  id,
		Sequence:       uint64(msg.GetFields()[fieldSeq].GetNumberValue()),
		Account:        account,
		OperatingFunds: funds,
	}, nil
}

func parseLimits(msg *structpb.Struct) (domain.Limits, error) {
	var (
		limits domain.Limits
		err    error
	)
	if limits.MaxDeposit, err = requiredDecimal(msg, fieldMaxDeposit); err != nil {
		return domain.Limits{}, err
	}
	if limits.MaxWithdraw, err = requiredDecimal(msg, fieldMaxWithdraw); err != nil {
		return domain.Limits{}, err
	}
	if limits.MaxOutstanding, err = requiredDecimal(msg, fieldMaxOutstanding); err != nil {
		return domain.Limits{}, err
	}
	return limits, nil
}
