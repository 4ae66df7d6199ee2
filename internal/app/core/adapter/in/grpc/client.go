package grpc

import (
	"context"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
)

// Client 是 BankService 的型別化客戶端
//
// 伺服器回傳的帳本錯誤會還原成 *RemoteError，可用 errors.Is 比對 domain 的錯誤。
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) invoke(ctx context.Context, method string, fields map[string]interface{}) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return nil, fromStatus(err)
	}
	return out, nil
}

func (c *Client) mutate(ctx context.Context, method string, fields map[string]interface{}, refID string) (domain.Receipt, error) {
	if refID != "" {
		fields[fieldRefID] = refID
	}
	out, err := c.invoke(ctx, method, fields)
	if err != nil {
		return domain.Receipt{}, err
	}
	return parseReceipt(out)
}

// OpenAccount refID 可為空字串，重送同一個 refID 只會套用一次
func (c *Client) OpenAccount(ctx context.Context, owner string, startingDeposit decimal.Decimal, refID string) (domain.Receipt, error) {
	return c.mutate(ctx, "OpenAccount", map[string]interface{}{
		fieldOwner:           owner,
		fieldStartingDeposit: startingDeposit.String(),
	}, refID)
}

func (c *Client) CloseAccount(ctx context.Context, owner, refID string) (domain.Receipt, error) {
	return c.mutate(ctx, "CloseAccount", map[string]interface{}{fieldOwner: owner}, refID)
}

func (c *Client) Deposit(ctx context.Context, owner string, amount decimal.Decimal, refID string) (domain.Receipt, error) {
	return c.mutate(ctx, "Deposit", map[string]interface{}{fieldOwner: owner, fieldAmount: amount.String()}, refID)
}

func (c *Client) Withdraw(ctx context.Context, owner string, amount decimal.Decimal, refID string) (domain.Receipt, error) {
	return c.mutate(ctx, "Withdraw", map[string]interface{}{fieldOwner: owner, fieldAmount: amount.String()}, refID)
}

func (c *Client) GrantOutstanding(ctx context.Context, owner string, amount decimal.Decimal, refID string) (domain.Receipt, error) {
	return c.mutate(ctx, "GrantOutstanding", map[string]interface{}{fieldOwner: owner, fieldAmount: amount.String()}, refID)
}

func (c *Client) RepayOutstanding(ctx context.Context, owner string, amount decimal.Decimal, refID string) (domain.Receipt, error) {
	return c.mutate(ctx, "RepayOutstanding", map[string]interface{}{fieldOwner: owner, fieldAmount: amount.String()}, refID)
}

func (c *Client) ApplyInterest(ctx context.Context, owner string, ratePercent decimal.Decimal, refID string) (domain.Receipt, error) {
	return c.mutate(ctx, "ApplyInterest", map[string]interface{}{fieldOwner: owner, fieldRate: ratePercent.String()}, refID)
}

func (c *Client) GetAccount(ctx context.Context, owner string) (domain.AccountSnapshot, error) {
	out, err := c.invoke(ctx, "GetAccount", map[string]interface{}{fieldOwner: owner})
	if err != nil {
		return domain.AccountSnapshot{}, err
	}
	return parseSnapshot(out)
}

func (c *Client) ListAccounts(ctx context.Context) ([]domain.AccountSnapshot, error) {
	out, err := c.invoke(ctx, "ListAccounts", map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	values := out.GetFields()[fieldAccounts].GetListValue().GetValues()
	accounts := make([]domain.AccountSnapshot, 0, len(values))
	for _, v := range values {
		snapshot, err := parseSnapshot(v.GetStructValue())
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, snapshot)
	}
	return accounts, nil
}

func (c *Client) OperatingFunds(ctx context.Context) (decimal.Decimal, error) {
	out, err := c.invoke(ctx, "GetOperatingFunds", map[string]interface{}{})
	if err != nil {
		return decimal.Zero, err
	}
	return requiredDecimal(out, fieldOperatingFunds)
}

func (c *Client) Limits(ctx context.Context) (domain.Limits, error) {
	out, err := c.invoke(ctx, "GetLimits", map[string]interface{}{})
	if err != nil {
		return domain.Limits{}, err
	}
	return parseLimits(out)
}

func (c *Client) SetLimits(ctx context.Context, update domain.LimitsUpdate) (domain.Limits, error) {
	fields := map[string]interface{}{}
	if update.MaxDeposit != nil {
		fields[fieldMaxDeposit] = update.MaxDeposit.String()
	}
	if update.MaxWithdraw != nil {
		fields[fieldMaxWithdraw] = update.MaxWithdraw.String()
	}
	if update.MaxOutstanding != nil {
		fields[fieldMaxOutstanding] = update.MaxOutstanding.String()
	}
	out, err := c.invoke(ctx, "SetLimits", fields)
	if err != nil {
		return domain.Limits{}, err
	}
	return parseLimits(out)
}
