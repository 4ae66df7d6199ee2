package grpc

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-bank/internal/app/core/usecase"
)

// ServiceName gRPC 服務全名
const ServiceName = "bank.v1.BankService"

// BankServiceServer 每個方法的請求與回應皆為 google.protobuf.Struct
type BankServiceServer interface {
	OpenAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CloseAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Deposit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Withdraw(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GrantOutstanding(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RepayOutstanding(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ApplyInterest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListAccounts(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetOperatingFunds(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetLimits(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetLimits(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(BankServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func methodDesc(name string, call unaryMethod) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(BankServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(BankServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc 手寫的服務描述，訊息使用內建的 structpb，不需要產生程式碼
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BankServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		methodDesc("OpenAccount", BankServiceServer.OpenAccount),
		methodDesc("CloseAccount", BankServiceServer.CloseAccount),
		methodDesc("Deposit", BankServiceServer.Deposit),
		methodDesc("Withdraw", BankServiceServer.Withdraw),
		methodDesc("GrantOutstanding", BankServiceServer.GrantOutstanding),
		methodDesc("RepayOutstanding", BankServiceServer.RepayOutstanding),
		methodDesc("ApplyInterest", BankServiceServer.ApplyInterest),
		methodDesc("GetAccount", BankServiceServer.GetAccount),
		methodDesc("ListAccounts", BankServiceServer.ListAccounts),
		methodDesc("GetOperatingFunds", BankServiceServer.GetOperatingFunds),
		methodDesc("GetLimits", BankServiceServer.GetLimits),
		methodDesc("SetLimits", BankServiceServer.SetLimits),
	},
	// 沒有對應的 .proto 檔，訊息一律是 structpb.Struct，因此不設定 Metadata 也不註冊 reflection
	Streams: []grpc.StreamDesc{},
}

type GrpcServer struct {
	core *usecase.CoreUseCase
}

func NewGrpcServer(core *usecase.CoreUseCase) *GrpcServer {
	return &GrpcServer{
		core: core,
	}
}

// Register 將服務註冊到 gRPC server
func (s *GrpcServer) Register(registrar grpc.ServiceRegistrar) {
	registrar.RegisterService(&ServiceDesc, s)
}

// withRefID 解析 ref_id 並放入 context，ref_id 可省略但必須是 UUID
func withRefID(ctx context.Context, req *structpb.Struct) (context.Context, error) {
	refID := stringField(req, fieldRefID)
	if refID == "" {
		return ctx, nil
	}
	u, err := uuid.Parse(refID)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid ref_id: %v", err)
	}
	return usecase.WithRefID(ctx, u.String()), nil
}

type amountOp func(ctx context.Context, owner string, amount decimal.Decimal) (domain.Receipt, error)

// applyAmount 處理 {owner, <amountKey>, ref_id} 形式的變更請求
//
// 參數:
//
//	req: 請求
//	amountKey: 金額欄位名稱
//	op: 實際呼叫的操作
//
// 回傳:
//
//	*structpb.Struct: 帳戶快照與營運資金
//	error: gRPC status
func (s *GrpcServer) applyAmount(ctx context.Context, req *structpb.Struct, amountKey string, op amountOp) (*structpb.Struct, error) {
	// 1. 欄位檢查
	owner, err := requiredOwner(req)
	if err != nil {
		return nil, err
	}
	amount, err := requiredDecimal(req, amountKey)
	if err != nil {
		return nil, err
	}
	ctx, err = withRefID(ctx, req)
	if err != nil {
		return nil, err
	}

	// 2. 執行交易
	receipt, err := op(ctx, owner, amount)
	if err != nil {
		return nil, toStatus(err)
	}
	return receiptStruct(receipt)
}

func (s *GrpcServer) OpenAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.applyAmount(ctx, req, fieldStartingDeposit, s.core.OpenAccount)
}

func (s *GrpcServer) CloseAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner, err := requiredOwner(req)
	if err != nil {
		return nil, err
	}
	ctx, err = withRefID(ctx, req)
	if err != nil {
		return nil, err
	}
	receipt, err := s.core.CloseAccount(ctx, owner)
	if err != nil {
		return nil, toStatus(err)
	}
	return receiptStruct(receipt)
}

func (s *GrpcServer) Deposit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.applyAmount(ctx, req, fieldAmount, s.core.Deposit)
}

func (s *GrpcServer) Withdraw(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.applyAmount(ctx, req, fieldAmount, s.core.Withdraw)
}

func (s *GrpcServer) GrantOutstanding(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.applyAmount(ctx, req, fieldAmount, s.core.GrantOutstanding)
}

func (s *GrpcServer) RepayOutstanding(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.applyAmount(ctx, req, fieldAmount, s.core.RepayOutstanding)
}

func (s *GrpcServer) ApplyInterest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.applyAmount(ctx, req, fieldRate, s.core.ApplyInterest)
}

func (s *GrpcServer) GetAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner, err := requiredOwner(req)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.core.GetAccount(ctx, owner)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(snapshotValue(snapshot))
}

func (s *GrpcServer) ListAccounts(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	accounts, err := s.core.ListAccounts(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	list := make([]interface{}, 0, len(accounts))
	for _, a := range accounts {
		list = append(list, snapshotValue(a))
	}
	return structpb.NewStruct(map[string]interface{}{fieldAccounts: list})
}

func (s *GrpcServer) GetOperatingFunds(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	funds, err := s.core.OperatingFunds(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]interface{}{fieldOperatingFunds: funds.String()})
}

func (s *GrpcServer) GetLimits(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	limits, err := s.core.Limits(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return limitsStruct(limits)
}

// SetLimits 只更新有帶的欄位
func (s *GrpcServer) SetLimits(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var (
		update domain.LimitsUpdate
		err    error
	)
	if update.MaxDeposit, err = optionalDecimal(req, fieldMaxDeposit); err != nil {
		return nil, err
	}
	if update.MaxWithdraw, err = optionalDecimal(req, fieldMaxWithdraw); err != nil {
		return nil, err
	}
	if update.MaxOutstanding, err = optionalDecimal(req, fieldMaxOutstanding); err != nil {
		return nil, err
	}
	limits, err := s.core.SetLimits(ctx, update)
	if err != nil {
		return nil, toStatus(err)
	}
	return limitsStruct(limits)
}

var _ BankServiceServer = (*GrpcServer)(nil)
