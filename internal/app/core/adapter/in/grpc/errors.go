package grpc

import (
	"context"
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-bank/internal/app/core/usecase"
)

// errorDomain ErrorInfo.Domain
const errorDomain = "bank.v1"

// statusCode 將帳本錯誤對應到 gRPC code
func statusCode(err error) codes.Code {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrLimitExceeded),
		errors.Is(err, domain.ErrInvalidRate):
		return codes.InvalidArgument
	case errors.Is(err, domain.ErrAccountNotFound):
		return codes.NotFound
	case errors.Is(err, domain.ErrAccountAlreadyExists),
		errors.Is(err, usecase.ErrRefIDReused):
		return codes.AlreadyExists
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrInsufficientPool),
		errors.Is(err, domain.ErrExceedsBalance),
		errors.Is(err, domain.ErrZeroBalanceInterest),
		errors.Is(err, domain.ErrNonZeroOutstanding):
		return codes.FailedPrecondition
	case errors.Is(err, domain.ErrLedgerStopped),
		errors.Is(err, domain.ErrLedgerNotStarted):
		return codes.Unavailable
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

// toStatus 轉成 gRPC status，帳本錯誤附上 ErrorInfo 讓 client 還原種類
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	st := status.New(statusCode(err), err.Error())
	info := &errdetails.ErrorInfo{
		Reason: domain.Reason(err),
		Domain: errorDomain,
	}
	if le, ok := domain.AsLedgerError(err); ok {
		info.Metadata = map[string]string{
			"op":     string(le.Op),
			"owner":  le.Owner,
			"amount": le.Amount.String(),
			"bound":  le.Bound.String(),
		}
	}
	if detailed, detailErr := st.WithDetails(info); detailErr == nil {
		st = detailed
	}
	return st.Err()
}

// RemoteError 伺服器回傳的帳本錯誤，Unwrap 為對應的 domain sentinel
type RemoteError struct {
	Code    codes.Code
	Reason  string
	Message string
	Kind    error
}

func (e *RemoteError) Error() string {
	return e.Message
}

func (e *RemoteError) Unwrap() error {
	return e.Kind
}

// GRPCStatus 讓 status.Code 等函式仍可取得原本的 code
func (e *RemoteError) GRPCStatus() *status.Status {
	return status.New(e.Code, e.Message)
}

// fromStatus 還原伺服器端的錯誤種類，讓呼叫端可以用 errors.Is 判斷
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, detail := range st.Details() {
		info, ok := detail.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != errorDomain {
			continue
		}
		kind := domain.KindOf(info.GetReason())
		if kind == nil {
			break
		}
		return &RemoteError{
			Code:    st.Code(),
			Reason:  info.GetReason(),
			Message: st.Message(),
			Kind:    kind,
		}
	}
	return err
}
