package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
)

// ErrRefIDReused 同一個追蹤號被用在不同的請求 (操作、帳戶或金額不同)
var ErrRefIDReused = errors.New("ref_id already used by another request")

// reasonRefIDReused 是 ErrRefIDReused 在日誌與指標上的 reason
const reasonRefIDReused = "ref_id_reused"

const (
	meterName              = "github.com/JoeShih716/go-mem-bank/core"
	DefaultIdempotencyTTL  = 10 * time.Minute
	idempotencyCleanupTick = time.Minute
)

// CoreUseCase 是核心業務邏輯層
//
// 在 Ledger 之上補上日誌、指標與以追蹤號 (ref id) 為鍵的冪等處理。
type CoreUseCase struct {
	ledger  Ledger
	logger  *zap.Logger
	meters  metric.MeterProvider
	metrics coreMetrics

	ttl        time.Duration
	processed  *cache.Cache
	inflightMu sync.Mutex
	inflight   map[string]chan struct{}
}

// Option 設定 CoreUseCase
type Option func(*CoreUseCase)

// WithLogger 指定 logger，預設為 zap.NewNop()
func WithLogger(logger *zap.Logger) Option {
	return func(c *CoreUseCase) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMeterProvider 指定 MeterProvider，預設使用 otel 全域 provider
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(c *CoreUseCase) {
		if provider != nil {
			c.meters = provider
		}
	}
}

// WithIdempotencyTTL 追蹤號保留時間，0 代表關閉冪等處理
func WithIdempotencyTTL(ttl time.Duration) Option {
	return func(c *CoreUseCase) {
		c.ttl = ttl
	}
}

// NewCoreUseCase 建立 CoreUseCase
//
// 參數:
//
//	ledger: 實際的帳本引擎
//	opts: 選項
//
// 回傳:
//
//	*CoreUseCase: 實例
//	error: 指標建立失敗
func NewCoreUseCase(ledger Ledger, opts ...Option) (*CoreUseCase, error) {
	c := &CoreUseCase{
		ledger:   ledger,
		logger:   zap.NewNop(),
		ttl:      DefaultIdempotencyTTL,
		inflight: make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.meters == nil {
		c.meters = otel.GetMeterProvider()
	}
	if c.ttl > 0 {
		c.processed = cache.New(c.ttl, idempotencyCleanupTick)
	}

	metrics, err := newCoreMetrics(c.meters, ledger)
	if err != nil {
		return nil, err
	}
	c.metrics = metrics
	return c, nil
}

type coreMetrics struct {
	operations metric.Int64Counter
	latency    metric.Float64Histogram
}

func newCoreMetrics(provider metric.MeterProvider, ledger Ledger) (coreMetrics, error) {
	meter := provider.Meter(meterName)

	var (
		metrics coreMetrics
		err     error
	)

	metrics.operations, err = meter.Int64Counter(
		"bank.operations",
		metric.WithDescription("Number of ledger operations by operation and result"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return coreMetrics{}, fmt.Errorf("create bank.operations counter: %w", err)
	}

	metrics.latency, err = meter.Float64Histogram(
		"bank.operation.duration",
		metric.WithDescription("Time taken per ledger operation"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return coreMetrics{}, fmt.Errorf("create bank.operation.duration histogram: %w", err)
	}

	_, err = meter.Float64ObservableGauge(
		"bank.operating_funds",
		metric.WithDescription("Operating funds currently held by the bank"),
		metric.WithFloat64Callback(func(ctx context.Context, o metric.Float64Observer) error {
			funds, err := ledger.OperatingFunds(ctx)
			if err != nil {
				return err
			}
			o.Observe(funds.InexactFloat64())
			return nil
		}),
	)
	if err != nil {
		return coreMetrics{}, fmt.Errorf("create bank.operating_funds gauge: %w", err)
	}

	return metrics, nil
}

// observe 記錄一次操作的日誌與指標
//
// 業務拒絕記 Warn，其餘錯誤 (journal、引擎停止、ctx) 記 Error。
func (c *CoreUseCase) observe(ctx context.Context, op domain.Op, start time.Time, err error, fields ...zap.Field) {
	elapsed := time.Since(start)
	reason, rejected := classify(err)
	attrs := metric.WithAttributes(
		attribute.String("op", string(op)),
		attribute.String("result", reason),
	)
	c.metrics.operations.Add(ctx, 1, attrs)
	c.metrics.latency.Record(ctx, elapsed.Seconds(), attrs)

	fields = append(fields, zap.String("op", string(op)), zap.Duration("elapsed", elapsed))
	if refID := RefIDFromContext(ctx); refID != "" {
		fields = append(fields, zap.String("ref_id", refID))
	}

	switch {
	case err == nil:
		c.logger.Info("ledger operation applied", fields...)
	case rejected:
		c.logger.Warn("ledger operation rejected", append(fields, zap.String("reason", reason), zap.Error(err))...)
	default:
		c.logger.Error("ledger operation failed", append(fields, zap.String("reason", reason), zap.Error(err))...)
	}
}

// classify 回傳 reason，以及是否為業務上的拒絕
func classify(err error) (string, bool) {
	if errors.Is(err, ErrRefIDReused) {
		return reasonRefIDReused, true
	}
	_, rejected := domain.AsLedgerError(err)
	return domain.Reason(err), rejected
}

// request 是冪等比對的鍵，同一個 ref id 必須對應同一個 request
type request struct {
	op     domain.Op
	owner  string
	amount string
}

func newRequest(op domain.Op, owner string, amount decimal.Decimal) request {
	// 正規化後比較，"100" 與 "100.00" 視為相同
	return request{op: op, owner: owner, amount: amount.String()}
}

type processedEntry struct {
	request request
	receipt domain.Receipt
}

// mutate 執行一筆變更並處理冪等
//
// 同一個 ref id 在 TTL 內只會套用一次，重送直接回傳第一次的結果；
// 併發的重送會等待第一次完成。只有成功的結果會被記住。
// 操作、帳戶或金額不同的重送回傳 ErrRefIDReused。
func (c *CoreUseCase) mutate(ctx context.Context, req request, fields []zap.Field, apply func(ctx context.Context) (domain.Receipt, error)) (domain.Receipt, error) {
	start := time.Now()
	receipt, replayed, err := c.once(ctx, req, apply)
	if replayed {
		c.logger.Info("ledger operation replayed", append(fields,
			zap.String("op", string(req.op)),
			zap.String("ref_id", RefIDFromContext(ctx)),
			zap.Uint64("seq", receipt.Sequence),
		)...)
		return receipt, nil
	}
	if err == nil {
		fields = append(fields,
			zap.Uint64("seq", receipt.Sequence),
			zap.String("operating_funds", receipt.OperatingFunds.String()),
		)
	}
	c.observe(ctx, req.op, start, err, fields...)
	return receipt, err
}

func (c *CoreUseCase) once(ctx context.Context, req request, apply func(ctx context.Context) (domain.Receipt, error)) (domain.Receipt, bool, error) {
	refID := RefIDFromContext(ctx)
	if refID == "" || c.processed == nil {
		receipt, err := apply(ctx)
		return receipt, false, err
	}

	for {
		c.inflightMu.Lock()
		if v, ok := c.processed.Get(refID); ok {
			c.inflightMu.Unlock()
			entry := v.(processedEntry)
			if entry.request != req {
				first := entry.request
				return domain.Receipt{}, false, fmt.Errorf("%w: ref_id=%s first=%s owner=%s amount=%s",
					ErrRefIDReused, refID, first.op, first.owner, first.amount)
			}
			return entry.receipt, true, nil
		}
		if wait, busy := c.inflight[refID]; busy {
			c.inflightMu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return domain.Receipt{}, false, ctx.Err()
			}
		}
		done := make(chan struct{})
		c.inflight[refID] = done
		c.inflightMu.Unlock()

		receipt, err := apply(ctx)

		c.inflightMu.Lock()
		if err == nil {
			c.processed.SetDefault(refID, processedEntry{request: req, receipt: receipt})
		}
		delete(c.inflight, refID)
		close(done)
		c.inflightMu.Unlock()
		return receipt, false, err
	}
}

func amountFields(owner string, amount decimal.Decimal) []zap.Field {
	return []zap.Field{zap.String("owner", owner), zap.String("amount", amount.String())}
}

// OpenAccount 開戶
func (c *CoreUseCase) OpenAccount(ctx context.Context, owner string, startingDeposit decimal.Decimal) (domain.Receipt, error) {
	return c.mutate(ctx, newRequest(domain.OpOpenAccount, owner, startingDeposit), amountFields(owner, startingDeposit), func(ctx context.Context) (domain.Receipt, error) {
		return c.ledger.OpenAccount(ctx, owner, startingDeposit)
	})
}

// CloseAccount 關戶
func (c *CoreUseCase) CloseAccount(ctx context.Context, owner string) (domain.Receipt, error) {
	return c.mutate(ctx, newRequest(domain.OpCloseAccount, owner, decimal.Zero), []zap.Field{zap.String("owner", owner)}, func(ctx context.Context) (domain.Receipt, error) {
		return c.ledger.CloseAccount(ctx, owner)
	})
}

// Deposit 存款
func (c *CoreUseCase) Deposit(ctx context.Context, owner string, amount decimal.Decimal) (domain.Receipt, error) {
	return c.mutate(ctx, newRequest(domain.OpDeposit, owner, amount), amountFields(owner, amount), func(ctx context.Context) (domain.Receipt, error) {
		return c.ledger.Deposit(ctx, owner, amount)
	})
}

// Withdraw 提款
func (c *CoreUseCase) Withdraw(ctx context.Context, owner string, amount decimal.Decimal) (domain.Receipt, error) {
	return c.mutate(ctx, newRequest(domain.OpWithdraw, owner, amount), amountFields(owner, amount), func(ctx context.Context) (domain.Receipt, error) {
		return c.ledger.Withdraw(ctx, owner, amount)
	})
}

// GrantOutstanding 撥款
func (c *CoreUseCase) GrantOutstanding(ctx context.Context, owner string, amount decimal.Decimal) (domain.Receipt, error) {
	return c.mutate(ctx, newRequest(domain.OpGrantOutstanding, owner, amount), amountFields(owner, amount), func(ctx context.Context) (domain.Receipt, error) {
		return c.ledger.GrantOutstanding(ctx, owner, amount)
	})
}

// RepayOutstanding 還款
func (c *CoreUseCase) RepayOutstanding(ctx context.Context, owner string, amount decimal.Decimal) (domain.Receipt, error) {
	return c.mutate(ctx, newRequest(domain.OpRepayOutstanding, owner, amount), amountFields(owner, amount), func(ctx context.Context) (domain.Receipt, error) {
		return c.ledger.RepayOutstanding(ctx, owner, amount)
	})
}

// ApplyInterest 計息
func (c *CoreUseCase) ApplyInterest(ctx context.Context, owner string, ratePercent decimal.Decimal) (domain.Receipt, error) {
	fields := []zap.Field{zap.String("owner", owner), zap.String("rate", ratePercent.String())}
	return c.mutate(ctx, newRequest(domain.OpApplyInterest, owner, ratePercent), fields, func(ctx context.Context) (domain.Receipt, error) {
		return c.ledger.ApplyInterest(ctx, owner, ratePercent)
	})
}

// GetAccountBalance 取得帳戶餘額
func (c *CoreUseCase) GetAccountBalance(ctx context.Context, owner string) (decimal.Decimal, error) {
	return c.ledger.GetAccountBalance(ctx, owner)
}

// GetOutstandingBalance 取得未償餘額
func (c *CoreUseCase) GetOutstandingBalance(ctx context.Context, owner string) (decimal.Decimal, error) {
	return c.ledger.GetOutstandingBalance(ctx, owner)
}

func (c *CoreUseCase) GetAccount(ctx context.Context, owner string) (domain.AccountSnapshot, error) {
	return c.ledger.GetAccount(ctx, owner)
}

func (c *CoreUseCase) ListAccounts(ctx context.Context) ([]domain.AccountSnapshot, error) {
	return c.ledger.ListAccounts(ctx)
}

func (c *CoreUseCase) OperatingFunds(ctx context.Context) (decimal.Decimal, error) {
	return c.ledger.OperatingFunds(ctx)
}

func (c *CoreUseCase) Limits(ctx context.Context) (domain.Limits, error) {
	return c.ledger.Limits(ctx)
}

// SetLimits 更新上限，任一值非正數則整筆拒絕
func (c *CoreUseCase) SetLimits(ctx context.Context, update domain.LimitsUpdate) (domain.Limits, error) {
	start := time.Now()
	limits, err := c.ledger.SetLimits(ctx, update)
	var fields []zap.Field
	if err == nil {
		fields = append(fields,
			zap.String("max_deposit", limits.MaxDeposit.String()),
			zap.String("max_withdraw", limits.MaxWithdraw.String()),
			zap.String("max_outstanding", limits.MaxOutstanding.String()),
		)
	}
	c.observe(ctx, domain.OpSetLimits, start, err, fields...)
	return limits, err
}

func (c *CoreUseCase) SetMaxDeposit(ctx context.Context, value decimal.Decimal) (domain.Limits, error) {
	return c.SetLimits(ctx, domain.LimitsUpdate{MaxDeposit: &value})
}

func (c *CoreUseCase) SetMaxWithdraw(ctx context.Context, value decimal.Decimal) (domain.Limits, error) {
	return c.SetLimits(ctx, domain.LimitsUpdate{MaxWithdraw: &value})
}

func (c *CoreUseCase) SetMaxOutstanding(ctx context.Context, value decimal.Decimal) (domain.Limits, error) {
	return c.SetLimits(ctx, domain.LimitsUpdate{MaxOutstanding: &value})
}

var _ Ledger = (*CoreUseCase)(nil)
