package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
)

// ErrCorrupt 日誌內容與帳本規則不一致
var ErrCorrupt = errors.New("journal corrupt")

// Audit 稽核結果
type Audit struct {
	// Records: 總筆數
	Records int
	// Runs: 段數，每次 seq 從 1 開始算一段
	Runs int
	// LastSeq: 最後一段的最後序號
	LastSeq uint64
	// OperatingFunds: 最後一段結束時的營運資金
	OperatingFunds decimal.Decimal
}

// Verify 依序讀取 r 中的每筆交易並檢查
//
//   - seq 從 1 開始連續遞增；seq 1 代表新的一段，營運資金歸零
//   - funds_after 等於前一筆的 funds_after 加上該筆交易的資金變化
//
// 參數:
//
//	r: JSON lines 格式的日誌
//
// 回傳:
//
//	Audit: 稽核摘要，發生錯誤時為錯誤之前的進度
//	error: 格式錯誤，或包裝 ErrCorrupt 的不一致
func Verify(r io.Reader) (Audit, error) {
	var (
		audit Audit
		funds = decimal.Zero
	)
	decoder := json.NewDecoder(r)
	for {
		var tran domain.Transaction
		if err := decoder.Decode(&tran); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return audit, fmt.Errorf("record %d: %w", audit.Records+1, err)
		}

		if tran.Sequence == 1 {
			audit.Runs++
			funds = decimal.Zero
		} else if audit.Runs == 0 || tran.Sequence != audit.LastSeq+1 {
			return audit, fmt.Errorf("%w: record %d: seq %d follows %d", ErrCorrupt, audit.Records+1, tran.Sequence, audit.LastSeq)
		}

		delta, ok := tran.Type.FundsDelta(tran.Amount)
		if !ok {
			return audit, fmt.Errorf("%w: seq %d: unknown type %d", ErrCorrupt, tran.Sequence, tran.Type)
		}
		if want := funds.Add(delta); !want.Equal(tran.FundsAfter) {
			return audit, fmt.Errorf("%w: seq %d %s: funds_after %s, expected %s",
				ErrCorrupt, tran.Sequence, tran.Type, tran.FundsAfter, want)
		}

		funds = tran.FundsAfter
		audit.Records++
		audit.LastSeq = tran.Sequence
		audit.OperatingFunds = funds
	}
	return audit, nil
}
