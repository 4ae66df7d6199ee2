package journal

import (
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
)

// rw-r--r--
const fileMode fs.FileMode = 0644

// File 是只增不改的 JSON lines 交易日誌，一行一筆 domain.Transaction。
// 每筆紀錄在帳本狀態變更之前寫入並 fsync。
//
// 行程重啟後帳本從 seq 1 重新開始，同一個檔案會包含多段 (run)。
type File struct {
	file *os.File
	mu   sync.Mutex
}

// Open 開啟或建立日誌檔
// O_APPEND 每次寫入時自動跳到文件末尾
// O_CREATE 如果文件不存在則建立
func Open(path string) (*File, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, fileMode)
	if err != nil {
		return nil, err
	}
	return &File{file: file}, nil
}

// Append 寫入一筆交易並刷入硬碟，回傳錯誤時帳本不會套用該筆交易
func (f *File) Append(tran *domain.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := json.NewEncoder(f.file).Encode(tran); err != nil {
		return err
	}
	return f.file.Sync()
}

// Close 關閉檔案
func (f *File) Close() error {
	return f.file.Close()
}

// Verify 從頭稽核整份日誌，見 Verify
func (f *File) Verify() (Audit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// O_APPEND 下寫入仍會回到檔尾
	if _, err := f.file.Seek(0, io.SeekStart); err != nil {
		return Audit{}, err
	}
	return Verify(f.file)
}
