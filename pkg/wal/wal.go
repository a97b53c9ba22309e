package wal

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"
)

// rw-r--r-- (擁有者讀寫，其他人唯讀)
const fileModeLog fs.FileMode = 0644

// WAL 是 append-only 的 JSON Write-Ahead Log
// 記憶體帳本把每筆過帳先寫到這裡，重啟時重放恢復狀態
type WAL struct {
	file *os.File
	mu   sync.Mutex
}

// Open 開啟或建立一個 WAL 檔案
// O_APPEND: 每次寫入自動跳到檔尾；O_CREATE: 不存在則建立
func Open(path string) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, fileModeLog)
	if err != nil {
		return nil, err
	}
	return &WAL{file: file}, nil
}

// Append 寫入一筆資料並立即刷入硬碟
// 過帳必須等這裡成功才能改記憶體狀態
func (w *WAL) Append(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := json.NewEncoder(w.file).Encode(v); err != nil {
		return err
	}
	return w.file.Sync()
}

// Replay 從頭讀取所有紀錄，逐筆交給 callback
// 以 streaming 方式解碼，避免一次載入整個檔案
func (w *WAL) Replay(callback func(raw []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	decoder := json.NewDecoder(w.file)
	for {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		if err := callback(raw); err != nil {
			return err
		}
	}
	return nil
}

// Close 關閉檔案
func (w *WAL) Close() error {
	return w.file.Close()
}
