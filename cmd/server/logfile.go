package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"
)

const (
	logCapBytes  = 6 * 1024 * 1024
	logKeepBytes = 5 * 1024 * 1024
)

// cappedLog appends to a file and, once it grows past capBytes, keeps only
// the newest keepBytes, cut at a line boundary.
type cappedLog struct {
	mu        sync.Mutex
	file      *os.File
	capBytes  int64
	keepBytes int64
}

func openCappedLog(path string, capBytes, keepBytes int64) (*cappedLog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	l := &cappedLog{file: file, capBytes: capBytes, keepBytes: keepBytes}
	if err := l.trim(); err != nil {
		file.Close()
		return nil, err
	}
	return l, nil
}

func (l *cappedLog) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, err := l.file.Write(p)
	if err != nil {
		return n, err
	}
	return n, l.trim()
}

func (l *cappedLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

func (l *cappedLog) trim() error {
	info, err := l.file.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	if size <= l.capBytes {
		return nil
	}

	tail := make([]byte, l.keepBytes)
	n, err := l.file.ReadAt(tail, size-l.keepBytes)
	if err != nil && err != io.EOF {
		return err
	}
	tail = tail[:n]
	// Drop the partial first line.
	if i := bytes.IndexByte(tail, '\n'); i >= 0 {
		tail = tail[i+1:]
	}

	if err := l.file.Truncate(0); err != nil {
		return err
	}
	// O_APPEND writes land at the new end.
	_, err = l.file.Write(tail)
	return err
}
