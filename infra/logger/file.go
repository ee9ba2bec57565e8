package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig describes a rotating log file. Sizes are in megabytes, ages in
// days.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	fileMu sync.RWMutex
	file   io.Writer
)

// UseFile tees the output of every logger created afterwards into a rotating
// file. Closing the returned value stops the tee and closes the file.
func UseFile(cfg FileConfig) (io.Closer, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	fileMu.Lock()
	file = lj
	fileMu.Unlock()
	return &fileOutput{lj}, nil
}

type fileOutput struct{ lj *lumberjack.Logger }

func (f *fileOutput) Close() error {
	fileMu.Lock()
	if file == f.lj {
		file = nil
	}
	fileMu.Unlock()
	return f.lj.Close()
}

func fileWriter() io.Writer {
	fileMu.RLock()
	defer fileMu.RUnlock()
	return file
}
