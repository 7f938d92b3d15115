// monitor.go
package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileMonitor 监控单个输入文件，文件写入后经过去抖调用处理函数
type FileMonitor struct {
	target   string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	lastMod  time.Time
	mu       sync.Mutex
}

// NewFileMonitor 监控文件所在目录，编辑器替换文件时也能收到事件
func NewFileMonitor(filePath string, debounce time.Duration) (*FileMonitor, error) {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, err
	}

	return &FileMonitor{
		target:   abs,
		watcher:  watcher,
		debounce: debounce,
	}, nil
}

// Target 返回被监控文件的绝对路径
func (m *FileMonitor) Target() string {
	return m.target
}

// Watch 阻塞直到ctx取消或watcher出错，处理函数在当前goroutine中顺序执行
func (m *FileMonitor) Watch(ctx context.Context, handler func(string)) error {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != m.target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(m.debounce)
			fire = timer.C
		case <-fire:
			fire = nil
			info, err := os.Stat(m.target)
			if err != nil {
				continue
			}

			m.mu.Lock()
			stale := info.ModTime().Before(m.lastMod)
			if !stale {
				m.lastMod = info.ModTime()
			}
			m.mu.Unlock()

			if !stale {
				handler(m.target)
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func (m *FileMonitor) Close() error {
	return m.watcher.Close()
}
