package storage

import (
	"FlightDelayStats/src/config"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel 定义日志级别类型
type LogLevel int

// 日志级别常量定义
const (
	DEBUG   LogLevel = iota // 调试信息
	INFO                    // 普通信息
	WARNING                 // 警告信息
	ERROR                   // 错误信息
	FATAL                   // 致命错误(只记录，不退出进程)
)

// Logger 日志记录器，底层使用zap core写入文件并分发给订阅者
type Logger struct {
	sink  *fileSink
	core  zapcore.Core
	level zap.AtomicLevel
}

// fileSink 可重新打开的日志文件，同时把每条日志推送给订阅者
type fileSink struct {
	mu          sync.Mutex
	name        string
	file        *os.File
	subscribers []chan string
}

func (s *fileSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return 0, os.ErrClosed
	}
	n, err := s.file.Write(p)

	entry := string(p)
	for _, ch := range s.subscribers {
		select {
		case ch <- entry:
		default: // 通道已满则跳过
		}
	}
	return n, err
}

func (s *fileSink) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	return s.file.Sync()
}

// NewLogger 创建新的日志记录器
// 参数:
//
//	filename: 日志文件路径
//	level: 最低记录级别
func NewLogger(filename string, level LogLevel) (*Logger, error) {
	file, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	sink := &fileSink{name: filename, file: file}
	atom := zap.NewAtomicLevelAt(level.zapLevel())
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), sink, atom)

	return &Logger{
		sink:  sink,
		core:  core,
		level: atom,
	}, nil
}

// encoderConfig 生成 "[时间] 级别: 消息" 格式
func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:    "time",
		LevelKey:   "level",
		MessageKey: "msg",
		LineEnding: zapcore.DefaultLineEnding,
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString("[" + t.Format("2006-01-02 15:04:05") + "]")
		},
		EncodeLevel: func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(levelName(l) + ":")
		},
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
}

// Close 关闭日志文件
func (l *Logger) Close() error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if l.sink.file != nil {
		err := l.sink.file.Close()
		l.sink.file = nil
		return err
	}
	return nil
}

// Reopen 重新打开一个文件
// 参数：
// filename：新文件的路径
func (l *Logger) Reopen(filename string) error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if l.sink.file != nil {
		_ = l.sink.file.Close()
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		l.sink.file = nil
		return err
	}
	l.sink.file = file
	l.sink.name = filename
	return nil
}

// SetLevel 调整最低记录级别
func (l *Logger) SetLevel(level LogLevel) {
	l.level.SetLevel(level.zapLevel())
}

// Log 记录日志方法
// 参数:
//
//	level: 日志级别
//	message: 日志消息内容
//	fields: 附加的结构化字段
func (l *Logger) Log(level LogLevel, message string, fields ...zap.Field) {
	lvl := level.zapLevel()
	if !l.core.Enabled(lvl) {
		return
	}
	entry := zapcore.Entry{Level: lvl, Time: time.Now(), Message: message}
	// 直接写core，避免zap对Fatal级别调用os.Exit
	_ = l.core.Write(entry, fields)
}

// CheckRotate 日志文件超过配置大小时进行轮转
func (l *Logger) CheckRotate(cfg *config.Config) error {
	l.sink.mu.Lock()
	file := l.sink.file
	l.sink.mu.Unlock()
	if file == nil {
		return os.ErrClosed
	}

	info, err := file.Stat()
	if err != nil {
		return err
	}

	if max := eval(cfg.LogMaxSize); max > 0 && info.Size() > max {
		return l.rotateLog()
	}
	return nil
}

func (l *Logger) rotateLog() error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	name := l.sink.name
	var renameErr error
	if l.sink.file != nil {
		l.sink.file.Close()
		ext := filepath.Ext(name)
		rotated := fmt.Sprintf("%s.%s%s", strings.TrimSuffix(name, ext), time.Now().Format("20060102150405"), ext)
		// 重命名失败时继续追加写原文件
		renameErr = os.Rename(name, rotated)
	}

	file, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		l.sink.file = nil
		return err
	}
	l.sink.file = file
	return renameErr
}

// Subscribe 订阅日志消息
// 返回值:
//
//	<-chan string: 只读通道，用于接收日志消息
func (l *Logger) Subscribe() <-chan string {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	ch := make(chan string, 100)
	l.sink.subscribers = append(l.sink.subscribers, ch)
	return ch
}

// String 实现LogLevel的String方法
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARNING:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	case FATAL:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func levelName(l zapcore.Level) string {
	switch l {
	case zapcore.DebugLevel:
		return DEBUG.String()
	case zapcore.InfoLevel:
		return INFO.String()
	case zapcore.WarnLevel:
		return WARNING.String()
	case zapcore.ErrorLevel:
		return ERROR.String()
	case zapcore.FatalLevel:
		return FATAL.String()
	default:
		return l.CapitalString()
	}
}

// ParseLevel 将配置中的级别字符串转换为LogLevel，无法识别时返回INFO
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARNING
	case "error":
		return ERROR
	case "fatal":
		return FATAL
	default:
		return INFO
	}
}

// eval 计算 "10 * 1024 * 1024" 形式的大小表达式
func eval(expr string) int64 {
	parts := strings.Split(expr, "*")
	var result int64 = 1
	for _, part := range parts {
		num, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return 0
		}
		result *= num
	}
	return result
}

// 以下是快捷日志方法
func (l *Logger) Debug(msg string, fields ...zap.Field)   { l.Log(DEBUG, msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)    { l.Log(INFO, msg, fields...) }
func (l *Logger) Warning(msg string, fields ...zap.Field) { l.Log(WARNING, msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field)   { l.Log(ERROR, msg, fields...) }
func (l *Logger) Fatal(msg string, fields ...zap.Field)   { l.Log(FATAL, msg, fields...) }
