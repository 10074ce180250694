package logger

import (
	"archive/zip"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sin100007-pixel/customer-qr-login/internal/config"
	"github.com/sin100007-pixel/customer-qr-login/internal/serviceiface"
)

var _ serviceiface.Service = (*LoggerService)(nil)

// Config selects the level and console format of a logger.
type Config struct {
	Level  string // debug, info, warn, error
	Pretty bool   // human readable console output
}

// ParseLevel maps a config string to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New builds a stdout logger. It is used before the LoggerService starts.
func New(cfg Config) zerolog.Logger {
	return zerolog.New(console(cfg.Pretty)).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()
}

func console(pretty bool) io.Writer {
	if pretty {
		return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}
	return os.Stdout
}

// LoggerService writes JSON logs to a size-rotated file under folder_path,
// mirrors them to stdout, and zips files older than retention_days.
type LoggerService struct {
	Config        map[string]interface{}
	file          *os.File
	mu            sync.Mutex
	stopCh        chan struct{}
	wg            sync.WaitGroup
	currentLog    string
	maxFileBytes  int64
	retentionDays int
	folderPath    string
	cfg           Config
	logger        zerolog.Logger
}

func NewLoggerService(cfg map[string]interface{}) *LoggerService {
	l := &LoggerService{
		Config:        cfg,
		stopCh:        make(chan struct{}),
		maxFileBytes:  int64(config.Int(cfg, "max_file_mb", 0)) * 1024 * 1024,
		retentionDays: config.Int(cfg, "retention_days", 0),
		folderPath:    config.String(cfg, "folder_path", "./logs"),
		cfg: Config{
			Level:  config.String(cfg, "level", "info"),
			Pretty: config.Bool(cfg, "pretty", true),
		},
	}
	out := zerolog.MultiLevelWriter(fileWriter{l}, console(l.cfg.Pretty))
	l.logger = zerolog.New(out).Level(ParseLevel(l.cfg.Level)).With().Timestamp().Logger()
	return l
}

func (l *LoggerService) Name() string {
	return "logger"
}

func (l *LoggerService) Start() error {
	l.mu.Lock()
	if err := os.MkdirAll(l.folderPath, 0o755); err != nil {
		l.mu.Unlock()
		return err
	}
	logFile := l.nextLogFileName()
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		l.mu.Unlock()
		return err
	}
	l.file = file
	l.currentLog = logFile
	lg := l.logger
	l.mu.Unlock()

	// Libraries that use the standard logger land in the same stream.
	stdlog.SetFlags(0)
	stdlog.SetOutput(lg)
	lg.Info().Str("file", logFile).Msg("logger started")

	l.wg.Add(1)
	go l.backgroundWorker()
	return nil
}

func (l *LoggerService) Stop() error {
	close(l.stopCh)
	l.wg.Wait()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		stdlog.SetOutput(os.Stderr)
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Logger returns the service's logger. Loggers taken before Start reach the
// file once it is open.
func (l *LoggerService) Logger() zerolog.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.logger
}

// CurrentFile is the path of the log file being written.
func (l *LoggerService) CurrentFile() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentLog
}

// fileWriter serializes writes against rotation.
type fileWriter struct{ l *LoggerService }

func (w fileWriter) Write(p []byte) (int, error) {
	w.l.mu.Lock()
	defer w.l.mu.Unlock()
	if w.l.file == nil {
		return len(p), nil
	}
	return w.l.file.Write(p)
}

func (l *LoggerService) nextLogFileName() string {
	timestamp := time.Now().Format("20060102_150405.000000000")
	return filepath.Join(l.folderPath, fmt.Sprintf("ledger_%s.log", timestamp))
}

func (l *LoggerService) rotateIfNeeded() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil || l.maxFileBytes <= 0 {
		return nil
	}
	info, err := l.file.Stat()
	if err != nil {
		return err
	}
	if info.Size() < l.maxFileBytes {
		return nil
	}
	newLog := l.nextLogFileName()
	file, err := os.OpenFile(newLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	l.file.Close()
	l.file = file
	l.currentLog = newLog
	return nil
}

func (l *LoggerService) backgroundWorker() {
	defer l.wg.Done()
	ticker := time.NewTicker(10 * time.Second)
	retentionTicker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	defer retentionTicker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			if err := l.rotateIfNeeded(); err != nil {
				lg := l.Logger()
				lg.Error().Err(err).Msg("rotate log file")
			}
		case <-retentionTicker.C:
			lg := l.Logger()
			if n, err := l.zipAndCleanOldLogs(time.Now()); err != nil {
				lg.Error().Err(err).Msg("archive old logs")
			} else if n > 0 {
				lg.Info().Int("files", n).Msg("archived old logs")
			}
		}
	}
}

// zipAndCleanOldLogs moves .log files last modified before the retention
// cutoff into a dated zip and returns how many were archived.
func (l *LoggerService) zipAndCleanOldLogs(now time.Time) (int, error) {
	if l.retentionDays <= 0 {
		return 0, nil
	}
	cutoff := now.AddDate(0, 0, -l.retentionDays)
	entries, err := os.ReadDir(l.folderPath)
	if err != nil {
		return 0, err
	}
	current := l.CurrentFile()
	var old []string
	for _, f := range entries {
		if f.IsDir() || filepath.Ext(f.Name()) != ".log" {
			continue
		}
		full := filepath.Join(l.folderPath, f.Name())
		info, err := f.Info()
		if err != nil || info.ModTime().After(cutoff) || full == current {
			continue
		}
		old = append(old, full)
	}
	if len(old) == 0 {
		return 0, nil
	}

	zipName := filepath.Join(l.folderPath, fmt.Sprintf("logs_%s.zip", now.Format("20060102_150405")))
	zipFile, err := os.Create(zipName)
	if err != nil {
		return 0, err
	}
	archived, err := writeArchive(zipFile, old)
	if cerr := zipFile.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(zipName)
		return 0, err
	}
	// Sources go only once the archive is complete on disk.
	for _, path := range archived {
		os.Remove(path)
	}
	return len(archived), nil
}

// writeArchive zips paths into w and returns the ones it added. The archive
// is only readable once its directory is written by Close.
func writeArchive(w io.Writer, paths []string) ([]string, error) {
	zw := zip.NewWriter(w)
	var added []string
	for _, path := range paths {
		if err := addToZip(zw, path); err != nil {
			continue
		}
		added = append(added, path)
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return added, nil
}

func addToZip(zw *zip.Writer, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()
	w, err := zw.Create(filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}

// LogAudit records an audit event.
func (l *LoggerService) LogAudit(msg string) {
	lg := l.Logger()
	lg.Info().Bool("audit", true).Msg(msg)
}

var GlobalLogger *LoggerService

func SetGlobalLogger(l *LoggerService) {
	GlobalLogger = l
}

// L returns the global service logger, or a stdout logger when none is set.
func L() zerolog.Logger {
	if GlobalLogger != nil {
		return GlobalLogger.Logger()
	}
	return New(Config{Level: "info"})
}
