package jobs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// Имена файлов журналов заданий.
const (
	HeartbeatLogFile = "crm_heartbeat_log.txt"
	ReportLogFile    = "crm_report_log.txt"
	RemindersLogFile = "order_reminders_log.txt"
	LowStockLogFile  = "low_stock_updates_log.txt"
)

// lineFormatter пишет только текст сообщения; время задания форматирует само.
type lineFormatter struct{}

func (lineFormatter) Format(entry *log.Entry) ([]byte, error) {
	return append([]byte(entry.Message), '\n'), nil
}

// Sink - журнал задания, куда строки дописываются в конец.
type Sink struct {
	logger *log.Logger
	closer io.Closer
}

// NewSink создаёт журнал поверх произвольного writer.
func NewSink(w io.Writer) *Sink {
	logger := log.New()
	logger.SetOutput(w)
	logger.SetFormatter(lineFormatter{})
	logger.SetLevel(log.InfoLevel)
	return &Sink{logger: logger}
}

// OpenFileSink открывает (или создаёт) файл dir/name в режиме дозаписи.
func OpenFileSink(dir, name string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create job log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open job log %s: %w", name, err)
	}
	sink := NewSink(f)
	sink.closer = f
	return sink, nil
}

// Line дописывает строку в журнал.
func (s *Sink) Line(format string, args ...any) {
	s.logger.Infof(format, args...)
}

// Close закрывает файл журнала, если он был открыт через OpenFileSink.
func (s *Sink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
