package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/logger"
)

// slowQuery is the duration above which a statement is logged at warn.
const slowQuery = time.Second

// gormLog routes gorm's logging through the service logger. Record-not-found
// is an expected outcome of Get and is never logged.
type gormLog struct {
	log   *logger.Logger
	level gormLogger.LogLevel
	slow  time.Duration
}

func newGormLog(log *logger.Logger) *gormLog {
	if log == nil {
		log = logger.Nop()
	}
	return &gormLog{log: log.With("component", "sqlstore"), level: gormLogger.Warn, slow: slowQuery}
}

func (g *gormLog) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	cp := *g
	cp.level = level
	return &cp
}

func (g *gormLog) Info(_ context.Context, msg string, args ...interface{}) {
	if g.level >= gormLogger.Info {
		g.log.Info("sqlstore: " + fmt.Sprintf(msg, args...))
	}
}

func (g *gormLog) Warn(_ context.Context, msg string, args ...interface{}) {
	if g.level >= gormLogger.Warn {
		g.log.Warn("sqlstore: " + fmt.Sprintf(msg, args...))
	}
}

func (g *gormLog) Error(_ context.Context, msg string, args ...interface{}) {
	if g.level >= gormLogger.Error {
		g.log.Error("sqlstore: " + fmt.Sprintf(msg, args...))
	}
}

func (g *gormLog) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormLogger.Silent {
		return
	}
	took := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && g.level >= gormLogger.Error:
		sql, rows := fc()
		g.log.Error("sqlstore: query failed", "sql", sql, "rows", rows, "took", took.String(), "error", err)
	case g.slow > 0 && took > g.slow && g.level >= gormLogger.Warn:
		sql, rows := fc()
		g.log.Warn("sqlstore: slow query", "sql", sql, "rows", rows, "took", took.String())
	case g.level >= gormLogger.Info:
		sql, rows := fc()
		g.log.Debug("sqlstore: query", "sql", sql, "rows", rows, "took", took.String())
	}
}
