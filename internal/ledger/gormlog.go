package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// slowQuery is the duration above which a query is logged at warn level.
const slowQuery = 200 * time.Millisecond

// GormLogger routes gorm's logging into zerolog. A missed lookup is an
// ordinary branch in the ledger and is never logged.
type GormLogger struct {
	logger zerolog.Logger
	level  gormlogger.LogLevel
}

// NewGormLogger wraps logger as a gorm logger at warn level.
func NewGormLogger(logger zerolog.Logger) *GormLogger {
	return &GormLogger{logger: logger, level: gormlogger.Warn}
}

// LogMode returns a copy logging at level.
func (g *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *g
	c.level = level
	return &c
}

func (g *GormLogger) Info(_ context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Info {
		g.logger.Debug().Msg(fmt.Sprintf(msg, args...))
	}
}

func (g *GormLogger) Warn(_ context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Warn {
		g.logger.Warn().Msg(fmt.Sprintf(msg, args...))
	}
}

func (g *GormLogger) Error(_ context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Error {
		g.logger.Error().Msg(fmt.Sprintf(msg, args...))
	}
}

// Trace logs failed queries at error level, slow ones at warn and, at info
// level, every query at debug.
func (g *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && g.level >= gormlogger.Error:
		query, rows := fc()
		g.logger.Error().Err(err).Str("sql", query).Int64("rows", rows).Dur("elapsed", elapsed).Msg("query failed")
	case elapsed > slowQuery && g.level >= gormlogger.Warn:
		query, rows := fc()
		g.logger.Warn().Str("sql", query).Int64("rows", rows).Dur("elapsed", elapsed).Msg("slow query")
	case g.level >= gormlogger.Info:
		query, rows := fc()
		g.logger.Debug().Str("sql", query).Int64("rows", rows).Dur("elapsed", elapsed).Msg("query")
	}
}

var _ gormlogger.Interface = (*GormLogger)(nil)
