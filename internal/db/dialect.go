package db

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Supported gorm dialector names.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// DialectName returns the dialector name of conn, or "" when it has none.
func DialectName(conn *gorm.DB) string {
	if conn == nil || conn.Dialector == nil {
		return ""
	}
	return conn.Dialector.Name()
}

// IsSQLite reports whether conn talks to SQLite.
func IsSQLite(conn *gorm.DB) bool {
	return DialectName(conn) == DialectSQLite
}

// DayExpr renders column, a UTC timestamp, as YYYY-MM-DD in a zone that is
// offset away from UTC. Both dialects produce the same string so callers can
// group and compare days without caring about the backend.
func DayExpr(conn *gorm.DB, column string, offset time.Duration) string {
	seconds := int64(offset / time.Second)
	if IsSQLite(conn) {
		return fmt.Sprintf("strftime('%%Y-%%m-%%d', %s, '%+d seconds')", column, seconds)
	}
	return fmt.Sprintf("to_char(%s + interval '%d seconds', 'YYYY-MM-DD')", column, seconds)
}

// zoneSpan is a stretch of time during which a location keeps one offset.
// until is exclusive and zero on the last span.
type zoneSpan struct {
	until  time.Time
	offset time.Duration
}

// zoneSpans splits [from, to] at every offset change of loc.
func zoneSpans(loc *time.Location, from, to time.Time) []zoneSpan {
	offsetAt := func(unix int64) int {
		_, offset := time.Unix(unix, 0).In(loc).Zone()
		return offset
	}
	start, end := from.Unix(), to.Unix()
	current := offsetAt(start)
	var spans []zoneSpan
	for probe := start; probe < end; {
		next := min(probe+24*60*60, end)
		if offsetAt(next) == current {
			probe = next
			continue
		}
		lo, hi := probe, next
		for hi-lo > 1 {
			mid := lo + (hi-lo)/2
			if offsetAt(mid) == current {
				lo = mid
			} else {
				hi = mid
			}
		}
		spans = append(spans, zoneSpan{until: time.Unix(hi, 0).UTC(), offset: time.Duration(current) * time.Second})
		current = offsetAt(hi)
		probe = hi
	}
	return append(spans, zoneSpan{offset: time.Duration(current) * time.Second})
}

// LocalDayExpr is DayExpr for a named location: rows between from and to
// use the offset loc had at their own instant, so daylight saving changes
// inside the range land on the right day. The returned args bind the
// placeholders of the expression.
func LocalDayExpr(conn *gorm.DB, column string, loc *time.Location, from, to time.Time) (string, []any) {
	spans := zoneSpans(loc, from, to)
	last := spans[len(spans)-1]
	if len(spans) == 1 {
		return DayExpr(conn, column, last.offset), nil
	}
	var b strings.Builder
	args := make([]any, 0, len(spans)-1)
	b.WriteString("CASE")
	for _, span := range spans[:len(spans)-1] {
		fmt.Fprintf(&b, " WHEN %s < ? THEN %s", column, DayExpr(conn, column, span.offset))
		args = append(args, span.until)
	}
	fmt.Fprintf(&b, " ELSE %s END", DayExpr(conn, column, last.offset))
	return b.String(), args
}
