package log

import (
	"database/sql"
	"fmt"
	"time"
)

const DefaultLimit = 100

type LogEntry struct {
	ID         int64
	InsertedAt time.Time
	LogData    string
}

func getHandle() (*sql.DB, error) {
	mu.RLock()
	defer mu.RUnlock()
	if store == nil {
		return nil, ErrNotInitialized
	}
	return store.db, nil
}

var dbTimestampFormats = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

func parseDBTimestamp(ts string) time.Time {
	for _, format := range dbTimestampFormats {
		if t, err := time.Parse(format, ts); err == nil {
			return t
		}
	}
	return time.Time{}
}

func scanEntries(rows *sql.Rows) ([]LogEntry, error) {
	defer rows.Close()
	var logs []LogEntry
	for rows.Next() {
		var entry LogEntry
		var insertedAt string
		if err := rows.Scan(&entry.ID, &insertedAt, &entry.LogData); err != nil {
			return nil, fmt.Errorf("log: scan entry: %w", err)
		}
		entry.InsertedAt = parseDBTimestamp(insertedAt)
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("log: iterate rows: %w", err)
	}
	return logs, nil
}

// GetLastNLogs returns the n most recent entries, oldest first.
func GetLastNLogs(n int) ([]LogEntry, error) {
	handle, err := getHandle()
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return []LogEntry{}, nil
	}
	rows, err := handle.Query(`
		SELECT id, inserted_at, log_data FROM (
			SELECT id, inserted_at, log_data FROM logs ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, n)
	if err != nil {
		return nil, fmt.Errorf("log: query last %d logs: %w", n, err)
	}
	return scanEntries(rows)
}

// GetLogsBetween returns entries whose event time lies in [start, end],
// ordered by event time. A limit <= 0 means DefaultLimit.
func GetLogsBetween(start, end time.Time, limit int) ([]LogEntry, error) {
	handle, err := getHandle()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	startStr := start.UTC().Format(zerologTimeFieldFormat)
	endStr := end.UTC().Format(zerologTimeFieldFormat)
	rows, err := handle.Query(`
		SELECT id, inserted_at, log_data
		FROM logs
		WHERE json_extract(log_data, '$.time') >= ? AND json_extract(log_data, '$.time') <= ?
		ORDER BY json_extract(log_data, '$.time') ASC, id ASC
		LIMIT ?`, startStr, endStr, limit)
	if err != nil {
		return nil, fmt.Errorf("log: query logs between %s and %s: %w", startStr, endStr, err)
	}
	return scanEntries(rows)
}

func GetLogsSince(start time.Time, limit int) ([]LogEntry, error) {
	return GetLogsBetween(start, time.Now(), limit)
}
