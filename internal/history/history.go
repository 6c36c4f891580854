package history

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DateLayout is the first CSV column's format.
const DateLayout = "2006-01-02"

const fileName = "daily_report_data.csv"

// Row is one immutable day of a guild's time series.
type Row struct {
	Date         time.Time
	UniqueUsers  int
	VoiceMinutes int
}

// Append adds one row to the guild's append-only series. Rows are never
// rewritten; three columns are always emitted even though old files may
// carry two.
func Append(guildDir string, row Row) error {
	if err := os.MkdirAll(guildDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(guildDir, fileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line := fmt.Sprintf("%s,%d,%d\n", row.Date.Format(DateLayout), row.UniqueUsers, row.VoiceMinutes)
	_, err = f.WriteString(line)
	return err
}

// Read loads the guild's series. Legacy two-column rows read back with
// zero voice minutes; unparseable rows are skipped. A missing file is an
// empty series, not an error.
func Read(guildDir string) ([]Row, error) {
	f, err := os.Open(filepath.Join(guildDir, fileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(records))
	for _, record := range records {
		if len(record) < 2 {
			continue
		}
		date, err := time.Parse(DateLayout, record[0])
		if err != nil {
			continue
		}
		users, err := strconv.Atoi(record[1])
		if err != nil {
			continue
		}
		minutes := 0
		if len(record) >= 3 {
			if parsed, err := strconv.Atoi(record[2]); err == nil {
				minutes = parsed
			}
		}
		rows = append(rows, Row{Date: date, UniqueUsers: users, VoiceMinutes: minutes})
	}
	return rows, nil
}

// Tail returns at most the last n rows.
func Tail(rows []Row, n int) []Row {
	if n <= 0 || len(rows) <= n {
		return rows
	}
	return rows[len(rows)-n:]
}
