package leaderboard

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteCSV exports a sorted board in the export format the web client
// downloads, one row per ranked entry.
func WriteCSV(w io.Writer, subject, testID, window string, entries []Entry) error {
	cw := csv.NewWriter(w)
	header := []string{"Subject", "Test", "View", "Rank", "User Name", "Score (%)", "Time Spent (minutes)", "Date"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for i, e := range entries {
		row := []string{
			subject,
			testID,
			window,
			fmt.Sprint(i + 1),
			e.DisplayName,
			fmt.Sprintf("%.2f", e.ScorePercent),
			fmt.Sprint(e.TimeSpentMinutes),
			e.RecordedAt.Format("2006-01-02"),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
