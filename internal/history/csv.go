package history

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteCSV exports a history listing in the download format the web client
// produces, newest rows first in the order given.
func WriteCSV(w io.Writer, results []Result) error {
	cw := csv.NewWriter(w)
	header := []string{"Date", "Subject", "Test Name", "Score", "Total Questions", "Correct Answers", "Time Spent", "User"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, r := range results {
		row := []string{
			r.RecordedAt.Format("2006-01-02 15:04"),
			r.Subject,
			r.TestID,
			fmt.Sprintf("%.2f", r.ScorePercent),
			fmt.Sprint(r.TotalQuestions),
			fmt.Sprint(r.CorrectAnswers),
			fmt.Sprintf("%dm", r.TimeSpentMinutes),
			r.UserName,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
