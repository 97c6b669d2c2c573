// Package export renders the manual end-of-session downloads.
package export

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"study-session-service/internal/domain"
)

// AnswersHeader is the CSV header row.
const AnswersHeader = "index,userAnswer,correct,isCorrect,rtMs"

// AnswersCSV renders the answer log. Every data field is double-quoted
// with inner quotes doubled; rows are separated by "\n" without a trailing
// newline. An empty log yields only the header followed by a newline.
func AnswersCSV(answers []domain.AnswerRecord) string {
	if len(answers) == 0 {
		return AnswersHeader + "\n"
	}
	lines := make([]string, 0, len(answers)+1)
	lines = append(lines, AnswersHeader)
	for _, a := range answers {
		fields := []string{
			strconv.Itoa(a.Index),
			formatAnswer(a.UserAnswer),
			strconv.Itoa(a.Correct),
			strconv.FormatBool(a.IsCorrect),
			strconv.FormatInt(a.RTMs, 10),
		}
		for i, f := range fields {
			fields[i] = quote(f)
		}
		lines = append(lines, strings.Join(fields, ","))
	}
	return strings.Join(lines, "\n")
}

// WriteDump writes the full-session JSON export with two-space indentation.
func WriteDump(w io.Writer, dump domain.SessionDump) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(dump)
}

func formatAnswer(v *float64) string {
	if v == nil {
		return "NaN"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
