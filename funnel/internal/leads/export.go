package leads

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/techview-systems/leadpixel-stack/funnel/internal/models"
)

// csvHeader matches the spreadsheet layout resellers already use.
var csvHeader = []string{"Nome", "Email", "Telefone", "Plano", "Data", "Status", "Valor", "ID Vendedor"}

// WriteCSV writes leads as UTF-8 CSV with a byte-order mark so spreadsheet
// tools pick up the accents.
func WriteCSV(w io.Writer, leads []models.Lead) error {
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, l := range leads {
		record := []string{
			l.Name,
			l.Email,
			l.Phone,
			l.PlanName,
			l.CreatedAt.Format("2006-01-02"),
			string(l.Status),
			strconv.FormatFloat(l.Value, 'f', 2, 64),
			l.OperatorID,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
