package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"

	"github.com/xuri/excelize/v2"

	"go2b/internal/models"
)

// RegisteredUser is one redeemed code, flattened for tabular export.
type RegisteredUser struct {
	Name       string
	Email      string
	Code       string
	RedeemedAt string
}

// RegisteredUsers extracts the redeemed records from the registry, ordered
// by redemption timestamp then code.
func RegisteredUsers(codes map[string]models.CodeRecord) []RegisteredUser {
	out := make([]RegisteredUser, 0, len(codes))
	for code, rec := range codes {
		if !rec.Used {
			continue
		}
		out = append(out, RegisteredUser{
			Name:       rec.Name,
			Email:      rec.Email,
			Code:       code,
			RedeemedAt: rec.RedeemedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RedeemedAt == out[j].RedeemedAt {
			return out[i].Code < out[j].Code
		}
		return out[i].RedeemedAt < out[j].RedeemedAt
	})
	return out
}

// ExportUsersCSV renders the redeemed registry entries as CSV.
func ExportUsersCSV(users []RegisteredUser) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"Nome", "Email", "Seriale", "Data"})
	for _, u := range users {
		if err := w.Write([]string{u.Name, u.Email, u.Code, u.RedeemedAt}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ExportNormsCSV renders the historical corpus as CSV in append order.
func ExportNormsCSV(entries []models.NormEntry) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"Scala", "Score"})
	for _, e := range entries {
		if err := w.Write([]string{e.Scale, strconv.Itoa(e.Score)}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ExportCodesXLSX renders a batch of serial codes as a one-column
// spreadsheet, ready to hand to the operator distributing them.
func ExportCodesXLSX(codes []string) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const sheet = "Codici"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	if err := f.SetCellValue(sheet, "A1", "Codice seriale"); err != nil {
		return nil, fmt.Errorf("xlsx header: %w", err)
	}
	for i, code := range codes {
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetCellValue(sheet, cell, code); err != nil {
			return nil, fmt.Errorf("xlsx cell %s: %w", cell, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx encode: %w", err)
	}
	return buf.Bytes(), nil
}
