// Package export serializes filtered transaction sets for download.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"payment_gateway/internal/domain"
	"payment_gateway/internal/ledger"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// Format selects the file type of an export.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Content types of the supported formats.
const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// SheetName is the worksheet holding an XLSX export.
const SheetName = "Transactions"

// Columns is the header row, in order.
var Columns = []string{
	"id", "user_id", "username", "amount", "currency", "card_id",
	"card_type", "card_last_four", "status", "description", "created_at", "resolved_at",
}

// ParseFormat accepts "csv" (also the default for "") and "xlsx".
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", domain.Validation("unsupported export format %q", s)
}

// File is a finished export.
type File struct {
	Name        string
	ContentType string
	Data        []byte
	Rows        int
}

// Lister is satisfied by *ledger.Ledger.
type Lister interface {
	List(ctx context.Context, p domain.Principal, f ledger.Filter) ([]domain.Transaction, error)
}

// Service builds exports from the ledger.
type Service struct {
	ledger Lister
	now    func() time.Time
}

func NewService(l Lister) *Service {
	return &Service{ledger: l, now: time.Now}
}

// SetClock overrides the clock used to name files.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Export lists every transaction matching f and renders it as format.
// Only administrators may export.
func (s *Service) Export(ctx context.Context, p domain.Principal, f ledger.Filter, format Format) (*File, error) {
	if !p.Admin {
		return nil, domain.Auth("admin access required")
	}
	if f.UserID == nil {
		f.AllUsers = true
	}
	txs, err := s.ledger.List(ctx, p, f)
	if err != nil {
		return nil, err
	}

	stamp := s.now().UTC().Format("20060102_150405")
	file := &File{Rows: len(txs)}
	switch format {
	case FormatCSV:
		var buf bytes.Buffer
		if err := WriteCSV(&buf, txs); err != nil {
			return nil, err
		}
		file.Name, file.ContentType, file.Data = "transactions_"+stamp+".csv", ContentTypeCSV, buf.Bytes()
	case FormatXLSX:
		data, err := xlsxBytes(txs)
		if err != nil {
			return nil, err
		}
		file.Name, file.ContentType, file.Data = "transactions_"+stamp+".xlsx", ContentTypeXLSX, data
	default:
		return nil, domain.Validation("unsupported export format %q", format)
	}

	logrus.WithFields(logrus.Fields{
		"admin_id": p.UserID,
		"format":   format,
		"rows":     file.Rows,
	}).Info("Transactions exported")
	return file, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// row renders tx in Columns order.
func row(tx domain.Transaction) []string {
	var username, cardType, lastFour, resolved string
	if tx.User != nil {
		username = tx.User.Username
	}
	if tx.Card != nil {
		cardType, lastFour = tx.Card.CardType, tx.Card.LastFour
	}
	if tx.ResolvedAt != nil {
		resolved = formatTime(*tx.ResolvedAt)
	}
	return []string{
		strconv.FormatUint(uint64(tx.ID), 10),
		strconv.FormatUint(uint64(tx.UserID), 10),
		username,
		tx.Amount.StringFixed(2),
		tx.Currency,
		strconv.FormatUint(uint64(tx.CardID), 10),
		cardType,
		lastFour,
		tx.Status,
		tx.Description,
		formatTime(tx.CreatedAt),
		resolved,
	}
}

// WriteCSV writes the header and one record per transaction.
func WriteCSV(w io.Writer, txs []domain.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, tx := range txs {
		if err := cw.Write(row(tx)); err != nil {
			return fmt.Errorf("write csv row %d: %w", tx.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func xlsxBytes(txs []domain.Transaction) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("xlsx header: %w", err)
	}
	for i, tx := range txs {
		cells := row(tx)
		values := make([]any, len(cells))
		for j, v := range cells {
			values[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("xlsx row %d: %w", tx.ID, err)
		}
	}
	f.SetColWidth(SheetName, "C", "C", 18) // username
	f.SetColWidth(SheetName, "J", "J", 40) // description
	f.SetColWidth(SheetName, "K", "L", 32) // timestamps

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// Record is one parsed export row.
type Record struct {
	ID           uint
	UserID       uint
	Username     string
	Amount       decimal.Decimal
	Currency     string
	CardID       uint
	CardType     string
	CardLastFour string
	Status       string
	Description  string
	CreatedAt    time.Time
	ResolvedAt   *time.Time
}

// ReadCSV parses a CSV export back into records.
func ReadCSV(r io.Reader) ([]Record, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.Validation("csv export is empty")
	}
	if strings.Join(rows[0], ",") != strings.Join(Columns, ",") {
		return nil, domain.Validation("unexpected csv header")
	}
	return parseRows(rows[1:])
}

// ReadXLSX parses an XLSX export back into records.
func ReadXLSX(r io.Reader) ([]Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("read xlsx: %w", err)
	}
	defer f.Close()
	rows, err := f.GetRows(SheetName)
	if err != nil {
		return nil, fmt.Errorf("read xlsx: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.Validation("xlsx export is empty")
	}
	for i := range rows[1:] {
		// trailing empty cells are omitted by GetRows
		for len(rows[i+1]) < len(Columns) {
			rows[i+1] = append(rows[i+1], "")
		}
	}
	return parseRows(rows[1:])
}

func parseRows(rows [][]string) ([]Record, error) {
	records := make([]Record, 0, len(rows))
	for i, cells := range rows {
		rec, err := parseRecord(cells)
		if err != nil {
			return nil, domain.Validation("row %d: %v", i+2, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRecord(cells []string) (Record, error) {
	var rec Record
	if len(cells) != len(Columns) {
		return rec, fmt.Errorf("expected %d columns, got %d", len(Columns), len(cells))
	}
	ids := make([]uint, 0, 3)
	for _, idx := range []int{0, 1, 5} {
		n, err := strconv.ParseUint(cells[idx], 10, 64)
		if err != nil {
			return rec, fmt.Errorf("%s: %w", Columns[idx], err)
		}
		ids = append(ids, uint(n))
	}
	amount, err := decimal.NewFromString(cells[3])
	if err != nil {
		return rec, fmt.Errorf("amount: %w", err)
	}
	created, err := time.Parse(time.RFC3339Nano, cells[10])
	if err != nil {
		return rec, fmt.Errorf("created_at: %w", err)
	}
	rec = Record{
		ID:           ids[0],
		UserID:       ids[1],
		Username:     cells[2],
		Amount:       amount,
		Currency:     cells[4],
		CardID:       ids[2],
		CardType:     cells[6],
		CardLastFour: cells[7],
		Status:       cells[8],
		Description:  cells[9],
		CreatedAt:    created,
	}
	if cells[11] != "" {
		resolved, err := time.Parse(time.RFC3339Nano, cells[11])
		if err != nil {
			return rec, fmt.Errorf("resolved_at: %w", err)
		}
		rec.ResolvedAt = &resolved
	}
	return rec, nil
}
