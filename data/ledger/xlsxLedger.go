package ledger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/KotFed0t/ttwo_investment_bot/internal/model"
	"github.com/KotFed0t/ttwo_investment_bot/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	SheetName = "Investments"

	amountPlaces = 2
	pricePlaces  = 4
	sharesPlaces = 6
)

var Headers = []string{
	"Timestamp",
	"Name",
	"Amount Invested (USD)",
	"TTWO Stock Price (USD)",
	"Number of Shares",
}

// XLSXLedger is an append-only workbook with one row per investment.
// Writes are serialized inside the process only, other processes writing
// the same file can still overwrite each other.
type XLSXLedger struct {
	path string
	mu   sync.Mutex
}

func New(path string) *XLSXLedger {
	return &XLSXLedger{path: path}
}

func (l *XLSXLedger) Path() string {
	return l.path
}

// EnsureInitialized creates the workbook with the header row if it does not exist yet.
func (l *XLSXLedger) EnsureInitialized(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.ensureInitialized(ctx)
}

func (l *XLSXLedger) ensureInitialized(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XLSXLedger.ensureInitialized"

	_, err := os.Stat(l.path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		slog.Error("can't stat ledger file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	slog.Info("creating ledger", slog.String("rqID", rqID), slog.String("op", op), slog.String("path", l.path))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}

	header := make([]any, 0, len(Headers))
	for _, h := range Headers {
		header = append(header, h)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return err
	}

	styleID, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{"#cfe2f3"},
		},
	})
	if err != nil {
		return err
	}

	if err := f.SetCellStyle(SheetName, "A1", "E1", styleID); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}

	if err := f.SetColWidth(SheetName, "A", "A", 20); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(SheetName, "B", "E", 24); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	return l.save(f)
}

// Append adds record as the next row. Values are rounded to 2, 4 and 6 places.
func (l *XLSXLedger) Append(ctx context.Context, record model.InvestmentRecord) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XLSXLedger.Append"

	slog.Debug("Append start", slog.String("rqID", rqID), slog.String("op", op))

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureInitialized(ctx); err != nil {
		return err
	}

	f, err := excelize.OpenFile(l.path)
	if err != nil {
		slog.Error("can't open ledger", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if err := checkHeader(rows); err != nil {
		slog.Error("refusing to append to ledger", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return err
	}

	row := []any{
		record.Timestamp,
		record.Name,
		record.Amount.Round(amountPlaces).InexactFloat64(),
		record.Price.Round(pricePlaces).InexactFloat64(),
		record.Shares.Round(sharesPlaces).InexactFloat64(),
	}
	if err := f.SetSheetRow(sheet, cell, &row); err != nil {
		return err
	}

	if err := l.save(f); err != nil {
		slog.Error("can't save ledger", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("Append completed", slog.String("rqID", rqID), slog.String("op", op), slog.String("cell", cell))

	return nil
}

// LoadAll reads every record. A missing file is an empty ledger.
func (l *XLSXLedger) LoadAll(ctx context.Context) ([]model.InvestmentRecord, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XLSXLedger.LoadAll"

	slog.Debug("LoadAll start", slog.String("rqID", rqID), slog.String("op", op))

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := os.Stat(l.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []model.InvestmentRecord{}, nil
		}
		return nil, err
	}

	f, err := excelize.OpenFile(l.path)
	if err != nil {
		slog.Error("can't open ledger", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if err := checkHeader(rows); err != nil {
		slog.Error("ledger header mismatch", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	records := make([]model.InvestmentRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if isEmptyRow(row) {
			continue
		}

		record, err := parseRow(row)
		if err != nil {
			// i+2: one for the header, one for 1-based row numbers
			slog.Error("malformed ledger row", slog.String("rqID", rqID), slog.String("op", op), slog.Int("row", i+2), slog.String("err", err.Error()))
			return nil, fmt.Errorf("%w: row %d: %w", ErrMalformed, i+2, err)
		}
		records = append(records, record)
	}

	slog.Debug("LoadAll completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("records", len(records)))

	return records, nil
}

const ledgerFileMode fs.FileMode = 0o644

// save writes into a temp file next to the ledger and renames it over the old one.
func (l *XLSXLedger) save(f *excelize.File) error {
	dir := filepath.Dir(l.path)

	tmp, err := os.CreateTemp(dir, ".ledger-*.xlsx")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// CreateTemp makes 0600 files
	if err := tmp.Chmod(ledgerFileMode); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}

	if err := f.Write(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, l.path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	return nil
}

func checkHeader(rows [][]string) error {
	if len(rows) == 0 {
		return fmt.Errorf("%w: missing header row", ErrMalformed)
	}

	header := rows[0]
	if len(header) != len(Headers) {
		return fmt.Errorf("%w: expected %d columns, got %d", ErrMalformed, len(Headers), len(header))
	}

	for i, h := range Headers {
		if strings.TrimSpace(header[i]) != h {
			return fmt.Errorf("%w: column %d is %q, expected %q", ErrMalformed, i+1, header[i], h)
		}
	}

	return nil
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func parseRow(row []string) (model.InvestmentRecord, error) {
	if len(row) != len(Headers) {
		return model.InvestmentRecord{}, fmt.Errorf("expected %d cells, got %d", len(Headers), len(row))
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(row[2]))
	if err != nil {
		return model.InvestmentRecord{}, fmt.Errorf("amount %q: %w", row[2], err)
	}

	price, err := decimal.NewFromString(strings.TrimSpace(row[3]))
	if err != nil {
		return model.InvestmentRecord{}, fmt.Errorf("price %q: %w", row[3], err)
	}

	shares, err := decimal.NewFromString(strings.TrimSpace(row[4]))
	if err != nil {
		return model.InvestmentRecord{}, fmt.Errorf("shares %q: %w", row[4], err)
	}

	return model.InvestmentRecord{
		Timestamp: row[0],
		Name:      row[1],
		Amount:    amount,
		Price:     price,
		Shares:    shares,
	}, nil
}
