package sheets

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"shareit/internal/models"
)

const (
	ledgerSheet = "Bookings"
	ledgerRange = ledgerSheet + "!A:H"

	timeLayout = "2006-01-02 15:04"
)

// Ledger пишет бронирования в Google-таблицу.
// Колонки: ID, вещь, ID вещи, ID арендатора, начало, конец, статус, обновлено.
type Ledger struct {
	service       *sheets.Service
	spreadsheetID string
	log           zerolog.Logger

	mu       sync.RWMutex
	rowCache map[int64]int // booking ID -> номер строки
}

func NewLedger(ctx context.Context, credentialsFile, spreadsheetID string, log zerolog.Logger) (*Ledger, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Ledger{
		service:       srv,
		spreadsheetID: spreadsheetID,
		log:           log.With().Str("component", "sheets_ledger").Logger(),
		rowCache:      make(map[int64]int),
	}, nil
}

// WarmUpCache читает колонку ID и наполняет кеш строк.
func (l *Ledger) WarmUpCache(ctx context.Context) error {
	resp, err := l.service.Spreadsheets.Values.Get(l.spreadsheetID, ledgerSheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to read ledger ids: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.rowCache = make(map[int64]int, len(resp.Values))
	for i, row := range resp.Values {
		if i == 0 || len(row) == 0 {
			continue // заголовок
		}
		raw, ok := row[0].(string)
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		l.rowCache[id] = i + 1
	}

	l.log.Info().Int("rows", len(l.rowCache)).Msg("ledger row cache warmed up")
	return nil
}

func (l *Ledger) UpsertBooking(ctx context.Context, booking *models.Booking) error {
	values := []interface{}{
		strconv.FormatInt(booking.ID, 10),
		booking.ItemName,
		booking.ItemID,
		booking.BookerID,
		booking.Start.Format(timeLayout),
		booking.End.Format(timeLayout),
		booking.Status,
		time.Now().Format(timeLayout),
	}

	rowNum, found := l.findRow(ctx, booking.ID)
	if found {
		rangeRef := fmt.Sprintf("%s!A%d:H%d", ledgerSheet, rowNum, rowNum)
		_, err := l.service.Spreadsheets.Values.Update(l.spreadsheetID, rangeRef, &sheets.ValueRange{
			Values: [][]interface{}{values},
		}).ValueInputOption("USER_ENTERED").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to update ledger row %d: %w", rowNum, err)
		}
		return nil
	}

	_, err := l.service.Spreadsheets.Values.Append(l.spreadsheetID, ledgerRange, &sheets.ValueRange{
		Values: [][]interface{}{values},
	}).ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to append ledger row: %w", err)
	}

	l.invalidateRow(booking.ID)
	return nil
}

func (l *Ledger) UpdateBookingStatus(ctx context.Context, bookingID int64, status string) error {
	rowNum, found := l.findRow(ctx, bookingID)
	if !found {
		return fmt.Errorf("booking %d not found in ledger", bookingID)
	}

	rangeRef := fmt.Sprintf("%s!G%d:H%d", ledgerSheet, rowNum, rowNum)
	_, err := l.service.Spreadsheets.Values.Update(l.spreadsheetID, rangeRef, &sheets.ValueRange{
		Values: [][]interface{}{{status, time.Now().Format(timeLayout)}},
	}).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update ledger status for booking %d: %w", bookingID, err)
	}
	return nil
}

func (l *Ledger) findRow(ctx context.Context, bookingID int64) (int, bool) {
	l.mu.RLock()
	rowNum, ok := l.rowCache[bookingID]
	l.mu.RUnlock()
	if ok {
		return rowNum, true
	}

	// Промах кеша. Перечитываем колонку и пробуем ещё раз.
	if err := l.WarmUpCache(ctx); err != nil {
		l.log.Warn().Err(err).Msg("failed to refresh ledger row cache")
		return 0, false
	}

	l.mu.RLock()
	rowNum, ok = l.rowCache[bookingID]
	l.mu.RUnlock()
	return rowNum, ok
}

// invalidateRow убирает запись из кеша, чтобы следующий поиск перечитал лист.
func (l *Ledger) invalidateRow(bookingID int64) {
	l.mu.Lock()
	delete(l.rowCache, bookingID)
	l.mu.Unlock()
}
