package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"shareit/internal/models"
)

// Reporter собирает Excel-отчеты по бронированиям.
type Reporter struct {
	path   string
	logger zerolog.Logger
}

func NewReporter(path string, logger zerolog.Logger) *Reporter {
	return &Reporter{
		path:   path,
		logger: logger.With().Str("component", "reporter").Logger(),
	}
}

// ItemReport создает Excel файл с историей бронирований вещи и
// возвращает путь к нему.
func (r *Reporter) ItemReport(item *models.Item, bookings []*models.Booking) (string, error) {
	if err := os.MkdirAll(r.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Бронирования"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	// Заголовок с названием вещи
	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Вещь: %s (ID %d)", item.Name, item.ID))
	_ = f.MergeCell(sheetName, "A1", "F1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headers := []string{"ID", "Арендатор", "Начало", "Конец", "Статус", "Длительность"}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, header)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, booking := range bookings {
		row := i + 3
		_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), booking.ID)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), booking.BookerID)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), booking.Start.Format("02.01.2006 15:04"))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), booking.End.Format("02.01.2006 15:04"))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), statusLabel(booking.Status))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), formatDuration(booking.End.Sub(booking.Start)))

		if styleID, err := statusStyle(f, booking.Status); err == nil {
			_ = f.SetCellStyle(sheetName, fmt.Sprintf("E%d", row), fmt.Sprintf("E%d", row), styleID)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 8)
	_ = f.SetColWidth(sheetName, "B", "B", 12)
	_ = f.SetColWidth(sheetName, "C", "D", 20)
	_ = f.SetColWidth(sheetName, "E", "F", 15)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("item_%d_bookings_%s.xlsx", item.ID, time.Now().Format("2006-01-02_15-04-05"))
	filePath := filepath.Join(r.path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	r.logger.Info().Str("file_path", filePath).Int("bookings", len(bookings)).Msg("item report created")
	return filePath, nil
}

func statusLabel(status string) string {
	switch status {
	case models.StatusWaiting:
		return "Ожидает"
	case models.StatusApproved:
		return "Подтверждено"
	case models.StatusRejected:
		return "Отклонено"
	case models.StatusCanceled:
		return "Отменено"
	default:
		return status
	}
}

// statusStyle подбирает заливку для ячейки статуса.
func statusStyle(f *excelize.File, status string) (int, error) {
	var color string
	switch status {
	case models.StatusApproved:
		color = "#C6EFCE"
	case models.StatusWaiting:
		color = "#FFEB9C"
	case models.StatusRejected, models.StatusCanceled:
		color = "#FFC7CE"
	default:
		color = "#FFFFFF"
	}
	return f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	if days > 0 {
		return fmt.Sprintf("%dд %dч", days, hours)
	}
	return fmt.Sprintf("%dч", hours)
}
