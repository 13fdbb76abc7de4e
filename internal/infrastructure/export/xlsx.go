package export

import (
	"context"
	"fmt"
	"io"

	"github.com/garyjia/image-annotation/internal/application/port"
	"github.com/garyjia/image-annotation/internal/domain/entity"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	// SheetName is the worksheet holding the archive rows
	SheetName = "Completed"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	timeLayout      = "2006-01-02 15:04:05"
)

var header = []interface{}{
	"Record ID", "Task ID", "Image Path", "Original Filename", "Label",
	"Annotator ID", "Reviewer ID", "Elapsed Seconds", "Completed At",
}

// XLSXExporter writes Completed Archive entries as an Excel workbook, one row per record
type XLSXExporter struct {
	logger *zap.Logger
}

// NewXLSXExporter creates a new workbook exporter
func NewXLSXExporter(logger *zap.Logger) *XLSXExporter {
	return &XLSXExporter{logger: logger}
}

// ContentType implements port.ArchiveExporter
func (x *XLSXExporter) ContentType() string {
	return xlsxContentType
}

// Export implements port.ArchiveExporter
func (x *XLSXExporter) Export(ctx context.Context, records []*entity.CompletedRecord, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := x.styleHeader(f); err != nil {
		return err
	}

	for i, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to address row %d: %w", i+2, err)
		}

		row := []interface{}{
			r.ID,
			r.TaskID,
			r.ImagePath,
			r.OriginalFilename,
			r.Label.String(),
			r.AnnotatorID,
			r.ReviewerID,
			r.ElapsedSeconds,
			r.CompletedAt.UTC().Format(timeLayout),
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			x.logger.Error("Failed to write archive row",
				zap.Int64("task_id", r.TaskID),
				zap.Error(err))
			return fmt.Errorf("failed to write row for task %d: %w", r.TaskID, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	x.logger.Info("Archive workbook written", zap.Int("rows", len(records)))
	return nil
}

func (x *XLSXExporter) styleHeader(f *excelize.File) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", last, style); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	return f.SetColWidth(SheetName, "A", lastCol, 18)
}

var _ port.ArchiveExporter = (*XLSXExporter)(nil)
