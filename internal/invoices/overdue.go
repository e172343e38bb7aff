package invoices

import (
	"fmt"
	"time"

	"sheriff-backend/internal/httputil"
	"sheriff-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MarkOverdue moves sent invoices whose due date is before now's date to
// overdue and returns how many changed.
func MarkOverdue(db *gorm.DB, now time.Time) (int64, error) {
	today := httputil.DateOf(now)
	res := db.Model(&models.Invoice{}).
		Where("status = ? AND due_date < ?", models.InvoiceSent, today).
		Update("status", models.InvoiceOverdue)
	if res.Error != nil {
		return 0, fmt.Errorf("mark overdue invoices: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		zap.L().Info("invoices marked overdue", zap.Int64("count", res.RowsAffected))
	}
	return res.RowsAffected, nil
}
