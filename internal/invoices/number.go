package invoices

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"sheriff-backend/internal/models"

	"gorm.io/gorm"
)

// NumberPrefix is "<prefix>-<YYYYMM>-" for the month of date.
func NumberPrefix(prefix string, date time.Time) string {
	return fmt.Sprintf("%s-%s-", prefix, date.Format("200601"))
}

// FormatNumber builds e.g. "INV-202601-0007".
func FormatNumber(prefix string, date time.Time, seq int) string {
	return fmt.Sprintf("%s%04d", NumberPrefix(prefix, date), seq)
}

// sequenceOf extracts the trailing sequence of number when it carries head.
func sequenceOf(number, head string) (int, bool) {
	if !strings.HasPrefix(number, head) {
		return 0, false
	}
	n, err := strconv.Atoi(number[len(head):])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// NextNumber returns one past the highest sequence already used for the
// prefix and month of date.
func NextNumber(db *gorm.DB, prefix string, date time.Time) (string, error) {
	head := NumberPrefix(prefix, date)

	var numbers []string
	if err := db.Model(&models.Invoice{}).
		Where("invoice_number LIKE ?", head+"%").
		Pluck("invoice_number", &numbers).Error; err != nil {
		return "", fmt.Errorf("load invoice numbers: %w", err)
	}

	highest := 0
	for _, n := range numbers {
		if seq, ok := sequenceOf(n, head); ok && seq > highest {
			highest = seq
		}
	}
	return FormatNumber(prefix, date, highest+1), nil
}
