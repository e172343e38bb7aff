package guards

import (
	"errors"
	"fmt"
	"strings"

	"sheriff-backend/internal/audit"
	"sheriff-backend/internal/auth"
	"sheriff-backend/internal/database"
	"sheriff-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxImportRows = 1000

// ImportRow is one guard read from a spreadsheet. Line is the 1-based sheet row.
type ImportRow struct {
	Line      int
	GuardCode string
	Name      string
	CNIC      string
	Phone     string
	Address   string
}

type RowError struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

type ImportResponse struct {
	Created []GuardResponse `json:"created"`
	Skipped []RowError      `json:"skipped"`
}

// default column order when the sheet has no header row
var importColumns = []string{"code", "name", "cnic", "phone", "address"}

func headerKey(cell string) string {
	h := strings.ToLower(strings.TrimSpace(cell))
	switch {
	case strings.Contains(h, "code"):
		return "code"
	case strings.Contains(h, "cnic"):
		return "cnic"
	case strings.Contains(h, "phone"), strings.Contains(h, "mobile"):
		return "phone"
	case strings.Contains(h, "address"):
		return "address"
	case strings.Contains(h, "name"):
		return "name"
	}
	return ""
}

// ParseRows maps spreadsheet rows onto guards. A first row naming the
// columns is used as the header; otherwise columns are code, name, cnic,
// phone, address. Blank rows are skipped.
func ParseRows(rows [][]string) ([]ImportRow, []RowError) {
	if len(rows) == 0 {
		return nil, nil
	}

	cols := map[string]int{}
	start := 0
	for i, cell := range rows[0] {
		if k := headerKey(cell); k != "" {
			if _, dup := cols[k]; !dup {
				cols[k] = i
			}
		}
	}
	if _, hasName := cols["name"]; hasName {
		start = 1
	} else {
		cols = map[string]int{}
		for i, k := range importColumns {
			cols[k] = i
		}
	}

	get := func(row []string, key string) string {
		i, ok := cols[key]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []ImportRow
	var errs []RowError
	seenCode := map[string]int{}
	seenCNIC := map[string]int{}

	for i := start; i < len(rows); i++ {
		row := rows[i]
		line := i + 1
		if strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}

		r := ImportRow{
			Line:      line,
			GuardCode: normalizeCode(get(row, "code")),
			Name:      get(row, "name"),
			Phone:     get(row, "phone"),
			Address:   get(row, "address"),
		}
		if r.GuardCode == "" || r.Name == "" {
			errs = append(errs, RowError{Line: line, Error: "guard code and name are required"})
			continue
		}
		cnic, err := NormalizeCNIC(get(row, "cnic"))
		if err != nil {
			errs = append(errs, RowError{Line: line, Error: err.Error()})
			continue
		}
		r.CNIC = cnic

		if prev, ok := seenCode[r.GuardCode]; ok {
			errs = append(errs, RowError{Line: line, Error: fmt.Sprintf("guard code repeats line %d", prev)})
			continue
		}
		if prev, ok := seenCNIC[r.CNIC]; ok {
			errs = append(errs, RowError{Line: line, Error: fmt.Sprintf("CNIC repeats line %d", prev)})
			continue
		}
		seenCode[r.GuardCode] = line
		seenCNIC[r.CNIC] = line
		out = append(out, r)
	}
	return out, errs
}

// POST /api/guards/import (multipart "file", .xlsx; super_admin passes branch_id)
func ImportGuardsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}

		var requested *uint
		if s := c.FormValue("branch_id"); s != "" {
			var id uint
			if _, err := fmt.Sscan(s, &id); err != nil || id == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "Invalid branch_id")
			}
			requested = &id
		}
		branchID, err := scope.TargetBranch(requested)
		if err != nil {
			return err
		}

		fh, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "file is required")
		}
		if !strings.HasSuffix(strings.ToLower(fh.Filename), ".xlsx") {
			return fiber.NewError(fiber.StatusBadRequest, "Only .xlsx files can be imported")
		}
		file, err := fh.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Could not read upload")
		}
		defer file.Close()

		book, err := excelize.OpenReader(file)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Could not read spreadsheet")
		}
		defer book.Close()

		sheets := book.GetSheetList()
		if len(sheets) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Spreadsheet has no sheets")
		}
		rows, err := book.GetRows(sheets[0])
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Could not read spreadsheet")
		}
		if len(rows) > maxImportRows+1 {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("At most %d guards can be imported at once", maxImportRows))
		}

		parsed, skipped := ParseRows(rows)
		if skipped == nil {
			skipped = []RowError{}
		}

		var valid []models.Guard
		for _, r := range parsed {
			if err := checkUnique(database.DB, branchID, r.GuardCode, r.CNIC, 0); err != nil {
				var fe *fiber.Error
				if errors.As(err, &fe) && fe.Code == fiber.StatusConflict {
					skipped = append(skipped, RowError{Line: r.Line, Error: fe.Message})
					continue
				}
				return err
			}
			valid = append(valid, models.Guard{
				BranchID:  branchID,
				GuardCode: r.GuardCode,
				Name:      r.Name,
				CNIC:      r.CNIC,
				Phone:     r.Phone,
				Address:   r.Address,
				Status:    models.StatusActive,
			})
		}

		actor := audit.Actor(c, &branchID)
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			for i := range valid {
				g := &valid[i]
				if err := tx.Omit("Branch").Create(g).Error; err != nil {
					return err
				}
				if err := audit.WriteLogTx(tx, actor.Entity(audit.EntityGuard, g.ID,
					models.AuditActionCreate, "Guard imported: "+g.Name, nil, *g)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			zap.L().Error("guard import failed", zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "Could not import guards")
		}

		res := ImportResponse{Created: make([]GuardResponse, 0, len(valid)), Skipped: skipped}
		for _, g := range valid {
			res.Created = append(res.Created, toGuardResponse(g))
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}
