package guards_test

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"testing"

	"sheriff-backend/internal/guards"
	"sheriff-backend/internal/inventory"
	"sheriff-backend/internal/models"
	"sheriff-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestCreateGuard(t *testing.T) {
	env := testutil.Setup(t)
	b := env.Branch(t, "Lahore")
	other := env.Branch(t, "Karachi")
	_, token := env.BranchAdmin(t, b.ID)
	_, otherToken := env.BranchAdmin(t, other.ID)

	resp := env.Do(t, http.MethodPost, "/api/guards", token, testutil.M{
		"guard_code": " g-7 ", "name": "Imran Ali", "cnic": "6110112345679", "phone": "0300-1234567",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var g guards.GuardResponse
	testutil.Decode(t, resp, &g)
	assert.Equal(t, "G-7", g.GuardCode)
	assert.Equal(t, "61101-1234567-9", g.CNIC)
	assert.Equal(t, b.ID, g.BranchID)
	assert.Equal(t, models.StatusActive, g.Status)

	resp = env.Do(t, http.MethodPost, "/api/guards", token, testutil.M{"guard_code": "G-7", "name": "Other", "cnic": "6110112345670"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp = env.Do(t, http.MethodPost, "/api/guards", otherToken, testutil.M{"guard_code": "G-7", "name": "Same code elsewhere", "cnic": "6110112345670"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode, "codes are unique per branch")
	resp = env.Do(t, http.MethodPost, "/api/guards", otherToken, testutil.M{"guard_code": "G-8", "name": "Dup CNIC", "cnic": "61101-1234567-9"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "CNIC is unique everywhere")

	resp = env.Do(t, http.MethodPost, "/api/guards", token, testutil.M{"guard_code": "G-9", "name": "Bad", "cnic": "123"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.Do(t, http.MethodGet, fmt.Sprintf("/api/guards/%d", g.ID), otherToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = env.Do(t, http.MethodPut, fmt.Sprintf("/api/guards/%d", g.ID), otherToken, testutil.M{"name": "x"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCreateGuard_SuperAdminNeedsBranch(t *testing.T) {
	env := testutil.Setup(t)
	b := env.Branch(t, "Lahore")
	_, token := env.SuperAdmin(t)

	body := testutil.M{"guard_code": "G-1", "name": "Asad", "cnic": "6110112345679"}
	assert.Equal(t, http.StatusBadRequest, env.Do(t, http.MethodPost, "/api/guards", token, body).StatusCode)

	body["branch_id"] = 999
	assert.Equal(t, http.StatusBadRequest, env.Do(t, http.MethodPost, "/api/guards", token, body).StatusCode)

	body["branch_id"] = b.ID
	assert.Equal(t, http.StatusCreated, env.Do(t, http.MethodPost, "/api/guards", token, body).StatusCode)
}

func TestUpdateAndListGuards(t *testing.T) {
	env := testutil.Setup(t)
	b := env.Branch(t, "Lahore")
	_, token := env.BranchAdmin(t, b.ID)
	g := env.Guard(t, b.ID, "G-1")
	env.Guard(t, b.ID, "G-2")

	resp := env.Do(t, http.MethodPut, fmt.Sprintf("/api/guards/%d", g.ID), token, testutil.M{"status": "inactive", "phone": "0333"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []guards.GuardResponse
	testutil.Decode(t, env.Do(t, http.MethodGet, "/api/guards?status=active", token, nil), &list)
	require.Len(t, list, 1)
	assert.Equal(t, "G-2", list[0].GuardCode)

	resp = env.Do(t, http.MethodPut, fmt.Sprintf("/api/guards/%d", g.ID), token, testutil.M{"guard_code": "G-2"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDeleteGuard(t *testing.T) {
	env := testutil.Setup(t)
	b := env.Branch(t, "Lahore")
	_, token := env.BranchAdmin(t, b.ID)
	g := env.Guard(t, b.ID, "G-1")
	p := env.Place(t, b.ID, "Site")
	a := env.Assignment(t, g, p, models.ShiftDay, testutil.Date("2026-01-01"))
	path := fmt.Sprintf("/api/guards/%d", g.ID)

	assert.Equal(t, http.StatusConflict, env.Do(t, http.MethodDelete, path, token, nil).StatusCode)

	require.NoError(t, env.DB.Model(&a).Update("status", models.AssignmentCompleted).Error)
	env.Attendance(t, g, p, testutil.Date("2026-01-02"), models.ShiftDay, models.AttendancePresent)

	resp := env.Do(t, http.MethodPost, "/api/inventory/items", token, testutil.M{"name": "Baton", "category": "Equipment", "total_quantity": 3})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var item inventory.ItemResponse
	testutil.Decode(t, resp, &item)
	resp = env.Do(t, http.MethodPost, "/api/inventory/assign", token, testutil.M{
		"item_id": item.ID, "quantity": 1, "assigned_to_type": "guard", "guard_id": g.ID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var held inventory.AssignmentResponse
	testutil.Decode(t, resp, &held)

	resp = env.Do(t, http.MethodDelete, path, token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Return the guard's inventory before deleting", testutil.ErrorMessage(t, resp))

	resp = env.Do(t, http.MethodPost, fmt.Sprintf("/api/inventory/assignments/%d/return", held.ID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, http.StatusNoContent, env.Do(t, http.MethodDelete, path, token, nil).StatusCode)

	var n int64
	require.NoError(t, env.DB.Model(&models.Attendance{}).Where("guard_id = ?", g.ID).Count(&n).Error)
	assert.Zero(t, n)
	assert.Equal(t, http.StatusNotFound, env.Do(t, http.MethodGet, path, token, nil).StatusCode)
}

func TestUploadPhoto(t *testing.T) {
	env := testutil.Setup(t)
	b := env.Branch(t, "Lahore")
	_, token := env.BranchAdmin(t, b.ID)
	g := env.Guard(t, b.ID, "G-1")
	path := fmt.Sprintf("/api/guards/%d/photo", g.ID)

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewGray(image.Rect(0, 0, 4, 4))))

	resp := env.Upload(t, path, token, "photo", "face.png", img.Bytes(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got guards.GuardResponse
	testutil.Decode(t, resp, &got)
	assert.Contains(t, got.PhotoURL, "/uploads/guards/")

	resp = env.Upload(t, path, token, "photo", "face.png", []byte("plain text, not an image"), nil)
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

	resp = env.Upload(t, path, token, "photo", "huge.png", append(img.Bytes(), make([]byte, 1<<20)...), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func workbook(t *testing.T, rows ...[]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestImportGuards(t *testing.T) {
	env := testutil.Setup(t)
	b := env.Branch(t, "Lahore")
	_, token := env.BranchAdmin(t, b.ID)
	existing := env.Guard(t, b.ID, "G-1")

	book := workbook(t,
		[]any{"Guard Code", "Name", "CNIC", "Phone", "Address"},
		[]any{"G-1", "Already here", "61101-0000001-1", "", ""},
		[]any{"G-2", "Faisal", "61101-0000002-2", "0300", "Johar Town"},
		[]any{"G-3", "Zubair", existing.CNIC, "", ""},
		[]any{"G-4", "Rashid", "61101 0000004 4", "", ""},
		[]any{"G-5", "", "61101-0000005-5", "", ""},
	)

	resp := env.Upload(t, "/api/guards/import", token, "file", "guards.xlsx", book, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var res guards.ImportResponse
	testutil.Decode(t, resp, &res)

	require.Len(t, res.Created, 2)
	assert.Equal(t, "G-2", res.Created[0].GuardCode)
	assert.Equal(t, "61101-0000004-4", res.Created[1].CNIC)

	lines := map[int]string{}
	for _, s := range res.Skipped {
		lines[s.Line] = s.Error
	}
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[2], "Guard code already exists")
	assert.Contains(t, lines[4], "CNIC already exists")
	assert.Contains(t, lines[6], "required")

	var n int64
	require.NoError(t, env.DB.Model(&models.Guard{}).Where("branch_id = ?", b.ID).Count(&n).Error)
	assert.EqualValues(t, 3, n)
	require.NoError(t, env.DB.Model(&models.AuditLog{}).Where("entity_type = ?", "guard").Count(&n).Error)
	assert.EqualValues(t, 2, n)
}

func TestImportGuards_Rejects(t *testing.T) {
	env := testutil.Setup(t)
	b := env.Branch(t, "Lahore")
	_, token := env.BranchAdmin(t, b.ID)
	_, root := env.SuperAdmin(t)
	book := workbook(t, []any{"G-1", "Asad", "61101-0000001-1"})

	resp := env.Upload(t, "/api/guards/import", token, "file", "guards.csv", []byte("G-1,Asad"), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = env.Upload(t, "/api/guards/import", token, "file", "guards.xlsx", []byte("not a zip"), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = env.Upload(t, "/api/guards/import", root, "file", "guards.xlsx", book, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "super admin must name a branch")

	resp = env.Upload(t, "/api/guards/import", root, "file", "guards.xlsx", book, map[string]string{"branch_id": fmt.Sprint(b.ID)})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var res guards.ImportResponse
	testutil.Decode(t, resp, &res)
	require.Len(t, res.Created, 1)
	assert.Equal(t, b.ID, res.Created[0].BranchID)
}
