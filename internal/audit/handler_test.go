package audit_test

import (
	"fmt"
	"net/http"
	"testing"

	"sheriff-backend/internal/audit"
	"sheriff-backend/internal/models"
	"sheriff-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logsOf(t *testing.T, env *testutil.Env, token, entityType string, id uint) []audit.AuditLogResponse {
	t.Helper()
	var logs []audit.AuditLogResponse
	path := fmt.Sprintf("/api/audit-logs?entity_type=%s&entity_id=%d", entityType, id)
	testutil.Decode(t, env.Do(t, http.MethodGet, path, token, nil), &logs)
	return logs
}

func undo(t *testing.T, env *testutil.Env, token string, logID uint) *http.Response {
	t.Helper()
	return env.Do(t, http.MethodPost, fmt.Sprintf("/api/audit-logs/%d/undo", logID), token, nil)
}

func TestUndoPlaceChanges(t *testing.T) {
	env := testutil.Setup(t)
	b := env.Branch(t, "Lahore")
	_, token := env.BranchAdmin(t, b.ID)

	resp := env.Do(t, http.MethodPost, "/api/places", token, testutil.M{"name": "Plaza", "address": "Mall Road", "city": "Lahore"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		ID uint `json:"id"`
	}
	testutil.Decode(t, resp, &created)
	path := fmt.Sprintf("/api/places/%d", created.ID)

	require.Equal(t, http.StatusOK, env.Do(t, http.MethodPut, path, token, testutil.M{"name": "Plaza II"}).StatusCode)

	logs := logsOf(t, env, token, audit.EntityPlace, created.ID)
	require.Len(t, logs, 2)
	update, create := logs[0], logs[1]
	assert.Equal(t, models.AuditActionUpdate, update.Action)
	assert.Equal(t, models.AuditActionCreate, create.Action)
	assert.True(t, update.Undoable)

	// revert the rename
	require.Equal(t, http.StatusOK, undo(t, env, token, update.ID).StatusCode)
	var p models.Place
	require.NoError(t, env.DB.First(&p, created.ID).Error)
	assert.Equal(t, "Plaza", p.Name)
	assert.Equal(t, http.StatusConflict, undo(t, env, token, update.ID).StatusCode)

	// delete then bring it back
	require.Equal(t, http.StatusNoContent, env.Do(t, http.MethodDelete, path, token, nil).StatusCode)
	logs = logsOf(t, env, token, audit.EntityPlace, created.ID)
	require.Equal(t, models.AuditActionDelete, logs[0].Action)
	require.Equal(t, http.StatusOK, undo(t, env, token, logs[0].ID).StatusCode)
	require.NoError(t, env.DB.First(&p, created.ID).Error)
	assert.Equal(t, "Plaza", p.Name)
	assert.Equal(t, b.ID, p.BranchID)

	// undoing the creation removes it again
	require.Equal(t, http.StatusOK, undo(t, env, token, create.ID).StatusCode)
	assert.Equal(t, http.StatusNotFound, env.Do(t, http.MethodGet, path, token, nil).StatusCode)

	logs = logsOf(t, env, token, audit.EntityPlace, created.ID)
	var undos int
	for _, l := range logs {
		if l.Action == models.AuditActionUndo {
			undos++
			assert.False(t, l.Undoable)
		}
	}
	assert.Equal(t, 3, undos)
}

func TestUndo_Rules(t *testing.T) {
	env := testutil.Setup(t)
	b := env.Branch(t, "Lahore")
	other := env.Branch(t, "Karachi")
	_, token := env.BranchAdmin(t, b.ID)
	_, otherToken := env.BranchAdmin(t, other.ID)

	invoiceLog := models.AuditLog{BranchID: &b.ID, EntityType: audit.EntityInvoice, EntityID: 1, Action: models.AuditActionCreate, BeforeData: "null", AfterData: "{}"}
	require.NoError(t, env.DB.Create(&invoiceLog).Error)
	assert.Equal(t, http.StatusBadRequest, undo(t, env, token, invoiceLog.ID).StatusCode)

	guardLog := models.AuditLog{BranchID: &b.ID, EntityType: audit.EntityGuard, EntityID: 77, Action: models.AuditActionCreate, BeforeData: "null", AfterData: "{}"}
	require.NoError(t, env.DB.Create(&guardLog).Error)
	assert.Equal(t, http.StatusForbidden, undo(t, env, otherToken, guardLog.ID).StatusCode)
	assert.Equal(t, http.StatusUnprocessableEntity, undo(t, env, token, guardLog.ID).StatusCode, "guard 77 does not exist")

	assert.Equal(t, http.StatusNotFound, undo(t, env, token, 9999).StatusCode)
}

func TestListAuditLogs_Scope(t *testing.T) {
	env := testutil.Setup(t)
	b := env.Branch(t, "Lahore")
	other := env.Branch(t, "Karachi")
	_, token := env.BranchAdmin(t, b.ID)
	_, root := env.SuperAdmin(t)

	for _, id := range []uint{b.ID, b.ID, other.ID} {
		bid := id
		require.NoError(t, env.DB.Create(&models.AuditLog{BranchID: &bid, EntityType: audit.EntityGuard, EntityID: 1, Action: models.AuditActionUpdate}).Error)
	}

	var logs []audit.AuditLogResponse
	testutil.Decode(t, env.Do(t, http.MethodGet, "/api/audit-logs", token, nil), &logs)
	assert.Len(t, logs, 2)
	testutil.Decode(t, env.Do(t, http.MethodGet, "/api/audit-logs", root, nil), &logs)
	assert.Len(t, logs, 3)
	testutil.Decode(t, env.Do(t, http.MethodGet, "/api/audit-logs?limit=1", root, nil), &logs)
	assert.Len(t, logs, 1)
	assert.Equal(t, http.StatusBadRequest, env.Do(t, http.MethodGet, "/api/audit-logs?limit=0", root, nil).StatusCode)
}

func createdID(t *testing.T, resp *http.Response) uint {
	t.Helper()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var body struct {
		ID uint `json:"id"`
	}
	testutil.Decode(t, resp, &body)
	return body.ID
}

func TestUndoAssignment_RespectsSchedule(t *testing.T) {
	env := testutil.Setup(t)
	b := env.Branch(t, "Lahore")
	_, token := env.BranchAdmin(t, b.ID)
	g := env.Guard(t, b.ID, "G-1")
	mall := env.Place(t, b.ID, "Mall")
	bank := env.Place(t, b.ID, "Bank")

	first := createdID(t, env.Do(t, http.MethodPost, "/api/assignments", token, testutil.M{
		"guard_id": g.ID, "place_id": mall.ID, "shift_type": "day", "start_date": "2026-01-01",
	}))
	resp := env.Do(t, http.MethodPut, fmt.Sprintf("/api/assignments/%d", first), token, testutil.M{"status": "cancelled"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := createdID(t, env.Do(t, http.MethodPost, "/api/assignments", token, testutil.M{
		"guard_id": g.ID, "place_id": bank.ID, "shift_type": "day", "start_date": "2026-01-01",
	}))

	logs := logsOf(t, env, token, audit.EntityAssignment, first)
	require.Equal(t, models.AuditActionUpdate, logs[0].Action)
	cancel := logs[0]

	// reactivating would double-book the day shift
	assert.Equal(t, http.StatusConflict, undo(t, env, token, cancel.ID).StatusCode)
	var active int64
	require.NoError(t, env.DB.Model(&models.Assignment{}).
		Where("guard_id = ? AND status = ?", g.ID, models.AssignmentActive).Count(&active).Error)
	assert.EqualValues(t, 1, active)

	create := logsOf(t, env, token, audit.EntityAssignment, second)[0]
	require.Equal(t, models.AuditActionCreate, create.Action)
	require.Equal(t, http.StatusOK, undo(t, env, token, create.ID).StatusCode)
	require.Equal(t, http.StatusOK, undo(t, env, token, cancel.ID).StatusCode)

	var a models.Assignment
	require.NoError(t, env.DB.First(&a, first).Error)
	assert.Equal(t, models.AssignmentActive, a.Status)
}

func TestUndoBranchCreate_RefusedWhileInUse(t *testing.T) {
	env := testutil.Setup(t)
	_, root := env.SuperAdmin(t)

	id := createdID(t, env.Do(t, http.MethodPost, "/api/admin/branches", root, testutil.M{"name": "Quetta", "city": "Quetta"}))
	g := env.Guard(t, id, "G-1")
	create := logsOf(t, env, root, audit.EntityBranch, id)[0]
	require.Equal(t, models.AuditActionCreate, create.Action)

	resp := undo(t, env, root, create.ID)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Cannot delete branch with existing places or guards", testutil.ErrorMessage(t, resp))
	var n int64
	require.NoError(t, env.DB.Model(&models.Branch{}).Where("id = ?", id).Count(&n).Error)
	assert.EqualValues(t, 1, n)

	require.NoError(t, env.DB.Delete(&models.Guard{}, g.ID).Error)
	require.Equal(t, http.StatusOK, undo(t, env, root, create.ID).StatusCode)
	require.NoError(t, env.DB.Model(&models.Branch{}).Where("id = ?", id).Count(&n).Error)
	assert.Zero(t, n)
}

func TestUndoGuard(t *testing.T) {
	env := testutil.Setup(t)
	b := env.Branch(t, "Lahore")
	_, token := env.BranchAdmin(t, b.ID)
	p := env.Place(t, b.ID, "Mall")

	id := createdID(t, env.Do(t, http.MethodPost, "/api/guards", token, testutil.M{
		"guard_code": "G-9", "name": "Bilal", "cnic": "35202-1111111-1",
	}))
	resp := env.Do(t, http.MethodPut, fmt.Sprintf("/api/guards/%d", id), token, testutil.M{"cnic": "35202-2222222-2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	createdID(t, env.Do(t, http.MethodPost, "/api/guards", token, testutil.M{
		"guard_code": "G-10", "name": "Kamran", "cnic": "35202-1111111-1",
	}))

	logs := logsOf(t, env, token, audit.EntityGuard, id)
	require.Len(t, logs, 2)
	update, create := logs[0], logs[1]

	resp = undo(t, env, token, update.ID)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "A guard with this CNIC already exists", testutil.ErrorMessage(t, resp))

	var g models.Guard
	require.NoError(t, env.DB.First(&g, id).Error)
	a := env.Assignment(t, g, p, models.ShiftDay, testutil.Date("2026-01-01"))
	resp = undo(t, env, token, create.ID)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Cannot delete guard with active assignments", testutil.ErrorMessage(t, resp))

	require.NoError(t, env.DB.Model(&a).Update("status", models.AssignmentCompleted).Error)
	require.Equal(t, http.StatusOK, undo(t, env, token, create.ID).StatusCode)

	var n int64
	require.NoError(t, env.DB.Model(&models.Guard{}).Where("id = ?", id).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, env.DB.Model(&models.Assignment{}).Where("guard_id = ?", id).Count(&n).Error)
	assert.Zero(t, n, "past assignments go with the guard")
}

func TestUndoAttendanceDelete(t *testing.T) {
	env := testutil.Setup(t)
	b := env.Branch(t, "Lahore")
	_, token := env.BranchAdmin(t, b.ID)
	g := env.Guard(t, b.ID, "G-1")
	p := env.Place(t, b.ID, "Mall")
	day := testutil.Date("2026-01-02")

	rec := env.Attendance(t, g, p, day, models.ShiftDay, models.AttendanceLate)
	require.Equal(t, http.StatusNoContent, env.Do(t, http.MethodDelete, fmt.Sprintf("/api/attendance/%d", rec.ID), token, nil).StatusCode)
	del := logsOf(t, env, token, audit.EntityAttendance, rec.ID)[0]
	require.Equal(t, models.AuditActionDelete, del.Action)

	// the slot was marked again in the meantime
	again := env.Attendance(t, g, p, day, models.ShiftDay, models.AttendancePresent)
	assert.Equal(t, http.StatusConflict, undo(t, env, token, del.ID).StatusCode)

	require.NoError(t, env.DB.Delete(&models.Attendance{}, again.ID).Error)
	require.Equal(t, http.StatusOK, undo(t, env, token, del.ID).StatusCode)

	var restored models.Attendance
	require.NoError(t, env.DB.First(&restored, rec.ID).Error)
	assert.Equal(t, models.AttendanceLate, restored.Status)
}
