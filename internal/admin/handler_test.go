package admin_test

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sheriff-backend/internal/admin"
	"sheriff-backend/internal/models"
	"sheriff-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBranchCRUD(t *testing.T) {
	env := testutil.Setup(t)
	_, token := env.SuperAdmin(t)

	resp := env.Do(t, http.MethodPost, "/api/admin/branches", token, testutil.M{
		"name": "Gulberg", "city": "Lahore", "address": "Main Boulevard", "phone": "042-35870000",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created admin.BranchResponse
	testutil.Decode(t, resp, &created)
	assert.Equal(t, models.StatusActive, created.Status)

	resp = env.Do(t, http.MethodPost, "/api/admin/branches", token, testutil.M{"name": "Gulberg", "city": "Lahore"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp = env.Do(t, http.MethodPost, "/api/admin/branches", token, testutil.M{"name": "No City"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = env.Do(t, http.MethodPost, "/api/admin/branches", token, testutil.M{"name": "X", "city": "Y", "status": "closed"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	path := fmt.Sprintf("/api/admin/branches/%d", created.ID)
	resp = env.Do(t, http.MethodPut, path, token, testutil.M{"status": "inactive", "phone": ""})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated admin.BranchResponse
	testutil.Decode(t, resp, &updated)
	assert.Equal(t, models.StatusInactive, updated.Status)
	assert.Empty(t, updated.Phone)
	assert.Equal(t, "Main Boulevard", updated.Address)

	env.Guard(t, created.ID, "G-1")
	var listed []admin.BranchResponse
	testutil.Decode(t, env.Do(t, http.MethodGet, "/api/admin/branches", token, nil), &listed)
	require.Len(t, listed, 1)
	assert.EqualValues(t, 1, listed[0].GuardCount)

	resp = env.Do(t, http.MethodPut, path, token, testutil.M{"status": "active"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	testutil.Decode(t, resp, &updated)
	assert.EqualValues(t, 1, updated.GuardCount)
	assert.Zero(t, updated.PlaceCount)

	resp = env.Do(t, http.MethodDelete, path, token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	empty := env.Branch(t, "Empty")
	resp = env.Do(t, http.MethodDelete, fmt.Sprintf("/api/admin/branches/%d", empty.ID), token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	var logs int64
	require.NoError(t, env.DB.Model(&models.AuditLog{}).Where("entity_type = ?", "branch").Count(&logs).Error)
	assert.EqualValues(t, 4, logs)
}

func TestAdminRoutesRequireSuperAdmin(t *testing.T) {
	env := testutil.Setup(t)
	b := env.Branch(t, "Lahore")
	_, token := env.BranchAdmin(t, b.ID)

	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/api/admin/branches"},
		{http.MethodPost, "/api/admin/branches"},
		{http.MethodPut, "/api/admin/settings/company"},
		{http.MethodGet, "/api/admin/inquiries"},
	} {
		resp := env.Do(t, r.method, r.path, token, testutil.M{})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, r.path)
	}
	resp := env.Do(t, http.MethodGet, "/api/settings/company", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBranchAdmins(t *testing.T) {
	env := testutil.Setup(t)
	_, token := env.SuperAdmin(t)
	b := env.Branch(t, "Lahore")
	base := fmt.Sprintf("/api/admin/branches/%d/admins", b.ID)

	resp := env.Do(t, http.MethodPost, base, token, testutil.M{"name": "Hamza", "email": "Hamza@Sheriff.pk", "password": testutil.Password})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created admin.BranchAdminResponse
	testutil.Decode(t, resp, &created)
	assert.Equal(t, "hamza@sheriff.pk", created.Email)
	assert.Equal(t, string(models.RoleBranchAdmin), created.Role)

	resp = env.Do(t, http.MethodPost, base, token, testutil.M{"name": "Dup", "email": "hamza@sheriff.pk", "password": testutil.Password})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp = env.Do(t, http.MethodPost, base, token, testutil.M{"name": "Bad", "email": "not-an-email", "password": testutil.Password})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	login := env.Do(t, http.MethodPost, "/api/auth/login", "", testutil.M{"email": "hamza@sheriff.pk", "password": testutil.Password})
	assert.Equal(t, http.StatusOK, login.StatusCode)

	var admins []admin.BranchAdminResponse
	testutil.Decode(t, env.Do(t, http.MethodGet, base, token, nil), &admins)
	require.Len(t, admins, 1)

	resp = env.Do(t, http.MethodDelete, fmt.Sprintf("/api/admin/branches/%d", b.ID), token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "branch still has an admin")

	resp = env.Do(t, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", created.ID), token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = env.Do(t, http.MethodDelete, fmt.Sprintf("/api/admin/branches/%d", b.ID), token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestCompanySettings(t *testing.T) {
	env := testutil.Setup(t)
	_, token := env.SuperAdmin(t)

	resp := env.Do(t, http.MethodPut, "/api/admin/settings/company", token, testutil.M{
		"company_name": "Sheriff Security Services", "invoice_prefix": "ssg", "default_tax_rate": 16, "currency": "pkr",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var s admin.CompanySettingsResponse
	testutil.Decode(t, env.Do(t, http.MethodGet, "/api/settings/company", token, nil), &s)
	assert.Equal(t, "Sheriff Security Services", s.CompanyName)
	assert.Equal(t, "SSG", s.InvoicePrefix)
	assert.Equal(t, 16.0, s.DefaultTaxRate)
	assert.Equal(t, "PKR", s.Currency)
	assert.Equal(t, "Professional Security Services", s.Tagline, "untouched fields keep defaults")

	for name, body := range map[string]testutil.M{
		"blank name":   {"company_name": " "},
		"prefix dash":  {"invoice_prefix": "IN-V"},
		"prefix long":  {"invoice_prefix": "ABCDEFGHIJK"},
		"tax negative": {"default_tax_rate": -1},
		"tax too high": {"default_tax_rate": 101},
		"currency":     {"currency": ""},
	} {
		resp := env.Do(t, http.MethodPut, "/api/admin/settings/company", token, body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, name)
	}
}

func TestApplySettings(t *testing.T) {
	s := models.DefaultCompanySettings()
	name := "  Night Watch  "
	require.NoError(t, admin.ApplySettings(&s, admin.UpdateCompanySettingsRequest{CompanyName: &name}))
	assert.Equal(t, "Night Watch", s.CompanyName)
	assert.Equal(t, "INV", s.InvoicePrefix)
}

func TestUploadLogo(t *testing.T) {
	env := testutil.Setup(t)
	_, token := env.SuperAdmin(t)

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 2, 2))))

	resp := env.Upload(t, "/api/admin/settings/logo", token, "logo", "logo.png", img.Bytes(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		LogoURL string `json:"logo_url"`
	}
	testutil.Decode(t, resp, &body)
	require.True(t, strings.HasPrefix(body.LogoURL, "/uploads/logos/"))
	first := filepath.Join(env.Cfg.UploadPath, strings.TrimPrefix(body.LogoURL, "/uploads/"))
	assert.FileExists(t, first)

	resp = env.Upload(t, "/api/admin/settings/logo", token, "logo", "logo2.png", img.Bytes(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, err := os.Stat(first)
	assert.True(t, os.IsNotExist(err), "previous logo is removed")

	resp = env.Upload(t, "/api/admin/settings/logo", token, "logo", "notes.txt", []byte("plain text"), nil)
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestInquiries(t *testing.T) {
	env := testutil.Setup(t)
	_, token := env.SuperAdmin(t)
	q := models.Inquiry{Name: "Sana", Email: "sana@example.com", Message: "Need event security", Status: models.InquiryNew}
	require.NoError(t, env.DB.Create(&q).Error)

	var list []admin.InquiryResponse
	testutil.Decode(t, env.Do(t, http.MethodGet, "/api/admin/inquiries?status=new", token, nil), &list)
	require.Len(t, list, 1)

	path := fmt.Sprintf("/api/admin/inquiries/%d/status", q.ID)
	assert.Equal(t, http.StatusBadRequest, env.Do(t, http.MethodPut, path, token, testutil.M{"status": "spam"}).StatusCode)
	require.Equal(t, http.StatusOK, env.Do(t, http.MethodPut, path, token, testutil.M{"status": "READ"}).StatusCode)

	testutil.Decode(t, env.Do(t, http.MethodGet, "/api/admin/inquiries?status=new", token, nil), &list)
	assert.Empty(t, list)
	testutil.Decode(t, env.Do(t, http.MethodGet, "/api/admin/inquiries?status=read", token, nil), &list)
	assert.Len(t, list, 1)

	assert.Equal(t, http.StatusBadRequest, env.Do(t, http.MethodGet, "/api/admin/inquiries?status=bogus", token, nil).StatusCode)
}
