package invoices_test

import (
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"sheriff-backend/internal/invoices"
	"sheriff-backend/internal/models"
	"sheriff-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invoiceBody(placeID uint) testutil.M {
	return testutil.M{
		"place_id":     placeID,
		"invoice_date": "2026-01-15",
		"due_date":     "2026-01-30",
		"period_start": "2025-12-01",
		"period_end":   "2025-12-31",
		"tax_rate":     16,
		"line_items": []testutil.M{
			{"description": "Day shift guards", "quantity": 31, "unit_price": 1500},
			{"description": "", "quantity": 1, "unit_price": 99},
			{"description": "Supervisor", "quantity": 1, "unit_price": 2500.5},
		},
	}
}

func createInvoice(t *testing.T, env *testutil.Env, token string, body testutil.M) invoices.InvoiceResponse {
	t.Helper()
	resp := env.Do(t, http.MethodPost, "/api/invoices", token, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var inv invoices.InvoiceResponse
	testutil.Decode(t, resp, &inv)
	return inv
}

func TestCreateInvoice(t *testing.T) {
	env := testutil.Setup(t)
	b := env.Branch(t, "Lahore")
	_, token := env.BranchAdmin(t, b.ID)
	p := env.Place(t, b.ID, "Mall Road Plaza")

	inv := createInvoice(t, env, token, invoiceBody(p.ID))
	assert.Equal(t, "INV-202601-0001", inv.InvoiceNumber)
	assert.Equal(t, models.InvoiceDraft, inv.Status)
	assert.Equal(t, b.ID, inv.BranchID)
	assert.Equal(t, "Mall Road Plaza", inv.PlaceName)
	require.Len(t, inv.LineItems, 2)
	assert.Equal(t, 46500.0, inv.LineItems[0].Amount)
	assert.Equal(t, 49000.5, inv.Subtotal)
	assert.Equal(t, 7840.08, inv.TaxAmount)
	assert.Equal(t, 56840.58, inv.Total)

	second := createInvoice(t, env, token, invoiceBody(p.ID))
	assert.Equal(t, "INV-202601-0002", second.InvoiceNumber)

	dup := invoiceBody(p.ID)
	dup["invoice_number"] = "INV-202601-0001"
	resp := env.Do(t, http.MethodPost, "/api/invoices", token, dup)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var got invoices.InvoiceResponse
	testutil.Decode(t, env.Do(t, http.MethodGet, fmt.Sprintf("/api/invoices/%d", inv.ID), token, nil), &got)
	require.Len(t, got.LineItems, 2)
	assert.Equal(t, "Supervisor", got.LineItems[1].Description)
}

func TestCreateInvoice_DefaultTaxRate(t *testing.T) {
	env := testutil.Setup(t)
	b := env.Branch(t, "Lahore")
	_, token := env.BranchAdmin(t, b.ID)
	p := env.Place(t, b.ID, "Site")

	settings := models.DefaultCompanySettings()
	settings.DefaultTaxRate = 10
	require.NoError(t, env.DB.Create(&settings).Error)

	body := invoiceBody(p.ID)
	delete(body, "tax_rate")
	inv := createInvoice(t, env, token, body)
	assert.Equal(t, 10.0, inv.TaxRate)
	assert.Equal(t, 4900.05, inv.TaxAmount)
}

func TestCreateInvoice_Validation(t *testing.T) {
	env := testutil.Setup(t)
	b := env.Branch(t, "Lahore")
	other := env.Branch(t, "Karachi")
	_, token := env.BranchAdmin(t, b.ID)
	p := env.Place(t, b.ID, "Site")
	foreign := env.Place(t, other.ID, "Port")

	tests := []struct {
		name   string
		edit   func(testutil.M)
		status int
	}{
		{"due before invoice date", func(m testutil.M) { m["due_date"] = "2026-01-10" }, http.StatusBadRequest},
		{"period reversed", func(m testutil.M) { m["period_end"] = "2025-11-30" }, http.StatusBadRequest},
		{"bad date", func(m testutil.M) { m["invoice_date"] = "15/01/2026" }, http.StatusBadRequest},
		{"no lines", func(m testutil.M) { m["line_items"] = []testutil.M{} }, http.StatusBadRequest},
		{"tax rate", func(m testutil.M) { m["tax_rate"] = 120 }, http.StatusBadRequest},
		{"missing place", func(m testutil.M) { m["place_id"] = 0 }, http.StatusBadRequest},
		{"other branch place", func(m testutil.M) { m["place_id"] = foreign.ID }, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := invoiceBody(p.ID)
			tt.edit(body)
			resp := env.Do(t, http.MethodPost, "/api/invoices", token, body)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}

	var n int64
	require.NoError(t, env.DB.Model(&models.Invoice{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestNextNumber(t *testing.T) {
	env := testutil.Setup(t)
	b := env.Branch(t, "Lahore")
	_, token := env.BranchAdmin(t, b.ID)
	p := env.Place(t, b.ID, "Site")

	env.Invoice(t, p, "INV-202601-0009", testutil.Date("2026-01-03"), 100, models.InvoicePaid)
	env.Invoice(t, p, "INV-202602-0041", testutil.Date("2026-02-03"), 100, models.InvoiceDraft)
	env.Invoice(t, p, "CUSTOM-1", testutil.Date("2026-01-04"), 100, models.InvoiceDraft)

	var body struct {
		InvoiceNumber string `json:"invoice_number"`
	}
	testutil.Decode(t, env.Do(t, http.MethodGet, "/api/invoices/next-number?date=2026-01-20", token, nil), &body)
	assert.Equal(t, "INV-202601-0010", body.InvoiceNumber)

	testutil.Decode(t, env.Do(t, http.MethodGet, "/api/invoices/next-number?date=2026-03-01", token, nil), &body)
	assert.Equal(t, "INV-202603-0001", body.InvoiceNumber)

	resp := env.Do(t, http.MethodGet, "/api/invoices/next-number?date=march", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInvoiceLifecycle(t *testing.T) {
	env := testutil.Setup(t)
	b := env.Branch(t, "Lahore")
	_, token := env.BranchAdmin(t, b.ID)
	p := env.Place(t, b.ID, "Site")

	inv := createInvoice(t, env, token, invoiceBody(p.ID))
	path := fmt.Sprintf("/api/invoices/%d", inv.ID)

	setStatus := func(status string) *http.Response {
		return env.Do(t, http.MethodPut, path+"/status", token, testutil.M{"status": status})
	}

	assert.Equal(t, http.StatusBadRequest, setStatus("archived").StatusCode)
	assert.Equal(t, http.StatusConflict, setStatus("paid").StatusCode, "draft cannot be paid")

	edit := invoiceBody(p.ID)
	edit["line_items"] = []testutil.M{{"description": "Night shift guards", "quantity": 10, "unit_price": 2000}}
	edit["tax_rate"] = 0
	resp := env.Do(t, http.MethodPut, path, token, edit)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var edited invoices.InvoiceResponse
	testutil.Decode(t, resp, &edited)
	assert.Equal(t, 20000.0, edited.Total)
	require.Len(t, edited.LineItems, 1)

	var lines int64
	require.NoError(t, env.DB.Model(&models.InvoiceLineItem{}).Where("invoice_id = ?", inv.ID).Count(&lines).Error)
	assert.EqualValues(t, 1, lines)

	assert.Equal(t, http.StatusOK, setStatus("sent").StatusCode)
	assert.Equal(t, http.StatusConflict, env.Do(t, http.MethodPut, path, token, edit).StatusCode, "sent invoices are locked")
	assert.Equal(t, http.StatusConflict, env.Do(t, http.MethodDelete, path, token, nil).StatusCode)

	assert.Equal(t, http.StatusOK, setStatus("paid").StatusCode)
	assert.Equal(t, http.StatusConflict, setStatus("cancelled").StatusCode, "paid is final")

	var stored models.Invoice
	require.NoError(t, env.DB.First(&stored, inv.ID).Error)
	assert.Equal(t, models.InvoicePaid, stored.Status)
}

func TestDeleteInvoice(t *testing.T) {
	env := testutil.Setup(t)
	b := env.Branch(t, "Lahore")
	other := env.Branch(t, "Karachi")
	_, token := env.BranchAdmin(t, b.ID)
	_, otherToken := env.BranchAdmin(t, other.ID)
	p := env.Place(t, b.ID, "Site")

	draft := env.Invoice(t, p, "INV-202601-0001", testutil.Date("2026-01-03"), 100, models.InvoiceDraft)
	cancelled := env.Invoice(t, p, "INV-202601-0002", testutil.Date("2026-01-03"), 100, models.InvoiceCancelled)

	resp := env.Do(t, http.MethodDelete, fmt.Sprintf("/api/invoices/%d", draft.ID), otherToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	for _, inv := range []models.Invoice{draft, cancelled} {
		resp := env.Do(t, http.MethodDelete, fmt.Sprintf("/api/invoices/%d", inv.ID), token, nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	}

	var n int64
	require.NoError(t, env.DB.Model(&models.InvoiceLineItem{}).Count(&n).Error)
	assert.Zero(t, n)

	resp = env.Do(t, http.MethodGet, fmt.Sprintf("/api/invoices/%d", draft.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListInvoices_Filters(t *testing.T) {
	env := testutil.Setup(t)
	b := env.Branch(t, "Lahore")
	other := env.Branch(t, "Karachi")
	_, token := env.BranchAdmin(t, b.ID)
	p := env.Place(t, b.ID, "Site")
	q := env.Place(t, b.ID, "Bank")
	far := env.Place(t, other.ID, "Port")

	env.Invoice(t, p, "INV-202601-0001", testutil.Date("2026-01-03"), 100, models.InvoiceSent)
	env.Invoice(t, q, "INV-202601-0002", testutil.Date("2026-01-20"), 200, models.InvoiceDraft)
	env.Invoice(t, p, "INV-202602-0001", testutil.Date("2026-02-03"), 300, models.InvoiceSent)
	env.Invoice(t, far, "INV-202601-0003", testutil.Date("2026-01-05"), 400, models.InvoiceSent)

	var list []invoices.InvoiceResponse
	testutil.Decode(t, env.Do(t, http.MethodGet, "/api/invoices", token, nil), &list)
	assert.Len(t, list, 3)

	testutil.Decode(t, env.Do(t, http.MethodGet, "/api/invoices?status=sent", token, nil), &list)
	assert.Len(t, list, 2)

	testutil.Decode(t, env.Do(t, http.MethodGet, fmt.Sprintf("/api/invoices?place_id=%d", q.ID), token, nil), &list)
	require.Len(t, list, 1)
	assert.Equal(t, "INV-202601-0002", list[0].InvoiceNumber)

	testutil.Decode(t, env.Do(t, http.MethodGet, "/api/invoices?start_date=2026-01-01&end_date=2026-01-31", token, nil), &list)
	assert.Len(t, list, 2)
}

func TestInvoicePDF(t *testing.T) {
	env := testutil.Setup(t)
	b := env.Branch(t, "Lahore")
	_, token := env.BranchAdmin(t, b.ID)
	p := env.Place(t, b.ID, "Site")
	inv := createInvoice(t, env, token, invoiceBody(p.ID))

	resp := env.Do(t, http.MethodGet, fmt.Sprintf("/api/invoices/%d/pdf", inv.ID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "INV-202601-0001.pdf")

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", string(raw[:5]))
}

func TestMarkOverdue(t *testing.T) {
	env := testutil.Setup(t)
	b := env.Branch(t, "Lahore")
	p := env.Place(t, b.ID, "Site")

	// due 2026-01-10
	late := env.Invoice(t, p, "INV-202601-0001", testutil.Date("2026-01-03"), 100, models.InvoiceSent)
	// due 2026-01-17
	current := env.Invoice(t, p, "INV-202601-0002", testutil.Date("2026-01-10"), 100, models.InvoiceSent)
	draft := env.Invoice(t, p, "INV-202601-0003", testutil.Date("2026-01-01"), 100, models.InvoiceDraft)

	now := time.Date(2026, 1, 12, 9, 30, 0, 0, time.UTC)
	n, err := invoices.MarkOverdue(env.DB, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	for id, want := range map[uint]models.InvoiceStatus{
		late.ID:    models.InvoiceOverdue,
		current.ID: models.InvoiceSent,
		draft.ID:   models.InvoiceDraft,
	} {
		var inv models.Invoice
		require.NoError(t, env.DB.First(&inv, id).Error)
		assert.Equal(t, want, inv.Status, inv.InvoiceNumber)
	}

	n, err = invoices.MarkOverdue(env.DB, now)
	require.NoError(t, err)
	assert.Zero(t, n)
}
