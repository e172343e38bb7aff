package inventory_test

import (
	"fmt"
	"net/http"
	"testing"

	"sheriff-backend/internal/inventory"
	"sheriff-backend/internal/models"
	"sheriff-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createItem(t *testing.T, env *testutil.Env, token string, body testutil.M) inventory.ItemResponse {
	t.Helper()
	resp := env.Do(t, http.MethodPost, "/api/inventory/items", token, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var item inventory.ItemResponse
	testutil.Decode(t, resp, &item)
	return item
}

func stockOf(t *testing.T, env *testutil.Env, id uint) int {
	t.Helper()
	var item models.InventoryItem
	require.NoError(t, env.DB.First(&item, id).Error)
	return item.TotalQuantity
}

func TestQuantityAssignAndReturn(t *testing.T) {
	env := testutil.Setup(t)
	b := env.Branch(t, "Lahore")
	_, token := env.BranchAdmin(t, b.ID)
	g := env.Guard(t, b.ID, "G-1")

	item := createItem(t, env, token, testutil.M{"name": "Torch", "category": "Equipment", "total_quantity": 10})
	assert.Equal(t, models.TrackingQuantity, item.TrackingType)

	resp := env.Do(t, http.MethodPost, "/api/inventory/assign", token, testutil.M{
		"item_id": item.ID, "quantity": 4, "assigned_to_type": "guard", "guard_id": g.ID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var assigned inventory.AssignmentResponse
	testutil.Decode(t, resp, &assigned)
	assert.Equal(t, 4, assigned.Quantity)
	assert.Equal(t, 6, stockOf(t, env, item.ID))

	resp = env.Do(t, http.MethodPost, "/api/inventory/assign", token, testutil.M{
		"item_id": item.ID, "quantity": 7, "assigned_to_type": "guard", "guard_id": g.ID,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Only 6 units available", testutil.ErrorMessage(t, resp))
	assert.Equal(t, 6, stockOf(t, env, item.ID))

	returnPath := fmt.Sprintf("/api/inventory/assignments/%d/return", assigned.ID)
	resp = env.Do(t, http.MethodPost, returnPath, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 10, stockOf(t, env, item.ID))

	resp = env.Do(t, http.MethodPost, returnPath, token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, 10, stockOf(t, env, item.ID))
}

func TestUpdateItemKeepsStock(t *testing.T) {
	env := testutil.Setup(t)
	b := env.Branch(t, "Lahore")
	_, token := env.BranchAdmin(t, b.ID)
	g := env.Guard(t, b.ID, "G-1")

	item := createItem(t, env, token, testutil.M{"name": "Torch", "category": "Equipment", "total_quantity": 10})
	resp := env.Do(t, http.MethodPost, "/api/inventory/assign", token, testutil.M{
		"item_id": item.ID, "quantity": 3, "assigned_to_type": "guard", "guard_id": g.ID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	path := fmt.Sprintf("/api/inventory/items/%d", item.ID)
	resp = env.Do(t, http.MethodPut, path, token, testutil.M{"name": "LED Torch", "description": "Rechargeable"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated inventory.ItemResponse
	testutil.Decode(t, resp, &updated)
	assert.Equal(t, "LED Torch", updated.Name)
	assert.Equal(t, 7, updated.TotalQuantity)
	assert.Equal(t, 3, updated.AssignedQuantity)
	assert.Equal(t, 7, stockOf(t, env, item.ID))

	resp = env.Do(t, http.MethodPut, path, token, testutil.M{"total_quantity": 12})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 12, stockOf(t, env, item.ID))
}

func TestSerialisedUnitLifecycle(t *testing.T) {
	env := testutil.Setup(t)
	b := env.Branch(t, "Lahore")
	_, token := env.BranchAdmin(t, b.ID)
	p := env.Place(t, b.ID, "Site A")

	item := createItem(t, env, token, testutil.M{"name": "Radio", "category": "Communication", "tracking_type": "serialised"})

	resp := env.Do(t, http.MethodPost, "/api/inventory/units", token, testutil.M{"item_id": item.ID, "serial_number": "RD-001"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var unit inventory.UnitResponse
	testutil.Decode(t, resp, &unit)
	assert.Equal(t, models.UnitAvailable, unit.Status)

	resp = env.Do(t, http.MethodPost, "/api/inventory/units", token, testutil.M{"item_id": item.ID, "serial_number": "RD-001"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.Do(t, http.MethodPost, "/api/inventory/assign", token, testutil.M{
		"unit_id": unit.ID, "assigned_to_type": "place", "place_id": p.ID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var assigned inventory.AssignmentResponse
	testutil.Decode(t, resp, &assigned)
	assert.Equal(t, "RD-001", assigned.SerialNumber)

	resp = env.Do(t, http.MethodPost, "/api/inventory/assign", token, testutil.M{
		"unit_id": unit.ID, "assigned_to_type": "place", "place_id": p.ID,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	unitPath := fmt.Sprintf("/api/inventory/units/%d", unit.ID)
	resp = env.Do(t, http.MethodPut, unitPath, token, testutil.M{"status": "maintenance"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp = env.Do(t, http.MethodDelete, unitPath, token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.Do(t, http.MethodPost, fmt.Sprintf("/api/inventory/assignments/%d/return", assigned.ID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stored models.InventoryUnit
	require.NoError(t, env.DB.First(&stored, unit.ID).Error)
	assert.Equal(t, models.UnitAvailable, stored.Status)

	resp = env.Do(t, http.MethodDelete, fmt.Sprintf("/api/inventory/items/%d", item.ID), token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "item with units")

	resp = env.Do(t, http.MethodDelete, unitPath, token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestInventoryValidation(t *testing.T) {
	env := testutil.Setup(t)
	b := env.Branch(t, "Lahore")
	_, token := env.BranchAdmin(t, b.ID)
	g := env.Guard(t, b.ID, "G-1")

	resp := env.Do(t, http.MethodPost, "/api/inventory/items", token, testutil.M{"name": "Cap", "category": "Hats"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	boots := createItem(t, env, token, testutil.M{"name": "Boots", "category": "Uniform", "total_quantity": 5})

	resp = env.Do(t, http.MethodPost, "/api/inventory/units", token, testutil.M{"item_id": boots.ID, "serial_number": "X-1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	for name, body := range map[string]testutil.M{
		"neither id":    {"quantity": 1, "assigned_to_type": "guard", "guard_id": g.ID},
		"zero quantity": {"item_id": boots.ID, "quantity": 0, "assigned_to_type": "guard", "guard_id": g.ID},
		"no assignee":   {"item_id": boots.ID, "quantity": 1, "assigned_to_type": "guard"},
		"bad type":      {"item_id": boots.ID, "quantity": 1, "assigned_to_type": "vehicle"},
	} {
		t.Run(name, func(t *testing.T) {
			resp := env.Do(t, http.MethodPost, "/api/inventory/assign", token, body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
	assert.Equal(t, 5, stockOf(t, env, boots.ID), "failed assignments roll back")
}

func TestInventorySummaryAndScope(t *testing.T) {
	env := testutil.Setup(t)
	b := env.Branch(t, "Lahore")
	other := env.Branch(t, "Karachi")
	_, token := env.BranchAdmin(t, b.ID)
	_, otherToken := env.BranchAdmin(t, other.ID)
	g := env.Guard(t, b.ID, "G-1")

	vest := createItem(t, env, token, testutil.M{"name": "Vest", "category": "Safety Gear", "total_quantity": 8})
	resp := env.Do(t, http.MethodPost, "/api/inventory/assign", token, testutil.M{
		"item_id": vest.ID, "quantity": 3, "assigned_to_type": "guard", "guard_id": g.ID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var summary inventory.SummaryResponse
	testutil.Decode(t, env.Do(t, http.MethodGet, "/api/inventory/summary", token, nil), &summary)
	assert.EqualValues(t, 1, summary.ItemTypes)
	assert.EqualValues(t, 5, summary.QuantityInStock)
	assert.EqualValues(t, 1, summary.GuardAssignments)

	testutil.Decode(t, env.Do(t, http.MethodGet, "/api/inventory/summary", otherToken, nil), &summary)
	assert.EqualValues(t, 0, summary.ItemTypes)

	resp = env.Do(t, http.MethodGet, fmt.Sprintf("/api/inventory/items/%d", vest.ID), otherToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var open []inventory.AssignmentResponse
	testutil.Decode(t, env.Do(t, http.MethodGet, "/api/inventory/assignments?open=true", token, nil), &open)
	require.Len(t, open, 1)
	assert.Equal(t, "Vest", open[0].ItemName)
}
