package marketing_test

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"sheriff-backend/internal/marketing"
	"sheriff-backend/internal/models"
	"sheriff-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitInquiry(t *testing.T) {
	env := testutil.Setup(t)

	resp := env.Do(t, http.MethodPost, "/api/public/inquiries", "", testutil.M{
		"name":    "  Ayesha Khan ",
		"phone":   "0300-1234567",
		"email":   "Ayesha@Example.com",
		"message": "We need four guards for a warehouse in Gulberg.",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var stored models.Inquiry
	require.NoError(t, env.DB.First(&stored).Error)
	assert.Equal(t, "Ayesha Khan", stored.Name)
	assert.Equal(t, "ayesha@example.com", stored.Email)
	assert.Equal(t, models.InquiryNew, stored.Status)

	sent := env.Mail.Messages()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"ops@example.com"}, sent[0].To)
	assert.Equal(t, "ayesha@example.com", sent[0].ReplyTo)
	assert.Contains(t, sent[0].Body, "warehouse in Gulberg")
}

func TestSubmitInquiry_MailFailureStillSaves(t *testing.T) {
	env := testutil.Setup(t)
	env.Mail.Err = errors.New("smtp down")

	resp := env.Do(t, http.MethodPost, "/api/public/inquiries", "", testutil.M{
		"name": "Bilal", "email": "bilal@example.com", "message": "Please call me back about rates.",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var n int64
	require.NoError(t, env.DB.Model(&models.Inquiry{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestInquiryValidate(t *testing.T) {
	tests := []struct {
		name string
		body marketing.InquiryRequest
		ok   bool
	}{
		{"valid", marketing.InquiryRequest{Name: "A", Email: "a@b.co", Message: "0123456789"}, true},
		{"no name", marketing.InquiryRequest{Name: "  ", Email: "a@b.co", Message: "0123456789"}, false},
		{"bad email", marketing.InquiryRequest{Name: "A", Email: "a@b", Message: "0123456789"}, false},
		{"short message", marketing.InquiryRequest{Name: "A", Email: "a@b.co", Message: "  too short "}, false},
		{"long message", marketing.InquiryRequest{Name: "A", Email: "a@b.co", Message: strings.Repeat("x", marketing.MaxMessageLength+1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.body.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}

	env := testutil.Setup(t)
	resp := env.Do(t, http.MethodPost, "/api/public/inquiries", "", testutil.M{"name": "A", "email": "nope", "message": "0123456789"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, env.Mail.Messages())
}

func TestPublicBranchesAndCompany(t *testing.T) {
	env := testutil.Setup(t)
	env.Branch(t, "Model Town")
	closed := env.Branch(t, "Cantt")
	require.NoError(t, env.DB.Model(&closed).Update("status", models.StatusInactive).Error)
	karachi := models.Branch{Name: "Clifton", City: "Karachi", Status: models.StatusActive}
	require.NoError(t, env.DB.Create(&karachi).Error)

	var branches []marketing.BranchResponse
	testutil.Decode(t, env.Do(t, http.MethodGet, "/api/public/branches", "", nil), &branches)
	require.Len(t, branches, 2)
	assert.Equal(t, "Clifton", branches[0].Name)
	assert.Equal(t, "Model Town", branches[1].Name)

	var company marketing.CompanyResponse
	testutil.Decode(t, env.Do(t, http.MethodGet, "/api/public/company", "", nil), &company)
	assert.Equal(t, "Sheriff Security", company.CompanyName)
}
