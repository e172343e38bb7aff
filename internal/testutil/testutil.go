// Package testutil builds a fully wired app on an in-memory SQLite database
// for handler tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"sheriff-backend/internal/auth"
	"sheriff-backend/internal/cache"
	"sheriff-backend/internal/config"
	"sheriff-backend/internal/database"
	"sheriff-backend/internal/mailer"
	"sheriff-backend/internal/models"
	"sheriff-backend/internal/server"
	"sheriff-backend/internal/storage"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const Password = "password123"

// MailRecorder keeps sent messages instead of delivering them.
type MailRecorder struct {
	mu   sync.Mutex
	Sent []mailer.Message
	Err  error
}

func (m *MailRecorder) Send(msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, msg)
	return nil
}

func (m *MailRecorder) Messages() []mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mailer.Message(nil), m.Sent...)
}

type Env struct {
	App     *fiber.App
	DB      *gorm.DB
	Cfg     *config.Config
	Cache   *cache.MemoryStore
	Mail    *MailRecorder
	Storage *storage.Local
}

func Config(t *testing.T) *config.Config {
	return &config.Config{
		HTTPPort:         "0",
		AppEnv:           "test",
		LogLevel:         "error",
		DatabaseDriver:   "sqlite",
		JWTSecret:        "test-secret-with-at-least-32-characters!!",
		JWTTTL:           time.Hour,
		CORSOrigins:      "http://localhost:3000",
		UploadPath:       t.TempDir(),
		UploadMaxBytes:   1 << 20,
		LoginMaxAttempts: 3,
		LoginLockout:     time.Minute,
		StatsCacheTTL:    time.Minute,
		InquiryNotifyTo:  "ops@example.com",
	}
}

// NewDB opens a private in-memory database and installs it as database.DB.
// One connection keeps every query on the same in-memory file.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	database.UseDB(db)
	return db
}

func Setup(t *testing.T) *Env {
	t.Helper()
	cfg := Config(t)
	env := &Env{
		DB:      NewDB(t),
		Cfg:     cfg,
		Cache:   cache.NewMemoryStore(),
		Mail:    &MailRecorder{},
		Storage: storage.NewLocal(cfg.UploadPath, cfg.UploadMaxBytes),
	}
	env.App = server.New(cfg, server.Deps{Cache: env.Cache, Mailer: env.Mail, Storage: env.Storage})
	return env
}

// ---- seed helpers ----

func (e *Env) Token(t *testing.T, u models.User) string {
	t.Helper()
	tok, err := auth.GenerateToken(e.Cfg.JWTSecret, e.Cfg.JWTTTL, &u)
	require.NoError(t, err)
	return tok
}

func (e *Env) user(t *testing.T, role models.UserRole, branchID *uint, email string) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	require.NoError(t, err)
	u := models.User{
		BranchID:     branchID,
		Name:         string(role) + " user",
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	require.NoError(t, e.DB.Omit(clause.Associations).Create(&u).Error)
	return u
}

func (e *Env) SuperAdmin(t *testing.T) (models.User, string) {
	t.Helper()
	u := e.user(t, models.RoleSuperAdmin, nil, "root-"+uuid.NewString()[:8]+"@example.com")
	return u, e.Token(t, u)
}

func (e *Env) BranchAdmin(t *testing.T, branchID uint) (models.User, string) {
	t.Helper()
	id := branchID
	u := e.user(t, models.RoleBranchAdmin, &id, "admin-"+uuid.NewString()[:8]+"@example.com")
	return u, e.Token(t, u)
}

func (e *Env) Branch(t *testing.T, name string) models.Branch {
	t.Helper()
	b := models.Branch{Name: name, City: "Lahore", Address: "Mall Road", Phone: "042-111", Status: models.StatusActive}
	require.NoError(t, e.DB.Create(&b).Error)
	return b
}

var cnicSeq int

func (e *Env) Guard(t *testing.T, branchID uint, code string) models.Guard {
	t.Helper()
	cnicSeq++
	g := models.Guard{
		BranchID:  branchID,
		GuardCode: code,
		Name:      "Guard " + code,
		CNIC:      fmt.Sprintf("35202-%07d-1", cnicSeq),
		Phone:     "0300-0000000",
		Status:    models.StatusActive,
	}
	require.NoError(t, e.DB.Omit(clause.Associations).Create(&g).Error)
	return g
}

func (e *Env) Place(t *testing.T, branchID uint, name string) models.Place {
	t.Helper()
	p := models.Place{
		BranchID: branchID,
		Name:     name,
		Address:  "1 Main Boulevard",
		City:     "Lahore",
		Status:   models.StatusActive,
	}
	require.NoError(t, e.DB.Omit(clause.Associations).Create(&p).Error)
	return p
}

// Assignment seeds an active assignment starting on start with no end date.
func (e *Env) Assignment(t *testing.T, g models.Guard, p models.Place, shift models.ShiftType, start time.Time) models.Assignment {
	t.Helper()
	a := models.Assignment{
		BranchID:  p.BranchID,
		GuardID:   g.ID,
		PlaceID:   p.ID,
		ShiftType: shift,
		StartDate: start,
		Status:    models.AssignmentActive,
	}
	require.NoError(t, e.DB.Omit(clause.Associations).Create(&a).Error)
	return a
}

func (e *Env) Attendance(t *testing.T, g models.Guard, p models.Place, date time.Time, shift models.ShiftType, status models.AttendanceStatus) models.Attendance {
	t.Helper()
	a := models.Attendance{
		BranchID: g.BranchID,
		GuardID:  g.ID,
		PlaceID:  p.ID,
		Date:     date,
		Shift:    shift,
		Status:   status,
	}
	require.NoError(t, e.DB.Omit(clause.Associations).Create(&a).Error)
	return a
}

// Invoice stores a one-line invoice for p dated on date, due a week later.
func (e *Env) Invoice(t *testing.T, p models.Place, number string, date time.Time, total float64, status models.InvoiceStatus) models.Invoice {
	t.Helper()
	inv := models.Invoice{
		BranchID:      p.BranchID,
		PlaceID:       p.ID,
		InvoiceNumber: number,
		InvoiceDate:   date,
		DueDate:       date.AddDate(0, 0, 7),
		PeriodStart:   date.AddDate(0, -1, 0),
		PeriodEnd:     date.AddDate(0, 0, -1),
		Subtotal:      total,
		Total:         total,
		Status:        status,
	}
	require.NoError(t, e.DB.Omit(clause.Associations).Create(&inv).Error)
	line := models.InvoiceLineItem{InvoiceID: inv.ID, Position: 1, Description: "Guard services", Quantity: 1, UnitPrice: total, Amount: total}
	require.NoError(t, e.DB.Create(&line).Error)
	return inv
}

// ---- request helpers ----

// Do sends a JSON request; body may be nil.
func (e *Env) Do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.App.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// Upload posts a multipart form with one file and optional text fields.
func (e *Env) Upload(t *testing.T, path, token, field, filename string, content []byte, fields map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	fw, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.App.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func Decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// ErrorMessage reads the {"error": "..."} body.
func ErrorMessage(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	Decode(t, resp, &body)
	return body.Error
}

func Date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

// M is a JSON object body.
type M = map[string]any
