package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/memora/backend/internal/models"
	"github.com/memora/backend/internal/photokeys"
	"github.com/memora/backend/internal/storage"
	"github.com/memora/backend/pkg/logger"
	"github.com/memora/backend/pkg/utils"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *recordingMailer) Send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *recordingMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}
	}
	return m.sent[len(m.sent)-1]
}

type fakeVerifier struct {
	identity *Identity
	err      error
}

func (f *fakeVerifier) Verify(_ context.Context, _ string) (*Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

type testEnv struct {
	db       *gorm.DB
	store    *storage.MemoryStore
	mail     *recordingMailer
	google   *fakeVerifier
	audit    *AuditService
	memories *MemoryService
	accounts *AccountService
}

var setupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	setupOnce.Do(func() {
		logger.SetOutput(io.Discard)
		utils.ConfigureJWT("test-secret", 24)
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Memory{}, &models.AuditLog{}))

	env := &testEnv{
		db:     db,
		store:  storage.NewMemoryStore(),
		mail:   &recordingMailer{},
		google: &fakeVerifier{},
	}
	env.audit = NewAuditService(db)
	env.memories = NewMemoryService(db, env.store, env.audit, 0)
	env.accounts = NewAccountService(db, env.store, env.mail, env.memories, env.audit, env.google, "http://localhost:3000/")

	t.Cleanup(func() {
		env.audit.Close()
		_ = sqlDB.Close()
	})
	return env
}

// flushAudit waits for queued audit rows to be written.
func (e *testEnv) flushAudit() {
	e.audit.Close()
}

func (e *testEnv) createVerifiedUser(t *testing.T, email string) *models.User {
	t.Helper()

	hash, err := utils.HashPassword("password123")
	require.NoError(t, err)

	user := models.User{
		Name:         "Test User",
		Email:        email,
		PasswordHash: &hash,
		IsVerified:   true,
		AuthProvider: models.AuthProviderLocal,
	}
	require.NoError(t, e.db.Create(&user).Error)
	return &user
}

func photo(name, content string) Upload {
	return Upload{
		Filename:    name,
		ContentType: "image/jpeg",
		Size:        int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func photos(n int) []Upload {
	out := make([]Upload, n)
	for i := range out {
		out[i] = photo("photo.jpg", strings.Repeat("x", i+1))
	}
	return out
}

func validInput() MemoryInput {
	return MemoryInput{
		Title:      "Beach day",
		Date:       "2024-07-14",
		Mood:       "Happy",
		Visibility: "private",
	}
}

func readObject(t *testing.T, store storage.ObjectStore, key string) string {
	t.Helper()

	rc, err := store.Download(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func storedKeys(t *testing.T, db *gorm.DB, memoryID uuid.UUID) []string {
	t.Helper()

	var memory models.Memory
	require.NoError(t, db.First(&memory, "id = ?", memoryID).Error)
	return photokeys.Decode(memory.PhotoKeys)
}

var errInjected = errors.New("injected failure")
