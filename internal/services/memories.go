package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/memora/backend/internal/models"
	"github.com/memora/backend/internal/photokeys"
	"github.com/memora/backend/internal/storage"
	"github.com/memora/backend/pkg/logger"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const defaultPresignTTL = time.Hour

// Upload is one incoming photo. Open is called once, from the goroutine that
// streams the file to the object store.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

type MemoryInput struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Description *string `json:"description"`
	Date        string  `json:"date" validate:"required,datetime=2006-01-02"`
	Location    *string `json:"location" validate:"omitempty,max=255"`
	Mood        string  `json:"mood" validate:"required,max=50"`
	Visibility  string  `json:"visibility" validate:"required,oneof=private shared"`
}

// MemoryView is a memory as returned to its owner, with a freshly signed URL
// for every photo in list order.
type MemoryView struct {
	models.Memory
	MediaURL     string   `json:"mediaURL"`
	AllMediaURLs []string `json:"allMediaURLs"`
	PhotoCount   int      `json:"photoCount"`
}

type MemoryService struct {
	DB         *gorm.DB
	Store      storage.ObjectStore
	Audit      *AuditService
	PresignTTL time.Duration
	validate   *validator.Validate
}

func NewMemoryService(db *gorm.DB, store storage.ObjectStore, audit *AuditService, presignTTL time.Duration) *MemoryService {
	if presignTTL <= 0 {
		presignTTL = defaultPresignTTL
	}
	return &MemoryService{
		DB:         db,
		Store:      store,
		Audit:      audit,
		PresignTTL: presignTTL,
		validate:   newValidator(),
	}
}

func (s *MemoryService) Create(ctx context.Context, userID uuid.UUID, in MemoryInput, files []Upload) (*MemoryView, error) {
	if len(files) == 0 {
		return nil, validationf("at least one photo is required")
	}
	normalizeInput(&in)
	if err := validateStruct(s.validate, in); err != nil {
		return nil, err
	}
	if err := photokeys.CheckCapacity(0, len(files)); err != nil {
		return nil, &ValidationError{Message: err.Error(), Err: err}
	}

	keys, err := s.uploadAll(ctx, userID, files)
	if err != nil {
		return nil, err
	}

	memory := models.Memory{
		UserID:      userID,
		Title:       in.Title,
		Description: in.Description,
		MemoryDate:  in.Date,
		Location:    in.Location,
		Mood:        in.Mood,
		Visibility:  models.Visibility(in.Visibility),
		PhotoKeys:   photokeys.Encode(keys),
		MediaType:   contentTypeFor(files[0]),
	}
	if err := s.DB.WithContext(ctx).Create(&memory).Error; err != nil {
		s.Audit.RecordDivergence(userID, nil, "memory row not saved after upload", keys, err)
		return nil, fmt.Errorf("saving memory: %w", err)
	}

	s.audit(ctx, userID, "memory.create", &memory.ID, map[string]interface{}{
		"title":  memory.Title,
		"photos": len(keys),
	})
	logger.InfoWithUser(userID.String(), "memory_created", map[string]interface{}{
		"memory_id": memory.ID.String(),
		"photos":    len(keys),
	})

	return s.view(ctx, memory)
}

// AddPhotos uploads files and appends their keys after the existing ones.
func (s *MemoryService) AddPhotos(ctx context.Context, memoryID, userID uuid.UUID, files []Upload) (*MemoryView, error) {
	memory, err := s.loadOwned(ctx, memoryID, userID)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, validationf("no photos uploaded")
	}

	keys := photokeys.Decode(memory.PhotoKeys)
	if err := photokeys.CheckCapacity(len(keys), len(files)); err != nil {
		return nil, &ValidationError{
			Message: fmt.Sprintf("a memory can have at most %d photos, it currently has %d", photokeys.MaxPerMemory, len(keys)),
			Err:     err,
		}
	}

	added, err := s.uploadAll(ctx, userID, files)
	if err != nil {
		return nil, err
	}

	keys = append(keys, added...)
	encoded := photokeys.Encode(keys)
	if err := s.DB.WithContext(ctx).Model(memory).Update("r2_key", encoded).Error; err != nil {
		s.Audit.RecordDivergence(userID, &memory.ID, "photo keys not saved after upload", added, err)
		return nil, fmt.Errorf("saving photo keys: %w", err)
	}
	memory.PhotoKeys = encoded

	s.audit(ctx, userID, "memory.photos_add", &memory.ID, map[string]interface{}{
		"added": len(added),
		"total": len(keys),
	})

	return s.view(ctx, *memory)
}

// DeletePhoto removes one photo, identified either by its exact key or by a
// URL that contains the key (such as a presigned URL handed out earlier).
// The last photo of a memory cannot be removed.
func (s *MemoryService) DeletePhoto(ctx context.Context, memoryID, userID uuid.UUID, photoURL, key string) (*MemoryView, error) {
	if photoURL == "" && key == "" {
		return nil, validationf("photoUrl is required")
	}

	memory, err := s.loadOwned(ctx, memoryID, userID)
	if err != nil {
		return nil, err
	}
	keys := photokeys.Decode(memory.PhotoKeys)

	target, ok := resolvePhotoKey(keys, photoURL, key)
	if !ok {
		return nil, &NotFoundError{Resource: "photo"}
	}
	if len(keys) <= 1 {
		return nil, &ValidationError{Message: photokeys.ErrEmpty.Error(), Err: photokeys.ErrEmpty}
	}

	if err := s.Store.Delete(ctx, target); err != nil {
		return nil, &StorageError{Op: "delete", Keys: []string{target}, Err: err}
	}

	remaining := photokeys.Remove(keys, target)
	encoded := photokeys.Encode(remaining)
	if err := s.DB.WithContext(ctx).Model(memory).Update("r2_key", encoded).Error; err != nil {
		s.Audit.RecordDivergence(userID, &memory.ID, "deleted object still listed", []string{target}, err)
		return nil, fmt.Errorf("saving photo keys: %w", err)
	}
	memory.PhotoKeys = encoded

	s.audit(ctx, userID, "memory.photo_delete", &memory.ID, map[string]interface{}{
		"key":       target,
		"remaining": len(remaining),
	})

	return s.view(ctx, *memory)
}

func resolvePhotoKey(keys []string, photoURL, key string) (string, bool) {
	if key != "" {
		for _, k := range keys {
			if k == key {
				return k, true
			}
		}
		return "", false
	}
	return photokeys.Match(keys, photoURL)
}

// DeleteMemory removes every photo object, then the row. Object failures are
// recorded for reconciliation and do not stop the row from being deleted.
func (s *MemoryService) DeleteMemory(ctx context.Context, memoryID, userID uuid.UUID) error {
	memory, err := s.loadOwned(ctx, memoryID, userID)
	if err != nil {
		return err
	}

	keys := photokeys.Decode(memory.PhotoKeys)
	s.deleteObjects(ctx, userID, &memory.ID, keys)

	if err := s.DB.WithContext(ctx).Delete(memory).Error; err != nil {
		return fmt.Errorf("deleting memory: %w", err)
	}

	s.audit(ctx, userID, "memory.delete", &memory.ID, map[string]interface{}{
		"photos": len(keys),
	})
	logger.InfoWithUser(userID.String(), "memory_deleted", map[string]interface{}{
		"memory_id": memory.ID.String(),
		"photos":    len(keys),
	})
	return nil
}

// DeleteUserMemories cleans up the photos of every memory owned by userID and
// deletes the rows. It returns the number of memories removed.
func (s *MemoryService) DeleteUserMemories(ctx context.Context, userID uuid.UUID) (int, error) {
	var memories []models.Memory
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Find(&memories).Error; err != nil {
		return 0, fmt.Errorf("loading memories: %w", err)
	}

	for i := range memories {
		s.deleteObjects(ctx, userID, &memories[i].ID, photokeys.Decode(memories[i].PhotoKeys))
	}

	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Memory{}).Error; err != nil {
		return 0, fmt.Errorf("deleting memories: %w", err)
	}
	return len(memories), nil
}

func (s *MemoryService) List(ctx context.Context, userID uuid.UUID) ([]MemoryView, error) {
	var memories []models.Memory
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&memories).Error; err != nil {
		return nil, fmt.Errorf("listing memories: %w", err)
	}

	views := make([]MemoryView, 0, len(memories))
	for _, memory := range memories {
		view, err := s.view(ctx, memory)
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

func (s *MemoryService) Get(ctx context.Context, memoryID, userID uuid.UUID) (*MemoryView, error) {
	memory, err := s.loadOwned(ctx, memoryID, userID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, *memory)
}

// Update changes descriptive fields only; the photo list is never touched.
func (s *MemoryService) Update(ctx context.Context, memoryID, userID uuid.UUID, in MemoryInput) (*MemoryView, error) {
	normalizeInput(&in)
	if err := validateStruct(s.validate, in); err != nil {
		return nil, err
	}

	memory, err := s.loadOwned(ctx, memoryID, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"title":       in.Title,
		"description": in.Description,
		"memory_date": in.Date,
		"location":    in.Location,
		"mood":        in.Mood,
		"visibility":  in.Visibility,
	}
	if err := s.DB.WithContext(ctx).Model(memory).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("updating memory: %w", err)
	}

	memory.Title = in.Title
	memory.Description = in.Description
	memory.MemoryDate = in.Date
	memory.Location = in.Location
	memory.Mood = in.Mood
	memory.Visibility = models.Visibility(in.Visibility)

	s.audit(ctx, userID, "memory.update", &memory.ID, map[string]interface{}{
		"title": memory.Title,
	})

	return s.view(ctx, *memory)
}

func (s *MemoryService) loadOwned(ctx context.Context, memoryID, userID uuid.UUID) (*models.Memory, error) {
	var memory models.Memory
	err := s.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", memoryID, userID).
		First(&memory).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "memory"}
	}
	if err != nil {
		return nil, fmt.Errorf("loading memory: %w", err)
	}
	return &memory, nil
}

func (s *MemoryService) view(ctx context.Context, memory models.Memory) (*MemoryView, error) {
	keys := photokeys.Decode(memory.PhotoKeys)
	urls, err := s.presignAll(ctx, keys)
	if err != nil {
		return nil, err
	}

	view := &MemoryView{
		Memory:       memory,
		AllMediaURLs: urls,
		PhotoCount:   len(keys),
	}
	if len(urls) > 0 {
		view.MediaURL = urls[0]
	}
	return view, nil
}

// presignAll signs one URL per key concurrently. The result keeps key order.
func (s *MemoryService) presignAll(ctx context.Context, keys []string) ([]string, error) {
	urls := make([]string, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		g.Go(func() error {
			u, err := s.Store.PresignedGetURL(gctx, key, s.PresignTTL)
			if err != nil {
				return &StorageError{Op: "presign", Keys: []string{key}, Err: err}
			}
			urls[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}

// uploadAll stores every file under a fresh key and returns the keys in file
// order. On failure, objects already written stay in the store and are
// recorded as divergent.
func (s *MemoryService) uploadAll(ctx context.Context, userID uuid.UUID, files []Upload) ([]string, error) {
	keys := make([]string, len(files))
	for i, f := range files {
		key, err := photokeys.NewKey(userID.String(), f.Filename)
		if err != nil {
			return nil, err
		}
		keys[i] = key
	}

	uploaded := make([]bool, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			rc, err := f.Open()
			if err != nil {
				return &StorageError{Op: "upload", Keys: []string{keys[i]}, Err: fmt.Errorf("opening %s: %w", f.Filename, err)}
			}
			defer rc.Close()

			if err := s.Store.Upload(gctx, keys[i], rc, f.Size, contentTypeFor(f)); err != nil {
				return &StorageError{Op: "upload", Keys: []string{keys[i]}, Err: err}
			}
			uploaded[i] = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var orphans []string
		for i, ok := range uploaded {
			if ok {
				orphans = append(orphans, keys[i])
			}
		}
		if len(orphans) > 0 {
			s.Audit.RecordDivergence(userID, nil, "upload batch aborted", orphans, err)
		}
		return nil, err
	}
	return keys, nil
}

// deleteObjects removes keys concurrently. Every key is attempted; failures
// are logged and recorded, never returned.
func (s *MemoryService) deleteObjects(ctx context.Context, userID uuid.UUID, memoryID *uuid.UUID, keys []string) {
	var (
		mu     sync.Mutex
		failed []string
		first  error
		g      errgroup.Group
	)
	g.SetLimit(8)

	for _, key := range keys {
		g.Go(func() error {
			if err := s.Store.Delete(ctx, key); err != nil {
				mu.Lock()
				failed = append(failed, key)
				if first == nil {
					first = err
				}
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failed) > 0 {
		s.Audit.RecordDivergence(userID, memoryID, "object delete failed", failed, first)
	}
}

func (s *MemoryService) audit(ctx context.Context, userID uuid.UUID, action string, memoryID *uuid.UUID, details map[string]interface{}) {
	meta := requestMetaFrom(ctx)
	uid := userID
	s.Audit.LogAsync(AuditEntry{
		UserID:       &uid,
		Action:       action,
		ResourceType: "memory",
		ResourceID:   memoryID,
		Details:      details,
		IPAddress:    meta.IPAddress,
		RequestID:    meta.RequestID,
	})
}

func contentTypeFor(f Upload) string {
	if f.ContentType != "" {
		return f.ContentType
	}
	if ct := mime.TypeByExtension(filepath.Ext(f.Filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func normalizeInput(in *MemoryInput) {
	in.Title = strings.TrimSpace(in.Title)
	in.Mood = strings.TrimSpace(in.Mood)
	in.Visibility = strings.ToLower(strings.TrimSpace(in.Visibility))
	in.Description = emptyToNil(in.Description)
	in.Location = emptyToNil(in.Location)
}

func emptyToNil(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
