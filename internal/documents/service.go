// Package documents stores employee documents. Content is immutable: each upload is a new version row.
package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"staffdesk/internal/logs"
	"staffdesk/internal/models"
	"staffdesk/internal/repo"
)

var (
	ErrNotFound = errors.New("documents: not found")
	ErrTooLarge = errors.New("documents: file too large")
)

var allowedExt = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain",
}

type Service struct {
	store     *repo.DocumentStore
	employees *repo.EmployeeStore
	files     *Storage
	maxBytes  int64
	now       func() time.Time
}

func NewService(store *repo.DocumentStore, employees *repo.EmployeeStore, files *Storage, maxBytes int64) *Service {
	return &Service{store: store, employees: employees, files: files, maxBytes: maxBytes, now: time.Now}
}

type UploadInput struct {
	EmployeeID     uint
	DocumentType   string
	ExpirationDate *time.Time
	Notes          string
	FileName       string
	Body           io.Reader
	UploadedBy     uint
}

func (s *Service) Upload(ctx context.Context, in UploadInput) (*models.Document, error) {
	in.DocumentType = strings.ToLower(strings.TrimSpace(in.DocumentType))
	if in.DocumentType == "" {
		return nil, models.NewFieldError("documentType", "document type is required")
	}
	ext := strings.ToLower(filepath.Ext(in.FileName))
	ctype, ok := allowedExt[ext]
	if !ok {
		return nil, models.NewFieldError("file", "file type %q is not accepted", ext)
	}
	if _, err := s.employees.GetByID(ctx, in.EmployeeID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, models.NewFieldError("employeeId", "employee %d does not exist", in.EmployeeID)
		}
		return nil, err
	}

	key := Key(in.EmployeeID, in.FileName)
	size, sum, err := s.files.Put(key, io.LimitReader(in.Body, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("documents: store file: %w", err)
	}
	if size > s.maxBytes {
		_ = s.files.Remove(key)
		return nil, ErrTooLarge
	}
	if size == 0 {
		_ = s.files.Remove(key)
		return nil, models.NewFieldError("file", "file is empty")
	}

	d := &models.Document{
		EmployeeID:     in.EmployeeID,
		DocumentType:   in.DocumentType,
		FileName:       SafeName(in.FileName),
		ContentType:    ctype,
		Size:           size,
		StorageKey:     key,
		Checksum:       sum,
		ExpirationDate: in.ExpirationDate,
		UploadDate:     s.now().UTC(),
		Notes:          strings.TrimSpace(in.Notes),
	}
	if in.UploadedBy != 0 {
		d.UploadedBy = &in.UploadedBy
	}
	if err := s.store.Create(ctx, d); err != nil {
		if rerr := s.files.Remove(key); rerr != nil {
			logs.Logger.WithField("key", key).Errorf("orphaned upload not removed: %v", rerr)
		}
		return nil, fmt.Errorf("documents: create record: %w", err)
	}
	return d, nil
}

func (s *Service) List(ctx context.Context, f repo.DocumentFilter) ([]models.Document, error) {
	return s.store.List(ctx, f)
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Document, error) {
	d, err := s.store.Get(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	return d, err
}

// Open returns the record and its content. The caller closes the file.
func (s *Service) Open(ctx context.Context, id uint) (*models.Document, afero.File, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.files.Open(d.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("documents: open %s: %w", d.StorageKey, err)
	}
	return d, f, nil
}

// Delete removes the record, then the file. A leftover file is logged, not returned.
func (s *Service) Delete(ctx context.Context, id uint) error {
	d, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if err := s.files.Remove(d.StorageKey); err != nil {
		logs.Logger.WithField("key", d.StorageKey).Warnf("document file not removed: %v", err)
	}
	return nil
}
