package service

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/pronote-app/messagerie-backend/internal/common"
	"github.com/pronote-app/messagerie-backend/internal/domain"
	"github.com/pronote-app/messagerie-backend/internal/repository"
)

// MaxAttachmentSize is the per-file upload cap (10 MiB).
const MaxAttachmentSize = 10 << 20

// Extension and MIME allow-lists. Double validation: the extension is
// necessary but not sufficient.
var allowedExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".odt": true, ".ods": true, ".jpg": true, ".jpeg": true, ".png": true,
	".gif": true, ".txt": true, ".zip": true,
}

var allowedMIMETypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"application/vnd.oasis.opendocument.text":                           true,
	"application/vnd.oasis.opendocument.spreadsheet":                    true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"text/plain":      true,
	"application/zip": true,
}

// oleMagic is the compound-file signature of legacy Office documents.
// http.DetectContentType has no entry for it and reports
// application/octet-stream, so those files are mapped by extension.
var oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

var oleMIMEByExtension = map[string]string{
	".doc": "application/msword",
	".xls": "application/vnd.ms-excel",
}

// AttachmentService validates uploads and persists them under a
// date-partitioned directory outside the web root.
type AttachmentService struct {
	repo    repository.AttachmentRepository
	baseDir string
}

// NewAttachmentService creates an AttachmentService storing files under baseDir.
func NewAttachmentService(repo repository.AttachmentRepository, baseDir string) *AttachmentService {
	return &AttachmentService{repo: repo, baseDir: baseDir}
}

// BaseDir returns the upload root.
func (s *AttachmentService) BaseDir() string {
	return s.baseDir
}

// ValidateFile checks size, extension and MIME type, failing with a
// descriptive reason rather than a generic error.
func (s *AttachmentService) ValidateFile(fh *multipart.FileHeader) error {
	if fh.Size == 0 {
		return fmt.Errorf("%w: le fichier %q est vide ou son envoi est incomplet", common.ErrInvalidInput, fh.Filename)
	}
	if fh.Size > MaxAttachmentSize {
		return fmt.Errorf("%w: le fichier %q dépasse la taille maximale de 10 Mo", common.ErrInvalidInput, fh.Filename)
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedExtensions[ext] {
		return fmt.Errorf("%w: extension non autorisée: %s", common.ErrInvalidInput, ext)
	}

	mimeType, err := s.detectMIME(fh)
	if err != nil {
		return err
	}
	if !allowedMIMETypes[mimeType] {
		return fmt.Errorf("%w: type de fichier non autorisé: %s", common.ErrInvalidInput, mimeType)
	}
	return nil
}

// detectMIME sniffs the content rather than trusting the client header.
func (s *AttachmentService) detectMIME(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("fichier temporaire illisible: %w", err)
	}
	defer src.Close()

	buf := make([]byte, 512)
	n, err := src.Read(buf)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("fichier temporaire illisible: %w", err)
	}

	mimeType := http.DetectContentType(buf[:n])
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	mimeType = strings.TrimSpace(mimeType)

	if mimeType == "application/octet-stream" && bytes.HasPrefix(buf[:n], oleMagic) {
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		if mapped, ok := oleMIMEByExtension[ext]; ok {
			return mapped, nil
		}
	}
	return mimeType, nil
}

// Store validates and persists one upload, returning its metadata. The stored
// name is collision-resistant (random hex plus timestamp) and decoupled from
// the user-supplied name; files land under YYYY/MM/DD below the upload root.
func (s *AttachmentService) Store(fh *multipart.FileHeader) (*domain.Attachment, error) {
	if err := s.ValidateFile(fh); err != nil {
		return nil, err
	}

	now := time.Now()
	relDir := filepath.Join(now.Format("2006"), now.Format("01"), now.Format("02"))
	absDir := filepath.Join(s.baseDir, relDir)
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return nil, fmt.Errorf("création du répertoire de destination impossible: %w", err)
	}

	raw := make([]byte, 6)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("génération du nom de fichier impossible: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	savedName := fmt.Sprintf("%s_%d%s", hex.EncodeToString(raw), now.Unix(), ext)
	relPath := filepath.Join(relDir, savedName)

	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("fichier temporaire illisible: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(absDir, savedName))
	if err != nil {
		return nil, fmt.Errorf("écriture du fichier impossible: %w", err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, src)
	if err != nil {
		return nil, fmt.Errorf("écriture du fichier impossible: %w", err)
	}

	mimeType, err := s.detectMIME(fh)
	if err != nil {
		return nil, err
	}

	return &domain.Attachment{
		FileName: filepath.Base(fh.Filename),
		FilePath: relPath,
		FileSize: written,
		FileType: mimeType,
	}, nil
}

// StoreAll validates every file first, then persists them in order. When a
// later file fails to store, files already moved are left on disk: accepted
// best-effort behavior, the rows are never inserted so nothing dangles in
// the database.
func (s *AttachmentService) StoreAll(files []*multipart.FileHeader) ([]domain.Attachment, error) {
	for _, fh := range files {
		if err := s.ValidateFile(fh); err != nil {
			return nil, err
		}
	}

	stored := make([]domain.Attachment, 0, len(files))
	for _, fh := range files {
		att, err := s.Store(fh)
		if err != nil {
			return nil, err
		}
		stored = append(stored, *att)
	}
	return stored, nil
}

// SaveAttachments persists the rows for already-stored files within tx,
// linked to messageID. Any insert failure fails the whole batch.
func (s *AttachmentService) SaveAttachments(tx *gorm.DB, messageID int64, attachments []domain.Attachment) error {
	return s.repo.SaveBatch(tx, messageID, attachments)
}

// FileForDownload resolves an attachment row to its absolute path.
func (s *AttachmentService) FileForDownload(attachmentID int64) (*domain.Attachment, string, error) {
	att, err := s.repo.FindByID(attachmentID)
	if err != nil {
		return nil, "", err
	}
	return att, filepath.Join(s.baseDir, att.FilePath), nil
}
