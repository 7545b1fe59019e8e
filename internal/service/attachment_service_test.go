package service

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pronote-app/messagerie-backend/internal/common"
	"github.com/pronote-app/messagerie-backend/internal/domain"
	"github.com/pronote-app/messagerie-backend/internal/repository"
)

var (
	pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}
	// Compound-file header of a legacy .doc/.xls document.
	oleHeader = append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, make([]byte, 24)...)
	zipHeader = []byte{'P', 'K', 0x03, 0x04, 0x0A, 0, 0, 0}
)

// makeFileHeader builds a real multipart.FileHeader the way gin receives one.
func makeFileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("files", name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(32<<20))
	return req.MultipartForm.File["files"][0]
}

func newAttachmentService(t *testing.T) *AttachmentService {
	t.Helper()
	db := setupServiceDB(t)
	return NewAttachmentService(repository.NewAttachmentRepository(db), t.TempDir())
}

func TestValidateFile(t *testing.T) {
	svc := newAttachmentService(t)

	tests := []struct {
		name    string
		file    string
		content []byte
		valid   bool
	}{
		{"png image", "photo.png", pngHeader, true},
		{"plain text", "notes.txt", []byte("compte rendu de la réunion"), true},
		{"pdf document", "bulletin.pdf", []byte("%PDF-1.4 contenu"), true},
		{"legacy word document", "rapport.doc", oleHeader, true},
		{"legacy excel sheet", "notes.xls", oleHeader, true},
		{"modern word document", "rapport.docx", zipHeader, true},
		{"empty file", "vide.txt", nil, false},
		{"forbidden extension", "script.exe", []byte("MZ..."), false},
		{"extension without dot", "sansnom", []byte("abc"), false},
		{"binary behind txt extension", "fake.txt", []byte{0x00, 0x01, 0x02, 0x03}, false},
		{"ole content behind txt extension", "fake2.txt", oleHeader, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fh := makeFileHeader(t, tt.file, tt.content)
			err := svc.ValidateFile(fh)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, common.ErrInvalidInput)
			}
		})
	}
}

func TestValidateFileTooLarge(t *testing.T) {
	svc := newAttachmentService(t)
	fh := makeFileHeader(t, "gros.txt", bytes.Repeat([]byte("a"), MaxAttachmentSize+1))
	err := svc.ValidateFile(fh)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestStorePartitionsByDate(t *testing.T) {
	svc := newAttachmentService(t)
	fh := makeFileHeader(t, "photo.png", pngHeader)

	att, err := svc.Store(fh)
	require.NoError(t, err)

	assert.Equal(t, "photo.png", att.FileName)
	assert.Equal(t, int64(len(pngHeader)), att.FileSize)
	assert.Equal(t, "image/png", att.FileType)

	now := time.Now()
	wantDir := filepath.Join(now.Format("2006"), now.Format("01"), now.Format("02"))
	assert.Equal(t, wantDir, filepath.Dir(att.FilePath))
	assert.NotContains(t, att.FilePath, "photo", "stored name is decoupled from the upload name")

	data, err := os.ReadFile(filepath.Join(svc.BaseDir(), att.FilePath))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
}

func TestStoreLegacyOfficeMIME(t *testing.T) {
	svc := newAttachmentService(t)

	doc, err := svc.Store(makeFileHeader(t, "rapport.doc", oleHeader))
	require.NoError(t, err)
	assert.Equal(t, "application/msword", doc.FileType)

	xls, err := svc.Store(makeFileHeader(t, "notes.xls", oleHeader))
	require.NoError(t, err)
	assert.Equal(t, "application/vnd.ms-excel", xls.FileType)
}

func TestStoreAllRejectsBatchOnFirstInvalid(t *testing.T) {
	svc := newAttachmentService(t)
	files := []*multipart.FileHeader{
		makeFileHeader(t, "photo.png", pngHeader),
		makeFileHeader(t, "script.exe", []byte("MZ...")),
	}

	_, err := svc.StoreAll(files)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	// Validation runs before any file is moved.
	entries, err := os.ReadDir(svc.BaseDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSaveAttachmentsAndDownload(t *testing.T) {
	db := setupServiceDB(t)
	repo := repository.NewAttachmentRepository(db)
	svc := NewAttachmentService(repo, t.TempDir())

	fh := makeFileHeader(t, "photo.png", pngHeader)
	att, err := svc.Store(fh)
	require.NoError(t, err)

	require.NoError(t, svc.SaveAttachments(nil, 42, []domain.Attachment{*att}))

	rows, err := repo.ListByMessage(42)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "photo.png", rows[0].FileName)

	stored, absPath, err := svc.FileForDownload(rows[0].ID)
	require.NoError(t, err)
	assert.Equal(t, rows[0].FilePath, stored.FilePath)
	_, err = os.Stat(absPath)
	assert.NoError(t, err)

	_, _, err = svc.FileForDownload(999)
	assert.ErrorIs(t, err, common.ErrNotFound)
}
