package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlobKey(t *testing.T) {
	assert.Equal(t, "documents/abc/report.pdf", BlobKey("abc", "report.pdf"))
	assert.Equal(t, "documents/abc/My Paper.pdf", BlobKey("abc", "My Paper.pdf"))
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "report.pdf", "report.pdf"},
		{"keeps spaces", "annual report 2025.pdf", "annual report 2025.pdf"},
		{"strips directories", "../../etc/passwd", "passwd"},
		{"strips windows paths", `C:\docs\file.pdf`, "file.pdf"},
		{"control characters", "bad\x00name\x01.pdf", "bad_name_.pdf"},
		{"empty", "", "document.pdf"},
		{"dot", ".", "document.pdf"},
		{"dotdot", "..", "document.pdf"},
		{"unicode kept", "résumé.pdf", "résumé.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeFilename(tt.in))
		})
	}
}

func TestCloudStorePublicURL(t *testing.T) {
	s := &CloudStore{
		endpoint: "http://localhost:9000/",
		region:   "us-east-1",
		bucket:   "folio",
	}
	assert.Equal(t,
		"http://localhost:9000/folio/documents/abc/report.pdf",
		s.PublicURL("documents/abc/report.pdf"))

	aws := &CloudStore{region: "eu-central-1", bucket: "folio"}
	assert.Equal(t,
		"https://folio.s3.eu-central-1.amazonaws.com/documents/abc/report.pdf",
		aws.PublicURL("documents/abc/report.pdf"))
}

func TestValidateUpload(t *testing.T) {
	assert.NoError(t, validateUpload("id", "a.pdf", []byte("x")))
	assert.Error(t, validateUpload("", "a.pdf", []byte("x")))
	assert.Error(t, validateUpload("id", "", []byte("x")))
	assert.Error(t, validateUpload("id", "a.pdf", nil))
}
