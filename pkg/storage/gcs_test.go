package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGCSStorageURLEscapesSegments(t *testing.T) {
	g := &GCSStorage{bucket: "qa-photos", publicBaseURL: "https://cdn.example.com"}

	assert.Equal(t, "https://cdn.example.com/qa-photos/school-5/a%20b.jpg", g.URL("school-5/a b.jpg"))
}
