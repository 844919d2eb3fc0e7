package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qa-reports-api/internal/dto"
	"github.com/noah-isme/qa-reports-api/internal/models"
	appErrors "github.com/noah-isme/qa-reports-api/pkg/errors"
	"github.com/noah-isme/qa-reports-api/pkg/jobs"
	"github.com/noah-isme/qa-reports-api/pkg/storage"
)

type photoRepoStub struct {
	mu     sync.Mutex
	nextID int64
	photos map[int64]models.Photo
}

func newPhotoRepoStub() *photoRepoStub {
	return &photoRepoStub{photos: map[int64]models.Photo{}}
}

func (s *photoRepoStub) Create(ctx context.Context, photo *models.Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	photo.ID = s.nextID
	photo.CreatedAt = time.Now()
	s.photos[photo.ID] = *photo
	return nil
}

func (s *photoRepoStub) GetByID(ctx context.Context, id int64) (*models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	photo, ok := s.photos[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &photo, nil
}

func (s *photoRepoStub) ListByReport(ctx context.Context, reportID int64) ([]models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Photo
	for id := int64(1); id <= s.nextID; id++ {
		if photo, ok := s.photos[id]; ok && photo.ReportID == reportID {
			out = append(out, photo)
		}
	}
	return out, nil
}

func (s *photoRepoStub) Update(ctx context.Context, photo *models.Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.photos[photo.ID]; !ok {
		return sql.ErrNoRows
	}
	s.photos[photo.ID] = *photo
	return nil
}

func (s *photoRepoStub) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.photos[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.photos, id)
	return nil
}

type remoteStub struct {
	mu      sync.Mutex
	fail    bool
	objects map[string][]byte
	deleted []string
}

func (r *remoteStub) Upload(ctx context.Context, folder, name, contentType string, src io.Reader) (string, error) {
	if r.fail {
		return "", errors.New("storage: service unavailable")
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.objects == nil {
		r.objects = map[string][]byte{}
	}
	object := folder + "/" + name
	r.objects[object] = data
	return object, nil
}

func (r *remoteStub) Delete(ctx context.Context, object string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, object)
	return nil
}

func (r *remoteStub) URL(object string) string {
	return "https://storage.googleapis.com/qa-bucket/" + object
}

type queueStub struct {
	jobs []jobs.Job
}

func (q *queueStub) TryEnqueue(job jobs.Job) error {
	q.jobs = append(q.jobs, job)
	return nil
}

type settingsStub map[string]string

func (s settingsStub) Value(ctx context.Context, key string) string {
	return s[key]
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type nopSeekCloser struct{ *bytes.Reader }

func (nopSeekCloser) Close() error { return nil }

func memoryUpload(name string, data []byte, section string) Upload {
	return Upload{
		Filename: name,
		Size:     int64(len(data)),
		Section:  models.ParseSectionPath(section),
		Open: func() (io.ReadSeekCloser, error) {
			return nopSeekCloser{bytes.NewReader(data)}, nil
		},
	}
}

type attachmentFixture struct {
	svc    *AttachmentService
	photos *photoRepoStub
	remote *remoteStub
	local  *storage.LocalStorage
	temp   *storage.LocalStorage
	queue  *queueStub
}

func newAttachmentFixture(t *testing.T, remote *remoteStub, cfg AttachmentConfig) *attachmentFixture {
	t.Helper()
	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	temp, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	fx := &attachmentFixture{photos: newPhotoRepoStub(), remote: remote, local: local, temp: temp, queue: &queueStub{}}
	var tier remoteTier
	if remote != nil {
		tier = remote
	}
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	fx.svc = NewAttachmentService(fx.photos, tier, local, temp, signer, fx.queue, settingsStub{models.SettingStorageRootFolder: "qa"}, nil, nil, cfg)
	return fx
}

func TestAttachmentStoreUsesRemoteTier(t *testing.T) {
	fx := newAttachmentFixture(t, &remoteStub{}, AttachmentConfig{})
	report := &models.Report{ID: 7}
	school := &models.School{ID: 5}

	result, err := fx.svc.Store(context.Background(), report, school, []Upload{memoryUpload("front.png", pngBytes(t, 8, 8), "safety|exits")})
	require.NoError(t, err)
	require.Len(t, result.Photos, 1)
	photo := result.Photos[0]
	assert.Equal(t, models.TierRemote, photo.Tier)
	assert.Equal(t, "safety", photo.SectionKey)
	assert.Equal(t, "exits", photo.ItemKey)
	assert.Equal(t, "safety|exits", photo.Section)
	assert.True(t, strings.HasPrefix(photo.ViewURL, "https://storage.googleapis.com/qa-bucket/qa/school-5/report-7/"))
	assert.Empty(t, result.Failures)
}

func TestAttachmentStoreFallsBackToLocalTier(t *testing.T) {
	fx := newAttachmentFixture(t, &remoteStub{fail: true}, AttachmentConfig{})
	report := &models.Report{ID: 7}

	result, err := fx.svc.Store(context.Background(), report, &models.School{ID: 5}, []Upload{memoryUpload("front.png", pngBytes(t, 640, 10), "")})
	require.NoError(t, err)
	require.Len(t, result.Photos, 1)
	photo := result.Photos[0]
	assert.Equal(t, models.TierLocal, photo.Tier)
	assert.Equal(t, models.DefaultSection, photo.SectionKey)
	assert.NotContains(t, photo.ViewURL, "storage.googleapis.com")
	assert.True(t, strings.HasPrefix(photo.ViewURL, "/api/v1/photos/1/file?token="))
	assert.True(t, strings.HasPrefix(photo.ThumbnailURL, "/api/v1/photos/1/thumbnail?token="))

	stored, err := fx.photos.GetByID(context.Background(), photo.ID)
	require.NoError(t, err)
	_, key, ok := models.ParseStorageRef(stored.StorageRef)
	require.True(t, ok)
	file, err := fx.local.Open(key)
	require.NoError(t, err)
	file.Close()
	thumb, err := fx.local.Open(thumbnailName(key))
	require.NoError(t, err)
	thumb.Close()
}

func TestAttachmentStoreWithoutRemoteTier(t *testing.T) {
	fx := newAttachmentFixture(t, nil, AttachmentConfig{})
	result, err := fx.svc.Store(context.Background(), &models.Report{ID: 1}, &models.School{ID: 1}, []Upload{memoryUpload("a.png", pngBytes(t, 4, 4), "")})
	require.NoError(t, err)
	require.Len(t, result.Photos, 1)
	assert.Equal(t, models.TierLocal, result.Photos[0].Tier)
}

func TestAttachmentStoreReportsPartialFailures(t *testing.T) {
	fx := newAttachmentFixture(t, &remoteStub{}, AttachmentConfig{MaxFileSize: 1 << 20, Concurrency: 2})
	uploads := []Upload{
		memoryUpload("ok-1.png", pngBytes(t, 4, 4), ""),
		memoryUpload("notes.txt", []byte("not an image"), ""),
		memoryUpload("ok-2.png", pngBytes(t, 4, 4), ""),
		{Filename: "huge.png", Size: 2 << 20, Open: func() (io.ReadSeekCloser, error) { return nil, errors.New("oversized file opened") }},
	}

	result, err := fx.svc.Store(context.Background(), &models.Report{ID: 3}, &models.School{ID: 1}, uploads)
	require.NoError(t, err)
	require.Len(t, result.Photos, 2)
	assert.Equal(t, "ok-1.png", result.Photos[0].Filename)
	assert.Equal(t, "ok-2.png", result.Photos[1].Filename)
	require.Len(t, result.Failures, 2)
	assert.Equal(t, 1, result.Failures[0].Index)
	assert.Equal(t, "notes.txt", result.Failures[0].Filename)
	assert.Equal(t, 3, result.Failures[1].Index)
	assert.NotContains(t, result.Failures[1].Error, "opened")
}

func TestAttachmentInlineDisabled(t *testing.T) {
	fx := newAttachmentFixture(t, nil, AttachmentConfig{})
	_, err := fx.svc.StoreInline(context.Background(), &models.Report{ID: 1}, &models.School{ID: 1}, []dto.InlinePhoto{{Data: "data:image/png;base64,AAAA"}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrFeatureDisabled.Code, appErrors.FromError(err).Code)
}

func TestAttachmentInlineDecodesAndRemovesTempFiles(t *testing.T) {
	fx := newAttachmentFixture(t, &remoteStub{fail: true}, AttachmentConfig{InlineEnabled: true, MaxFileSize: 1 << 16})
	data := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t, 6, 6))

	result, err := fx.svc.StoreInline(context.Background(), &models.Report{ID: 2}, &models.School{ID: 1}, []dto.InlinePhoto{
		{Data: data, SectionKey: "grounds", Caption: "fence"},
		{Data: "data:text/plain;base64,aGVsbG8="},
	})
	require.NoError(t, err)
	require.Len(t, result.Photos, 1)
	assert.Equal(t, "fence", result.Photos[0].Caption)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, 1, result.Failures[0].Index)

	entries, err := os.ReadDir(fx.temp.Root())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAttachmentInlineRejectsOversizedPayload(t *testing.T) {
	fx := newAttachmentFixture(t, nil, AttachmentConfig{InlineEnabled: true, MaxFileSize: 64})
	data := "data:image/png;base64," + base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 256))

	result, err := fx.svc.StoreInline(context.Background(), &models.Report{ID: 2}, &models.School{ID: 1}, []dto.InlinePhoto{{Data: data}})
	require.NoError(t, err)
	assert.Empty(t, result.Photos)
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0].Error, "exceeds")

	entries, err := os.ReadDir(fx.temp.Root())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAttachmentDeleteQueuesReclaim(t *testing.T) {
	remote := &remoteStub{}
	fx := newAttachmentFixture(t, remote, AttachmentConfig{})
	ctx := context.Background()
	result, err := fx.svc.Store(ctx, &models.Report{ID: 1}, &models.School{ID: 1}, []Upload{memoryUpload("a.png", pngBytes(t, 4, 4), "")})
	require.NoError(t, err)
	photo, err := fx.svc.Get(ctx, result.Photos[0].ID)
	require.NoError(t, err)

	require.NoError(t, fx.svc.Delete(ctx, photo))
	_, err = fx.svc.Get(ctx, photo.ID)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	require.Len(t, fx.queue.jobs, 1)
	require.NoError(t, fx.svc.HandleJob(ctx, fx.queue.jobs[0]))
	_, key, _ := models.ParseStorageRef(photo.StorageRef)
	assert.Equal(t, []string{key}, remote.deleted)
}

func TestAttachmentOpenLocalVerifiesToken(t *testing.T) {
	fx := newAttachmentFixture(t, nil, AttachmentConfig{})
	ctx := context.Background()
	result, err := fx.svc.Store(ctx, &models.Report{ID: 1}, &models.School{ID: 1}, []Upload{memoryUpload("a.png", pngBytes(t, 4, 4), "")})
	require.NoError(t, err)
	photo, err := fx.svc.Get(ctx, result.Photos[0].ID)
	require.NoError(t, err)

	token := result.Photos[0].ViewURL[strings.Index(result.Photos[0].ViewURL, "token=")+len("token="):]
	_, _, err = fx.svc.OpenLocal(ctx, photo.ID+1, token, false)
	assert.Error(t, err)

	_, key, _ := models.ParseStorageRef(photo.StorageRef)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	valid, _, err := signer.Generate("1", key)
	require.NoError(t, err)
	file, contentType, err := fx.svc.OpenLocal(ctx, photo.ID, valid, false)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, "image/png", contentType)
}
