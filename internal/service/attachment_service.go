package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/qa-reports-api/internal/dto"
	"github.com/noah-isme/qa-reports-api/internal/models"
	appErrors "github.com/noah-isme/qa-reports-api/pkg/errors"
	"github.com/noah-isme/qa-reports-api/pkg/imageutil"
	"github.com/noah-isme/qa-reports-api/pkg/jobs"
)

// JobReclaimPhoto is the queue job type that removes the bytes of a deleted photo.
const JobReclaimPhoto = "photo.reclaim"

const (
	defaultMaxUploadBytes = 10 << 20
	thumbnailSuffix       = ".thumb.jpg"
)

type remoteTier interface {
	Upload(ctx context.Context, folder, name, contentType string, r io.Reader) (string, error)
	Delete(ctx context.Context, object string) error
	URL(object string) string
}

type localTier interface {
	SaveStream(name string, r io.Reader) (int64, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
}

type tempTier interface {
	CreateTemp(pattern string) (*os.File, error)
}

type photoRepository interface {
	Create(ctx context.Context, photo *models.Photo) error
	GetByID(ctx context.Context, id int64) (*models.Photo, error)
	ListByReport(ctx context.Context, reportID int64) ([]models.Photo, error)
	Update(ctx context.Context, photo *models.Photo) error
	Delete(ctx context.Context, id int64) error
}

type urlSigner interface {
	Generate(subject, object string) (string, time.Time, error)
	Verify(token, subject string) (string, error)
}

type jobEnqueuer interface {
	TryEnqueue(job jobs.Job) error
}

type settingsReader interface {
	Value(ctx context.Context, key string) string
}

// AttachmentConfig tunes the photo pipeline.
type AttachmentConfig struct {
	APIPrefix      string
	MaxFileSize    int64
	RemoteTimeout  time.Duration
	Concurrency    int
	InlineEnabled  bool
	ThumbnailWidth int
}

// Upload is one file handed to the pipeline. Open is called once from a worker goroutine.
type Upload struct {
	Filename string
	Size     int64
	Section  models.SectionPath
	Caption  string
	Open     func() (io.ReadSeekCloser, error)
}

// AttachmentService stores photos on the remote tier, falling back to local disk.
type AttachmentService struct {
	photos   photoRepository
	remote   remoteTier
	local    localTier
	temp     tempTier
	signer   urlSigner
	queue    jobEnqueuer
	settings settingsReader
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      AttachmentConfig
}

// NewAttachmentService wires the pipeline. remote may be nil, in which case every upload lands locally.
func NewAttachmentService(photos photoRepository, remote remoteTier, local localTier, temp tempTier, signer urlSigner, queue jobEnqueuer, settings settingsReader, metrics *MetricsService, logger *zap.Logger, cfg AttachmentConfig) *AttachmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxUploadBytes
	}
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = 15 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &AttachmentService{
		photos:   photos,
		remote:   remote,
		local:    local,
		temp:     temp,
		signer:   signer,
		queue:    queue,
		settings: settings,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
	}
}

// InlineEnabled reports whether data-URI uploads are accepted.
func (s *AttachmentService) InlineEnabled() bool {
	return s.cfg.InlineEnabled
}

type storedFile struct {
	ref string
	err error
}

// Store uploads files concurrently, then records Photo rows one by one in input order.
// Files that fail are reported without rolling back the ones that succeeded.
func (s *AttachmentService) Store(ctx context.Context, report *models.Report, school *models.School, uploads []Upload) (*dto.UploadResult, error) {
	result := &dto.UploadResult{Photos: []dto.PhotoResponse{}, Failures: []dto.UploadFailure{}}
	if len(uploads) == 0 {
		return result, nil
	}
	folder := s.remoteFolder(ctx, school)

	stored := make([]storedFile, len(uploads))
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i := range uploads {
		i := i
		g.Go(func() error {
			ref, err := s.storeOne(ctx, report.ID, folder, uploads[i])
			stored[i] = storedFile{ref: ref, err: err}
			return nil
		})
	}
	_ = g.Wait()

	for i, up := range uploads {
		if stored[i].err != nil {
			s.metrics.RecordAttachment("failed")
			result.Failures = append(result.Failures, dto.UploadFailure{Index: i, Filename: up.Filename, Error: stored[i].err.Error()})
			continue
		}
		section := up.Section
		if section.Section == "" {
			section.Section = models.DefaultSection
		}
		photo := &models.Photo{
			ReportID:   report.ID,
			SectionKey: section.Section,
			ItemKey:    section.Item,
			StorageRef: stored[i].ref,
			Filename:   sanitizeFilename(up.Filename),
			Caption:    strings.TrimSpace(up.Caption),
		}
		if err := s.photos.Create(ctx, photo); err != nil {
			s.logger.Error("record photo failed", zap.Int64("report_id", report.ID), zap.Error(err))
			s.enqueueReclaim(photo.StorageRef)
			result.Failures = append(result.Failures, dto.UploadFailure{Index: i, Filename: up.Filename, Error: "failed to record photo"})
			continue
		}
		result.Photos = append(result.Photos, s.Present(photo))
	}
	return result, nil
}

func (s *AttachmentService) storeOne(ctx context.Context, reportID int64, folder string, up Upload) (string, error) {
	if up.Size > s.cfg.MaxFileSize {
		return "", fmt.Errorf("file exceeds %d bytes", s.cfg.MaxFileSize)
	}
	file, err := up.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	info, img, err := imageutil.Inspect(file)
	if err != nil {
		return "", errors.New("file is not a supported image (jpeg, png, gif, webp)")
	}
	name := fmt.Sprintf("report-%d/%s%s", reportID, uuid.NewString(), info.Extension)

	if s.remote != nil && folder != "" {
		ref, err := s.uploadRemote(ctx, folder, name, info.ContentType, file)
		if err == nil {
			s.metrics.RecordAttachment("remote")
			return ref, nil
		}
		s.logger.Warn("remote tier failed, falling back to local storage",
			zap.Int64("report_id", reportID), zap.String("file", up.Filename), zap.Error(err))
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return "", fmt.Errorf("rewind upload: %w", err)
		}
	}

	if _, err := s.local.SaveStream(name, io.LimitReader(file, s.cfg.MaxFileSize)); err != nil {
		return "", fmt.Errorf("store locally: %w", err)
	}
	s.writeThumbnail(name, img)
	s.metrics.RecordAttachment("local")
	return models.LocalRef(name), nil
}

func (s *AttachmentService) uploadRemote(ctx context.Context, folder, name, contentType string, r io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RemoteTimeout)
	defer cancel()
	object, err := s.remote.Upload(ctx, folder, name, contentType, io.LimitReader(r, s.cfg.MaxFileSize))
	if err != nil {
		return "", err
	}
	return models.RemoteRef(object), nil
}

func (s *AttachmentService) writeThumbnail(name string, img image.Image) {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(imageutil.WriteThumbnail(pw, img, s.cfg.ThumbnailWidth))
	}()
	if _, err := s.local.SaveStream(thumbnailName(name), pr); err != nil {
		_ = pr.CloseWithError(err)
		s.logger.Warn("thumbnail generation failed", zap.String("file", name), zap.Error(err))
	}
}

func thumbnailName(name string) string {
	return strings.TrimSuffix(name, path.Ext(name)) + thumbnailSuffix
}

// remoteFolder is the school's own folder, else a per-school folder under the configured root.
func (s *AttachmentService) remoteFolder(ctx context.Context, school *models.School) string {
	if school == nil {
		return ""
	}
	if school.StorageFolder != nil && strings.TrimSpace(*school.StorageFolder) != "" {
		return strings.Trim(strings.TrimSpace(*school.StorageFolder), "/")
	}
	folder := fmt.Sprintf("school-%d", school.ID)
	if s.settings != nil {
		if root := strings.Trim(strings.TrimSpace(s.settings.Value(ctx, models.SettingStorageRootFolder)), "/"); root != "" {
			folder = root + "/" + folder
		}
	}
	return folder
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "photo"
	}
	if len(name) > 200 {
		name = name[len(name)-200:]
	}
	return name
}

// StoreInline decodes data URIs to temporary files and stores them like multipart uploads.
// Temporary files are removed whatever the outcome.
func (s *AttachmentService) StoreInline(ctx context.Context, report *models.Report, school *models.School, photos []dto.InlinePhoto) (*dto.UploadResult, error) {
	if len(photos) == 0 {
		return &dto.UploadResult{Photos: []dto.PhotoResponse{}, Failures: []dto.UploadFailure{}}, nil
	}
	if !s.cfg.InlineEnabled {
		return nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "inline photo uploads are disabled, use multipart uploads")
	}
	uploads := make([]Upload, len(photos))
	for i, photo := range photos {
		tempPath, ext, err := s.decodeInline(photo.Data)
		if tempPath != "" {
			defer os.Remove(tempPath)
		}
		uploads[i] = Upload{
			Filename: fmt.Sprintf("inline-%d%s", i+1, ext),
			Section:  models.ParseSectionPath(photo.SectionKey),
			Caption:  photo.Caption,
			Open: func() (io.ReadSeekCloser, error) {
				if err != nil {
					return nil, err
				}
				return os.Open(tempPath)
			},
		}
	}
	return s.Store(ctx, report, school, uploads)
}

var inlineExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// decodeInline streams a base64 data URI into a temporary file capped at the upload limit.
// On error the returned path, if any, still needs removing.
func (s *AttachmentService) decodeInline(data string) (string, string, error) {
	header, payload, ok := strings.Cut(strings.TrimSpace(data), ",")
	if !ok || !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, ";base64") {
		return "", "", errors.New("photo is not a base64 data URI")
	}
	mime := strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64"))
	ext, ok := inlineExtensions[mime]
	if !ok {
		return "", "", fmt.Errorf("unsupported image type %q", mime)
	}
	if s.temp == nil {
		return "", "", errors.New("temporary storage unavailable")
	}
	file, err := s.temp.CreateTemp("inline-*" + ext)
	if err != nil {
		return "", "", fmt.Errorf("create temp file: %w", err)
	}
	tempPath := file.Name()
	decoder := base64.NewDecoder(base64.StdEncoding, strings.NewReader(payload))
	n, copyErr := io.Copy(file, io.LimitReader(decoder, s.cfg.MaxFileSize+1))
	closeErr := file.Close()
	switch {
	case copyErr != nil:
		return tempPath, ext, fmt.Errorf("decode photo: %w", copyErr)
	case closeErr != nil:
		return tempPath, ext, fmt.Errorf("write temp file: %w", closeErr)
	case n > s.cfg.MaxFileSize:
		return tempPath, ext, fmt.Errorf("photo exceeds %d bytes", s.cfg.MaxFileSize)
	case n == 0:
		return tempPath, ext, errors.New("photo is empty")
	}
	return tempPath, ext, nil
}

// Present resolves URLs for a photo.
func (s *AttachmentService) Present(photo *models.Photo) dto.PhotoResponse {
	return dto.PhotoResponse{
		ID:           photo.ID,
		ReportID:     photo.ReportID,
		SectionKey:   photo.SectionKey,
		Section:      photo.Path().String(),
		ItemKey:      photo.ItemKey,
		Filename:     photo.Filename,
		Caption:      photo.Caption,
		Tier:         photo.Tier(),
		ViewURL:      s.ViewURL(photo),
		ThumbnailURL: s.ThumbnailURL(photo),
		CreatedAt:    photo.CreatedAt,
	}
}

// ViewURL returns where the full image can be fetched, dispatching on the storage tier.
func (s *AttachmentService) ViewURL(photo *models.Photo) string {
	tier, key, ok := models.ParseStorageRef(photo.StorageRef)
	if !ok {
		return ""
	}
	if tier == models.TierRemote {
		if s.remote == nil {
			return ""
		}
		return s.remote.URL(key)
	}
	return s.signedURL(photo.ID, key, "file")
}

// ThumbnailURL returns a small rendition. Remote objects are served as-is.
func (s *AttachmentService) ThumbnailURL(photo *models.Photo) string {
	tier, key, ok := models.ParseStorageRef(photo.StorageRef)
	if !ok {
		return ""
	}
	if tier == models.TierRemote {
		return s.ViewURL(photo)
	}
	return s.signedURL(photo.ID, key, "thumbnail")
}

func (s *AttachmentService) signedURL(photoID int64, key, kind string) string {
	if s.signer == nil {
		return ""
	}
	token, _, err := s.signer.Generate(strconv.FormatInt(photoID, 10), key)
	if err != nil {
		s.logger.Warn("sign photo url", zap.Int64("photo_id", photoID), zap.Error(err))
		return ""
	}
	return fmt.Sprintf("%s/photos/%d/%s?token=%s", s.cfg.APIPrefix, photoID, kind, url.QueryEscape(token))
}

// ListForReport returns presented photos of a report.
func (s *AttachmentService) ListForReport(ctx context.Context, reportID int64) ([]dto.PhotoResponse, error) {
	photos, err := s.photos.ListByReport(ctx, reportID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list photos")
	}
	out := make([]dto.PhotoResponse, 0, len(photos))
	for i := range photos {
		out = append(out, s.Present(&photos[i]))
	}
	return out, nil
}

// Photos returns the raw photo records of a report.
func (s *AttachmentService) Photos(ctx context.Context, reportID int64) ([]models.Photo, error) {
	photos, err := s.photos.ListByReport(ctx, reportID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list photos")
	}
	return photos, nil
}

// Get loads a photo or returns ErrNotFound.
func (s *AttachmentService) Get(ctx context.Context, id int64) (*models.Photo, error) {
	photo, err := s.photos.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "photo not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load photo")
	}
	return photo, nil
}

// Update applies caption and section changes.
func (s *AttachmentService) Update(ctx context.Context, photo *models.Photo, caption, section *string) error {
	if caption != nil {
		photo.Caption = strings.TrimSpace(*caption)
	}
	if section != nil {
		parsed := models.ParseSectionPath(*section)
		photo.SectionKey, photo.ItemKey = parsed.Section, parsed.Item
	}
	if err := s.photos.Update(ctx, photo); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "photo not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update photo")
	}
	return nil
}

// Delete removes the record now and reclaims the bytes in the background.
func (s *AttachmentService) Delete(ctx context.Context, photo *models.Photo) error {
	if err := s.photos.Delete(ctx, photo.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "photo not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete photo")
	}
	s.enqueueReclaim(photo.StorageRef)
	return nil
}

// ReclaimAll queues byte removal for photos whose records are already gone.
func (s *AttachmentService) ReclaimAll(photos []models.Photo) {
	for _, photo := range photos {
		s.enqueueReclaim(photo.StorageRef)
	}
}

func (s *AttachmentService) enqueueReclaim(ref string) {
	if s.queue == nil || ref == "" {
		return
	}
	err := s.queue.TryEnqueue(jobs.Job{ID: uuid.NewString(), Type: JobReclaimPhoto, Key: ref, Payload: ref, Enqueued: time.Now().UTC()})
	if err != nil {
		s.logger.Warn("photo reclaim not queued", zap.String("ref", ref), zap.Error(err))
	}
}

// HandleJob is the queue handler removing stored bytes.
func (s *AttachmentService) HandleJob(ctx context.Context, job jobs.Job) error {
	if job.Type != JobReclaimPhoto {
		return fmt.Errorf("unknown job type %q", job.Type)
	}
	ref, _ := job.Payload.(string)
	tier, key, ok := models.ParseStorageRef(ref)
	if !ok {
		s.logger.Warn("dropping reclaim job with malformed ref", zap.String("ref", ref))
		return nil
	}
	if tier == models.TierRemote {
		if s.remote == nil {
			return nil
		}
		return s.remote.Delete(ctx, key)
	}
	if err := s.local.Delete(key); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := s.local.Delete(thumbnailName(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// OpenLocal verifies a signed token and opens the local file (or its thumbnail) of a photo.
func (s *AttachmentService) OpenLocal(ctx context.Context, photoID int64, token string, thumbnail bool) (*os.File, string, error) {
	if s.signer == nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}
	key, err := s.signer.Verify(token, strconv.FormatInt(photoID, 10))
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired link")
	}
	photo, err := s.Get(ctx, photoID)
	if err != nil {
		return nil, "", err
	}
	tier, stored, ok := models.ParseStorageRef(photo.StorageRef)
	if !ok || tier != models.TierLocal || stored != key {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}
	name, contentType := key, contentTypeFor(key)
	if thumbnail {
		name, contentType = thumbnailName(key), "image/jpeg"
	}
	file, err := s.local.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && thumbnail {
			// Thumbnails are best effort; serve the original instead.
			file, err = s.local.Open(key)
			contentType = contentTypeFor(key)
		}
		if err != nil {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
	}
	return file, contentType, nil
}

func contentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
