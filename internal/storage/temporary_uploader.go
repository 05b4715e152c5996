package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	apperrors "github.com/anime-shed/vision-analysis-go/internal/errors"
	"github.com/anime-shed/vision-analysis-go/internal/logger"
	"github.com/anime-shed/vision-analysis-go/internal/observer"
	"github.com/anime-shed/vision-analysis-go/pkg/validation"
)

const (
	// ExpiryWindow is how long a staged upload is meant to live. It is
	// advertised through metadata and Cache-Control; nothing here deletes the
	// blob unless a Janitor is attached.
	ExpiryWindow = 5 * time.Minute

	// ExpiryMetadataKey holds the RFC 3339 expiry timestamp of a staged blob
	ExpiryMetadataKey = "ExpiryTime"
)

// TemporaryUploader stages images in object storage so the vision service
// can fetch them by URL
type TemporaryUploader interface {
	// Upload writes body under a fresh unique name. An empty extension is
	// derived from contentType.
	Upload(ctx context.Context, body io.Reader, contentType, extension string) (string, error)
	// UploadFromURL downloads sourceURL and stages the result.
	UploadFromURL(ctx context.Context, sourceURL string) (string, error)
}

// ExpiryTracker is told about every blob that was staged successfully
type ExpiryTracker interface {
	Track(blobName string)
}

type temporaryUploader struct {
	store     BlobStore
	fetcher   SourceFetcher
	validator *validation.URLValidator
	publisher observer.Publisher
	tracker   ExpiryTracker
	now       func() time.Time
}

// NewTemporaryUploader wires an uploader. publisher and tracker may be nil.
func NewTemporaryUploader(store BlobStore, fetcher SourceFetcher, publisher observer.Publisher, tracker ExpiryTracker) TemporaryUploader {
	if publisher == nil {
		publisher = observer.NopPublisher{}
	}
	return &temporaryUploader{
		store:     store,
		fetcher:   fetcher,
		validator: validation.NewURLValidator(),
		publisher: publisher,
		tracker:   tracker,
		now:       time.Now,
	}
}

// ExtensionForContentType maps the image types the vision service accepts
// to a file extension; anything else becomes .bin
func ExtensionForContentType(contentType string) string {
	switch strings.ToLower(mediaType(contentType)) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/bmp":
		return ".bmp"
	default:
		return ".bin"
	}
}

func (u *temporaryUploader) Upload(ctx context.Context, body io.Reader, contentType, extension string) (string, error) {
	if body == nil {
		return "", apperrors.NewValidationError("image content is required", nil)
	}
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return "", apperrors.NewValidationError("content type is required", nil)
	}

	extension = strings.TrimSpace(extension)
	if extension == "" {
		extension = ExtensionForContentType(contentType)
	} else if !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}

	blobName := uuid.NewString() + extension
	start := time.Now()

	blobURL, err := u.stage(ctx, blobName, body, contentType)
	if err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"blob_name":    blobName,
			"content_type": contentType,
		}).Error("Error uploading image to temporary blob storage")
		u.publisher.Publish(ctx, observer.Event{Type: observer.UploadFailed, BlobName: blobName, Err: err})
		return "", apperrors.NewUpstreamError("failed to stage image in temporary storage", err)
	}

	if u.tracker != nil {
		u.tracker.Track(blobName)
	}

	duration := time.Since(start)
	logger.WithFields(logrus.Fields{
		"blob_name":          blobName,
		"content_type":       contentType,
		"processing_time_ms": duration.Milliseconds(),
	}).Info("Staged image in temporary blob storage")
	u.publisher.Publish(ctx, observer.Event{
		Type:     observer.UploadStaged,
		ImageURL: blobURL,
		BlobName: blobName,
		Duration: duration,
	})

	return blobURL, nil
}

func (u *temporaryUploader) UploadFromURL(ctx context.Context, sourceURL string) (string, error) {
	if err := u.validator.Validate(sourceURL); err != nil {
		return "", err
	}
	parsed, err := url.Parse(strings.TrimSpace(sourceURL))
	if err != nil {
		return "", apperrors.NewValidationError(validation.MsgURLMalformed, err)
	}

	src, err := u.fetcher.Fetch(ctx, parsed.String())
	if err != nil {
		logger.WithError(err).WithField("source_url", sourceURL).
			Error("Error downloading image for temporary blob storage")
		u.publisher.Publish(ctx, observer.Event{Type: observer.UploadFailed, ImageURL: sourceURL, Err: err})
		return "", apperrors.NewUpstreamError("failed to download source image", err)
	}
	defer src.Body.Close()

	extension := path.Ext(parsed.Path)
	if extension == "" {
		extension = ExtensionForContentType(src.ContentType)
	}

	return u.Upload(ctx, src.Body, src.ContentType, extension)
}

// stage writes the blob and then marks it with its expiry. A blob whose
// expiry could not be set is left in place.
func (u *temporaryUploader) stage(ctx context.Context, blobName string, body io.Reader, contentType string) (string, error) {
	if err := u.store.EnsureContainer(ctx); err != nil {
		return "", err
	}
	if err := u.store.Put(ctx, blobName, body, contentType); err != nil {
		return "", err
	}
	if err := u.setExpiry(ctx, blobName); err != nil {
		return "", err
	}
	return u.store.URL(blobName), nil
}

func (u *temporaryUploader) setExpiry(ctx context.Context, blobName string) error {
	expiresAt := u.now().UTC().Add(ExpiryWindow)

	props, err := u.store.Properties(ctx, blobName)
	if err != nil {
		return err
	}

	metadata := make(map[string]string, len(props.Metadata)+1)
	for k, v := range props.Metadata {
		metadata[k] = v
	}
	metadata[ExpiryMetadataKey] = expiresAt.Format(time.RFC3339Nano)
	if err := u.store.SetMetadata(ctx, blobName, metadata); err != nil {
		return err
	}

	return u.store.SetHTTPHeaders(ctx, blobName, BlobHTTPHeaders{
		ContentType:  props.ContentType,
		CacheControl: fmt.Sprintf("max-age=%d", int(ExpiryWindow.Seconds())),
	})
}
