// Package media signs direct-to-bucket uploads for exercise images and
// videos.
package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"lapizarra/backend/internal/config"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	credentialspb "cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTTL = 15 * time.Minute
	MaxTTL     = time.Hour
	MaxBytes   = 50 << 20
)

var (
	ErrNotConfigured = errors.New("media uploads are not configured")
	ErrBadRequest    = errors.New("bad request")
)

func IsErrNotConfigured(err error) bool { return errors.Is(err, ErrNotConfigured) }
func IsErrBadRequest(err error) bool    { return errors.Is(err, ErrBadRequest) }

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"video/mp4":  ".mp4",
	"video/webm": ".webm",
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

type Signer struct {
	bucketName string
	email      string
	bucket     *storage.BucketHandle
	iam        *credentials.IamCredentialsClient
}

// NewSigner builds a signer; the IAM client is optional and only needed to
// sign with a service account that has no local private key (Cloud Run).
func NewSigner(ctx context.Context, cfg config.Config, sc *storage.Client) *Signer {
	s := &Signer{bucketName: cfg.StorageBucket, email: cfg.SignedURLServiceAccountEmail}
	if sc != nil && cfg.StorageBucket != "" {
		s.bucket = sc.Bucket(cfg.StorageBucket)
	}
	iamClient, err := credentials.NewIamCredentialsClient(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("iam credentials client unavailable")
	} else {
		s.iam = iamClient
	}
	return s
}

func (s *Signer) Close() {
	if s != nil && s.iam != nil {
		_ = s.iam.Close()
	}
}

type Upload struct {
	URL        string    `json:"url"`
	Method     string    `json:"method"`
	ObjectPath string    `json:"objectPath"`
	PublicURL  string    `json:"publicUrl"`
	Headers    []string  `json:"headers"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// ObjectPath places an upload under exercises/{uid}/ with a unique prefix.
func ObjectPath(uid, fileName, contentType string) (string, error) {
	ext, ok := allowedTypes[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", fmt.Errorf("%w: unsupported content type %q", ErrBadRequest, contentType)
	}
	if uid == "" || strings.ContainsAny(uid, "/.") {
		return "", fmt.Errorf("%w: invalid uid", ErrBadRequest)
	}
	base := strings.TrimSuffix(path.Base(strings.ReplaceAll(fileName, "\\", "/")), path.Ext(fileName))
	base = strings.Trim(unsafeName.ReplaceAllString(base, "-"), "-.")
	if base == "" {
		base = "media"
	}
	if len(base) > 60 {
		base = base[:60]
	}
	return fmt.Sprintf("exercises/%s/%s-%s%s", uid, uuid.NewString()[:8], base, ext), nil
}

// OwnsObject reports whether objectPath sits in uid's upload folder.
func OwnsObject(uid, objectPath string) bool {
	clean := path.Clean(objectPath)
	return clean == objectPath && strings.HasPrefix(clean, "exercises/"+uid+"/")
}

func (s *Signer) PublicURL(objectPath string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucketName, (&url.URL{Path: objectPath}).EscapedPath())
}

// SignUpload returns a V4 PUT URL limited to contentType and MaxBytes.
func (s *Signer) SignUpload(ctx context.Context, objectPath, contentType string, ttl time.Duration) (*Upload, error) {
	if s == nil || s.bucket == nil || s.email == "" || s.iam == nil {
		return nil, ErrNotConfigured
	}
	if ttl <= 0 || ttl > MaxTTL {
		ttl = DefaultTTL
	}
	exp := time.Now().Add(ttl)
	headers := []string{fmt.Sprintf("x-goog-content-length-range:0,%d", MaxBytes)}

	u, err := s.bucket.SignedURL(objectPath, &storage.SignedURLOptions{
		Scheme:         storage.SigningSchemeV4,
		Method:         "PUT",
		Expires:        exp,
		ContentType:    contentType,
		Headers:        headers,
		GoogleAccessID: s.email,
		SignBytes: func(b []byte) ([]byte, error) {
			resp, err := s.iam.SignBlob(ctx, &credentialspb.SignBlobRequest{
				Name:    "projects/-/serviceAccounts/" + s.email,
				Payload: b,
			})
			if err != nil {
				return nil, err
			}
			return resp.SignedBlob, nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign upload url: %w", err)
	}
	return &Upload{
		URL:        u,
		Method:     "PUT",
		ObjectPath: objectPath,
		PublicURL:  s.PublicURL(objectPath),
		Headers:    headers,
		ExpiresAt:  exp.UTC(),
	}, nil
}

// ObjectFromURL extracts the object path from a public URL of this bucket.
func (s *Signer) ObjectFromURL(raw string) (string, bool) {
	if s == nil {
		return "", false
	}
	prefix := fmt.Sprintf("https://storage.googleapis.com/%s/", s.bucketName)
	if !strings.HasPrefix(raw, prefix) {
		return "", false
	}
	obj, err := url.PathUnescape(strings.TrimPrefix(raw, prefix))
	if err != nil || obj == "" {
		return "", false
	}
	return obj, true
}

// Delete removes an uploaded object; missing objects are not an error.
func (s *Signer) Delete(ctx context.Context, objectPath string) error {
	if s == nil || s.bucket == nil {
		return ErrNotConfigured
	}
	err := s.bucket.Object(objectPath).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}
