// Package s3 serves snippets from snippet files stored in an S3 compatible
// bucket.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/MrSnakeDoc/snip/internal/domain"
	"github.com/MrSnakeDoc/snip/internal/logger"
	"github.com/MrSnakeDoc/snip/internal/provider"
	"github.com/MrSnakeDoc/snip/internal/provider/fileformat"
	"github.com/MrSnakeDoc/snip/internal/utils"
)

type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// NewClient builds the minio client shared by every s3 source.
func NewClient(cfg Config) (*minio.Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: regionOrDefault(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return client, nil
}

func regionOrDefault(region string) string {
	region = strings.TrimSpace(region)
	if region == "" {
		return "us-east-1"
	}
	return region
}

type Adapter struct {
	client *minio.Client
	bucket string
	prefix string
	region string
	log    logger.Logger
	now    func() time.Time

	// buckets is the client, narrowed for bucket creation.
	buckets    bucketAPI
	initMu     sync.Mutex
	bucketDone bool
}

type bucketAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
}

// New creates an adapter over handle's bucket and prefix.
func New(client *minio.Client, handle domain.S3Handle, region string, log logger.Logger) *Adapter {
	return &Adapter{
		client: client,
		bucket: strings.TrimSpace(handle.Bucket),
		prefix: normalizePrefix(handle.Prefix),
		region: regionOrDefault(region),
		log:    log.With(logger.String("bucket", handle.Bucket), logger.String("prefix", handle.Prefix)),
		now:    time.Now,

		buckets: client,
	}
}

// Constructor plugs the adapter into a provider.Factory. A nil client means
// s3 is not configured; sources of that kind then fail to bind.
func Constructor(client *minio.Client, region string, log logger.Logger) provider.Constructor {
	return func(source domain.ScopedSource) (provider.Adapter, error) {
		if client == nil {
			return nil, fmt.Errorf("%w: s3 endpoint not configured", provider.ErrUnavailable)
		}
		h, ok := source.Handle.(domain.S3Handle)
		if !ok {
			return nil, fmt.Errorf("%w: expected s3 handle, got %T", domain.ErrInvalidHandle, source.Handle)
		}
		return New(client, h, region, log), nil
	}
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// ensureBucket creates the bucket on first use. A failure is not cached, so
// a timed out first upload does not disable the source.
func (a *Adapter) ensureBucket(ctx context.Context) error {
	a.initMu.Lock()
	defer a.initMu.Unlock()
	if a.bucketDone {
		return nil
	}
	exists, err := a.buckets.BucketExists(ctx, a.bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := a.buckets.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: a.region}); err != nil {
			return err
		}
	}
	a.bucketDone = true
	return nil
}

func (a *Adapter) Download(ctx context.Context, folderID string) ([]domain.Snippet, error) {
	return provider.DownloadAll(ctx, a, folderID, a.log)
}

func (a *Adapter) Upload(ctx context.Context, snippets []domain.Snippet) error {
	if err := a.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	return provider.ReplaceAll(ctx, a, snippets)
}

func (a *Adapter) Delete(ctx context.Context, ids []string) error {
	return provider.DeleteFromFiles(ctx, a, ids)
}

// IsAuthenticated checks that the credentials can see the bucket.
func (a *Adapter) IsAuthenticated(ctx context.Context) (bool, error) {
	if _, err := a.client.BucketExists(ctx, a.bucket); err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "AccessDenied" || resp.Code == "InvalidAccessKeyId" || resp.Code == "SignatureDoesNotMatch" {
			return false, fmt.Errorf("%w: %s", provider.ErrNotAuthenticated, resp.Code)
		}
		return false, err
	}
	return true, nil
}

// ListFiles lists the snippet objects below prefix/folderID, sorted by key.
func (a *Adapter) ListFiles(ctx context.Context, folderID string) ([]provider.FileRef, error) {
	if err := a.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	listPrefix := a.prefix
	if folder := strings.Trim(folderID, "/"); folder != "" {
		listPrefix += folder + "/"
	}

	var refs []provider.FileRef
	for obj := range a.client.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{
		Prefix:    listPrefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if obj.Key == "" || !fileformat.Supported(obj.Key) {
			continue
		}
		rel := strings.TrimPrefix(obj.Key, a.prefix)
		refs = append(refs, provider.FileRef{
			ID:        rel,
			Name:      path.Base(rel),
			Folder:    path.Dir(rel),
			Size:      obj.Size,
			UpdatedAt: obj.LastModified,
		})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs, nil
}

func (a *Adapter) DownloadFile(ctx context.Context, ref provider.FileRef) ([]domain.Snippet, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, a.prefix+ref.ID, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer utils.Close(obj)

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ref.ID, err)
	}

	snippets, repairs, err := fileformat.ParseFile(ref.Name, data, a.now())
	if err != nil {
		return nil, err
	}
	for _, r := range repairs {
		a.log.Warn("repaired snippet timestamp",
			logger.String("object", ref.ID),
			logger.String("snippet", r.SnippetID),
			logger.String("field", r.Field))
	}
	for i := range snippets {
		if snippets[i].SourceFolder == "" && ref.Folder != "." {
			snippets[i].SourceFolder = ref.Folder
		}
	}
	return snippets, nil
}

func (a *Adapter) ManagedRef() provider.FileRef {
	return provider.FileRef{ID: fileformat.ManagedFile, Name: fileformat.ManagedFile, Folder: "."}
}

func (a *Adapter) WriteFile(ctx context.Context, ref provider.FileRef, data []byte) error {
	contentType := "application/json"
	if f, ok := fileformat.FormatFor(ref.Name); ok && f != fileformat.JSON {
		contentType = "text/plain; charset=utf-8"
	}
	_, err := a.client.PutObject(ctx, a.bucket, a.prefix+ref.ID, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

var (
	_ provider.Adapter    = (*Adapter)(nil)
	_ provider.FileWriter = (*Adapter)(nil)
)
