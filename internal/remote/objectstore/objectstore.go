// Package objectstore mirrors documents into an S3-compatible bucket, one
// JSON object per document under users/{uid}/{collection}/{id}.json.
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"

	"subly/internal/remote"
)

const (
	objectSuffix = ".json"
	fetchLimit   = 8
)

// API is the subset of the S3 client the store needs.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	s3.ListObjectsV2APIClient
}

type Options struct {
	Bucket    string
	Endpoint  string // empty for AWS itself
	Region    string
	AccessKey string
	SecretKey string
}

type Store struct {
	api    API
	bucket string
}

var _ remote.Backend = (*Store)(nil)

// New builds an S3 client. Static credentials are used when given,
// otherwise the default AWS chain applies. A custom endpoint switches to
// path-style addressing, as MinIO and R2 expect.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Bucket == "" {
		return nil, errors.New("missing bucket")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithAPI(client, opts.Bucket), nil
}

func NewWithAPI(api API, bucket string) *Store {
	return &Store{api: api, bucket: bucket}
}

func objectKey(uid, collection, id string) string {
	return remote.DocumentPath(uid, collection, id) + objectSuffix
}

func (s *Store) PutDocument(ctx context.Context, uid, collection, id string, doc remote.Document) error {
	body := make(map[string]any, len(doc))
	for k, v := range doc {
		if k != remote.FieldUpdatedAt {
			body[k] = v
		}
	}
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", remote.DocumentPath(uid, collection, id), err)
	}

	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey(uid, collection, id)),
		Body:        bytes.NewReader(b),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", objectKey(uid, collection, id), err)
	}
	return nil
}

func (s *Store) DeleteDocument(ctx context.Context, uid, collection, id string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(uid, collection, id)),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", objectKey(uid, collection, id), err)
	}
	return nil
}

// ListDocuments reads every object under the collection prefix. updatedAt is
// the object's LastModified time.
func (s *Store) ListDocuments(ctx context.Context, uid, collection string) ([]remote.Document, error) {
	prefix := remote.CollectionPath(uid, collection) + "/"

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			// Nested prefixes are not documents of this collection.
			if !strings.HasSuffix(key, objectSuffix) || strings.Contains(strings.TrimPrefix(key, prefix), "/") {
				continue
			}
			keys = append(keys, key)
		}
	}

	var mu sync.Mutex
	docs := make([]remote.Document, 0, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchLimit)
	for _, key := range keys {
		g.Go(func() error {
			doc, err := s.getDocument(gctx, key)
			if err != nil || doc == nil {
				return err
			}
			mu.Lock()
			docs = append(docs, doc)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

// getDocument returns nil for an object that vanished after listing.
func (s *Store) getDocument(ctx context.Context, key string) (remote.Document, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer out.Body.Close()

	doc := remote.Document{}
	dec := json.NewDecoder(out.Body)
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		// Undecodable objects surface as malformed documents and are skipped
		// by the caller like any other bad document.
		return remote.Document{"_key": key}, nil
	}
	if out.LastModified != nil {
		doc[remote.FieldUpdatedAt] = out.LastModified.UTC()
	}
	return doc, nil
}
