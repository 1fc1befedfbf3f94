package objectstore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subly/internal/core"
	"subly/internal/remote"
)

type object struct {
	body     []byte
	modified time.Time
}

// fakeS3 is a bucket held in memory. ListObjectsV2 pages two keys at a time
// so the paginator is exercised.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]object
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string]object)}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = object{body: b, modified: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:         io.NopCloser(bytes.NewReader(obj.body)),
		LastModified: aws.Time(obj.modified),
	}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) && k > aws.ToString(in.ContinuationToken) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{}
	if len(keys) > 2 {
		keys = keys[:2]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[1])
	}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	api := newFakeS3()
	store := remote.NewStore(NewWithAPI(api, "subly"), nil)

	for i, name := range []string{"Netflix", "Spotify", "iCloud"} {
		sub := core.Subscription{
			ID:                 string(rune('a' + i)),
			Name:               name,
			Category:           core.Streaming,
			Amount:             core.Money{Cents: 999, Currency: "USD"},
			Frequency:          core.Monthly,
			StartDate:          core.NewDate(2024, 1, 1),
			NextBillingDate:    core.NewDate(2024, 2, 1),
			Active:             true,
			ReminderDaysBefore: 2,
		}
		require.NoError(t, store.UpsertSubscription(ctx, "u1", sub))
	}

	_, ok := api.objects["users/u1/subscriptions/a.json"]
	require.True(t, ok)

	subs, err := store.FetchSubscriptions(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, subs, 3)

	docs, err := NewWithAPI(api, "subly").ListDocuments(ctx, "u1", remote.CollectionSubscriptions)
	require.NoError(t, err)
	require.NotEmpty(t, docs)
	assert.Equal(t, 2024, docs[0].UpdatedAt().Year())

	require.NoError(t, store.DeleteSubscription(ctx, "u1", "b"))
	subs, err = store.FetchSubscriptions(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, subs, 2)
}

func TestListSkipsForeignKeys(t *testing.T) {
	ctx := context.Background()
	api := newFakeS3()
	api.objects["users/u1/subscriptions/readme.txt"] = object{body: []byte("hi")}
	api.objects["users/u1/subscriptions/archive/old.json"] = object{body: []byte("{}")}
	api.objects["users/u1/subscriptions/broken.json"] = object{body: []byte("{not json")}

	docs, err := NewWithAPI(api, "subly").ListDocuments(ctx, "u1", remote.CollectionSubscriptions)
	require.NoError(t, err)
	require.Len(t, docs, 1, "only the broken top-level json object is returned")

	_, err = remote.SubscriptionFromDocument(docs[0])
	assert.ErrorIs(t, err, remote.ErrMalformedDocument)
}
