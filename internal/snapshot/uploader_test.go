package snapshot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves the path-style subset of the S3 API the uploader uses
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string]string
	metadata map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string]string{}, metadata: map[string]string{}}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/snapshots/")

	switch {
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = string(body)
		f.metadata[key] = r.Header.Get("X-Amz-Meta-Snapshot-Name")
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2":
		prefix := r.URL.Query().Get("prefix")
		var contents strings.Builder
		for k, v := range f.objects {
			if strings.HasPrefix(k, prefix) {
				fmt.Fprintf(&contents, "<Contents><Key>%s</Key><Size>%d</Size></Contents>", k, len(v))
			}
		}
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"><Name>snapshots</Name><Prefix>%s</Prefix><IsTruncated>false</IsTruncated>%s</ListBucketResult>`,
			prefix, contents.String())

	case r.Method == http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		fmt.Fprint(w, body)

	case r.Method == http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) object(key string) (string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[key], f.metadata[key]
}

func (f *fakeS3) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func newTestUploader(t *testing.T, backend http.Handler) *S3Uploader {
	t.Helper()

	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	uploader, err := NewS3Uploader(&Config{
		Endpoint:       server.URL,
		Region:         "us-east-1",
		Bucket:         "snapshots",
		AccessKey:      "test",
		SecretKey:      "test",
		Prefix:         "/cooldb-snapshots/",
		ForcePathStyle: true,
		DisableSSL:     true,
	})
	require.NoError(t, err)

	uploader.now = func() time.Time { return time.Date(2026, 10, 17, 23, 30, 0, 0, time.UTC) }
	return uploader
}

func TestS3Uploader_ObjectKey(t *testing.T) {
	uploader := newTestUploader(t, newFakeS3())

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "cooldb-snapshots/2026-01-02/nightly.jsonl", uploader.ObjectKey("nightly", at))
}

func TestS3Uploader_RoundTrip(t *testing.T) {
	backend := newFakeS3()
	uploader := newTestUploader(t, backend)
	ctx := context.Background()

	doc := "{\"key\":\"a\",\"value\":1}\n"
	key, err := uploader.Upload(ctx, "nightly", strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "cooldb-snapshots/2026-10-17/nightly.jsonl", key)
	body, name := backend.object(key)
	assert.Equal(t, doc, body)
	assert.Equal(t, "nightly", name)

	keys, err := uploader.List(ctx, time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []string{key}, keys)

	reader, err := uploader.Download(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	assert.Equal(t, doc, string(data))

	require.NoError(t, uploader.Delete(ctx, key))
	assert.Equal(t, 0, backend.count())

	_, err = uploader.Download(ctx, key)
	assert.ErrorContains(t, err, "failed to get snapshot")
}

func TestS3Uploader_UploadFailure(t *testing.T) {
	uploader := newTestUploader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`)
	}))

	_, err := uploader.Upload(context.Background(), "nightly", strings.NewReader("{}\n"))
	assert.ErrorContains(t, err, "failed to upload snapshot")
}

func TestNewS3Uploader_RequiresBucket(t *testing.T) {
	_, err := NewS3Uploader(&Config{Region: "us-east-1"})
	assert.EqualError(t, err, "snapshot bucket is required")
}
