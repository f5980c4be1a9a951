package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/go-cmp/cmp"
	"github.com/vango-dev/vprompt/pkg/snapshot"
)

// fakeS3 is an in-memory ObjectAPI.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	meta    map[string]map[string]string
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		objects: make(map[string][]byte),
		meta:    make(map[string]map[string]string),
	}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	f.meta[key] = in.Metadata
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("not found")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func sampleSnapshot() *snapshot.Node {
	v := "hello"
	return &snapshot.Node{
		Name: "f",
		Path: "f",
		Children: []*snapshot.Node{
			{Name: "Text", Path: "f.Text", Value: &v},
		},
	}
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	disk, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore() error = %v", err)
	}
	return map[string]Store{
		"disk": disk,
		"s3":   NewS3Store(newFakeS3(), "bucket", "snapshots/"),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec := NewRecord(sampleSnapshot())
			rec.Labels = map[string]string{"tree": "sample"}

			id, err := store.Save(ctx, rec)
			if err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			if id != rec.ID {
				t.Errorf("Save() id = %q, want %q", id, rec.ID)
			}

			got, err := store.Load(ctx, id)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if diff := cmp.Diff(rec.Labels, got.Labels); diff != "" {
				t.Errorf("Labels mismatch (-want +got):\n%s", diff)
			}
			if !got.CreatedAt.Equal(rec.CreatedAt) {
				t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, rec.CreatedAt)
			}
			if values := snapshot.QueryValues(got.Snapshot, "f.Text"); !cmp.Equal(values, []string{"hello"}) {
				t.Errorf("loaded snapshot values = %v, want [hello]", values)
			}
		})
	}
}

func TestStoreAssignsID(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			rec := &Record{Snapshot: sampleSnapshot()}
			id, err := store.Save(context.Background(), rec)
			if err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			if id == "" || rec.ID != id || rec.CreatedAt.IsZero() {
				t.Errorf("Save() did not fill id and time: %+v", rec)
			}
		})
	}
}

func TestStoreErrors(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := store.Load(ctx, "1b4e28ba-2fa1-11d2-883f-0016d3cca427"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Load(missing) error = %v, want ErrNotFound", err)
			}
			if _, err := store.Load(ctx, "../etc/passwd"); !errors.Is(err, ErrInvalidID) {
				t.Errorf("Load(traversal) error = %v, want ErrInvalidID", err)
			}
			if _, err := store.Save(ctx, &Record{ID: "not-a-uuid"}); !errors.Is(err, ErrInvalidID) {
				t.Errorf("Save(bad id) error = %v, want ErrInvalidID", err)
			}
		})
	}
}

func TestS3StoreKeyAndMetadata(t *testing.T) {
	fake := newFakeS3()
	store := NewS3Store(fake, "bucket", "snapshots/")
	rec := NewRecord(sampleSnapshot())
	if _, err := store.Save(context.Background(), rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	key := "bucket/snapshots/" + rec.ID + ".json"
	if _, ok := fake.objects[key]; !ok {
		t.Fatalf("object %q not written; have %v", key, fake.objects)
	}
	if got := fake.meta[key]["record-id"]; got != rec.ID {
		t.Errorf("record-id metadata = %q, want %q", got, rec.ID)
	}
}

func TestS3StoreUploadError(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = errors.New("access denied")
	store := NewS3Store(fake, "bucket", "")

	_, err := store.Save(context.Background(), NewRecord(sampleSnapshot()))
	if !errors.Is(err, fake.putErr) {
		t.Errorf("Save() error = %v, want wrapped %v", err, fake.putErr)
	}
}

// isolateAWS points the AWS config chain at empty files so the tests never
// read the developer's profile.
func isolateAWS(t *testing.T) {
	t.Helper()
	empty := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatal(err)
	}
	for k, v := range map[string]string{
		"AWS_CONFIG_FILE":             empty,
		"AWS_SHARED_CREDENTIALS_FILE": empty,
		"AWS_PROFILE":                 "",
		"AWS_REGION":                  "",
		"AWS_DEFAULT_REGION":          "",
		"AWS_ENDPOINT_URL":            "",
		"AWS_ENDPOINT_URL_S3":         "",
		"AWS_EC2_METADATA_DISABLED":   "true",
	} {
		t.Setenv(k, v)
	}
}

func TestNewS3ClientRegion(t *testing.T) {
	isolateAWS(t)
	ctx := context.Background()

	if _, err := NewS3Client(ctx, ""); err == nil {
		t.Error("NewS3Client(\"\") error = nil, want error")
	}

	t.Setenv("AWS_REGION", "us-east-1")
	client, err := NewS3Client(ctx, "")
	if err != nil {
		t.Fatalf("NewS3Client() error = %v", err)
	}
	if got := client.Options().Region; got != "us-east-1" {
		t.Errorf("Region = %q, want us-east-1", got)
	}

	client, err = NewS3Client(ctx, "eu-west-1")
	if err != nil {
		t.Fatalf("NewS3Client(eu-west-1) error = %v", err)
	}
	if got := client.Options().Region; got != "eu-west-1" {
		t.Errorf("Region = %q, want eu-west-1", got)
	}
	if client.Options().UsePathStyle {
		t.Error("UsePathStyle = true without an endpoint override")
	}
}

func TestNewS3ClientEndpointOverride(t *testing.T) {
	isolateAWS(t)
	t.Setenv("AWS_ENDPOINT_URL", "http://localhost:9000")

	client, err := NewS3Client(context.Background(), "us-east-1")
	if err != nil {
		t.Fatalf("NewS3Client() error = %v", err)
	}
	opts := client.Options()
	if opts.BaseEndpoint == nil || *opts.BaseEndpoint != "http://localhost:9000" {
		t.Errorf("BaseEndpoint = %v, want http://localhost:9000", opts.BaseEndpoint)
	}
	if !opts.UsePathStyle {
		t.Error("UsePathStyle = false with an endpoint override")
	}
}

func TestNewS3ClientSharedConfigRegion(t *testing.T) {
	isolateAWS(t)
	cfgFile := filepath.Join(t.TempDir(), "config")
	if err := os.WriteFile(cfgFile, []byte("[default]\nregion = ap-south-1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AWS_CONFIG_FILE", cfgFile)

	client, err := NewS3Client(context.Background(), "")
	if err != nil {
		t.Fatalf("NewS3Client() error = %v", err)
	}
	if got := client.Options().Region; got != "ap-south-1" {
		t.Errorf("Region = %q, want ap-south-1 from the shared config", got)
	}
}

func TestDiskStoreCancelledContext(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Save(ctx, NewRecord(sampleSnapshot())); !errors.Is(err, context.Canceled) {
		t.Errorf("Save() error = %v, want context.Canceled", err)
	}
}
