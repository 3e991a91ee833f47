package publish

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BDNK1/schedstack/internal/logging"
	"github.com/BDNK1/schedstack/internal/synth"
)

// fakeStore keeps objects in memory
type fakeStore struct {
	objects map[string][]byte
	types   map[string]string
	puts    int
	headErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeStore) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeStore) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	f.puts++
	return &s3.PutObjectOutput{}, nil
}

func buildAssembly(t *testing.T) *synth.Assembly {
	t.Helper()
	project := t.TempDir()
	handlers := filepath.Join(project, "handlers")
	require.NoError(t, os.MkdirAll(handlers, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(handlers, "index.js"), []byte("exports.handler = async (e) => e;\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(project, "stack.yaml"), []byte("name: sms\nassets:\n  prefix: sms/\n"), 0644))

	a, err := synth.Build(synth.Options{ProjectDir: project, Logger: logging.Discard()})
	require.NoError(t, err)
	return a
}

func TestUpload_SkipsExisting(t *testing.T) {
	a := buildAssembly(t)
	store := newFakeStore()
	u := NewUploader(store, "bucket", logging.Discard())

	results, err := u.Upload(context.Background(), Objects(a))
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.False(t, results[0].Skipped)
	assert.False(t, results[1].Skipped)
	assert.Equal(t, 2, store.puts)

	assert.Equal(t, a.Asset.Archive, store.objects["sms/"+a.Asset.Hash+".zip"])
	assert.Equal(t, "application/zip", store.types["sms/"+a.Asset.Hash+".zip"])
	assert.Equal(t, a.TemplateBytes, store.objects[TemplateKey(a)])
	assert.Equal(t, "application/json", store.types[TemplateKey(a)])

	results, err = u.Upload(context.Background(), Objects(a))
	require.NoError(t, err)
	assert.True(t, results[0].Skipped)
	assert.True(t, results[1].Skipped)
	assert.Equal(t, 2, store.puts)
}

func TestUpload_HeadError(t *testing.T) {
	store := newFakeStore()
	store.headErr = errors.New("access denied")
	u := NewUploader(store, "bucket", logging.Discard())

	_, err := u.Upload(context.Background(), []Object{{Key: "k", Body: []byte("x")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to check k")
	assert.Equal(t, 0, store.puts)
}

func TestTemplateKey(t *testing.T) {
	a := buildAssembly(t)
	key := TemplateKey(a)
	assert.Regexp(t, `^sms/[0-9a-f]{64}\.json$`, key)
	assert.Equal(t, key, TemplateKey(a))
}

func TestResolveBucket(t *testing.T) {
	tests := []struct {
		name    string
		bucket  string
		account string
		region  string
		want    string
		wantErr bool
	}{
		{name: "default bucket", bucket: "cdk-hnb659fds-assets-${AWS::AccountId}-${AWS::Region}", account: "123456789012", region: "eu-west-1", want: "cdk-hnb659fds-assets-123456789012-eu-west-1"},
		{name: "plain bucket", bucket: "my-assets", want: "my-assets"},
		{name: "missing account", bucket: "assets-${AWS::AccountId}", region: "eu-west-1", wantErr: true},
		{name: "missing region", bucket: "assets-${AWS::Region}", account: "1", wantErr: true},
		{name: "unknown placeholder", bucket: "assets-${Stage}", wantErr: true},
		{name: "empty", bucket: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveBucket(tt.bucket, tt.account, tt.region)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
