package object_storage

import (
	"context"
	mock_utils "edit-box/internal/mock/sidecar"
	"edit-box/internal/utils"
	test_utils "edit-box/test-utils"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var content = []byte("not really a video")

func newStorage(t *testing.T) (*ObjectStorage, *mock_utils.MockBinder) {
	ctrl := gomock.NewController(t)
	client := mock_utils.NewMockBinder(ctrl)
	od := NewObjectStorage(t.TempDir(), client)
	od.componentName = "test"
	od.backoff = time.Millisecond
	return od, client
}

func TestObjectStorage_Download(t *testing.T) {
	od, client := newStorage(t)
	client.EXPECT().InvokeBinding(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, in *utils.InvokeBindingRequest) (*utils.BindingEvent, error) {
			assert.Equal(t, "test", in.Name)
			assert.Equal(t, "get", in.Operation)
			assert.Equal(t, "records/a.mp4", in.Metadata["key"])
			// Dapr returns b64
			return &utils.BindingEvent{Data: test_utils.B64(content)}, nil
		})
	path, err := od.Download(context.Background(), "records/a.mp4")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(od.assetsPath, "records", "a.mp4"), path)
	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, written)
	assert.Equal(t, []string{"records/a.mp4"}, od.Keys())
}

func TestObjectStorage_DownloadOutsideAssets(t *testing.T) {
	od, client := newStorage(t)
	client.EXPECT().InvokeBinding(gomock.Any(), gomock.Any()).Return(&utils.BindingEvent{Data: test_utils.B64(content)}, nil)
	path, err := od.Download(context.Background(), "../../escape.mp4")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(od.assetsPath, "escape.mp4"), path)
}

func TestObjectStorage_DownloadInvalidContent(t *testing.T) {
	od, client := newStorage(t)
	client.EXPECT().InvokeBinding(gomock.Any(), gomock.Any()).Return(&utils.BindingEvent{Data: []byte("%%%")}, nil)
	_, err := od.Download(context.Background(), "a.mp4")
	assert.Error(t, err)
	assert.Empty(t, od.Keys())
}

func TestObjectStorage_ResolveLocal(t *testing.T) {
	od, _ := newStorage(t)
	// No call to the binding at all
	path, err := od.Resolve(context.Background(), "local/a.mp4")
	require.NoError(t, err)
	assert.Equal(t, "local/a.mp4", path)
}

func TestObjectStorage_ResolveOnce(t *testing.T) {
	od, client := newStorage(t)
	client.EXPECT().InvokeBinding(gomock.Any(), gomock.Any()).Return(&utils.BindingEvent{Data: test_utils.B64(content)}, nil).Times(1)
	first, err := od.Resolve(context.Background(), "store://a.mp4")
	require.NoError(t, err)
	second, err := od.Resolve(context.Background(), "store://a.mp4")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestObjectStorage_ResolveRetry(t *testing.T) {
	od, client := newStorage(t)
	od.maxRetry = 2
	gomock.InOrder(
		client.EXPECT().InvokeBinding(gomock.Any(), gomock.Any()).Return(nil, fmt.Errorf("not yet")).Times(2),
		client.EXPECT().InvokeBinding(gomock.Any(), gomock.Any()).Return(&utils.BindingEvent{Data: test_utils.B64(content)}, nil),
	)
	path, err := od.Resolve(context.Background(), "store://a.mp4")
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestObjectStorage_ResolveFailure(t *testing.T) {
	od, client := newStorage(t)
	od.maxRetry = 1
	client.EXPECT().InvokeBinding(gomock.Any(), gomock.Any()).Return(nil, fmt.Errorf("no such key")).Times(2)
	_, err := od.Resolve(context.Background(), "store://a.mp4")
	assert.ErrorContains(t, err, "no such key")
}

func TestObjectStorage_ResolveCancelled(t *testing.T) {
	od, client := newStorage(t)
	od.maxRetry = 10
	od.backoff = time.Hour
	client.EXPECT().InvokeBinding(gomock.Any(), gomock.Any()).Return(nil, fmt.Errorf("no such key"))
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)
	_, err := od.Resolve(ctx, "store://a.mp4")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestObjectStorage_Upload(t *testing.T) {
	od, client := newStorage(t)
	src := test_utils.WriteFile(t, "out.mkv", content)
	client.EXPECT().InvokeBinding(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, in *utils.InvokeBindingRequest) (*utils.BindingEvent, error) {
			assert.Equal(t, "create", in.Operation)
			assert.Equal(t, "renders/out.mkv", in.Metadata["key"])
			assert.Equal(t, test_utils.B64(content), in.Data)
			return &utils.BindingEvent{}, nil
		})
	assert.NoError(t, od.Upload(context.Background(), src, "renders/out.mkv"))
}

func TestObjectStorage_UploadMissingFile(t *testing.T) {
	od, _ := newStorage(t)
	assert.Error(t, od.Upload(context.Background(), "/non-existing/out.mkv", "out.mkv"))
}

func TestObjectStorage_Delete(t *testing.T) {
	od, client := newStorage(t)
	client.EXPECT().InvokeBinding(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, in *utils.InvokeBindingRequest) (*utils.BindingEvent, error) {
			assert.Equal(t, "delete", in.Operation)
			assert.Equal(t, "a.mp4", in.Metadata["key"])
			return nil, fmt.Errorf("denied")
		})
	assert.ErrorContains(t, od.Delete(context.Background(), "a.mp4"), "denied")
}

func TestObjectStorage_CleanUp(t *testing.T) {
	od, client := newStorage(t)
	client.EXPECT().InvokeBinding(gomock.Any(), gomock.Any()).Return(&utils.BindingEvent{Data: test_utils.B64(content)}, nil)
	path, err := od.Resolve(context.Background(), "store://a.mp4")
	require.NoError(t, err)
	od.CleanUp()
	assert.NoFileExists(t, path)
	assert.Empty(t, od.Keys())
}

func TestNewDaprObjectStorage_CleanUp(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock_utils.NewMockBinder(ctrl)
	client.EXPECT().InvokeBinding(gomock.Any(), gomock.Any()).Return(&utils.BindingEvent{Data: test_utils.B64(content)}, nil)
	od, err := NewDaprObjectStorage(client, "object-store", 3)
	require.NoError(t, err)
	assert.DirExists(t, od.assetsPath)
	_, err = od.Resolve(context.Background(), "store://records/a.mp4")
	require.NoError(t, err)
	// The whole download directory goes away with the assets
	od.CleanUp()
	assert.NoDirExists(t, od.assetsPath)
}

// Check that the streaming way to build the B64 signature is identical to the
// non-streaming way
func TestObjectStorage_readFileToB64(t *testing.T) {
	path := test_utils.WriteFile(t, "test.txt", content)
	expected, err := readFileToB64(path)
	require.NoError(t, err)
	assert.Equal(t, test_utils.B64(content), expected)
}
