package edit_box

import (
	"context"
	mock_utils "edit-box/internal/mock/sidecar"
	"edit-box/internal/utils"
	console_parser "edit-box/pkg/encoder/console-parser"
	object_storage "edit-box/pkg/object-storage"
	"edit-box/pkg/timeline"
	test_utils "edit-box/test-utils"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Print two progress lines, then write something into the output file (last argument)
const ffmpegScript = `
printf 'frame=   25 fps=0.0 q=28.0 size=       0kB time=00:00:05.00 bitrate=   0.4kbits/s speed=   2x\r' >&2
printf 'frame=   50 fps=0.0 q=28.0 size=      10kB time=00:00:10.00 bitrate=   0.4kbits/s speed=   2x\r' >&2
for last; do :; done
echo rendered > "$last"
`

var library = timeline.StaticProber{
	"a.mp4": {Streams: timeline.Streams{Video: 1, Audio: 1}, Duration: timeline.Seconds(10)},
	"b.mp4": {Streams: timeline.Streams{Video: 1, Audio: 1}, Duration: timeline.Seconds(10)},
}

func description(t *testing.T, yaml string) timeline.Value {
	v, err := timeline.ParseYAML([]byte(yaml))
	require.NoError(t, err)
	return v
}

// newStorage An object storage backed by a mocked binding, downloading into a temp dir
func newStorage(t *testing.T) (*object_storage.ObjectStorage, *mock_utils.MockBinder, string) {
	ctrl := gomock.NewController(t)
	client := mock_utils.NewMockBinder(ctrl)
	dir := t.TempDir()
	return object_storage.NewObjectStorage(dir, client), client, dir
}

// operation Match binding requests of a single operation
func operation(op string, key string) gomock.Matcher {
	return gomock.Eq(&utils.InvokeBindingRequest{Operation: op, Metadata: map[string]string{"key": key}})
}

// run Start the edit box and collect everything it emits
func run(t *testing.T, eb *EditBox, req *EditRequest) ([]*console_parser.EncodingProgress, []error) {
	var progress []*console_parser.EncodingProgress
	var errs []error
	go eb.Edit(req)
	timeout := time.After(10 * time.Second)
	for {
		select {
		case p := <-eb.PChan:
			progress = append(progress, p)
		case e := <-eb.EChan:
			errs = append(errs, e)
		case <-eb.Ctx.Done():
			return progress, errs
		case <-timeout:
			t.Fatal("edit box did not stop")
		}
	}
}

func TestEditBox_Plan(t *testing.T) {
	eb := NewEditBox(context.Background(), nil, library)
	b, err := eb.Plan(&EditRequest{
		Timeline: description(t, `[a.mp4, b.mp4]`),
		Flags:    []string{"-n"},
		Output:   []string{"-c:v", "libx264", "final.mp4"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"-n", "-i", "a.mp4", "-i", "b.mp4",
		"-filter_complex", "[0:v:0][0:a:0][1:v:0][1:a:0]concat=n=2:v=1:a=1[f0][f1]",
		"-map", "[f0]", "-map", "[f1]",
		"-c:v", "libx264", "final.mp4",
	}, b.Args())
}

func TestEditBox_PlanDefaults(t *testing.T) {
	eb := NewEditBox(context.Background(), nil, library)
	b, err := eb.Plan(&EditRequest{Timeline: description(t, `a.mp4`)})
	require.NoError(t, err)
	assert.Equal(t, []string{"-y", "-loglevel", "warning", "-stats", "-i", "a.mp4", "-map", "0:v:0", "-map", "0:a:0", "out.mkv"}, b.Args())
}

func TestEditBox_PlanPreset(t *testing.T) {
	eb := NewEditBox(context.Background(), nil, timeline.StaticProber{
		"v.mp4":  {Streams: timeline.Streams{Video: 1, Audio: 1}, Duration: timeline.Seconds(10)},
		"a1.m4a": {Streams: timeline.Streams{Audio: 1}, Duration: timeline.Seconds(8)},
	})
	b, err := eb.Plan(&EditRequest{Preset: "voiceover", Files: []string{"v.mp4", "a1.m4a"}})
	require.NoError(t, err)
	assert.Contains(t, b.Args(), "-filter_complex")

	_, err = eb.Plan(&EditRequest{Preset: "karaoke", Files: []string{"v.mp4"}})
	assert.ErrorContains(t, err, `unknown preset "karaoke"`)
}

func TestEditBox_PlanErrors(t *testing.T) {
	eb := NewEditBox(context.Background(), nil, library)
	_, err := eb.Plan(&EditRequest{Timeline: description(t, `{clip: a.mp4, blur: 3}`)})
	assert.ErrorIs(t, err, timeline.ErrUnknownFilter)

	_, err = eb.Plan(&EditRequest{Timeline: description(t, `[a.mp4, missing.mp4]`)})
	assert.ErrorIs(t, err, timeline.ErrProbeFailed)
}

func TestEditBox_PlanRemoteClip(t *testing.T) {
	storage, client, dir := newStorage(t)
	client.EXPECT().InvokeBinding(gomock.Any(), operation("get", "intro.mp4")).
		Return(&utils.BindingEvent{Data: test_utils.B64([]byte("intro"))}, nil)
	local := filepath.Join(dir, "intro.mp4")
	eb := NewEditBox(context.Background(), storage, timeline.StaticProber{
		local:   {Streams: timeline.Streams{Video: 1, Audio: 1}, Duration: timeline.Seconds(3)},
		"a.mp4": library["a.mp4"],
	})
	b, err := eb.Plan(&EditRequest{Timeline: description(t, `[store://intro.mp4, a.mp4, store://intro.mp4]`)})
	require.NoError(t, err)
	args := b.Args()
	assert.Equal(t, []string{"-i", local, "-i", "a.mp4", "-i", local}, args[4:10])
	assert.Equal(t, []string{"intro.mp4"}, storage.Keys())
}

func TestEditBox_Edit(t *testing.T) {
	t.Setenv("FFMPEG_PATH", test_utils.FakeBinary(t, ffmpegScript))
	storage, client, _ := newStorage(t)
	output := filepath.Join(t.TempDir(), "out.mkv")
	client.EXPECT().InvokeBinding(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, in *utils.InvokeBindingRequest) (*utils.BindingEvent, error) {
			assert.Equal(t, "create", in.Operation)
			assert.Equal(t, "renders/1.mkv", in.Metadata["key"])
			assert.Equal(t, test_utils.B64([]byte("rendered\n")), in.Data)
			return &utils.BindingEvent{}, nil
		})
	eb := NewEditBox(context.Background(), storage, library)
	progress, errs := run(t, eb, &EditRequest{
		JobId:     "1",
		Timeline:  description(t, `[a.mp4, b.mp4]`),
		Output:    []string{output},
		UploadKey: "renders/1.mkv",
	})
	assert.Empty(t, errs)
	if assert.Len(t, progress, 2) {
		assert.Equal(t, 25.0, progress[0].Percent)
		assert.Equal(t, 50.0, progress[1].Percent)
		assert.Equal(t, 20*time.Second, progress[1].TargetDuration)
	}
	assert.FileExists(t, output)
}

func TestEditBox_EditDeleteAssets(t *testing.T) {
	t.Setenv("FFMPEG_PATH", test_utils.FakeBinary(t, ffmpegScript))
	storage, client, dir := newStorage(t)
	local := filepath.Join(dir, "intro.mp4")
	gomock.InOrder(
		client.EXPECT().InvokeBinding(gomock.Any(), operation("get", "intro.mp4")).
			Return(&utils.BindingEvent{Data: test_utils.B64([]byte("intro"))}, nil),
		client.EXPECT().InvokeBinding(gomock.Any(), operation("delete", "intro.mp4")).Return(nil, nil),
	)
	eb := NewEditBox(context.Background(), storage, timeline.StaticProber{
		local: {Streams: timeline.Streams{Video: 1, Audio: 1}, Duration: timeline.Seconds(3)},
	})
	_, errs := run(t, eb, &EditRequest{
		JobId:    "1",
		Timeline: description(t, `{clip: store://intro.mp4, fadein: 1}`),
		Output:   []string{filepath.Join(t.TempDir(), "out.mkv")},
		Options:  EditOptions{DeleteAssetsFromObjStore: true},
	})
	assert.Empty(t, errs)
	// Downloaded clips never outlive the editing
	assert.NoFileExists(t, local)
}

func TestEditBox_EditCompileError(t *testing.T) {
	eb := NewEditBox(context.Background(), nil, library)
	_, errs := run(t, eb, &EditRequest{JobId: "1", Timeline: description(t, `{clip: a.mp4, speed: fast}`)})
	if assert.Len(t, errs, 1) {
		assert.ErrorIs(t, errs[0], timeline.ErrMalformedDescription)
	}
}

func TestEditBox_EditEncodingError(t *testing.T) {
	t.Setenv("FFMPEG_PATH", test_utils.FakeBinary(t, "echo 'Invalid argument' >&2\nexit 1\n"))
	// No upload expected
	storage, _, _ := newStorage(t)
	eb := NewEditBox(context.Background(), storage, library)
	_, errs := run(t, eb, &EditRequest{JobId: "1", Timeline: description(t, `a.mp4`), UploadKey: "out.mkv"})
	if assert.Len(t, errs, 1) {
		assert.ErrorContains(t, errs[0], "Invalid argument")
	}
}

func TestEditBox_EditUploadWithoutStorage(t *testing.T) {
	t.Setenv("FFMPEG_PATH", test_utils.FakeBinary(t, ffmpegScript))
	output := filepath.Join(t.TempDir(), "out.mkv")
	eb := NewEditBox(context.Background(), nil, library)
	_, errs := run(t, eb, &EditRequest{JobId: "1", Timeline: description(t, `a.mp4`), Output: []string{output}, UploadKey: "out.mkv"})
	if assert.Len(t, errs, 1) {
		assert.ErrorContains(t, errs[0], "no object storage defined")
	}
	_, err := os.Stat(output)
	assert.NoError(t, err)
}
