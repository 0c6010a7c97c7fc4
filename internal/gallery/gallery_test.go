package gallery

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jakartahash/hashcap/internal/silly"
	"github.com/jakartahash/hashcap/internal/vision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeClient struct {
	model   string
	replies func(req vision.Request) (string, error)
	calls   []vision.Request
}

func (f *fakeClient) Complete(_ context.Context, req vision.Request) (string, error) {
	f.calls = append(f.calls, req)
	return f.replies(req)
}

func (f *fakeClient) Model() string { return f.model }

func reply(s string) *fakeClient {
	return &fakeClient{model: "fake", replies: func(vision.Request) (string, error) { return s, nil }}
}

func writeImage(t *testing.T, dir, name string) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0644))
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.webp", "a.JPG", "c.png", "notes.txt", ".hidden.png", "d.jpeg"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0755))

	names, err := ListImages(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.JPG", "b.webp", "c.png", "d.jpeg"}, names)

	_, err = ListImages(filepath.Join(dir, "missing"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFolderWebPath(t *testing.T) {
	assert.Equal(t, "/assets/img/gallery/x.webp", Folder{Name: "gallery"}.WebPath("x.webp"))
	assert.Equal(t, "/photos/x.webp", Folder{Name: "gallery", WebPrefix: "/photos/"}.WebPath("x.webp"))
}

func TestDefaultFolders(t *testing.T) {
	folders := DefaultFolders("site")
	require.Len(t, folders, 2)
	assert.Equal(t, "headline", folders[0].Name)
	assert.Equal(t, filepath.Join("site", "assets", "img", "headline"), folders[0].Dir)
	assert.Equal(t, filepath.Join("site", "_data", "gallery_captions.yml"), folders[1].Output)
}

func TestWriteAndReadCaptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "_data", "gallery_captions.yml")
	long := strings.Repeat("very long caption: with a colon ", 10)
	in := Captions{
		"/assets/img/gallery/b.webp": "Breaking: chaos. Down-down pending.",
		"/assets/img/gallery/a.webp": long,
	}
	require.NoError(t, WriteCaptions(path, "gallery", "hashcap test", in))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "# Auto-generated silly captions for gallery images\n# Generated by hashcap test\n\n"), text)
	assert.Less(t, strings.Index(text, "a.webp"), strings.Index(text, "b.webp"))

	out, err := ReadCaptions(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestReadCaptionsMissingFile(t *testing.T) {
	out, err := ReadCaptions(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestWriteEmptyCaptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yml")
	require.NoError(t, WriteCaptions(path, "headline", "x", Captions{}))
	out, err := ReadCaptions(path)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Classic ")
	require.NoError(t, err)
	assert.Equal(t, ModeClassic, m)

	_, err = ParseMode("blip")
	assert.Error(t, err)
}

func TestCaptionerClassic(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "a.png")
	client := reply("  a person   holding a beer \n")

	c := &Captioner{Mode: ModeClassic, Vision: client, Silly: silly.New(1), MaxSide: 64}
	res, err := c.Caption(context.Background(), filepath.Join(dir, "a.png"))
	require.NoError(t, err)

	assert.Equal(t, "a person holding a beer", res.Raw)
	assert.Contains(t, res.Caption, "athlete")
	assert.Contains(t, res.Caption, "clutching")
	require.Len(t, client.calls, 1)
	assert.NotEmpty(t, client.calls[0].Image)
}

func TestCaptionerClassicEmptyReply(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "a.png")

	c := &Captioner{Mode: ModeClassic, Vision: reply("   "), Silly: silly.New(1)}
	_, err := c.Caption(context.Background(), filepath.Join(dir, "a.png"))
	assert.ErrorContains(t, err, "empty description")
}

func TestCaptionerWorse(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "a.png")
	path := filepath.Join(dir, "a.png")
	draft := "Hashers admire a puddle they definitely did not fall into earlier today, honest"

	tests := []struct {
		name    string
		rewrite func(vision.Request) (string, error)
		want    string
	}{
		{
			name:    "rewrite clamped",
			rewrite: func(vision.Request) (string, error) { return `"one two three four five six seven eight nine ten eleven twelve thirteen"`, nil },
			want:    "one two three four five six seven eight nine ten eleven twelve",
		},
		{
			name:    "rewrite failed",
			rewrite: func(vision.Request) (string, error) { return "", errors.New("boom") },
			want:    "Hashers admire a puddle they definitely did not fall into earlier today,",
		},
		{
			name:    "rewrite too short",
			rewrite: func(vision.Request) (string, error) { return `"x"`, nil },
			want:    "Hashers admire a puddle they definitely did not fall into earlier today,",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rewriter := &fakeClient{model: "text", replies: tt.rewrite}
			c := &Captioner{
				Mode:     ModeWorse,
				Vision:   reply(draft),
				Rewriter: rewriter,
				Silly:    silly.New(5),
				Logger:   zaptest.NewLogger(t),
			}
			res, err := c.Caption(context.Background(), path)
			require.NoError(t, err)
			assert.Equal(t, draft, res.Raw)
			assert.Equal(t, tt.want, res.Caption)

			require.Len(t, rewriter.calls, 1)
			assert.Nil(t, rewriter.calls[0].Image)
			assert.Contains(t, rewriter.calls[0].Prompt, "Draft: "+draft)
			assert.Contains(t, rewriter.calls[0].Prompt, "Max 12 words.")
		})
	}
}

func newRunner(t *testing.T, c *Captioner) *Runner {
	t.Helper()
	return &Runner{Captioner: c, Logger: zaptest.NewLogger(t), Generator: "hashcap test"}
}

func TestProcessFolderPlaceholderForBrokenImage(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "gallery")
	require.NoError(t, os.Mkdir(dir, 0755))
	writeImage(t, dir, "a.png")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.jpg"), []byte("broken"), 0644))
	writeImage(t, dir, "c.png")

	folder := Folder{Name: "gallery", Dir: dir, Output: filepath.Join(root, "_data", "gallery_captions.yml")}
	r := newRunner(t, &Captioner{Mode: ModeClassic, Vision: reply("a dog on the grass"), Silly: silly.New(2)})

	captions, err := r.ProcessFolder(context.Background(), folder)
	require.NoError(t, err)
	require.Len(t, captions, 3)
	assert.Equal(t, ModeClassic.Placeholder(), captions["/assets/img/gallery/b.jpg"])
	assert.Contains(t, captions["/assets/img/gallery/a.png"], "carpet")

	stored, err := ReadCaptions(folder.Output)
	require.NoError(t, err)
	assert.Equal(t, captions, stored)
}

func TestProcessFolderModelFailure(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "a.png")
	failing := &fakeClient{model: "fake", replies: func(vision.Request) (string, error) { return "", errors.New("server gone") }}

	r := newRunner(t, &Captioner{Mode: ModeWorse, Vision: failing, Silly: silly.New(2)})
	r.DryRun = true
	captions, err := r.ProcessFolder(context.Background(), Folder{Name: "headline", Dir: dir, Output: filepath.Join(dir, "out.yml")})
	require.NoError(t, err)
	assert.Equal(t, Captions{"/assets/img/headline/a.png": ModeWorse.Placeholder()}, captions)
	assert.NoFileExists(t, filepath.Join(dir, "out.yml"))
}

func TestProcessFolderKeepsExistingCaptions(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "img")
	require.NoError(t, os.Mkdir(dir, 0755))
	writeImage(t, dir, "a.png")
	writeImage(t, dir, "b.png")

	folder := Folder{Name: "gallery", Dir: dir, Output: filepath.Join(root, "captions.yml")}
	require.NoError(t, WriteCaptions(folder.Output, "gallery", "old", Captions{
		"/assets/img/gallery/a.png":    "Kept.",
		"/assets/img/gallery/gone.png": "Stale.",
	}))

	client := reply("a cup")
	r := newRunner(t, &Captioner{Mode: ModeClassic, Vision: client, Silly: silly.New(3)})

	captions, err := r.ProcessFolder(context.Background(), folder)
	require.NoError(t, err)
	assert.Len(t, client.calls, 1)
	assert.Equal(t, "Kept.", captions["/assets/img/gallery/a.png"])
	assert.Contains(t, captions["/assets/img/gallery/b.png"], "hydration")
	assert.NotContains(t, captions, "/assets/img/gallery/gone.png")

	r.Force = true
	captions, err = r.ProcessFolder(context.Background(), folder)
	require.NoError(t, err)
	assert.Len(t, client.calls, 3)
	assert.NotEqual(t, "Kept.", captions["/assets/img/gallery/a.png"])
}

func TestProcessFolderCancelled(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "a.png")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newRunner(t, &Captioner{Mode: ModeClassic, Vision: reply("a"), Silly: silly.New(1)})
	_, err := r.ProcessFolder(ctx, Folder{Name: "g", Dir: dir, Output: filepath.Join(dir, "out.yml")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(dir, "out.yml"))
}

func TestRun(t *testing.T) {
	root := t.TempDir()
	folders := DefaultFolders(root)
	r := newRunner(t, &Captioner{Mode: ModeClassic, Vision: reply("a group of people"), Silly: silly.New(9)})

	_, err := r.Run(context.Background(), folders)
	assert.ErrorIs(t, err, ErrNoImageDirs)

	require.NoError(t, os.MkdirAll(folders[1].Dir, 0755))
	writeImage(t, folders[1].Dir, "2019-08-19-001.png")
	writeImage(t, folders[1].Dir, "2019-08-19-002.png")

	summary, err := r.Run(context.Background(), folders)
	require.NoError(t, err)
	assert.Equal(t, Summary{"headline": 0, "gallery": 2}, summary)
	assert.NoFileExists(t, folders[0].Output)
	assert.FileExists(t, folders[1].Output)
}

func TestProcessFolderRetriesPlaceholders(t *testing.T) {
	for _, mode := range []Mode{ModeClassic, ModeWorse} {
		t.Run(string(mode), func(t *testing.T) {
			root := t.TempDir()
			dir := filepath.Join(root, "img")
			require.NoError(t, os.Mkdir(dir, 0755))
			writeImage(t, dir, "a.png")
			folder := Folder{Name: "gallery", Dir: dir, Output: filepath.Join(root, "captions.yml")}

			failing := &fakeClient{model: "fake", replies: func(vision.Request) (string, error) { return "", errors.New("server gone") }}
			r := newRunner(t, &Captioner{Mode: mode, Vision: failing, Silly: silly.New(4)})
			captions, err := r.ProcessFolder(context.Background(), folder)
			require.NoError(t, err)
			require.Equal(t, mode.Placeholder(), captions["/assets/img/gallery/a.png"])

			working := reply("a cup")
			r.Captioner.Vision = working
			captions, err = r.ProcessFolder(context.Background(), folder)
			require.NoError(t, err)
			assert.NotEmpty(t, working.calls)
			assert.False(t, IsPlaceholder(captions["/assets/img/gallery/a.png"]))

			stored, err := ReadCaptions(folder.Output)
			require.NoError(t, err)
			assert.Equal(t, captions, stored)
		})
	}
}

func TestIsPlaceholder(t *testing.T) {
	assert.True(t, IsPlaceholder(ModeClassic.Placeholder()))
	assert.True(t, IsPlaceholder(ModeWorse.Placeholder()))
	assert.False(t, IsPlaceholder("Behold: a cup. Down-down pending."))
}
