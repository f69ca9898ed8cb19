// Package storage keeps uploaded media on the local filesystem.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/draw"

	"sociapi/domain"
	"sociapi/errs"
	"sociapi/logging"
)

// DefaultMaxUploadSize is the size limit of a single file.
const DefaultMaxUploadSize int64 = 30 << 20

const (
	avatarSize       = 300
	avatarQuality    = 90
	postImageWidth   = 1080
	postImageQuality = 85
	// URLPrefix is the path the uploads directory is served under.
	URLPrefix = "/uploads/"
)

var _ domain.MediaStore = &MediaService{}

// MediaService validates uploads, resizes images and writes them below a directory.
type MediaService struct {
	mediaValidator
}

type mediaValidator struct {
	mediaFS
	maxSize int64
}

type mediaFS struct {
	dir string
}

// NewMediaService stores files below dir. maxSize <= 0 means DefaultMaxUploadSize.
func NewMediaService(dir string, maxSize int64) *MediaService {
	if maxSize <= 0 {
		maxSize = DefaultMaxUploadSize
	}
	return &MediaService{
		mediaValidator{
			mediaFS: mediaFS{dir: dir},
			maxSize: maxSize,
		},
	}
}

// mediaFile is an upload under validation.
type mediaFile struct {
	*domain.Upload
	Extension   string
	ContentType string
	Kind        string
}

// SavePostMedia validates every upload before writing any of them.
func (mv *mediaValidator) SavePostMedia(ctx context.Context, postID string, uploads []*domain.Upload) ([]domain.Media, error) {
	files := make([]*mediaFile, len(uploads))
	for i, up := range uploads {
		f := &mediaFile{Upload: up}
		err := runMediaValFns(f,
			mv.uploadPresent,
			mv.extensionValid,
			mv.contentTypeValid,
			mv.contentTypeExtensionMatch,
			mv.belowMaxSize,
		)
		if err != nil {
			return nil, err
		}
		files[i] = f
	}
	return mv.mediaFS.savePostMedia(ctx, postID, files)
}

// SaveAvatar stores a square JPEG version of the upload.
func (mv *mediaValidator) SaveAvatar(ctx context.Context, userID string, upload *domain.Upload) (string, error) {
	f := &mediaFile{Upload: upload}
	err := runMediaValFns(f,
		mv.uploadPresent,
		mv.extensionValid,
		mv.contentTypeValid,
		mv.contentTypeExtensionMatch,
		mv.belowMaxSize,
		mv.isImage,
	)
	if err != nil {
		return "", err
	}
	return mv.mediaFS.saveAvatar(ctx, userID, f)
}

type mediaValFn func(f *mediaFile) error

func runMediaValFns(f *mediaFile, fns ...mediaValFn) error {
	for _, fn := range fns {
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func (mv *mediaValidator) uploadPresent(f *mediaFile) error {
	if f.Upload == nil || f.File == nil {
		return errs.Errorf(errs.EINVALID, "Upload missing.")
	}
	return nil
}

func (mv *mediaValidator) extensionValid(f *mediaFile) error {
	ext := strings.ToLower(filepath.Ext(f.Filename))
	switch ext {
	case ".jpg", ".jpeg":
		f.Extension = ".jpeg"
	case ".png", ".mp4":
		f.Extension = ext
	default:
		return errs.Errorf(errs.EINVALID,
			"File %s has an invalid extension, must be .jpeg, .png or .mp4.", f.Filename)
	}
	return nil
}

func (mv *mediaValidator) contentTypeValid(f *mediaFile) error {
	buffer := make([]byte, 512)
	n, err := f.File.Read(buffer)
	if err != nil && err != io.EOF {
		return err
	}
	if err := rewind(f); err != nil {
		return err
	}
	f.ContentType = http.DetectContentType(buffer[:n])
	switch f.ContentType {
	case "image/jpeg", "image/png":
		f.Kind = domain.MediaImage
	case "video/mp4":
		f.Kind = domain.MediaVideo
	default:
		return errs.Errorf(errs.EINVALID,
			"File %s has an invalid content type, must be image/jpeg, image/png or video/mp4.", f.Filename)
	}
	return nil
}

func (mv *mediaValidator) contentTypeExtensionMatch(f *mediaFile) error {
	sub := f.ContentType[strings.Index(f.ContentType, "/")+1:]
	if "."+sub != f.Extension {
		return errs.Errorf(errs.EINVALID,
			"File %s content type %s does not match extension %s.", f.Filename, f.ContentType, f.Extension)
	}
	return nil
}

func (mv *mediaValidator) belowMaxSize(f *mediaFile) error {
	size, err := f.File.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	if err := rewind(f); err != nil {
		return err
	}
	if size > mv.maxSize {
		return errs.Errorf(errs.EINVALID,
			"File %s exceeds the upload size limit of %dMB.", f.Filename, mv.maxSize>>20)
	}
	return nil
}

func (mv *mediaValidator) isImage(f *mediaFile) error {
	if f.Kind != domain.MediaImage {
		return errs.Errorf(errs.EINVALID, "An avatar must be a jpeg or png image.")
	}
	return nil
}

// rewind resets the reader to the start of the file so that later reads see all of it.
func rewind(f *mediaFile) error {
	_, err := f.File.Seek(0, io.SeekStart)
	return err
}

func (fs *mediaFS) savePostMedia(ctx context.Context, postID string, files []*mediaFile) ([]domain.Media, error) {
	rel := path.Join("posts", postID)
	if err := fs.mkdir(rel); err != nil {
		return nil, err
	}
	media := make([]domain.Media, 0, len(files))
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			fs.removeAll(rel)
			return nil, err
		}
		name := uniqueName(i, f)
		var err error
		if f.Kind == domain.MediaImage {
			err = fs.writeImage(path.Join(rel, name), f, fitWidth(postImageWidth), postImageQuality)
		} else {
			err = fs.copy(path.Join(rel, name), f)
		}
		if err != nil {
			fs.removeAll(rel)
			return nil, err
		}
		media = append(media, domain.Media{URL: URLPrefix + path.Join(rel, name), Type: f.Kind})
	}
	return media, nil
}

func (fs *mediaFS) saveAvatar(ctx context.Context, userID string, f *mediaFile) (string, error) {
	rel := path.Join("avatars", userID)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	// One avatar per user.
	fs.removeAll(rel)
	if err := fs.mkdir(rel); err != nil {
		return "", err
	}
	f.Extension = ".jpeg"
	name := uniqueName(0, f)
	if err := fs.writeImage(path.Join(rel, name), f, squareCrop(avatarSize), avatarQuality); err != nil {
		return "", err
	}
	logging.Ctx(ctx).Debug().Str("user_id", userID).Str("file", name).Msg("avatar stored")
	return URLPrefix + path.Join(rel, name), nil
}

// DeletePostMedia removes every file of a post.
func (fs *mediaFS) DeletePostMedia(ctx context.Context, postID string) error {
	return fs.removeAll(path.Join("posts", postID))
}

func (fs *mediaFS) writeImage(rel string, f *mediaFile, transform func(image.Image) image.Image, quality int) error {
	src, _, err := image.Decode(f.File)
	if err != nil {
		return errs.Errorf(errs.EINVALID, "File %s is not a readable image.", f.Filename)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, transform(src), &jpeg.Options{Quality: quality}); err != nil {
		return err
	}
	return os.WriteFile(fs.abs(rel), buf.Bytes(), 0644)
}

func (fs *mediaFS) copy(rel string, f *mediaFile) error {
	dst, err := os.Create(fs.abs(rel))
	if err != nil {
		return err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, f.File); err != nil {
		return err
	}
	return dst.Close()
}

func (fs *mediaFS) mkdir(rel string) error {
	return os.MkdirAll(fs.abs(rel), 0755)
}

func (fs *mediaFS) removeAll(rel string) error {
	return os.RemoveAll(fs.abs(rel))
}

func (fs *mediaFS) abs(rel string) string {
	return filepath.Join(fs.dir, filepath.FromSlash(rel))
}

// uniqueName names a stored file. Resized images are always JPEG.
func uniqueName(i int, f *mediaFile) string {
	ext := f.Extension
	if f.Kind == domain.MediaImage {
		ext = ".jpeg"
	}
	return fmt.Sprintf("%d_%d%s", time.Now().UnixMicro(), i, ext)
}

// fitWidth scales images wider than width down to it. Narrower images are
// only re-encoded.
func fitWidth(width int) func(image.Image) image.Image {
	return func(src image.Image) image.Image {
		b := src.Bounds()
		if b.Dx() <= width {
			return src
		}
		height := b.Dy() * width / b.Dx()
		if height < 1 {
			height = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
		return dst
	}
}

// squareCrop cuts the centered square out of an image and scales it to size.
func squareCrop(size int) func(image.Image) image.Image {
	return func(src image.Image) image.Image {
		b := src.Bounds()
		side := b.Dx()
		if b.Dy() < side {
			side = b.Dy()
		}
		x0 := b.Min.X + (b.Dx()-side)/2
		y0 := b.Min.Y + (b.Dy()-side)/2
		dst := image.NewRGBA(image.Rect(0, 0, size, size))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, image.Rect(x0, y0, x0+side, y0+side), draw.Src, nil)
		return dst
	}
}
