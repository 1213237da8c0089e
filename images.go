package blogadmin

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/eringen/blogadmin/posts"
)

const maxUploadSize = 10 << 20 // 10MB

var (
	errImageTooLarge = errors.New("file too large (max 10MB)")
	errNotAnImage    = errors.New("not a supported image")
	errImageName     = errors.New("file name is missing")
)

var imageContentTypes = map[string]string{
	"gif":  "image/gif",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"webp": "image/webp",
}

// readImage loads an uploaded file and checks that it decodes as an image.
// The asset keeps the uploaded file name so the stored key is
// images/<file name>; its content type comes from the decoded format.
func readImage(fh *multipart.FileHeader) (posts.Asset, error) {
	name := imageName(fh.Filename)
	if name == "" {
		return posts.Asset{}, errImageName
	}
	if fh.Size > maxUploadSize {
		return posts.Asset{}, errImageTooLarge
	}

	src, err := fh.Open()
	if err != nil {
		return posts.Asset{}, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	body, err := io.ReadAll(io.LimitReader(src, maxUploadSize+1))
	if err != nil {
		return posts.Asset{}, fmt.Errorf("read upload: %w", err)
	}
	if len(body) > maxUploadSize {
		return posts.Asset{}, errImageTooLarge
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(body))
	if err != nil {
		return posts.Asset{}, fmt.Errorf("%w: %v", errNotAnImage, err)
	}
	contentType, ok := imageContentTypes[format]
	if !ok {
		contentType = http.DetectContentType(body)
	}

	return posts.Asset{Name: name, Body: body, ContentType: contentType}, nil
}

// imageName strips any directory part a browser may send.
func imageName(filename string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), `\`, "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}
