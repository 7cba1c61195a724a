package media

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
)

// FileField is the multipart form field carrying the upload.
const FileField = "file"

// Upload is a parsed attachment ready to be stored.
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
	closer      io.Closer
}

func (u *Upload) Close() error {
	if u.closer == nil {
		return nil
	}
	return u.closer.Close()
}

// ReadUpload extracts the file field from a multipart request. Bodies above
// MaxUploadBytes fail with ErrTooLarge.
func ReadUpload(w http.ResponseWriter, r *http.Request) (*Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, ErrTooLarge
		}
		return nil, fmt.Errorf("parse multipart form: %w", err)
	}
	file, header, err := r.FormFile(FileField)
	if err != nil {
		return nil, fmt.Errorf("read %s field: %w", FileField, err)
	}
	if header.Size > MaxUploadBytes {
		file.Close()
		return nil, ErrTooLarge
	}
	if header.Size == 0 {
		file.Close()
		return nil, ErrEmptyFile
	}
	contentType, body, err := sniffContentType(file, header)
	if err != nil {
		file.Close()
		return nil, err
	}
	return &Upload{
		FileName:    CleanFileName(header.Filename),
		ContentType: contentType,
		Size:        header.Size,
		Body:        body,
		closer:      file,
	}, nil
}

// sniffContentType prefers the part's declared type, then the extension,
// then the leading bytes.
func sniffContentType(file multipart.File, header *multipart.FileHeader) (string, io.Reader, error) {
	if declared := header.Header.Get("Content-Type"); declared != "" && declared != "application/octet-stream" {
		if mediaType, _, err := mime.ParseMediaType(declared); err == nil {
			return mediaType, file, nil
		}
	}
	if byExt := mime.TypeByExtension(path.Ext(header.Filename)); byExt != "" {
		return byExt, file, nil
	}
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	return http.DetectContentType(head), io.MultiReader(bytes.NewReader(head), file), nil
}
