package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

const (
	MaxFileSize  = 20 << 20
	maxFieldSize = 1 << 20
	fileField    = "file"
)

var ErrFileTooLarge = errors.New("file exceeds maximum size")

// staged is an uploaded file written to a temporary location and not yet
// handed to a FileStore.
type staged struct {
	path         string
	originalName string
	size         int64
}

func (s *staged) remove() {
	if s != nil {
		_ = os.Remove(s.path)
	}
}

// parseMultipart streams the body part by part. Text parts become fields
// (first value wins); the "file" part is staged in tmpDir; other file parts
// are drained. Any part larger than maxFile fails the whole parse.
func parseMultipart(r *http.Request, tmpDir string, maxFile int64) (map[string]string, *staged, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, nil, err
	}
	fields := map[string]string{}
	var file *staged
	fail := func(err error) (map[string]string, *staged, error) {
		file.remove()
		return nil, nil, err
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fail(err)
		}
		name := part.FormName()
		isFile := part.FileName() != "" || name == fileField

		switch {
		case name == "":
		case !isFile:
			data, err := io.ReadAll(io.LimitReader(part, maxFieldSize+1))
			if err != nil {
				return fail(err)
			}
			if len(data) > maxFieldSize {
				return fail(fmt.Errorf("field %q too large", name))
			}
			if _, seen := fields[name]; !seen {
				fields[name] = string(data)
			}
		case name == fileField && file == nil && part.FileName() != "":
			file, err = stage(part, tmpDir, maxFile)
			if err != nil {
				return fail(err)
			}
		default:
			n, err := io.Copy(io.Discard, io.LimitReader(part, maxFile+1))
			if err != nil {
				return fail(err)
			}
			if n > maxFile {
				return fail(ErrFileTooLarge)
			}
		}
		_ = part.Close()
	}
	return fields, file, nil
}

func stage(part *multipart.Part, tmpDir string, maxFile int64) (_ *staged, err error) {
	tmp, err := os.CreateTemp(tmpDir, "upload-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tmp.Close()
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	n, err := io.Copy(tmp, io.LimitReader(part, maxFile+1))
	if err != nil {
		return nil, err
	}
	if n > maxFile {
		return nil, ErrFileTooLarge
	}
	return &staged{path: tmp.Name(), originalName: filepath.Base(part.FileName()), size: n}, nil
}
