package http

import (
	"errors"
	"mime/multipart"
	"net/http"

	"sociapi/domain"
	"sociapi/errs"
)

// multipartMemory is how much of a multipart form is held in memory; the
// rest spills to temporary files.
const multipartMemory = 32 << 20

// parseUploads reads up to limit files from the multipart field of the
// request. The returned cleanup closes them and removes temporary files.
func (s *Server) parseUploads(w http.ResponseWriter, r *http.Request, field string, limit int) ([]*domain.Upload, func(), error) {
	// Parse the data to be uploaded.
	r.Body = http.MaxBytesReader(w, r.Body, int64(limit)*s.cfg.MaxUploadBytes+maxJSONBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, errs.Errorf(errs.EINVALID, "Upload too large.")
		}
		return nil, nil, errs.Errorf(errs.EINVALID, "Invalid multipart form.")
	}

	// Check the file count.
	headers := r.MultipartForm.File[field]
	if len(headers) > limit {
		r.MultipartForm.RemoveAll()
		return nil, nil, errs.Errorf(errs.EINVALID, "Too many files, not more than %d allowed.", limit)
	}

	// Open the files.
	var opened []multipart.File
	cleanup := func() {
		for _, f := range opened {
			f.Close()
		}
		r.MultipartForm.RemoveAll()
	}
	uploads := make([]*domain.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		opened = append(opened, f)
		uploads = append(uploads, &domain.Upload{Filename: fh.Filename, File: f})
	}
	return uploads, cleanup, nil
}
