package handler

import (
	"errors"
	"net/http"
	"strings"

	"petshop/internal/service"
)

func UploadImageHandler(uploader Uploader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, service.MaxUploadSize+1<<20)
		if err := r.ParseMultipartForm(service.MaxUploadSize); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
				writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds 5 MiB")
				return
			}
			writeError(w, http.StatusBadRequest, "INVALID_FORM", "expected multipart form")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "file is required")
			return
		}
		defer file.Close()

		if header.Size > service.MaxUploadSize {
			writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds 5 MiB")
			return
		}

		url, err := uploader.UploadImage(r.Context(), header.Filename, header.Header.Get("Content-Type"), file, header.Size)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"url": url})
	}
}
