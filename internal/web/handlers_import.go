package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/bridgetrack/bridgetrack/internal/core"
	"github.com/bridgetrack/bridgetrack/internal/sheet"
)

// multipartMemory is how much of an upload is held in memory before
// spilling to a temp file.
const multipartMemory = 8 << 20

// handleImport merges an uploaded CSV or XLSX file into the store.
//
// Form fields:
//   - file: the spreadsheet (required)
//   - clear_existing: delete every bridge first
//   - dry_run: count what would change without writing
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isBodyTooLarge(err) {
			respondError(w, r, fmt.Errorf("%w: limit is %d bytes", errFileTooLarge, maxSize), 0)
			return
		}
		respondError(w, r, fmt.Errorf("%w: %w", errNoFile, err), 0)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, errNoFile, 0)
		return
	}
	defer file.Close()

	src, err := sheet.Open(header.Filename, file)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}
	defer src.Close()

	opts := core.ImportOptions{
		ClearExisting: formBool(r, "clear_existing"),
		DryRun:        formBool(r, "dry_run"),
		Source:        header.Filename,
	}

	// A client that disconnects mid-upload does not cut the merge short;
	// core.ImportTimeout still bounds it.
	ctx := context.WithoutCancel(r.Context())
	res, err := s.service.Import(ctx, src.Rows(), opts)
	if err != nil {
		if errors.Is(err, core.ErrTooManyImports) {
			w.Header().Set("Retry-After", "30")
			respondError(w, r, err, 0)
			return
		}
		// The partial counters are still useful to the client.
		writeJSON(w, http.StatusInternalServerError, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// formBool accepts the usual checkbox and query spellings of true.
func formBool(r *http.Request, name string) bool {
	v := strings.TrimSpace(r.FormValue(name))
	if strings.EqualFold(v, "on") || strings.EqualFold(v, "yes") {
		return true
	}
	b, _ := strconv.ParseBool(v)
	return b
}

// isBodyTooLarge detects a MaxBytesReader overflow even when the multipart
// reader has flattened the error.
func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}
