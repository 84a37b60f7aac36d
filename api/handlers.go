/*
handlers.go - HTTP API handlers for section ledgers

PURPOSE:
  Exposes the ledger core via REST API. Handles HTTP request/response and
  JSON serialization, and delegates to ledger.Manager, importer, exporter
  and analysis.

ENDPOINTS:
  Sections:
    GET    /api/sections                                List sections

  Records:
    GET    /api/sections/{section}/records              All records, or one month with ?year=&month=
    POST   /api/sections/{section}/records              Add a record
    PUT    /api/sections/{section}/records/{id}         Replace a record in place
    DELETE /api/sections/{section}/records/{id}         Delete a record

  Categories:
    GET    /api/sections/{section}/categories           Sorted category set
    POST   /api/sections/{section}/categories           Add a category

  Analysis:
    GET    /api/sections/{section}/summary              Monthly summary, breakdown and trend

  Files:
    POST   /api/sections/{section}/import               Multipart "file"; ?commit=true applies it
    GET    /api/sections/{section}/export               ?format=csv|xlsx for one month

USER:
  The ledger owner comes from the X-Ledger-User header and falls back to
  the configured default user. Authentication is out of scope.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, unknown section, bad query parameters
  - 404: Record id not found
  - 422: Import file could not be parsed
  - 500: Ledger could not be saved

SEE ALSO:
  - dto.go: Request/response data structures
  - sessions.go: Per-user Manager cache and locking
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/expense-ledger/exporter"
	"github.com/warp/expense-ledger/importer"
	"github.com/warp/expense-ledger/ledger"
	"github.com/warp/expense-ledger/store/csvfile"
)

// UserHeader names the ledger owner of a request.
const UserHeader = "X-Ledger-User"

// maxUploadSize bounds multipart import bodies.
const maxUploadSize = 32 << 20

var errRecordNotFound = errors.New("record not found")

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Sessions     *Sessions
	Metrics      *Metrics
	DefaultUser  string
	PreviewLimit int

	now func() time.Time
}

func NewHandler(sessions *Sessions, metrics *Metrics, defaultUser string, previewLimit int) *Handler {
	return &Handler{
		Sessions:     sessions,
		Metrics:      metrics,
		DefaultUser:  defaultUser,
		PreviewLimit: previewLimit,
		now:          time.Now,
	}
}

func (h *Handler) user(r *http.Request) string {
	if u := strings.TrimSpace(r.Header.Get(UserHeader)); u != "" {
		return u
	}
	return h.DefaultUser
}

// section parses the {section} URL parameter, writing a 400 when it is unknown.
func (h *Handler) section(w http.ResponseWriter, r *http.Request) (ledger.SectionInfo, bool) {
	key, err := ledger.ParseSection(chi.URLParam(r, "section"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unknown section", err)
		return ledger.SectionInfo{}, false
	}
	return ledger.InfoFor(key), true
}

// =============================================================================
// SECTION ENDPOINTS
// =============================================================================

// ListSections returns the fixed section list.
// GET /api/sections
func (h *Handler) ListSections(w http.ResponseWriter, r *http.Request) {
	var dtos []SectionDTO
	for _, info := range ledger.Sections() {
		dtos = append(dtos, toSectionDTO(info))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RECORD ENDPOINTS
// =============================================================================

// ListRecords returns the section's records in store order.
// GET /api/sections/{section}/records?year=2024&month=3
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	info, ok := h.section(w, r)
	if !ok {
		return
	}
	year, month, filtered, err := monthQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	var records []ledger.Record
	err = h.Sessions.With(r.Context(), h.user(r), info.Key, func(mgr *ledger.Manager) error {
		if filtered {
			records = mgr.FilterByMonth(year, month)
		} else {
			records = mgr.Records()
		}
		return nil
	})
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRecordDTOs(records))
}

// CreateRecord validates the body and appends a record.
// POST /api/sections/{section}/records
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	info, ok := h.section(w, r)
	if !ok {
		return
	}
	input, ok := decodeRecord(w, r)
	if !ok {
		return
	}

	var created ledger.Record
	err := h.Sessions.With(r.Context(), h.user(r), info.Key, func(mgr *ledger.Manager) error {
		var err error
		created, err = mgr.Add(r.Context(), input.Date, input.Category, input.Description, input.Amount)
		return err
	})
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	h.Metrics.Mutation(info.Key, "add")
	writeJSON(w, http.StatusCreated, toRecordDTO(created))
}

// UpdateRecord replaces the record with {id}, keeping its position.
// PUT /api/sections/{section}/records/{id}
func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	info, ok := h.section(w, r)
	if !ok {
		return
	}
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	input, ok := decodeRecord(w, r)
	if !ok {
		return
	}

	var updated ledger.Record
	err := h.Sessions.With(r.Context(), h.user(r), info.Key, func(mgr *ledger.Manager) error {
		found, err := mgr.Update(r.Context(), id, input.Date, input.Category, input.Description, input.Amount)
		if err != nil {
			return err
		}
		if !found {
			return errRecordNotFound
		}
		updated, _ = mgr.Record(id)
		return nil
	})
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	h.Metrics.Mutation(info.Key, "update")
	writeJSON(w, http.StatusOK, toRecordDTO(updated))
}

// DeleteRecord removes the record with {id}.
// DELETE /api/sections/{section}/records/{id}
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	info, ok := h.section(w, r)
	if !ok {
		return
	}
	id, ok := recordID(w, r)
	if !ok {
		return
	}

	err := h.Sessions.With(r.Context(), h.user(r), info.Key, func(mgr *ledger.Manager) error {
		found, err := mgr.Delete(r.Context(), id)
		if err != nil {
			return err
		}
		if !found {
			return errRecordNotFound
		}
		return nil
	})
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	h.Metrics.Mutation(info.Key, "delete")
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CATEGORY ENDPOINTS
// =============================================================================

// ListCategories returns the section's category set, sorted.
// GET /api/sections/{section}/categories
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	info, ok := h.section(w, r)
	if !ok {
		return
	}

	var categories []string
	err := h.Sessions.With(r.Context(), h.user(r), info.Key, func(mgr *ledger.Manager) error {
		categories = mgr.Categories()
		return nil
	})
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, categories)
}

// AddCategory adds a category to the section's set. The set is not
// persisted until a record uses the category.
// POST /api/sections/{section}/categories
func (h *Handler) AddCategory(w http.ResponseWriter, r *http.Request) {
	info, ok := h.section(w, r)
	if !ok {
		return
	}

	var req CategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "Category name is required", ledger.ErrEmptyCategory)
		return
	}

	var categories []string
	err := h.Sessions.With(r.Context(), h.user(r), info.Key, func(mgr *ledger.Manager) error {
		mgr.AddCategory(req.Name)
		categories = mgr.Categories()
		return nil
	})
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, categories)
}

// =============================================================================
// ANALYSIS ENDPOINTS
// =============================================================================

// GetSummary returns totals, the ranked breakdown and the daily trend of
// one month (default: the current month).
// GET /api/sections/{section}/summary?year=2024&month=3
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	info, ok := h.section(w, r)
	if !ok {
		return
	}
	year, month, err := h.monthOrCurrent(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	var records []ledger.Record
	err = h.Sessions.With(r.Context(), h.user(r), info.Key, func(mgr *ledger.Manager) error {
		records = mgr.FilterByMonth(year, month)
		return nil
	})
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSummaryResponse(info, year, int(month), records))
}

// =============================================================================
// IMPORT / EXPORT ENDPOINTS
// =============================================================================

// ImportRecords parses and validates an uploaded CSV or XLSX file. Without
// commit=true it only previews; with it, the valid rows are bulk added.
// POST /api/sections/{section}/import?commit=true
func (h *Handler) ImportRecords(w http.ResponseWriter, r *http.Request) {
	info, ok := h.section(w, r)
	if !ok {
		return
	}
	commit := false
	if v := r.URL.Query().Get("commit"); v != "" {
		var err error
		if commit, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid commit flag", err)
			return
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing upload field \"file\"", err)
		return
	}
	defer file.Close()

	rows, err := parseUpload(file, header)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	valid, rowErrs := importer.Validate(rows)
	resp := toImportResponse(rows, valid, rowErrs, h.PreviewLimit)

	if commit && len(valid) > 0 {
		var res ledger.BulkResult
		err := h.Sessions.With(r.Context(), h.user(r), info.Key, func(mgr *ledger.Manager) error {
			var err error
			res, err = mgr.BulkAdd(r.Context(), valid)
			return err
		})
		if err != nil {
			h.writeLedgerError(w, err)
			return
		}
		resp.Committed = true
		resp.Added = res.Added
		resp.Skipped = res.Skipped
		h.Metrics.Mutation(info.Key, "bulk_add")
		h.Metrics.ImportRows(info.Key, "added", res.Added)
		h.Metrics.ImportRows(info.Key, "skipped", res.Skipped)
	}
	h.Metrics.ImportRows(info.Key, "invalid", len(rowErrs))

	writeJSON(w, http.StatusOK, resp)
}

func parseUpload(file multipart.File, header *multipart.FileHeader) ([]ledger.Candidate, error) {
	var (
		rows []ledger.Candidate
		err  error
	)
	if importer.IsWorkbook(header.Filename) {
		rows, err = importer.ParseXLSX(file)
	} else {
		rows, err = importer.ParseCSV(file)
	}
	if err != nil {
		var pe *importer.ParseError
		if errors.As(err, &pe) {
			pe.Path = header.Filename
		}
		return nil, err
	}
	return rows, nil
}

// ExportRecords downloads one month of records as CSV or XLSX.
// GET /api/sections/{section}/export?year=2024&month=3&format=xlsx
func (h *Handler) ExportRecords(w http.ResponseWriter, r *http.Request) {
	info, ok := h.section(w, r)
	if !ok {
		return
	}
	year, month, err := h.monthOrCurrent(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}
	format, err := exporter.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid format", err)
		return
	}

	var records []ledger.Record
	err = h.Sessions.With(r.Context(), h.user(r), info.Key, func(mgr *ledger.Manager) error {
		records = mgr.FilterByMonth(year, month)
		return nil
	})
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := exporter.Write(&buf, format, records); err != nil {
		writeError(w, http.StatusInternalServerError, "Export failed", err)
		return
	}

	name := exporter.FileName(info.Key, year, month, format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	io.Copy(w, &buf)
}

// Health reports liveness.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func decodeRecord(w http.ResponseWriter, r *http.Request) (ledger.Record, bool) {
	var req RecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return ledger.Record{}, false
	}
	rec, err := req.candidate().Coerce()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid record", err)
		return ledger.Record{}, false
	}
	return rec, true
}

func recordID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid record id", err)
		return 0, false
	}
	return id, true
}

// monthQuery reads ?year=&month=. Both or neither must be present.
func monthQuery(r *http.Request) (year int, month time.Month, ok bool, err error) {
	q := r.URL.Query()
	ys, ms := q.Get("year"), q.Get("month")
	if ys == "" && ms == "" {
		return 0, 0, false, nil
	}
	if ys == "" || ms == "" {
		return 0, 0, false, errors.New("year and month must be given together")
	}
	year, err = strconv.Atoi(ys)
	if err != nil || year < 1 || year > 9999 {
		return 0, 0, false, fmt.Errorf("invalid year %q", ys)
	}
	m, err := strconv.Atoi(ms)
	if err != nil || m < 1 || m > 12 {
		return 0, 0, false, fmt.Errorf("invalid month %q", ms)
	}
	return year, time.Month(m), true, nil
}

func (h *Handler) monthOrCurrent(r *http.Request) (int, time.Month, error) {
	year, month, ok, err := monthQuery(r)
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		now := h.now()
		return now.Year(), now.Month(), nil
	}
	return year, month, nil
}

func (h *Handler) writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errRecordNotFound):
		writeError(w, http.StatusNotFound, "Record not found", nil)
	case ledger.IsClientError(err), errors.Is(err, csvfile.ErrInvalidUser):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	case errors.Is(err, importer.ErrParse):
		writeError(w, http.StatusUnprocessableEntity, "Import file could not be parsed", err)
	case errors.Is(err, ledger.ErrPersistence):
		writeError(w, http.StatusInternalServerError, "Failed to save ledger", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
