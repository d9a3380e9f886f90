package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/albertai/studyset/internal/core/domain"
	"github.com/albertai/studyset/internal/core/ports"
	"github.com/albertai/studyset/internal/infrastructure/export/xlsx"
	"github.com/albertai/studyset/internal/observability/metrics"
)

const (
	defaultMaxUploadBytes = 32 << 20
	multipartMemory       = 8 << 20
	backpressureWait      = 250 * time.Millisecond
)

type RouterOptions struct {
	Service        string
	MaxUploadBytes int64
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
	Metrics        *metrics.HTTPServerMetrics
}

type Router struct {
	generator ports.StudySetGenerator
	reader    ports.StudySetReader
	exporter  ports.StudySetExporter
	opts      RouterOptions
}

func NewRouter(
	generator ports.StudySetGenerator,
	reader ports.StudySetReader,
	exporter ports.StudySetExporter,
	opts RouterOptions,
) *Router {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if strings.TrimSpace(opts.Service) == "" {
		opts.Service = "studyset-api"
	}
	return &Router{
		generator: generator,
		reader:    reader,
		exporter:  exporter,
		opts:      opts,
	}
}

func (rt *Router) Handler() http.Handler {
	var onThrottle throttleFunc
	if rt.opts.Metrics != nil {
		onThrottle = func(reason string) { rt.opts.Metrics.RecordThrottled(rt.opts.Service, reason) }
	}

	// Generation calls are expensive, so only they pass through the traffic gates.
	generation := http.NewServeMux()
	generation.HandleFunc("POST /v1/classes/{classID}/study-sets", rt.generateFromDocuments)
	generation.HandleFunc("POST /v1/classes/{classID}/study-sets/topic", rt.generateFromTopic)
	gated := rateLimitMiddleware(
		backpressureMiddleware(generation, rt.opts.MaxInFlight, backpressureWait, onThrottle),
		rt.opts.RateLimitRPS,
		rt.opts.RateLimitBurst,
		onThrottle,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.Handle("POST /v1/classes/{classID}/study-sets", gated)
	mux.Handle("POST /v1/classes/{classID}/study-sets/topic", gated)
	mux.HandleFunc("GET /v1/classes/{classID}/items", rt.listItems)
	mux.HandleFunc("GET /v1/classes/{classID}/export.xlsx", rt.exportClass)

	var handler http.Handler = mux
	if rt.opts.Metrics != nil {
		mux.Handle("GET /metrics", rt.opts.Metrics.Handler())
		handler = rt.opts.Metrics.Middleware(rt.opts.Service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) generateFromDocuments(w http.ResponseWriter, r *http.Request) {
	classID, ok := rt.classID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, rt.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rt.writeErrorMessage(w, r, http.StatusRequestEntityTooLarge, "invalid_input",
				fmt.Sprintf("upload exceeds %d bytes", rt.opts.MaxUploadBytes))
			return
		}
		rt.writeErrorMessage(w, r, http.StatusBadRequest, "invalid_input", "multipart form is required")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	headers := append(r.MultipartForm.File["files"], r.MultipartForm.File["file"]...)
	if len(headers) == 0 {
		rt.writeErrorMessage(w, r, http.StatusBadRequest, "invalid_input", "multipart field 'files' is required")
		return
	}

	examID, err := parseOptionalID(r.FormValue("exam_id"))
	if err != nil {
		rt.writeErrorMessage(w, r, http.StatusBadRequest, "invalid_input", "exam_id must be a positive integer")
		return
	}

	docs := make([]domain.SourceDocument, 0, len(headers))
	for _, header := range headers {
		doc, err := readUpload(header)
		if err != nil {
			rt.writeErrorMessage(w, r, http.StatusBadRequest, "invalid_input", err.Error())
			return
		}
		docs = append(docs, doc)
	}

	result, err := rt.generator.GenerateFromDocuments(r.Context(), domain.UploadBatch{
		Documents: docs,
		ClassID:   classID,
		ExamID:    examID,
		Topic:     r.FormValue("topic"),
	})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) generateFromTopic(w http.ResponseWriter, r *http.Request) {
	classID, ok := rt.classID(w, r)
	if !ok {
		return
	}

	var req struct {
		Topic  string `json:"topic"`
		ExamID *int64 `json:"examId"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		rt.writeErrorMessage(w, r, http.StatusBadRequest, "invalid_input", "invalid json")
		return
	}
	if req.ExamID != nil && *req.ExamID <= 0 {
		rt.writeErrorMessage(w, r, http.StatusBadRequest, "invalid_input", "examId must be a positive integer")
		return
	}

	result, err := rt.generator.GenerateFromTopic(r.Context(), domain.TopicRequest{
		Topic:   req.Topic,
		ClassID: classID,
		ExamID:  req.ExamID,
	})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) listItems(w http.ResponseWriter, r *http.Request) {
	classID, ok := rt.classID(w, r)
	if !ok {
		return
	}

	types := domain.ContentTypes()
	if raw := r.URL.Query().Get("type"); raw != "" {
		contentType, err := domain.ParseContentType(raw)
		if err != nil {
			rt.writeError(w, r, err)
			return
		}
		types = []domain.ContentType{contentType}
	}
	examID, err := parseOptionalID(r.URL.Query().Get("exam_id"))
	if err != nil {
		rt.writeErrorMessage(w, r, http.StatusBadRequest, "invalid_input", "exam_id must be a positive integer")
		return
	}

	out := make(map[domain.ContentType][]domain.PersistedRecord, len(types))
	for _, contentType := range types {
		var records []domain.PersistedRecord
		if examID != nil {
			records, err = rt.reader.ListByExam(r.Context(), contentType, classID, *examID)
		} else {
			records, err = rt.reader.ListByClass(r.Context(), contentType, classID)
		}
		if err != nil {
			rt.writeError(w, r, err)
			return
		}
		out[contentType] = records
	}
	payload := map[string]any{"classId": classID, "items": out}
	if examID != nil {
		payload["examId"] = *examID
	}
	writeJSON(w, http.StatusOK, payload)
}

func (rt *Router) exportClass(w http.ResponseWriter, r *http.Request) {
	classID, ok := rt.classID(w, r)
	if !ok {
		return
	}

	// Buffer the workbook so a failure can still produce a JSON error.
	var buf bytes.Buffer
	if err := rt.exporter.ExportClass(r.Context(), classID, &buf); err != nil {
		rt.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsx.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": fmt.Sprintf("class-%d-study-set.xlsx", classID),
	}))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (rt *Router) classID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("classID"), 10, 64)
	if err != nil || id <= 0 {
		rt.writeErrorMessage(w, r, http.StatusBadRequest, "invalid_input", "class id must be a positive integer")
		return 0, false
	}
	return id, true
}

func readUpload(header *multipart.FileHeader) (domain.SourceDocument, error) {
	file, err := header.Open()
	if err != nil {
		return domain.SourceDocument{}, fmt.Errorf("open upload %s: %w", header.Filename, err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return domain.SourceDocument{}, fmt.Errorf("read upload %s: %w", header.Filename, err)
	}

	mediaType := strings.TrimSpace(header.Header.Get("Content-Type"))
	if mediaType == "" || mediaType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(header.Filename))); byExt != "" {
			mediaType = byExt
		}
	}
	return domain.SourceDocument{
		Filename:  header.Filename,
		MediaType: mediaType,
		Content:   content,
	}, nil
}

func parseOptionalID(raw string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("invalid id %q", raw)
	}
	return &id, nil
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_failed", "request_id", requestIDFromContext(r.Context()), "path", r.URL.Path, "error", err)
	}
	rt.writeErrorMessage(w, r, status, domain.KindOf(err), err.Error())
}

func (rt *Router) writeErrorMessage(w http.ResponseWriter, r *http.Request, status int, kind, message string) {
	writeJSON(w, status, errorResponse{
		Error:     message,
		Kind:      kind,
		RequestID: requestIDFromContext(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
