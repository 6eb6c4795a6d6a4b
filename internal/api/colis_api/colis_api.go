package colis_api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/colisdesk/colisdesk/internal/integrations/colissimo/envelope"
	"github.com/colisdesk/colisdesk/internal/models"
	"github.com/colisdesk/colisdesk/internal/services/parcels"
	"github.com/colisdesk/colisdesk/internal/storage/pgaudit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type AuditReader interface {
	ListRuns(ctx context.Context, kind string, limit int) ([]pgaudit.OperationRun, error)
}

type ColisAPI struct {
	svc   *parcels.Service
	audit AuditReader
}

func New(svc *parcels.Service) *ColisAPI {
	return &ColisAPI{svc: svc}
}

func (a *ColisAPI) WithAudit(audit AuditReader) *ColisAPI {
	a.audit = audit
	return a
}

func (a *ColisAPI) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.health)

	r.Route("/colis", func(r chi.Router) {
		r.Get("/", a.list)
		r.Post("/", a.create)
		r.Post("/import", a.bulkImport)
		r.Post("/pickup", a.pickup)
		r.Post("/bulk/delete", a.bulkDelete)
		r.Post("/bulk/status", a.bulkStatus)

		r.Route("/{code}", func(r chi.Router) {
			r.Get("/", a.get)
			r.Put("/", a.update)
			r.Delete("/", a.remove)
			r.Get("/label", a.label)
		})
	})

	r.Get("/gouvernorats", a.provinces)
	r.Get("/stats", a.stats)
	r.Get("/operations", a.operations)

	return r
}

func (a *ColisAPI) health(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

type listResponse struct {
	Colis         []models.Parcel `json:"colis"`
	Total         int             `json:"total"`
	PagesFetched  int             `json:"pagesFetched"`
	ReportedPages int             `json:"reportedPages"`
	ReportedCount int             `json:"reportedCount"`
}

func (a *ColisAPI) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := parcels.ListOptions{
		Limit:    intParam(q.Get("limit"), 0),
		MaxPages: intParam(q.Get("maxPages"), 0),
		Parallel: q.Get("parallel") == "true" || q.Get("parallel") == "1",
	}
	// A filtered listing needs the full record set before filtering.
	filtered := q.Get("status") != "" || q.Get("q") != "" || q.Get("dateFrom") != "" || q.Get("dateTo") != ""
	if filtered {
		opts.Limit = 0
	}

	res, err := a.svc.FetchAll(r.Context(), opts)
	if err != nil {
		writeErr(w, err)
		return
	}

	records := res.Records
	if filtered {
		records = parcels.Filter(records, q.Get("status"), q.Get("q"),
			searchField(q.Get("field")), parcels.DateRange{From: q.Get("dateFrom"), To: q.Get("dateTo")})
	}
	if q.Get("enrich") == "true" || q.Get("enrich") == "1" {
		records = a.svc.Enrich(r.Context(), records)
	}
	if limit := intParam(q.Get("limit"), 0); filtered && limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	writeData(w, http.StatusOK, listResponse{
		Colis:         records,
		Total:         len(records),
		PagesFetched:  res.PagesFetched,
		ReportedPages: res.ReportedPages,
		ReportedCount: res.ReportedCount,
	})
}

func (a *ColisAPI) get(w http.ResponseWriter, r *http.Request) {
	p, err := a.svc.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, p)
}

func (a *ColisAPI) create(w http.ResponseWriter, r *http.Request) {
	var in models.ParcelInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	p, err := a.svc.Create(r.Context(), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusCreated, p)
}

func (a *ColisAPI) update(w http.ResponseWriter, r *http.Request) {
	var in models.ParcelInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := a.svc.Update(r.Context(), chi.URLParam(r, "code"), in); err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"updated": true})
}

func (a *ColisAPI) remove(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Delete(r.Context(), chi.URLParam(r, "code")); err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (a *ColisAPI) label(w http.ResponseWriter, r *http.Request) {
	b64, err := a.svc.LabelPDF(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"pdf": b64})
}

func (a *ColisAPI) bulkImport(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Colis []models.ParcelInput `json:"colis"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	res, err := a.svc.BulkImport(r.Context(), body.Colis)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (a *ColisAPI) pickup(w http.ResponseWriter, r *http.Request) {
	url, err := a.svc.ValidatePickup(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"manifestUrl": url})
}

func (a *ColisAPI) bulkDelete(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Codes []string `json:"codes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(body.Codes) == 0 {
		writeBadRequest(w, "codes is required")
		return
	}
	res, err := a.svc.BulkDelete(r.Context(), body.Codes)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (a *ColisAPI) bulkStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Codes  []string `json:"codes"`
		Status string   `json:"etat"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(body.Codes) == 0 {
		writeBadRequest(w, "codes is required")
		return
	}
	res, err := a.svc.BulkChangeStatus(r.Context(), body.Codes, body.Status)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (a *ColisAPI) provinces(w http.ResponseWriter, r *http.Request) {
	v, err := a.svc.Provinces(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, v)
}

func (a *ColisAPI) stats(w http.ResponseWriter, r *http.Request) {
	counts, err := a.svc.StatusCounts(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, counts)
}

func (a *ColisAPI) operations(w http.ResponseWriter, r *http.Request) {
	if a.audit == nil {
		writeData(w, http.StatusOK, []pgaudit.OperationRun{})
		return
	}
	q := r.URL.Query()
	runs, err := a.audit.ListRuns(r.Context(), q.Get("kind"), intParam(q.Get("limit"), 50))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, http.StatusOK, runs)
}

type apiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, apiResponse{Success: true, Data: data})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, apiResponse{Error: msg})
}

// writeErr maps service errors onto statuses: caller mistakes and provider
// refusals are 400, everything else is a gateway failure.
func writeErr(w http.ResponseWriter, err error) {
	var pe *envelope.ProviderError
	switch {
	case parcels.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, apiResponse{Error: err.Error()})
	case errors.As(err, &pe):
		writeJSON(w, http.StatusBadRequest, apiResponse{Error: pe.Message})
	default:
		slog.Error("provider call failed", "error", err.Error())
		writeJSON(w, http.StatusBadGateway, apiResponse{Error: "provider unavailable"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func searchField(s string) parcels.SearchField {
	switch parcels.SearchField(s) {
	case parcels.FieldReference, parcels.FieldClient, parcels.FieldPhone, parcels.FieldNumber:
		return parcels.SearchField(s)
	default:
		return parcels.FieldAll
	}
}

func intParam(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
