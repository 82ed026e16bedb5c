package reportapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/kawacukennedy/civicsense/internal/authmw"
	"github.com/kawacukennedy/civicsense/internal/notify/authority"
	"github.com/kawacukennedy/civicsense/internal/report"
)

const (
	maxRequestBody  = 1 << 20
	defaultPageSize = 50
	maxPageSize     = 200
)

type ingestRequest struct {
	Title       string   `json:"title" validate:"required,max=140"`
	Description string   `json:"description" validate:"max=2000"`
	Lat         float64  `json:"lat" validate:"min=-90,max=90"`
	Lng         float64  `json:"lng" validate:"min=-180,max=180"`
	AccuracyM   float64  `json:"accuracy_m" validate:"min=0"`
	Anonymous   *bool    `json:"anonymous"`
	MediaRefs   []string `json:"media_refs" validate:"max=10,dive,max=512"`
}

type actionRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

func (a *API) handleIngestReport(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	actor := authmw.ActorFromContext(r.Context())

	anonymous := true
	if req.Anonymous != nil {
		anonymous = *req.Anonymous
	}

	in := report.IngestInput{
		Title:       req.Title,
		Description: req.Description,
		Lat:         req.Lat,
		Lng:         req.Lng,
		AccuracyM:   req.AccuracyM,
		Anonymous:   anonymous,
		MediaRefs:   req.MediaRefs,
	}
	if !anonymous {
		in.ReporterID = actor.ID
	}

	rep, err := a.svc.Submit(r.Context(), in)
	if err != nil {
		a.writeError(r.Context(), w, err)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("civicsense.report.id", rep.ID))

	writeJSON(w, http.StatusCreated, rep)
}

func (a *API) handleListReports(w http.ResponseWriter, r *http.Request) {
	f, page, perPage, err := parseListQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	reports, err := a.svc.List(r.Context(), f)
	if err != nil {
		a.writeError(r.Context(), w, err)
		return
	}
	if reports == nil {
		reports = []*report.Report{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": reports,
		"meta": map[string]int{"page": page, "per_page": perPage},
	})
}

func (a *API) handleAction(action report.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		actor := authmw.ActorFromContext(r.Context())

		var req actionRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
			if err := a.validate.Struct(req); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
		}

		span := trace.SpanFromContext(r.Context())
		span.SetAttributes(
			attribute.String("civicsense.report.id", id),
			attribute.String("civicsense.action", string(action)),
		)

		rep, err := a.svc.Apply(r.Context(), id, action, actor, report.ActionInput{Notes: req.Notes})
		if err != nil {
			a.writeError(r.Context(), w, err)
			return
		}

		writeJSON(w, http.StatusOK, rep)
	}
}

func (a *API) handleComposeMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rep, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.writeError(r.Context(), w, err)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	channel := authority.Channel(r.URL.Query().Get("format"))
	target := r.URL.Query().Get("target")

	link, err := a.composer.Compose(rep, channel, target)
	if err != nil {
		a.writeError(r.Context(), w, err)
		return
	}
	if a.metrics != nil {
		a.metrics.ComposeTotal.WithLabelValues(string(channel)).Inc()
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"format": string(channel),
		"link":   link,
	})
}

func parseListQuery(r *http.Request) (report.Filter, int, int, error) {
	q := r.URL.Query()

	page := 1
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return report.Filter{}, 0, 0, fmt.Errorf("invalid page %q", v)
		}
		page = n
	}

	perPage := defaultPageSize
	if v := q.Get("per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return report.Filter{}, 0, 0, fmt.Errorf("invalid per_page %q", v)
		}
		if n > maxPageSize {
			n = maxPageSize
		}
		perPage = n
	}

	f := report.Filter{
		Limit:  perPage,
		Offset: (page - 1) * perPage,
	}

	if v := q.Get("status"); v != "" {
		f.Status = report.Status(v)
	}

	if v := q.Get("min_priority"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 100 {
			return report.Filter{}, 0, 0, fmt.Errorf("invalid min_priority %q", v)
		}
		f.MinPriority = n
	}

	if v := q.Get("bbox"); v != "" {
		parts := strings.Split(v, ",")
		if len(parts) != 4 {
			return report.Filter{}, 0, 0, fmt.Errorf("bbox must be min_lng,min_lat,max_lng,max_lat")
		}
		vals := make([]float64, 4)
		for i, p := range parts {
			n, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return report.Filter{}, 0, 0, fmt.Errorf("invalid bbox coordinate %q", p)
			}
			vals[i] = n
		}
		f.MinLng, f.MinLat, f.MaxLng, f.MaxLat = vals[0], vals[1], vals[2], vals[3]
		if f.MinLat > f.MaxLat || f.MinLng > f.MaxLng {
			return report.Filter{}, 0, 0, fmt.Errorf("bbox min must not exceed max")
		}
		if f.MinLat < -90 || f.MaxLat > 90 || f.MinLng < -180 || f.MaxLng > 180 {
			return report.Filter{}, 0, 0, fmt.Errorf("bbox out of range")
		}
		f.HasBBox = true
	}

	return f, page, perPage, nil
}
