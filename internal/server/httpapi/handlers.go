package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/birdwatch/internal/common"
	"github.com/dmitrijs2005/birdwatch/internal/server/metrics"
	"github.com/dmitrijs2005/birdwatch/internal/server/services"
	"github.com/go-chi/chi/v5"
)

type editRequest struct {
	Identification string   `json:"identification"`
	Image          string   `json:"img"`
	Signatures     []string `json:"signatures"`
}

type uploadTicket struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.opts.Health != nil {
		if err := h.opts.Health(r.Context()); err != nil {
			h.writeError(w, r, errors.Join(common.ErrorInternal, err))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) syncSightings(w http.ResponseWriter, r *http.Request) {
	var batch []services.SightingInput
	if err := decode(r, &batch); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.sightings.Sync(r.Context(), batch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	metrics.SyncBatchSize.Observe(float64(len(batch)))
	metrics.RecordSightings("sync", res.Accepted, res.Duplicates, res.Rejected)
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) createSighting(w http.ResponseWriter, r *http.Request) {
	var in services.SightingInput
	if err := decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	s, created, err := h.sightings.Create(r.Context(), in)
	if err != nil {
		if errors.Is(err, common.ErrValidation) {
			metrics.RecordSightings("live", 0, 0, 1)
		}
		h.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		metrics.RecordSightings("live", 1, 0, 0)
	} else {
		metrics.RecordSightings("live", 0, 1, 0)
	}
	writeJSON(w, status, s)
}

func (h *Handler) listSightings(w http.ResponseWriter, r *http.Request) {
	list, err := h.sightings.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) getSighting(w http.ResponseWriter, r *http.Request) {
	d, err := h.sightings.Details(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) chatHistory(w http.ResponseWriter, r *http.Request) {
	list, err := h.chats.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) updateIdentification(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.sightings.UpdateIdentification(r.Context(), chi.URLParam(r, "id"), req.Identification, req.Signatures); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) updateImage(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.sightings.UpdateImage(r.Context(), chi.URLParam(r, "id"), req.Image, req.Signatures); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) presignImage(w http.ResponseWriter, r *http.Request) {
	key, url, err := h.images.PresignPut(r.Context())
	if err != nil {
		h.writeError(w, r, errors.Join(common.ErrorInternal, err))
		return
	}
	writeJSON(w, http.StatusOK, uploadTicket{Key: key, URL: url})
}

func (h *Handler) species(w http.ResponseWriter, r *http.Request) {
	names, err := h.sightings.Species(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}
