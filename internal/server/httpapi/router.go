// Package httpapi exposes the sighting service over HTTP/JSON and mounts the
// live chat websocket and the Prometheus endpoint.
//
//	GET  /healthz                            reachability probe used by clients
//	POST /sync-sightings                     drain a device's offline queue
//	GET  /api/sightings                      list, newest first
//	POST /api/sightings                      submit one sighting
//	GET  /api/sightings/{id}                 details with best-effort enrichment
//	GET  /api/sightings/{id}/chat            room history
//	PUT  /api/sightings/{id}/identification  signature-guarded edit
//	PUT  /api/sightings/{id}/image           signature-guarded edit
//	POST /api/images/presign                 upload location for a photo
//	GET  /api/species                        species names for pickers
//	GET  /ws                                 live chat channel
//	GET  /metrics                            Prometheus
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/birdwatch/internal/common"
	"github.com/dmitrijs2005/birdwatch/internal/logging"
	"github.com/dmitrijs2005/birdwatch/internal/server/models"
	"github.com/dmitrijs2005/birdwatch/internal/server/services"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Sightings interface {
	Create(ctx context.Context, in services.SightingInput) (*models.Sighting, bool, error)
	Sync(ctx context.Context, batch []services.SightingInput) (*services.SyncResult, error)
	List(ctx context.Context) ([]*models.Sighting, error)
	Details(ctx context.Context, id string) (*models.SightingDetails, error)
	UpdateIdentification(ctx context.Context, id, identification string, signatures []string) error
	UpdateImage(ctx context.Context, id, image string, signatures []string) error
	Species(ctx context.Context) ([]string, error)
}

type Chats interface {
	History(ctx context.Context, room string) ([]*models.ChatMessage, error)
}

type Images interface {
	PresignPut(ctx context.Context) (string, string, error)
}

// Options tunes the router. Zero values disable the corresponding limit.
type Options struct {
	WriteRateLimit  int // requests per minute per client IP
	MaxRequestBytes int64
	CORSOrigins     []string
	Health          func(ctx context.Context) error
}

type Handler struct {
	sightings Sightings
	chats     Chats
	images    Images
	live      http.Handler
	opts      Options
	logger    logging.Logger
}

func New(s Sightings, c Chats, img Images, live http.Handler, opts Options, logger logging.Logger) *Handler {
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	return &Handler{
		sightings: s,
		chats:     c,
		images:    img,
		live:      live,
		opts:      opts,
		logger:    logger.With("module", "httpapi"),
	}
}

// Routes builds the chi router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(h.observe)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.health)
	r.Handle("/metrics", promhttp.Handler())
	if h.live != nil {
		r.Handle("/ws", h.live)
	}

	r.Group(func(r chi.Router) {
		r.Get("/api/sightings", h.listSightings)
		r.Get("/api/sightings/{id}", h.getSighting)
		r.Get("/api/sightings/{id}/chat", h.chatHistory)
		r.Get("/api/species", h.species)
	})

	r.Group(func(r chi.Router) {
		if h.opts.WriteRateLimit > 0 {
			r.Use(httprate.LimitByIP(h.opts.WriteRateLimit, time.Minute))
		}
		if h.opts.MaxRequestBytes > 0 {
			r.Use(limitBody(h.opts.MaxRequestBytes))
		}

		r.Post(common.SyncSightingsPath, h.syncSightings)
		r.Post("/api/sightings", h.createSighting)
		r.Put("/api/sightings/{id}/identification", h.updateIdentification)
		r.Put("/api/sightings/{id}/image", h.updateImage)
		r.Post("/api/images/presign", h.presignImage)
	})

	return r
}
