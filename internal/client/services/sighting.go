package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/birdwatch/internal/client/client"
	"github.com/dmitrijs2005/birdwatch/internal/client/models"
	"github.com/dmitrijs2005/birdwatch/internal/common"
	"github.com/dmitrijs2005/birdwatch/internal/cryptox"
	"github.com/dmitrijs2005/birdwatch/internal/filex"
	"github.com/dmitrijs2005/birdwatch/internal/logging"
	"github.com/dmitrijs2005/birdwatch/internal/netx"
	"github.com/google/uuid"
)

// Seams for tests.
var (
	readImage     = filex.ReadImage
	uploadImage   = netx.UploadToPresignedURL
	newSignature  = cryptox.NewSignature
	newClientRef  = uuid.NewString
	uploadTimeout = 2 * time.Minute
)

type sightingQueue interface {
	EnqueueSighting(ctx context.Context, s models.PendingSighting) (int64, error)
	ListPendingSightings(ctx context.Context) []models.PendingSighting
	CurrentUsername(ctx context.Context) string
	RecordSignature(ctx context.Context, sig string) error
	AllSignatures(ctx context.Context) []string
}

// Draft is what the user enters for a new sighting. ImagePath is optional.
type Draft struct {
	Identification string
	Description    string
	Latitude       string
	Longitude      string
	ImagePath      string
}

// Submission reports where a new sighting went. Exactly one of Sighting
// (stored remotely) and LocalID (queued) is set.
type Submission struct {
	Queued    bool
	LocalID   int64
	ClientRef string
	Sighting  *models.Sighting
}

type SightingService interface {
	Submit(ctx context.Context, d Draft) (*Submission, error)
	Pending(ctx context.Context) []models.PendingSighting
	List(ctx context.Context) ([]models.Sighting, error)
	Get(ctx context.Context, id string) (*models.SightingDetails, error)
	UpdateIdentification(ctx context.Context, id, identification string) error
	UpdateImage(ctx context.Context, id, imagePath string) error
	Species(ctx context.Context) ([]string, error)
}

type sightingService struct {
	client client.Client
	queue  sightingQueue
	online func() bool
	logger logging.Logger
	now    func() time.Time
}

// NewSightingService builds the service; online reports the connectivity
// monitor's current state.
func NewSightingService(c client.Client, q sightingQueue, online func() bool, logger logging.Logger) SightingService {
	return &sightingService{client: c, queue: q, online: online, logger: logger.With("module", "sightings"), now: time.Now}
}

func (s *sightingService) Submit(ctx context.Context, d Draft) (*Submission, error) {
	if strings.TrimSpace(d.Latitude) == "" || strings.TrimSpace(d.Longitude) == "" {
		return nil, fmt.Errorf("%w: latitude and longitude are required", common.ErrValidation)
	}

	sig, err := newSignature()
	if err != nil {
		return nil, fmt.Errorf("generating signature: %w", err)
	}
	if err := s.queue.RecordSignature(ctx, sig); err != nil {
		s.logger.Warn(ctx, "recording signature failed", "error", err)
	}

	p := models.PendingSighting{
		ClientRef:      newClientRef(),
		UploadedBy:     s.queue.CurrentUsername(ctx),
		Identification: strings.TrimSpace(d.Identification),
		Description:    strings.TrimSpace(d.Description),
		DateTime:       s.now().UTC(),
		Latitude:       strings.TrimSpace(d.Latitude),
		Longitude:      strings.TrimSpace(d.Longitude),
		Image:          common.NoImage,
		Signature:      sig,
	}

	if s.online() {
		created, err := s.submitOnline(ctx, p, d.ImagePath)
		if err == nil {
			return &Submission{ClientRef: p.ClientRef, Sighting: created}, nil
		}
		if !errors.Is(err, client.ErrUnavailable) {
			return nil, err
		}
		s.logger.Warn(ctx, "server unreachable, queueing sighting", "error", err)
	}

	// Photos are not kept offline.
	p.Image = common.NoImage
	id, err := s.queue.EnqueueSighting(ctx, p)
	if err != nil {
		s.logger.Error(ctx, "sighting could not be queued", "client_ref", p.ClientRef, "error", err)
	}
	return &Submission{Queued: true, LocalID: id, ClientRef: p.ClientRef}, nil
}

func (s *sightingService) submitOnline(ctx context.Context, p models.PendingSighting, imagePath string) (*models.Sighting, error) {
	if imagePath != "" {
		key, err := s.upload(ctx, imagePath)
		if err != nil {
			return nil, err
		}
		p.Image = key
	}
	return s.client.AddSighting(ctx, p)
}

func (s *sightingService) upload(ctx context.Context, path string) (string, error) {
	data, err := readImage(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	ticket, err := s.client.RequestImageUpload(ctx)
	if err != nil {
		return "", fmt.Errorf("requesting upload: %w", err)
	}

	uctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()
	if err := uploadImage(uctx, nil, ticket.URL, contentType(path), data); err != nil {
		return "", fmt.Errorf("%w: uploading image: %v", client.ErrUnavailable, err)
	}
	return ticket.Key, nil
}

func contentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	}
	return "application/octet-stream"
}

func (s *sightingService) Pending(ctx context.Context) []models.PendingSighting {
	return s.queue.ListPendingSightings(ctx)
}

func (s *sightingService) List(ctx context.Context) ([]models.Sighting, error) {
	return s.client.ListSightings(ctx)
}

func (s *sightingService) Get(ctx context.Context, id string) (*models.SightingDetails, error) {
	return s.client.GetSighting(ctx, id)
}

// UpdateIdentification presents every signature this device ever used; the
// server accepts the edit when one of them created the sighting.
func (s *sightingService) UpdateIdentification(ctx context.Context, id, identification string) error {
	identification = strings.TrimSpace(identification)
	if identification == "" {
		return fmt.Errorf("%w: identification is empty", common.ErrValidation)
	}
	return s.client.UpdateIdentification(ctx, id, identification, s.queue.AllSignatures(ctx))
}

func (s *sightingService) UpdateImage(ctx context.Context, id, imagePath string) error {
	key, err := s.upload(ctx, imagePath)
	if err != nil {
		return err
	}
	return s.client.UpdateImage(ctx, id, key, s.queue.AllSignatures(ctx))
}

func (s *sightingService) Species(ctx context.Context) ([]string, error) {
	return s.client.Species(ctx)
}
