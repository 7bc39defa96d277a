package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/birdwatch/internal/common"
	"github.com/dmitrijs2005/birdwatch/internal/cryptox"
	"github.com/dmitrijs2005/birdwatch/internal/dbx"
	"github.com/dmitrijs2005/birdwatch/internal/logging"
	"github.com/dmitrijs2005/birdwatch/internal/server/models"
	"github.com/dmitrijs2005/birdwatch/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/birdwatch/internal/server/validation"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const maxIdentificationLen = 128

var (
	newSightingID = uuid.NewString
	now           = time.Now
)

// SightingInput is a sighting as submitted by a device, either live or as
// part of a queued batch. Coordinates arrive as entered and are checked here.
type SightingInput struct {
	ClientRef      string    `json:"clientRef" validate:"omitempty,max=64"`
	UploadedBy     string    `json:"uploadedBy" validate:"required,max=64"`
	Identification string    `json:"identification" validate:"max=128"`
	Description    string    `json:"description" validate:"max=2000"`
	DateTime       time.Time `json:"dateTime"`
	Latitude       string    `json:"latitude" validate:"required,latitude"`
	Longitude      string    `json:"longitude" validate:"required,longitude"`
	Image          string    `json:"img" validate:"max=512"`
	Signature      string    `json:"signature" validate:"max=128"`
}

// Sync item statuses.
const (
	SyncCreated   = "created"
	SyncDuplicate = "duplicate"
	SyncRejected  = "rejected"
)

type SyncItem struct {
	ClientRef string `json:"clientRef"`
	Status    string `json:"status"`
	ID        string `json:"id,omitempty"`
	Error     string `json:"error,omitempty"`
}

type SyncResult struct {
	Accepted   int        `json:"accepted"`
	Duplicates int        `json:"duplicates"`
	Rejected   int        `json:"rejected"`
	Items      []SyncItem `json:"items"`
}

// Enricher supplies best-effort metadata for sighting details.
type Enricher interface {
	SpeciesInfo(ctx context.Context, name string) (*models.SpeciesInfo, error)
	AllSpecies(ctx context.Context) ([]string, error)
	MapImage(ctx context.Context, lat, lng float64) (string, error)
}

// ImageLocator turns a stored image key into a URL a client can fetch.
type ImageLocator interface {
	PresignGet(ctx context.Context, key string) (string, error)
}

type SightingService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	images      ImageLocator
	enricher    Enricher
	logger      logging.Logger
}

func NewSightingService(db *sql.DB, rm repomanager.RepositoryManager, images ImageLocator, enricher Enricher, logger logging.Logger) *SightingService {
	return &SightingService{
		db:          db,
		repomanager: rm,
		images:      images,
		enricher:    enricher,
		logger:      logger.With("module", "sightings"),
	}
}

func (in *SightingInput) toModel() (*models.Sighting, error) {
	in.UploadedBy = strings.TrimSpace(in.UploadedBy)
	in.Latitude = strings.TrimSpace(in.Latitude)
	in.Longitude = strings.TrimSpace(in.Longitude)

	if err := validation.ValidateStruct(in); err != nil {
		return nil, err
	}

	lat, err := strconv.ParseFloat(in.Latitude, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: latitude: %v", common.ErrValidation, err)
	}
	lng, err := strconv.ParseFloat(in.Longitude, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: longitude: %v", common.ErrValidation, err)
	}

	s := &models.Sighting{
		ID:             newSightingID(),
		UploadedBy:     in.UploadedBy,
		Identification: strings.TrimSpace(in.Identification),
		Description:    in.Description,
		DateTime:       in.DateTime.UTC(),
		Latitude:       lat,
		Longitude:      lng,
		Image:          in.Image,
	}
	if in.ClientRef != "" {
		ref := in.ClientRef
		s.ClientRef = &ref
	}
	if s.DateTime.IsZero() {
		s.DateTime = now().UTC()
	}
	if s.Image == "" {
		s.Image = common.NoImage
	}
	if in.Signature != "" {
		s.SignatureDigest = cryptox.Digest(in.Signature)
	}
	return s, nil
}

// Create stores one sighting. A repeated clientRef returns the stored
// sighting's id instead of a second copy; created reports which happened.
func (s *SightingService) Create(ctx context.Context, in SightingInput) (*models.Sighting, bool, error) {
	m, err := in.toModel()
	if err != nil {
		return nil, false, err
	}

	created, err := s.repomanager.Sightings(s.db).Create(ctx, m)
	if err != nil {
		return nil, false, fmt.Errorf("error creating sighting: %w", err)
	}
	return m, created, nil
}

// Sync stores a queued batch. Each element is judged on its own: an invalid
// element is reported as rejected and does not stop the others. A storage
// failure aborts the call; since every element is keyed by clientRef the
// device can resend the same batch.
func (s *SightingService) Sync(ctx context.Context, batch []SightingInput) (*SyncResult, error) {
	repo := s.repomanager.Sightings(s.db)
	res := &SyncResult{Items: make([]SyncItem, 0, len(batch))}

	for _, in := range batch {
		item := SyncItem{ClientRef: in.ClientRef}

		m, err := in.toModel()
		if err != nil {
			item.Status = SyncRejected
			item.Error = err.Error()
			res.Rejected++
			res.Items = append(res.Items, item)
			continue
		}

		created, err := repo.Create(ctx, m)
		if err != nil {
			return nil, fmt.Errorf("error syncing sighting %q: %w", in.ClientRef, err)
		}

		item.ID = m.ID
		if created {
			item.Status = SyncCreated
			res.Accepted++
		} else {
			item.Status = SyncDuplicate
			res.Duplicates++
		}
		res.Items = append(res.Items, item)
	}

	s.logger.Info(ctx, "batch synced", "accepted", res.Accepted, "duplicates", res.Duplicates, "rejected", res.Rejected)
	return res, nil
}

// List returns every sighting, newest first.
func (s *SightingService) List(ctx context.Context) ([]*models.Sighting, error) {
	list, err := s.repomanager.Sightings(s.db).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing sightings: %w", err)
	}
	if list == nil {
		list = []*models.Sighting{}
	}
	return list, nil
}

func (s *SightingService) get(ctx context.Context, db dbx.DBTX, id string) (*models.Sighting, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}
	return s.repomanager.Sightings(db).GetByID(ctx, id)
}

// Details returns the sighting with a photo URL, species metadata and a map
// image. Enrichment failures are logged and leave the field empty.
func (s *SightingService) Details(ctx context.Context, id string) (*models.SightingDetails, error) {
	m, err := s.get(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	d := &models.SightingDetails{Sighting: *m}

	var g errgroup.Group

	if s.images != nil && m.Image != "" && m.Image != common.NoImage {
		g.Go(func() error {
			url, err := s.images.PresignGet(ctx, m.Image)
			if err != nil {
				s.logger.Warn(ctx, "image url unavailable", "id", id, "error", err)
				return nil
			}
			d.Image = url
			return nil
		})
	}

	if s.enricher != nil {
		if m.Identification != "" {
			g.Go(func() error {
				info, err := s.enricher.SpeciesInfo(ctx, m.Identification)
				if err != nil {
					s.logger.Warn(ctx, "species lookup failed", "id", id, "error", err)
					return nil
				}
				d.Species = info
				return nil
			})
		}
		g.Go(func() error {
			img, err := s.enricher.MapImage(ctx, m.Latitude, m.Longitude)
			if err != nil {
				s.logger.Warn(ctx, "map lookup failed", "id", id, "error", err)
				return nil
			}
			d.MapImage = img
			return nil
		})
	}

	_ = g.Wait()
	return d, nil
}

// edit applies fn to the sighting inside a transaction once one of
// signatures has been matched against the stored digest.
func (s *SightingService) edit(ctx context.Context, id string, signatures []string, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		m, err := s.get(ctx, tx, id)
		if err != nil {
			return err
		}
		if !cryptox.MatchAny(m.SignatureDigest, signatures) {
			return common.ErrSignatureMismatch
		}
		return fn(ctx, tx)
	})
}

// UpdateIdentification replaces the species name. Only a device holding the
// sighting's signature may do this.
func (s *SightingService) UpdateIdentification(ctx context.Context, id, identification string, signatures []string) error {
	identification = strings.TrimSpace(identification)
	if len(identification) > maxIdentificationLen {
		return fmt.Errorf("%w: identification must be at most %d characters", common.ErrValidation, maxIdentificationLen)
	}

	return s.edit(ctx, id, signatures, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Sightings(tx).UpdateIdentification(ctx, id, identification)
	})
}

// UpdateImage points the sighting at a newly uploaded photo.
func (s *SightingService) UpdateImage(ctx context.Context, id, image string, signatures []string) error {
	image = strings.TrimSpace(image)
	if image == "" {
		return fmt.Errorf("%w: img is required", common.ErrValidation)
	}

	return s.edit(ctx, id, signatures, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Sightings(tx).UpdateImage(ctx, id, image)
	})
}

// Species lists known species names for pickers.
func (s *SightingService) Species(ctx context.Context) ([]string, error) {
	if s.enricher == nil {
		return []string{}, nil
	}
	names, err := s.enricher.AllSpecies(ctx)
	if err != nil {
		return nil, errors.Join(common.ErrorInternal, err)
	}
	return names, nil
}
