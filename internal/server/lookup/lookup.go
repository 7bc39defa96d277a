// Package lookup fetches best-effort enrichment for sightings: species
// metadata from a DBpedia SPARQL endpoint and a static map image for the
// sighting's coordinates. Each upstream sits behind its own circuit breaker
// so an outage costs one timeout per breaker window, not one per request.
package lookup

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/birdwatch/internal/logging"
	"github.com/dmitrijs2005/birdwatch/internal/server/metrics"
	"github.com/dmitrijs2005/birdwatch/internal/server/models"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
)

const (
	maxResponseBytes = 8 << 20
	speciesCacheTTL  = time.Hour
)

var (
	// ErrNoSpecies means the endpoint knows no bird by that name.
	ErrNoSpecies = errors.New("species not found")
	// ErrMapDisabled means no map URL template is configured.
	ErrMapDisabled = errors.New("map lookup disabled")
)

type Config struct {
	SparqlEndpoint string
	MapURLTemplate string
	Timeout        time.Duration

	// Breaker settings; zero values get defaults.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// Service implements services.Enricher.
type Service struct {
	cfg     Config
	http    *http.Client
	logger  logging.Logger
	sparql  *gobreaker.CircuitBreaker[[]byte]
	mapping *gobreaker.CircuitBreaker[[]byte]

	mu           sync.Mutex
	species      []string
	speciesUntil time.Time
	now          func() time.Time
}

// New builds a Service. A nil hc uses http.DefaultClient; per-call deadlines
// come from cfg.Timeout.
func New(cfg Config, hc *http.Client, logger logging.Logger) *Service {
	if hc == nil {
		hc = http.DefaultClient
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	s := &Service{
		cfg:    cfg,
		http:   hc,
		logger: logger.With("module", "lookup"),
		now:    time.Now,
	}
	s.sparql = s.newBreaker("sparql")
	s.mapping = s.newBreaker("map")
	return s
}

func (s *Service) newBreaker(name string) *gobreaker.CircuitBreaker[[]byte] {
	threshold := s.cfg.FailureThreshold
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     s.cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn(context.Background(), "lookup breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			metrics.RecordBreakerState(name, to)
		},
	}
	return gobreaker.NewCircuitBreaker[[]byte](settings)
}

// fetch GETs u through cb and returns the body and its content type.
func (s *Service) fetch(ctx context.Context, cb *gobreaker.CircuitBreaker[[]byte], u, accept string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var contentType string
	body, err := cb.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		if accept != "" {
			req.Header.Set("Accept", accept)
		}

		resp, err := s.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%s: unexpected status %s", req.URL.Host, resp.Status)
		}
		contentType = resp.Header.Get("Content-Type")
		return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	})
	return body, contentType, err
}

type sparqlValue struct {
	Value string `json:"value"`
}

type sparqlResponse struct {
	Results struct {
		Bindings []map[string]sparqlValue `json:"bindings"`
	} `json:"results"`
}

func (s *Service) query(ctx context.Context, q string) ([]map[string]sparqlValue, error) {
	u := s.cfg.SparqlEndpoint + "?" + url.Values{"query": {q}, "format": {"json"}}.Encode()
	body, _, err := s.fetch(ctx, s.sparql, u, "application/sparql-results+json")
	if err != nil {
		return nil, err
	}

	var res sparqlResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode sparql results: %w", err)
	}
	return res.Results.Bindings, nil
}

// sparqlLiteral quotes s as a SPARQL string literal.
func sparqlLiteral(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`)
	return `"` + r.Replace(s) + `"`
}

const speciesInfoQuery = `PREFIX dbo: <http://dbpedia.org/ontology/>
PREFIX dbp: <http://dbpedia.org/property/>
PREFIX rdfs: <http://www.w3.org/2000/01/rdf-schema#>
SELECT ?bird ?abstract ?genus ?species WHERE {
  ?bird a dbo:Bird ;
        rdfs:label ?name ;
        dbo:abstract ?abstract ;
        dbp:genus ?genus .
  OPTIONAL { ?bird dbp:species ?species . }
  FILTER(?name = %s@en && lang(?abstract) = 'en')
}
LIMIT 1`

// SpeciesInfo looks up the bird whose English label is exactly name.
func (s *Service) SpeciesInfo(ctx context.Context, name string) (*models.SpeciesInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNoSpecies
	}

	rows, err := s.query(ctx, fmt.Sprintf(speciesInfoQuery, sparqlLiteral(name)))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoSpecies
	}

	b := rows[0]
	return &models.SpeciesInfo{
		Name:     name,
		URL:      b["bird"].Value,
		Abstract: b["abstract"].Value,
		Genus:    b["genus"].Value,
		Species:  b["species"].Value,
	}, nil
}

const allSpeciesQuery = `PREFIX dbo: <http://dbpedia.org/ontology/>
PREFIX dbp: <http://dbpedia.org/property/>
PREFIX rdfs: <http://www.w3.org/2000/01/rdf-schema#>
SELECT DISTINCT ?name WHERE {
  ?bird a dbo:Bird ;
        rdfs:label ?name ;
        dbp:species ?species ;
        dbp:genus ?genus .
  FILTER(lang(?name) = 'en')
}
ORDER BY ?name`

// AllSpecies returns English bird names for pickers. The list is cached for
// an hour; a failed refresh serves the stale list when there is one.
func (s *Service) AllSpecies(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.species != nil && s.now().Before(s.speciesUntil) {
		return s.species, nil
	}

	rows, err := s.query(ctx, allSpeciesQuery)
	if err != nil {
		if s.species != nil {
			s.logger.Warn(ctx, "species refresh failed, serving cached list", "error", err)
			return s.species, nil
		}
		return nil, err
	}

	names := make([]string, 0, len(rows))
	for _, r := range rows {
		if n := r["name"].Value; n != "" {
			names = append(names, n)
		}
	}
	s.species = names
	s.speciesUntil = s.now().Add(speciesCacheTTL)
	return names, nil
}

// MapImage fetches a static map centred on the coordinates and returns it
// as a data URI.
func (s *Service) MapImage(ctx context.Context, lat, lng float64) (string, error) {
	if s.cfg.MapURLTemplate == "" {
		return "", ErrMapDisabled
	}

	body, contentType, err := s.fetch(ctx, s.mapping, fmt.Sprintf(s.cfg.MapURLTemplate, lat, lng), "image/*")
	if err != nil {
		return "", err
	}

	if contentType == "" || !strings.HasPrefix(contentType, "image/") {
		contentType = http.DetectContentType(body)
	}
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(body), nil
}
