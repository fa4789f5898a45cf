package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/render"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/bikerides/internal/directory"
	"github.com/example/bikerides/internal/dispatch"
	"github.com/example/bikerides/internal/geo"
	"github.com/example/bikerides/internal/geocode"
	"github.com/example/bikerides/internal/models"
	"github.com/example/bikerides/internal/observability"
	"github.com/example/bikerides/internal/query"
)

type Options struct {
	Directory     *directory.Directory
	Geocoder      geocode.Geocoder
	Hub           *dispatch.Hub
	Locator       geo.Locator
	LocateTimeout time.Duration
	Logger        *slog.Logger
}

type Server struct {
	dir           *directory.Directory
	geocoder      geocode.Geocoder
	hub           *dispatch.Hub
	locator       geo.Locator
	locateTimeout time.Duration
	logger        *slog.Logger
	mux           *mux.Router

	centerOnce sync.Once
	center     geo.Center
}

func NewServer(opts Options) *Server {
	s := &Server{
		dir:           opts.Directory,
		geocoder:      opts.Geocoder,
		hub:           opts.Hub,
		locator:       opts.Locator,
		locateTimeout: opts.LocateTimeout,
		logger:        opts.Logger,
		mux:           mux.NewRouter(),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.locateTimeout <= 0 {
		s.locateTimeout = geo.DefaultLocateTimeout
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/rides", s.handleListRides).Methods(http.MethodGet)
	api.HandleFunc("/rides", s.handleCreateRide).Methods(http.MethodPost)
	api.HandleFunc("/rides/{id}", s.handleGetRide).Methods(http.MethodGet)
	api.HandleFunc("/rides/{id}/join", s.handleJoin).Methods(http.MethodPost)
	api.HandleFunc("/rides/{id}/leave", s.handleLeave).Methods(http.MethodPost)
	api.HandleFunc("/rides/{id}/messages", s.handlePostMessage).Methods(http.MethodPost)
	api.HandleFunc("/geocode", s.handleGeocode).Methods(http.MethodGet)
	api.HandleFunc("/center", s.handleCenter).Methods(http.MethodGet)

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler())
	if s.hub != nil {
		s.mux.HandleFunc("/ws", s.handleWS)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// rideView adds the summary fields a ride card shows.
type rideView struct {
	models.Ride
	ParticipantCount int  `json:"participant_count"`
	PlacesLeft       int  `json:"places_left"`
	Joined           bool `json:"joined"`
}

func (s *Server) view(r models.Ride) rideView {
	return rideView{
		Ride:             r,
		ParticipantCount: len(r.Participants),
		PlacesLeft:       r.PlacesLeft(),
		Joined:           r.HasParticipant(s.dir.User().ID),
	}
}

type listResponse struct {
	Rides  []rideView   `json:"rides"`
	Pins   []models.Pin `json:"pins"`
	Count  int          `json:"count"`
	Center geo.Center   `json:"center"`
}

func (s *Server) handleListRides(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	explicit := q.Has("lat") || q.Has("lng")
	var center geo.Center
	if explicit {
		lat, err := floatParam(q.Get("lat"), s.dir.Center().Lat)
		if err != nil {
			handleError(w, r, &directory.ValidationError{Field: "lat", Reason: "must be a number"})
			return
		}
		lng, err := floatParam(q.Get("lng"), s.dir.Center().Lng)
		if err != nil {
			handleError(w, r, &directory.ValidationError{Field: "lng", Reason: "must be a number"})
			return
		}
		center = geo.Center{Coordinate: models.Coordinate{Lat: lat, Lng: lng}}
	}
	radius, err := floatParam(q.Get("radius_km"), query.DefaultRadiusKm)
	if err != nil {
		handleError(w, r, &directory.ValidationError{Field: "radius_km", Reason: "must be a number"})
		return
	}
	if !explicit {
		center = s.resolveCenter(r.Context())
	}

	start := time.Now()
	visible := query.VisibleRides(s.dir.Rides(), query.Filters{
		Center:    center.Coordinate,
		RadiusKm:  radius,
		TextQuery: q.Get("q"),
		BikeType:  q.Get("bike_type"),
		Pace:      q.Get("pace"),
	})
	observability.QueryLatency.Observe(time.Since(start).Seconds())

	views := make([]rideView, 0, len(visible))
	for _, ride := range visible {
		views = append(views, s.view(ride))
	}
	respond(w, r, http.StatusOK, listResponse{Rides: views, Pins: query.Pins(visible), Count: len(views), Center: center})
}

type rideResponse struct {
	Ride rideView     `json:"ride"`
	Pins []models.Pin `json:"pins"`
}

func (s *Server) handleGetRide(w http.ResponseWriter, r *http.Request) {
	ride, err := s.dir.Ride(mux.Vars(r)["id"])
	if err != nil {
		handleError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, rideResponse{Ride: s.view(ride), Pins: query.Pins([]models.Ride{ride})})
}

func (s *Server) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	var d directory.Draft
	if err := render.DecodeJSON(r.Body, &d); err != nil {
		handleError(w, r, &directory.ValidationError{Field: "body", Reason: "invalid JSON: " + err.Error()})
		return
	}
	ride, err := s.dir.CreateRide(r.Context(), d)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, s.view(ride))
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	u := s.dir.User()
	ride, err := s.dir.JoinRide(r.Context(), mux.Vars(r)["id"], u.ID, u.Name)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, s.view(ride))
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	ride, err := s.dir.LeaveRide(r.Context(), mux.Vars(r)["id"], s.dir.User().ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, s.view(ride))
}

type messageRequest struct {
	Body string `json:"body"`
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		handleError(w, r, &directory.ValidationError{Field: "body", Reason: "invalid JSON: " + err.Error()})
		return
	}
	msg, err := s.dir.PostMessage(r.Context(), mux.Vars(r)["id"], s.dir.User().Name, req.Body)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, msg)
}

type geocodeResponse struct {
	Results []models.Place `json:"results"`
}

// handleGeocode is a one-shot lookup. Failures answer with no results.
func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	text := strings.TrimSpace(r.URL.Query().Get("q"))
	results := []models.Place{}
	if text != "" && s.geocoder != nil {
		places, err := s.geocoder.Search(r.Context(), text)
		if err != nil {
			observability.GeocodeLookups.WithLabelValues("failed").Inc()
			s.logger.Warn("geocode lookup failed", "query", text, "error", err)
		} else {
			observability.GeocodeLookups.WithLabelValues("ok").Inc()
			results = append(results, places...)
		}
	}
	respond(w, r, http.StatusOK, geocodeResponse{Results: results})
}

func (s *Server) handleCenter(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, s.resolveCenter(r.Context()))
}

// resolveCenter asks the locator once per process, like a page load.
func (s *Server) resolveCenter(ctx context.Context) geo.Center {
	s.centerOnce.Do(func() {
		s.center = geo.ResolveCenter(context.WithoutCancel(ctx), nil, s.locator, s.locateTimeout, s.dir.Center())
		if s.center.Fallback && s.locator != nil {
			s.logger.Info("using default map center", "lat", s.center.Lat, "lng", s.center.Lng)
		}
	})
	return s.center
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("ws upgrade failed", "error", err)
		return
	}
	s.hub.Serve(conn)
}

var errNotFinite = errors.New("not a finite number")

// floatParam parses an optional query number. NaN and infinities are
// refused.
func floatParam(raw string, def float64) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotFinite
	}
	return f, nil
}
