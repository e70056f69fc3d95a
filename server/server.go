// Package server exposes trainers over HTTP. A client creates a trainer
// from a registered dataset or a CSV URL, reads its scores and sends rows
// to predict. Fitted trainers live in memory in a bounded LRU store.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/YuminosukeSato/trainedml"
	"github.com/YuminosukeSato/trainedml/datasets"
	"github.com/YuminosukeSato/trainedml/pkg/errors"
	"github.com/YuminosukeSato/trainedml/pkg/log"
)

// DefaultMaxTrainers bounds the store when WithMaxTrainers is not given.
const DefaultMaxTrainers = 64

// Server holds the router and its dependencies.
type Server struct {
	router      *gin.Engine
	store       *Store
	loader      *datasets.Loader
	logger      log.Logger
	maxTrainers int
	seed        int64
	testSize    float64
}

// Option configures a Server.
type Option func(*Server)

// WithLoader sets the dataset loader shared by all trainers. Build it with
// datasets.WithRemoteOnly.
func WithLoader(l *datasets.Loader) Option { return func(s *Server) { s.loader = l } }

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option { return func(s *Server) { s.logger = l } }

// WithMaxTrainers bounds the number of trainers kept in memory.
func WithMaxTrainers(n int) Option { return func(s *Server) { s.maxTrainers = n } }

// WithDefaults sets the seed and test size used when a request omits them.
func WithDefaults(seed int64, testSize float64) Option {
	return func(s *Server) {
		s.seed = seed
		s.testSize = testSize
	}
}

// New builds the server and its routes.
func New(opts ...Option) (*Server, error) {
	s := &Server{
		logger:      log.GetLogger(),
		maxTrainers: DefaultMaxTrainers,
		seed:        trainedml.DefaultSeed,
		testSize:    trainedml.DefaultTestSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(log.ComponentKey, "server")

	if s.loader == nil {
		loader, err := datasets.NewLoader(datasets.WithLogger(s.logger), datasets.WithRemoteOnly())
		if err != nil {
			return nil, errors.Wrap(err, "create dataset loader")
		}
		s.loader = loader
	}
	store, err := NewStore(s.maxTrainers, s.logger)
	if err != nil {
		return nil, err
	}
	s.store = store

	s.router = gin.New()
	s.router.Use(RequestID(s.logger), Logging(), Recovery())
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.health)

	v1 := s.router.Group("/v1")
	v1.GET("/models", s.listModels)
	v1.GET("/datasets", s.listDatasets)

	v1.POST("/trainers", s.createTrainer)
	v1.GET("/trainers", s.listTrainers)
	v1.GET("/trainers/:id", s.getTrainer)
	v1.POST("/trainers/:id/predict", s.predict)
	v1.DELETE("/trainers/:id", s.deleteTrainer)
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler { return s.router }

// Store returns the trainer store.
func (s *Server) Store() *Store { return s.store }
