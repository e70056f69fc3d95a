package server

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/YuminosukeSato/trainedml"
	"github.com/YuminosukeSato/trainedml/datasets"
	"github.com/YuminosukeSato/trainedml/evaluation"
	"github.com/YuminosukeSato/trainedml/models"
	"github.com/YuminosukeSato/trainedml/pkg/errors"
	"github.com/YuminosukeSato/trainedml/pkg/log"
)

type createTrainerRequest struct {
	Dataset  string   `json:"dataset"`
	URL      string   `json:"url"`
	Target   string   `json:"target"`
	Sep      string   `json:"sep"`
	Hash     string   `json:"hash"`
	Model    string   `json:"model"`
	TestSize *float64 `json:"test_size"`
	Seed     *int64   `json:"seed"`
}

type predictRequest struct {
	Rows [][]float64 `json:"rows" binding:"required"`
}

type trainerResponse struct {
	ID        string            `json:"id"`
	Model     string            `json:"model"`
	Task      models.Task       `json:"task"`
	Dataset   string            `json:"dataset,omitempty"`
	URL       string            `json:"url,omitempty"`
	Target    string            `json:"target,omitempty"`
	Seed      int64             `json:"seed"`
	TestSize  float64           `json:"test_size"`
	TrainRows int               `json:"train_rows"`
	TestRows  int               `json:"test_rows"`
	Dropped   int               `json:"dropped_rows"`
	Features  []string          `json:"features"`
	Classes   []string          `json:"classes,omitempty"`
	Scores    evaluation.Scores `json:"scores"`
	CreatedAt time.Time         `json:"created_at"`
}

type predictResponse struct {
	Predictions []float64 `json:"predictions"`
	Labels      []string  `json:"labels"`
}

type datasetResponse struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Target string `json:"target"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "trainers": s.store.Len()})
}

func (s *Server) listModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"classifiers": models.ClassifierNames,
		"regressors":  models.RegressorNames,
	})
}

func (s *Server) listDatasets(c *gin.Context) {
	names := datasets.Known()
	items := make([]datasetResponse, 0, len(names))
	for _, name := range names {
		spec, _ := datasets.Lookup(name)
		items = append(items, datasetResponse{Name: name, URL: spec.URL, Target: spec.Target})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) createTrainer(c *gin.Context) {
	var req createTrainerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.NewValidationError("body", err.Error(), nil))
		return
	}

	if err := checkRemote(req.URL); err != nil {
		writeError(c, err)
		return
	}

	seed, testSize := s.seed, s.testSize
	if req.Seed != nil {
		seed = *req.Seed
	}
	if req.TestSize != nil {
		testSize = *req.TestSize
	}
	opts := []trainedml.Option{
		trainedml.WithLoader(s.loader),
		trainedml.WithLogger(requestLogger(c)),
		trainedml.WithSeed(seed),
		trainedml.WithTestSize(testSize),
	}
	if req.Model != "" {
		opts = append(opts, trainedml.WithModel(req.Model))
	}
	if req.Dataset != "" {
		opts = append(opts, trainedml.WithDataset(req.Dataset))
	}
	if req.URL != "" {
		opts = append(opts, trainedml.WithURL(req.URL))
	}
	if req.Target != "" {
		opts = append(opts, trainedml.WithTarget(req.Target))
	}
	if req.Sep != "" {
		opts = append(opts, trainedml.WithSeparator(req.Sep))
	}
	if req.Hash != "" {
		opts = append(opts, trainedml.WithKnownHash(req.Hash))
	}

	t, err := trainedml.New(opts...)
	if err != nil {
		writeError(c, err)
		return
	}

	var scores evaluation.Scores
	err = errors.SafeExecute("server.fit", func() error {
		if err := t.Fit(c.Request.Context()); err != nil {
			return err
		}
		var err error
		scores, err = t.Evaluate()
		return err
	})
	if err != nil {
		writeError(c, err)
		return
	}

	e := &Entry{
		Dataset: req.Dataset,
		URL:     req.URL,
		Target:  req.Target,
		Trainer: t,
		Scores:  scores,
	}
	id := s.store.Add(e)
	requestLogger(c).Info("Trainer created",
		log.TrainerIDKey, id,
		log.ModelNameKey, t.ModelName(),
		log.TaskKey, string(t.Task()),
	)
	c.JSON(http.StatusCreated, toResponse(e))
}

// checkRemote rejects sources on the server's own file system.
func checkRemote(source string) error {
	if source == "" {
		return nil
	}
	u, err := url.Parse(source)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.WithHint(
			errors.NewValidationError("url", "must be an http or https URL", nil),
			"use a registered dataset name or a remote CSV URL",
		)
	}
	return nil
}

func (s *Server) listTrainers(c *gin.Context) {
	ids := s.store.IDs()
	items := make([]trainerResponse, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.store.Get(id); ok {
			items = append(items, toResponse(e))
		}
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

func (s *Server) getTrainer(c *gin.Context) {
	e, ok := s.store.Get(c.Param("id"))
	if !ok {
		writeError(c, errNotFound)
		return
	}
	c.JSON(http.StatusOK, toResponse(e))
}

func (s *Server) predict(c *gin.Context) {
	e, ok := s.store.Get(c.Param("id"))
	if !ok {
		writeError(c, errNotFound)
		return
	}

	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.NewValidationError("rows", err.Error(), nil))
		return
	}

	pred, err := e.Trainer.Predict(req.Rows)
	if err != nil {
		writeError(c, err)
		return
	}
	labels, err := e.Trainer.PredictLabels(req.Rows)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, predictResponse{Predictions: pred, Labels: labels})
}

func (s *Server) deleteTrainer(c *gin.Context) {
	id := c.Param("id")
	if !s.store.Remove(id) {
		writeError(c, errNotFound)
		return
	}
	requestLogger(c).Info("Trainer deleted", log.TrainerIDKey, id)
	c.Status(http.StatusNoContent)
}

func toResponse(e *Entry) trainerResponse {
	t := e.Trainer
	resp := trainerResponse{
		ID:        e.ID,
		Model:     t.ModelName(),
		Task:      t.Task(),
		Dataset:   e.Dataset,
		URL:       e.URL,
		Target:    e.Target,
		Seed:      t.Seed(),
		Dropped:   t.Dropped(),
		Features:  t.Features(),
		Classes:   t.Classes(),
		Scores:    e.Scores,
		CreatedAt: e.CreatedAt,
	}
	if split := t.Split(); split != nil {
		resp.TrainRows, resp.TestRows, _ = split.Shapes()
		resp.TestSize = split.TestSize
	}
	return resp
}
