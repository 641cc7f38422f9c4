package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"voicetriage/internal/domain"
	"voicetriage/pkg/logger"
)

const (
	// DefaultProcessingDelay is how long a record stays processing before it
	// is classified.
	DefaultProcessingDelay = 3 * time.Second

	maxUploadBytes = 64 << 20
)

// Options configures the reference backend.
type Options struct {
	// ProcessingDelay is applied before classification. Zero uses
	// DefaultProcessingDelay.
	ProcessingDelay time.Duration
	// Classifier resolves uploads. Nil uses DurationClassifier.
	Classifier Classifier
	// Manual leaves uploads processing until Complete or Fail is called.
	Manual         bool
	AllowedOrigins []string
}

// Server implements the voicemail HTTP contract on top of Storage.
type Server struct {
	storage    *Storage
	classifier Classifier
	delay      time.Duration
	manual     bool
	origins    []string
	feed       *feedHub
	logger     *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

// NewServer creates a server. Close stops background processing.
func NewServer(storage *Storage, opts Options, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	if opts.ProcessingDelay <= 0 {
		opts.ProcessingDelay = DefaultProcessingDelay
	}
	if opts.Classifier == nil {
		opts.Classifier = DurationClassifier{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	log = log.Named("devserver")
	return &Server{
		storage:    storage,
		classifier: opts.Classifier,
		delay:      opts.ProcessingDelay,
		manual:     opts.Manual,
		origins:    opts.AllowedOrigins,
		feed:       newFeedHub(opts.AllowedOrigins, log),
		logger:     log,
		ctx:        ctx,
		cancel:     cancel,
		now:        time.Now,
	}
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(requestLogger(s.logger))
	router.Use(middleware.Recoverer)
	router.Use(cors(s.origins))

	router.Route("/api/voicemails", func(router chi.Router) {
		router.Get("/", s.listVoicemails)
		router.Post("/", s.uploadVoicemail)
		router.Get("/audio/{filePath}", s.getAudio)
		router.Get("/events", s.feed.serveWS)
	})
	return router
}

// Close cancels pending classifications, waits for them to exit and
// disconnects change feed subscribers.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
	s.feed.close()
}

// Complete resolves id with result. A non-terminal status is stored as
// COMPLETED.
func (s *Server) Complete(ctx context.Context, id string, result Result) error {
	if !result.Status.IsTerminal() || result.Status == "" {
		result.Status = domain.StatusCompleted
	}
	return s.resolve(ctx, id, result)
}

// Fail marks id as failed.
func (s *Server) Fail(ctx context.Context, id string) error {
	return s.resolve(ctx, id, Result{Status: domain.StatusFailed})
}

// Subscribers reports the number of connected change feed clients.
func (s *Server) Subscribers() int {
	return s.feed.subscribers()
}

// resolve stores result and announces the change to feed subscribers.
func (s *Server) resolve(ctx context.Context, id string, result Result) error {
	if err := s.storage.Resolve(ctx, id, result); err != nil {
		return err
	}
	s.feed.broadcast(notice{Type: "updated", ID: id, Status: string(result.Status)})
	return nil
}

type uploadResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) listVoicemails(w http.ResponseWriter, r *http.Request) {
	records, err := s.storage.List(r.Context())
	if err != nil {
		s.logger.Error("list failed", logger.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list voicemails"})
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) uploadVoicemail(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "multipart field \"file\" is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read upload"})
		return
	}
	if len(data) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "empty upload"})
		return
	}

	id := uuid.NewString()
	record, err := s.storage.Insert(r.Context(), id, id+".wav", data, s.now())
	if err != nil {
		s.logger.Error("insert failed", logger.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to store voicemail"})
		return
	}
	s.logger.Info("voicemail received",
		logger.String("id", record.ID),
		logger.Int("bytes", len(data)),
	)
	s.feed.broadcast(notice{Type: "created", ID: record.ID, Status: string(record.Status)})

	if !s.manual {
		s.process(record.ID, data)
	}
	writeJSON(w, http.StatusOK, uploadResponse{ID: record.ID, Status: "queued"})
}

func (s *Server) getAudio(w http.ResponseWriter, r *http.Request) {
	filePath, err := url.PathUnescape(chi.URLParam(r, "filePath"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	data, err := s.storage.Audio(r.Context(), filePath)
	if errors.Is(err, ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.logger.Error("audio lookup failed", logger.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load audio"})
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	_, _ = w.Write(data)
}

// process classifies an upload in the background after the configured delay.
func (s *Server) process(id string, data []byte) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
		}

		result, err := s.classifier.Classify(s.ctx, data)
		if err != nil {
			s.logger.Warn("classification failed", logger.String("id", id), logger.Error(err))
			result = Result{Status: domain.StatusFailed}
		}
		if !result.Status.IsTerminal() || result.Status == "" {
			result.Status = domain.StatusCompleted
		}
		if err := s.resolve(s.ctx, id, result); err != nil {
			s.logger.Error("failed to store result", logger.String("id", id), logger.Error(err))
			return
		}
		s.logger.Info("voicemail processed",
			logger.String("id", id),
			logger.String("status", string(result.Status)),
			logger.String("urgency", string(result.Urgency)),
		)
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
