// Package server wraps the converter in a small HTTP service: upload an .mcz,
// get back a link to the converted .osz.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"mcz2osz/batch"
	"mcz2osz/rating"
	"mcz2osz/transcode"
)

const (
	formField        = "file"
	defaultMaxUpload = 256 << 20
	defaultTTL       = 30 * time.Minute
	shutdownTimeout  = 10 * time.Second
)

type Server struct {
	Orchestrator   *batch.Orchestrator
	UploadDir      string
	AllowedOrigins []string
	// MaxUpload caps the request body in bytes. Zero means 256 MiB.
	MaxUpload int64
	// TTL is how long a converted upload waits for its download before it
	// is removed. Zero means 30 minutes.
	TTL    time.Duration
	Logger *log.Logger

	mu      sync.Mutex
	pending map[string]upload
}

// upload is a converted container waiting to be downloaded.
type upload struct {
	source  string
	output  string
	name    string
	created time.Time
}

type uploadResponse struct {
	Download  string              `json:"download"`
	Summaries []transcode.Summary `json:"summaries"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) logger() *log.Logger {
	if s.Logger == nil {
		return log.Default()
	}
	return s.Logger
}

// Handler returns the routes wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	router.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)
	router.HandleFunc("/download/{name}", s.handleDownload).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	}).Methods(http.MethodGet)

	origins := s.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	})
	return c.Handler(router)
}

func (s *Server) ttl() time.Duration {
	if s.TTL <= 0 {
		return defaultTTL
	}
	return s.TTL
}

// expire removes the pending downloads created at or before cutoff along
// with their files.
func (s *Server) expire(cutoff time.Time) int {
	var stale []upload
	s.mu.Lock()
	for name, u := range s.pending {
		if !u.created.After(cutoff) {
			stale = append(stale, u)
			delete(s.pending, name)
		}
	}
	s.mu.Unlock()

	for _, u := range stale {
		os.Remove(u.source)
		os.Remove(u.output)
	}
	return len(stale)
}

func (s *Server) sweep(ctx context.Context) {
	ticker := time.NewTicker(s.ttl() / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.expire(now.Add(-s.ttl())); n > 0 {
				s.logger().Printf("expired %d unclaimed downloads", n)
			}
		}
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. Downloads nobody claimed are removed on the way out.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if err := os.MkdirAll(s.UploadDir, 0o755); err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	defer func() { s.expire(time.Now()) }()
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go s.sweep(sweepCtx)

	errc := make(chan error, 1)
	go func() {
		s.logger().Printf("listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexPage)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxUpload := s.MaxUpload
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	file, header, err := r.FormFile(formField)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{fmt.Sprintf("read %q: %v", formField, err)})
		return
	}
	defer file.Close()

	orchestrator, err := s.orchestratorFor(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})
		return
	}

	if !strings.EqualFold(filepath.Ext(header.Filename), batch.ContainerExt) {
		writeJSON(w, http.StatusBadRequest, errorResponse{"expected a " + batch.ContainerExt + " file"})
		return
	}

	id := uuid.NewString()
	source := filepath.Join(s.UploadDir, id+batch.ContainerExt)
	if err := saveUpload(source, file); err != nil {
		s.logger().Printf("upload %s: %v", header.Filename, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{"could not store upload"})
		return
	}

	out, err := orchestrator.ConvertContainer(source)
	if err != nil {
		os.Remove(source)
		s.logger().Printf("convert %s: %v", header.Filename, err)
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{err.Error()})
		return
	}

	download := id + batch.OutputExt
	stem := strings.TrimSuffix(filepath.Base(header.Filename), filepath.Ext(header.Filename))
	s.mu.Lock()
	if s.pending == nil {
		s.pending = make(map[string]upload)
	}
	s.pending[download] = upload{source: source, output: out.Path, name: stem + batch.OutputExt, created: time.Now()}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, uploadResponse{
		Download:  "/download/" + download,
		Summaries: out.Summaries,
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	s.mu.Lock()
	u, ok := s.pending[name]
	delete(s.pending, name)
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{"unknown download " + name})
		return
	}
	defer func() {
		os.Remove(u.source)
		os.Remove(u.output)
	}()

	f, err := os.Open(u.output)
	if err != nil {
		s.logger().Printf("download %s: %v", name, err)
		writeJSON(w, http.StatusGone, errorResponse{"download expired"})
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", u.name))
	http.ServeContent(w, r, u.name, info.ModTime(), f)
}

// orchestratorFor applies the rate and speed form values, from the query or
// the multipart body, on top of the server's defaults.
func (s *Server) orchestratorFor(r *http.Request) (*batch.Orchestrator, error) {
	o := *s.Orchestrator
	t := *o.Transcoder
	o.Transcoder = &t

	if v := r.FormValue("rate"); v != "" {
		rate, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("rate: %w", err)
		}
		switch {
		case !rate:
			t.Rater = nil
		case t.Rater == nil:
			t.Rater = rating.Mania{}
		}
	}
	if v := r.FormValue("speed"); v != "" {
		speed, err := strconv.ParseFloat(v, 64)
		if err != nil || speed <= 0 {
			return nil, fmt.Errorf("speed: want a positive number, got %q", v)
		}
		t.SpeedModifier = speed
	}
	return &o, nil
}

func saveUpload(dst string, src io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := f.ReadFrom(src); err != nil {
		f.Close()
		os.Remove(dst)
		return err
	}
	return f.Close()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

const indexPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>mcz2osz</title></head>
<body>
<h1>Malody to osu!mania</h1>
<form action="/upload" method="post" enctype="multipart/form-data">
<input type="file" name="file" accept=".mcz">
<select name="rate">
<option value="true" selected>with star rating</option>
<option value="false">without star rating</option>
</select>
<button type="submit">Convert</button>
</form>
</body>
</html>
`
