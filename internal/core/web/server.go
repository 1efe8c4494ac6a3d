package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/seckatie/mirrorup/internal/core/db"
	log "github.com/sirupsen/logrus"
)

//go:embed templates/*.html static/*.css
var templatesFS embed.FS

// Server serves the upload history read-only.
type Server struct {
	db        *db.DB
	templates *template.Template
	staticFS  http.FileSystem
}

// StartServer serves the history viewer on addr until ctx is cancelled.
func StartServer(ctx context.Context, addr string, database *db.DB) error {
	ws, err := newServer(database)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           ws.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithField("err", err).Warn("Web server shutdown failed")
		}
	}()

	log.WithField("addr", addr).Info("Starting web server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newServer(database *db.DB) (*Server, error) {
	templates, err := template.New("").Funcs(template.FuncMap{
		"status": runStatus,
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	staticSub, err := fs.Sub(templatesFS, "static")
	if err != nil {
		return nil, err
	}

	return &Server{
		db:        database,
		templates: templates,
		staticFS:  http.FS(staticSub),
	}, nil
}

// Handler returns the router with every route registered.
func (ws *Server) Handler() http.Handler {
	r := mux.NewRouter()
	ws.registerRoutes(r)
	return r
}

func (ws *Server) registerRoutes(r *mux.Router) {
	ws.registerStaticRoutes(r)

	r.HandleFunc("/", ws.handleIndex)
	r.HandleFunc("/runs/{id}", ws.handleRun)
	r.HandleFunc("/runs/{id}/links", ws.handleRunLinks)
}

func (ws *Server) registerStaticRoutes(r *mux.Router) {
	// Serve embedded static assets (CSS, etc)
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(ws.staticFS)))
}
