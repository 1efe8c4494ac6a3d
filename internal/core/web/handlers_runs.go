package web

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/seckatie/mirrorup/internal/core"
	"github.com/seckatie/mirrorup/internal/core/db"
	log "github.com/sirupsen/logrus"
)

const indexRunLimit = 100

func (ws *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	runs, err := ws.db.ListRuns(indexRunLimit)
	if err != nil {
		log.WithField("err", err).Error("Failed to list runs")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	views := make([]runView, 0, len(runs))
	for _, run := range runs {
		views = append(views, newRunView(run))
	}
	ws.renderTemplate(w, "index.html", map[string]any{"Runs": views})
}

func (ws *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	run, links, ok := ws.loadRun(w, r)
	if !ok {
		return
	}

	view := runDetailView{runView: newRunView(run), Styles: core.Styles}
	for _, l := range links {
		view.Links = append(view.Links, linkView{Host: l.Host, URL: l.URL, CreatedAt: l.CreatedAt})
	}
	ws.renderTemplate(w, "run.html", view)
}

// handleRunLinks returns the run's links formatted as plain text.
func (ws *Server) handleRunLinks(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	style := core.Style(r.URL.Query().Get("style"))
	if style != "" {
		var err error
		if style, err = core.ParseStyle(string(style)); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	run, links, ok := ws.loadRun(w, r)
	if !ok {
		return
	}
	if style == "" {
		style = core.Style(run.Style)
	}

	urls := make([]string, 0, len(links))
	for _, l := range links {
		urls = append(urls, l.URL)
	}
	entries, errs := core.Aggregate(urls)
	for _, err := range errs {
		log.WithFields(log.Fields{"run": run.ID, "err": err}).Warn("Dropping stored link")
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(core.Format(entries, style) + "\n")); err != nil {
		log.WithField("err", err).Warn("Failed to write response")
	}
}

// loadRun fetches the run named by the route and its links, writing the
// error response itself when it fails.
func (ws *Server) loadRun(w http.ResponseWriter, r *http.Request) (db.Run, []db.Link, bool) {
	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "Missing run id", http.StatusBadRequest)
		return db.Run{}, nil, false
	}

	run, err := ws.db.GetRun(id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "Run not found", http.StatusNotFound)
			return db.Run{}, nil, false
		}
		log.WithFields(log.Fields{"run": id, "err": err}).Error("Failed to get run")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return db.Run{}, nil, false
	}

	links, err := ws.db.ListLinks(id)
	if err != nil {
		log.WithFields(log.Fields{"run": id, "err": err}).Error("Failed to list links")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return db.Run{}, nil, false
	}
	return run, links, true
}
