package web

import (
	"github.com/seckatie/mirrorup/internal/core"
	"github.com/seckatie/mirrorup/internal/core/db"
)

type runView struct {
	ID         string
	Input      string
	Style      string
	StartedAt  string
	FinishedAt string // empty when the run never finished
	LinkCount  int
}

type linkView struct {
	Host      string
	URL       string
	CreatedAt string
}

type runDetailView struct {
	runView
	Links  []linkView
	Styles []core.Style
}

func newRunView(r db.Run) runView {
	return runView{
		ID:         r.ID,
		Input:      r.Input,
		Style:      r.Style,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		LinkCount:  r.LinkCount,
	}
}

func runStatus(finishedAt string) string {
	if finishedAt == "" {
		return "interrupted"
	}
	return "finished"
}
