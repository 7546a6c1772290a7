package api

import (
	"github.com/janpfeifer/GoOracle/internal/game"
	"github.com/janpfeifer/GoOracle/internal/store"
)

// ModeRequest is the body of POST /api/tables and POST /api/tables/:id/start.
type ModeRequest struct {
	Mode     string `json:"mode"`
	Question string `json:"question"`
}

// GroupRequest is the body of the reveal and place commands.
type GroupRequest struct {
	Group *int `json:"group"`
}

// SpeedRequest is the body of PUT /api/tables/:id/speed.
type SpeedRequest struct {
	Speed int `json:"speed"`
}

// TableResponse is returned by every table endpoint.
type TableResponse struct {
	ID         string        `json:"id"`
	SpeedLabel string        `json:"speed_label"`
	Snapshot   game.Snapshot `json:"snapshot"`
}

type ResultsResponse struct {
	Results []store.Record `json:"results"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func toTableResponse(snap game.Snapshot) TableResponse {
	return TableResponse{ID: snap.ID, SpeedLabel: snap.Speed.Label(), Snapshot: snap}
}
