// Package types contains read shapes shared by the store and the HTTP layer.
package types

import "time"

// Standing is the latest rating of one entity.
type Standing struct {
	EntityID    string    `json:"entity_id"`
	Rating      float64   `json:"rating"`
	Offense     float64   `json:"offense,omitempty"`
	Defense     float64   `json:"defense,omitempty"`
	Contests    int       `json:"contests"`
	LastContest time.Time `json:"last_contest"`
}

// Entry is a Standing with its position in the power ranking. Equal
// ratings share a rank and the next rank skips accordingly.
type Entry struct {
	Rank int `json:"rank"`
	Standing
}

// Point is one contest on an entity's rating path. Before is the rating
// carried into the contest and After the rating it left with.
type Point struct {
	ContestID string    `json:"contest_id"`
	OtherID   string    `json:"other_id"`
	Date      time.Time `json:"date"`
	Before    float64   `json:"before"`
	After     float64   `json:"after"`
	Predicted float64   `json:"predicted"`
}
