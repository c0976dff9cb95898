package models

import "time"

// TimestampLayout matches the millisecond UTC form browsers produce for created_at.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

type Profile struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Prediction is one normalized prediction, shaped like a prediction_history row.
// It is never mutated after it has been saved.
type Prediction struct {
	ID               string   `json:"id"`
	UserID           string   `json:"user_id"`
	Symptoms         []string `json:"symptoms"`
	PredictedDisease string   `json:"predicted_disease"`
	Description      string   `json:"description"`
	Medications      []string `json:"medications"`
	Diet             []string `json:"diet"`
	Workout          []string `json:"workout"`
	Precautions      []string `json:"precautions"`
	CreatedAt        string   `json:"created_at"`
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
