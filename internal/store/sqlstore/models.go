package sqlstore

import (
	"time"

	"gorm.io/datatypes"

	"github.com/suPer8Hu/medirec/internal/models"
)

type ProfileRow struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	Username  string    `gorm:"type:varchar(64);not null;default:''"`
	AvatarURL string    `gorm:"type:varchar(512);not null;default:''"`
	CreatedAt time.Time
}

func (ProfileRow) TableName() string { return "profiles" }

type PredictionRow struct {
	ID               string                      `gorm:"type:varchar(36);primaryKey"`
	UserID           string                      `gorm:"type:varchar(36);not null;default:'';index:idx_history_user_created,priority:1"`
	Symptoms         datatypes.JSONSlice[string] `gorm:"not null"`
	PredictedDisease string                      `gorm:"type:varchar(255);not null;default:''"`
	Description      string                      `gorm:"type:text"`
	Medications      datatypes.JSONSlice[string] `gorm:"not null"`
	Diet             datatypes.JSONSlice[string] `gorm:"not null"`
	Workout          datatypes.JSONSlice[string] `gorm:"not null"`
	Precautions      datatypes.JSONSlice[string] `gorm:"not null"`
	CreatedAt        time.Time                   `gorm:"index:idx_history_user_created,priority:2"`
}

func (PredictionRow) TableName() string { return "prediction_history" }

func profileRow(p *models.Profile) *ProfileRow {
	return &ProfileRow{ID: p.ID, Username: p.Username, AvatarURL: p.AvatarURL, CreatedAt: parseTime(p.CreatedAt)}
}

func (r *ProfileRow) model() *models.Profile {
	return &models.Profile{
		ID:        r.ID,
		Username:  r.Username,
		AvatarURL: r.AvatarURL,
		CreatedAt: models.FormatTimestamp(r.CreatedAt),
	}
}

func predictionRow(p *models.Prediction) *PredictionRow {
	return &PredictionRow{
		ID:               p.ID,
		UserID:           p.UserID,
		Symptoms:         slice(p.Symptoms),
		PredictedDisease: p.PredictedDisease,
		Description:      p.Description,
		Medications:      slice(p.Medications),
		Diet:             slice(p.Diet),
		Workout:          slice(p.Workout),
		Precautions:      slice(p.Precautions),
		CreatedAt:        parseTime(p.CreatedAt),
	}
}

func (r *PredictionRow) model() models.Prediction {
	return models.Prediction{
		ID:               r.ID,
		UserID:           r.UserID,
		Symptoms:         strs(r.Symptoms),
		PredictedDisease: r.PredictedDisease,
		Description:      r.Description,
		Medications:      strs(r.Medications),
		Diet:             strs(r.Diet),
		Workout:          strs(r.Workout),
		Precautions:      strs(r.Precautions),
		CreatedAt:        models.FormatTimestamp(r.CreatedAt),
	}
}

// slice keeps empty lists as [] rather than null in the JSON column.
func slice(s []string) datatypes.JSONSlice[string] {
	if s == nil {
		return datatypes.JSONSlice[string]{}
	}
	return datatypes.JSONSlice[string](s)
}

func strs(s datatypes.JSONSlice[string]) []string {
	if s == nil {
		return []string{}
	}
	return []string(s)
}

func parseTime(s string) time.Time {
	for _, layout := range []string{models.TimestampLayout, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}
