package sqlstore

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/suPer8Hu/medirec/internal/backend"
	"github.com/suPer8Hu/medirec/internal/models"
)

// Open picks the driver from the DSN: postgres:// and postgresql:// URLs go to
// postgres, anything else is treated as a MySQL DSN.
func Open(dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = mysql.Open(dsn)
	}
	return gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(log.New(os.Stdout, "\r\n", log.LstdFlags)),
	})
}

// newGormLogger keeps misses quiet: a first lookup of a new user's profile
// is expected to find nothing.
func newGormLogger(out gormlogger.Writer) gormlogger.Interface {
	return gormlogger.New(
		out,
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&ProfileRow{}, &PredictionRow{})
}

// Repo stores profiles and prediction history in SQL tables shaped like the
// hosted ones.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	var row ProfileRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, backend.ErrNotFound
		}
		return nil, err
	}
	return row.model(), nil
}

func (r *Repo) InsertProfile(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	row := profileRow(p)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row.model(), nil
}

// UpsertProfile creates the row or changes only its username.
func (r *Repo) UpsertProfile(ctx context.Context, id, username string) error {
	row := profileRow(&models.Profile{ID: id, Username: username})
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username"}),
		}).
		Create(row).Error
}

func (r *Repo) UpdateAvatarURL(ctx context.Context, id, avatarURL string) error {
	res := r.db.WithContext(ctx).Model(&ProfileRow{}).
		Where("id = ?", id).
		Update("avatar_url", avatarURL)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return backend.ErrNotFound
	}
	return nil
}

func (r *Repo) InsertPrediction(ctx context.Context, p *models.Prediction) error {
	return r.db.WithContext(ctx).Create(predictionRow(p)).Error
}

// ListPredictions returns the user's rows in DESC created_at order (newest -> oldest).
func (r *Repo) ListPredictions(ctx context.Context, userID string) ([]models.Prediction, error) {
	var rows []PredictionRow
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.Prediction, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].model())
	}
	return out, nil
}
