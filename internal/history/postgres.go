package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// roundRecord is the gorm model behind the round_records table. Hands and
// results are stored as JSON text.
type roundRecord struct {
	ID          uint      `gorm:"primaryKey"`
	TableID     string    `gorm:"index;not null"`
	Round       int       `gorm:"not null"`
	FinishedAt  time.Time `gorm:"index;not null"`
	DealerValue int
	DealerHand  string `gorm:"type:text"`
	Results     string `gorm:"type:text"`
}

func (roundRecord) TableName() string { return "round_records" }

func toRecord(r Round) (roundRecord, error) {
	dealer, err := json.Marshal(r.DealerHand)
	if err != nil {
		return roundRecord{}, err
	}
	results, err := json.Marshal(r.Results)
	if err != nil {
		return roundRecord{}, err
	}
	return roundRecord{
		TableID:     r.TableID,
		Round:       r.Round,
		FinishedAt:  r.FinishedAt.UTC(),
		DealerValue: r.DealerHand.Value,
		DealerHand:  string(dealer),
		Results:     string(results),
	}, nil
}

func (rec roundRecord) toRound() (Round, error) {
	r := Round{TableID: rec.TableID, Round: rec.Round, FinishedAt: rec.FinishedAt.UTC()}
	if err := json.Unmarshal([]byte(rec.DealerHand), &r.DealerHand); err != nil {
		return Round{}, err
	}
	if err := json.Unmarshal([]byte(rec.Results), &r.Results); err != nil {
		return Round{}, err
	}
	return r, nil
}

type Postgres struct {
	db *gorm.DB
}

func OpenPostgres(dsn string, log *zap.Logger) (*Postgres, error) {
	if dsn == "" {
		return nil, fmt.Errorf("history: postgres dsn is required")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&roundRecord{}); err != nil {
		return nil, fmt.Errorf("migrate round_records: %w", err)
	}
	if log != nil {
		log.Info("history ledger ready", zap.String("driver", DriverPostgres))
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Record(ctx context.Context, r Round) error {
	rec, err := toRecord(r)
	if err != nil {
		return err
	}
	return p.db.WithContext(ctx).Create(&rec).Error
}

func (p *Postgres) Recent(ctx context.Context, tableID string, limit int) ([]Round, error) {
	var recs []roundRecord
	err := p.db.WithContext(ctx).
		Where("table_id = ?", tableID).
		Order("finished_at DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]Round, 0, len(recs))
	for _, rec := range recs {
		r, err := rec.toRound()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
