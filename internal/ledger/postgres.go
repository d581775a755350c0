package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Submission proof submission record
type Submission struct {
	ID          uint      `gorm:"primaryKey"`
	Fingerprint string    `gorm:"size:66;not null;uniqueIndex:idx_submission_fp_endpoint"`
	Endpoint    string    `gorm:"size:255;not null;uniqueIndex:idx_submission_fp_endpoint"`
	TxHash      string    `gorm:"size:66;not null"`
	RequestID   string    `gorm:"size:128"`
	ProofPath   string    `gorm:"size:512"`
	SubmittedAt time.Time `gorm:"not null;index"`
}

// TableName table name
func (Submission) TableName() string { return "proof_submissions" }

func (s *Submission) entry() *Entry {
	return &Entry{
		Fingerprint: s.Fingerprint,
		Endpoint:    s.Endpoint,
		TxHash:      s.TxHash,
		RequestID:   s.RequestID,
		ProofPath:   s.ProofPath,
		SubmittedAt: s.SubmittedAt,
	}
}

func submissionFrom(e *Entry) *Submission {
	return &Submission{
		Fingerprint: e.Fingerprint,
		Endpoint:    e.Endpoint,
		TxHash:      e.TxHash,
		RequestID:   e.RequestID,
		ProofPath:   e.ProofPath,
		SubmittedAt: e.SubmittedAt,
	}
}

// PostgresLedger shares the ledger between router instances.
type PostgresLedger struct {
	db  *gorm.DB
	log *logrus.Entry
}

// OpenPostgres connects and migrates the submissions table.
func OpenPostgres(dsn string, log *logrus.Entry) (*PostgresLedger, error) {
	if dsn == "" {
		return nil, errors.New("database DSN is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if err := db.AutoMigrate(&Submission{}); err != nil {
		return nil, fmt.Errorf("failed to migrate ledger table: %w", err)
	}

	log.Info("✅ ledger database connected")
	return &PostgresLedger{db: db, log: log}, nil
}

func (p *PostgresLedger) Lookup(ctx context.Context, fingerprint, endpoint string) (*Entry, error) {
	var s Submission
	err := p.db.WithContext(ctx).
		Where("fingerprint = ? AND endpoint = ?", fingerprint, endpoint).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger lookup failed: %w", err)
	}
	return s.entry(), nil
}

func (p *PostgresLedger) Record(ctx context.Context, e *Entry) error {
	err := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fingerprint"}, {Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"tx_hash", "request_id", "proof_path", "submitted_at"}),
	}).Create(submissionFrom(e)).Error
	if err != nil {
		return fmt.Errorf("ledger write failed: %w", err)
	}
	return nil
}

func (p *PostgresLedger) List(ctx context.Context, limit int) ([]Entry, error) {
	q := p.db.WithContext(ctx).Order("submitted_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []Submission
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("ledger scan failed: %w", err)
	}
	out := make([]Entry, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].entry())
	}
	return out, nil
}

func (p *PostgresLedger) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
