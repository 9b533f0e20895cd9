package db

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	basesniper "github.com/web3guy0/basesniper"
)

// SignalRecord represents the database model for an emitted signal,
// written once at emission time for post-hoc auditing; the tracker's own
// in-memory state is the live source of truth and is never read back from
// here.
type SignalRecord struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	TokenAddress  string    `gorm:"index;type:varchar(42);not null"`
	EmittedAt     time.Time `gorm:"index;not null"`
	DexVersion    string    `gorm:"type:varchar(8)"`
	LiquidityUSD  string    `gorm:"type:varchar(64)"`
	EstimatedMcap string    `gorm:"type:varchar(64)"`
	LargestBuyUSD string    `gorm:"type:varchar(64)"`
	TotalBuys     string    `gorm:"type:varchar(16)"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

func (SignalRecord) TableName() string {
	return "signals"
}

// RejectionRecord captures a terminal reject, for understanding why a
// token never made it to signal without replaying the chain.
type RejectionRecord struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	TokenAddress string    `gorm:"index;type:varchar(42);not null"`
	RejectedAt   time.Time `gorm:"index;not null"`
	Reason       string    `gorm:"type:varchar(32);not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (RejectionRecord) TableName() string {
	return "rejections"
}

// SignalRecorder is a write-only diagnostic audit trail for signals and
// terminal rejects. It is explicitly not the tracker's persistence layer —
// the tracker itself never survives a restart, by design.
type SignalRecorder struct {
	db *gorm.DB
}

// NewSignalRecorder opens a MySQL connection and migrates the audit
// schema. dsn format: "user:password@tcp(host:port)/dbname?parseTime=True".
func NewSignalRecorder(dsn string) (*SignalRecorder, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect mysql: %w", err)
	}
	if err := db.AutoMigrate(&SignalRecord{}, &RejectionRecord{}); err != nil {
		return nil, fmt.Errorf("db: migrate schema: %w", err)
	}
	return &SignalRecorder{db: db}, nil
}

// RecordSignal writes one emitted signal to the audit trail.
func (r *SignalRecorder) RecordSignal(sig basesniper.SignalRecord) error {
	record := SignalRecord{
		TokenAddress:  sig.TokenAddress.Hex(),
		EmittedAt:     sig.EmittedAt,
		DexVersion:    sig.Diagnostics["dex_version"],
		LiquidityUSD:  sig.Diagnostics["liquidity_usd"],
		EstimatedMcap: sig.Diagnostics["estimated_mcap"],
		LargestBuyUSD: sig.Diagnostics["largest_buy_usd"],
		TotalBuys:     sig.Diagnostics["total_buys"],
	}
	if result := r.db.Create(&record); result.Error != nil {
		return fmt.Errorf("db: record signal: %w", result.Error)
	}
	return nil
}

// RecordRejection writes one terminal reject to the audit trail.
func (r *SignalRecorder) RecordRejection(token string, reason basesniper.RejectReason, at time.Time) error {
	record := RejectionRecord{
		TokenAddress: token,
		RejectedAt:   at,
		Reason:       string(reason),
	}
	if result := r.db.Create(&record); result.Error != nil {
		return fmt.Errorf("db: record rejection: %w", result.Error)
	}
	return nil
}

// Close closes the underlying database connection.
func (r *SignalRecorder) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("db: get underlying db: %w", err)
	}
	return sqlDB.Close()
}

// NoopRecorder is used when no DSN is configured; it satisfies the same
// surface the engine's diagnostic hooks expect without requiring MySQL.
type NoopRecorder struct{}

func (NoopRecorder) RecordSignal(basesniper.SignalRecord) error                      { return nil }
func (NoopRecorder) RecordRejection(string, basesniper.RejectReason, time.Time) error { return nil }
