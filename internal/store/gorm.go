package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type document struct {
	Name      string `gorm:"primaryKey;size:32"`
	Body      string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (document) TableName() string { return "auction_documents" }

type GormGateway struct {
	db *gorm.DB
}

// OpenGorm connects to postgres when dsn looks like a postgres URL or
// keyword DSN and treats anything else as a sqlite file path.
func OpenGorm(dsn string) (*GormGateway, error) {
	var dialector gorm.Dialector
	if isPostgresDSN(dsn) {
		dialector = postgres.Open(dsn)
	} else {
		if dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return NewGorm(db)
}

// NewGorm wraps an open connection and migrates the document table.
func NewGorm(db *gorm.DB) (*GormGateway, error) {
	if err := db.AutoMigrate(&document{}); err != nil {
		return nil, fmt.Errorf("migrate documents: %w", err)
	}
	return &GormGateway{db: db}, nil
}

func (g *GormGateway) Load(ctx context.Context) (Documents, error) {
	var rows []document
	if err := g.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}
	docs := make(Documents, len(rows))
	for _, r := range rows {
		docs[r.Name] = []byte(r.Body)
	}
	return docs, nil
}

func (g *GormGateway) Save(ctx context.Context, docs Documents) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for name, body := range docs {
			if err := tx.Save(&document{Name: name, Body: string(body)}).Error; err != nil {
				return fmt.Errorf("write %s: %w", name, err)
			}
		}
		return nil
	})
}

func (g *GormGateway) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}
