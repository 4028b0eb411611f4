package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenRepository defines decoupled operations for token persistence.
type TokenRepository interface {
	Get(ctx context.Context) (*Token, error)
	Upsert(ctx context.Context, token *Token) error
}

// GameRepository defines decoupled operations for the catalogue cache.
type GameRepository interface {
	Put(ctx context.Context, g Game) error
	GetByID(ctx context.Context, id int) (*Game, error)
	List(ctx context.Context) ([]Game, error)
	SearchByTitle(ctx context.Context, titleSubstr string) ([]Game, error)
	Clear(ctx context.Context) error
}

// InstallRepository defines operations for tracked game installations.
type InstallRepository interface {
	Upsert(ctx context.Context, rec Install) error
	GetByGameID(ctx context.Context, gameID int) (*Install, error)
	List(ctx context.Context) ([]Install, error)
}

// SettingRepository defines operations for persisted configuration values.
type SettingRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

type gormTokenRepo struct{ db *gorm.DB }
type gormGameRepo struct{ db *gorm.DB }
type gormInstallRepo struct{ db *gorm.DB }
type gormSettingRepo struct{ db *gorm.DB }

// NewTokenRepository creates a TokenRepository. Accepts *gorm.DB to avoid global access.
func NewTokenRepository(db *gorm.DB) TokenRepository { return &gormTokenRepo{db: db} }

// NewGameRepository creates a GameRepository.
func NewGameRepository(db *gorm.DB) GameRepository { return &gormGameRepo{db: db} }

// NewInstallRepository creates an InstallRepository.
func NewInstallRepository(db *gorm.DB) InstallRepository { return &gormInstallRepo{db: db} }

// NewSettingRepository creates a SettingRepository.
func NewSettingRepository(db *gorm.DB) SettingRepository { return &gormSettingRepo{db: db} }

func (r *gormTokenRepo) Get(ctx context.Context) (*Token, error) {
	if r.db == nil {
		return nil, fmt.Errorf("repository not initialized")
	}
	var token Token
	err := r.db.WithContext(ctx).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *gormTokenRepo) Upsert(ctx context.Context, token *Token) error {
	if r.db == nil {
		return fmt.Errorf("repository not initialized")
	}
	token.ID = 1
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "refresh_token", "expires_at"}),
	}).Create(token).Error
}

func (r *gormGameRepo) Put(ctx context.Context, g Game) error {
	if r.db == nil {
		return fmt.Errorf("repository not initialized")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&g).Error
}

func (r *gormGameRepo) GetByID(ctx context.Context, id int) (*Game, error) {
	if r.db == nil {
		return nil, fmt.Errorf("repository not initialized")
	}
	var game Game
	err := r.db.WithContext(ctx).First(&game, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &game, nil
}

func (r *gormGameRepo) List(ctx context.Context) ([]Game, error) {
	if r.db == nil {
		return nil, fmt.Errorf("repository not initialized")
	}
	var games []Game
	if err := r.db.WithContext(ctx).Find(&games).Error; err != nil {
		return nil, err
	}
	return games, nil
}

func (r *gormGameRepo) SearchByTitle(ctx context.Context, titleSubstr string) ([]Game, error) {
	if r.db == nil {
		return nil, fmt.Errorf("repository not initialized")
	}
	var games []Game
	if err := r.db.WithContext(ctx).Where("title LIKE ?", "%"+titleSubstr+"%").Find(&games).Error; err != nil {
		return nil, err
	}
	return games, nil
}

func (r *gormGameRepo) Clear(ctx context.Context) error {
	if r.db == nil {
		return fmt.Errorf("repository not initialized")
	}
	return r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&Game{}).Error
}

func (r *gormInstallRepo) Upsert(ctx context.Context, rec Install) error {
	if r.db == nil {
		return fmt.Errorf("repository not initialized")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
}

func (r *gormInstallRepo) GetByGameID(ctx context.Context, gameID int) (*Install, error) {
	if r.db == nil {
		return nil, fmt.Errorf("repository not initialized")
	}
	var rec Install
	err := r.db.WithContext(ctx).First(&rec, "game_id = ?", gameID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *gormInstallRepo) List(ctx context.Context) ([]Install, error) {
	if r.db == nil {
		return nil, fmt.Errorf("repository not initialized")
	}
	var recs []Install
	if err := r.db.WithContext(ctx).Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *gormSettingRepo) Get(ctx context.Context, key string) (string, error) {
	if r.db == nil {
		return "", fmt.Errorf("repository not initialized")
	}
	var s Setting
	err := r.db.WithContext(ctx).First(&s, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return s.Value, nil
}

func (r *gormSettingRepo) Set(ctx context.Context, key, value string) error {
	if r.db == nil {
		return fmt.Errorf("repository not initialized")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&Setting{Key: key, Value: value}).Error
}
