package database

import (
	"context"
	"errors"

	"github.com/alijaya/ispportal/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const jwtSecretKey = "jwt_secret"

// EnsureJWTSecret returns the signing secret stored in the database, saving
// fallback on first boot so sessions survive restarts.
func EnsureJWTSecret(ctx context.Context, db *gorm.DB, fallback string, log zerolog.Logger) string {
	if db == nil {
		return fallback
	}
	db = db.WithContext(ctx)

	var pref models.SystemPreference
	err := db.Where("key = ?", jwtSecretKey).First(&pref).Error
	if err == nil && pref.Value != "" {
		log.Info().Msg("JWT secret loaded from database")
		return pref.Value
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warn().Err(err).Msg("failed to read JWT secret, using configured secret")
		return fallback
	}

	pref = models.SystemPreference{Key: jwtSecretKey, Value: fallback, ValueType: "string"}
	if err := db.Create(&pref).Error; err != nil {
		// another instance may have won the insert
		var stored models.SystemPreference
		if db.Where("key = ?", jwtSecretKey).First(&stored).Error == nil && stored.Value != "" {
			return stored.Value
		}
		log.Warn().Err(err).Msg("failed to persist JWT secret")
		return fallback
	}

	log.Info().Msg("JWT secret generated and persisted to database")
	return fallback
}
