package appctx

import (
	"context"

	"github.com/google/uuid"

	"github.com/qrave1/StudyRoom/internal/domain/models"
)

type ctxKey string

const (
	userIDKey  ctxKey = "userID"
	profileKey ctxKey = "profile"
)

// WithUser добавляет пользователя и его профиль в контекст
func WithUser(ctx context.Context, user models.User) context.Context {
	ctx = context.WithValue(ctx, userIDKey, user.ID)
	return context.WithValue(ctx, profileKey, user.Profile)
}

// UserID извлекает userID из контекста
func UserID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok
}

// User извлекает пользователя вместе с профилем
func User(ctx context.Context) (models.User, bool) {
	id, ok := UserID(ctx)
	if !ok {
		return models.User{}, false
	}

	profile, _ := ctx.Value(profileKey).(models.Profile)

	return models.User{ID: id, Profile: profile}, true
}
