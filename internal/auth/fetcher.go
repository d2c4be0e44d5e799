package auth

import (
	"github.com/itopex/opex-backend/internal/db"
	"github.com/itopex/opex-backend/internal/utils"
)

type SessionInfo struct{}

func (si SessionInfo) FindSessionByID(id string) (utils.SessionData, error) {
	var session Session

	err := db.DB.First(&session, "session_id = ?", id).Error
	if err != nil {
		return utils.SessionData{}, err
	}

	return utils.SessionData{
		UserID:    session.UserID,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

func (si SessionInfo) FindUserRole(userID string) (string, error) {
	var user User
	if err := db.DB.Select("user_id", "role").First(&user, "user_id = ?", userID).Error; err != nil {
		return "", err
	}
	return user.Role, nil
}
