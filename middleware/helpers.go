package middleware

import (
	"fmt"

	"github.com/golang-jwt/jwt/v4"

	"github.com/Dosada05/popularity-cup/models"
)

// Имена claims совпадают с теми, что выдаёт services.AuthService.
const (
	jwtClaimUserID = "user_id"
	jwtClaimRole   = "role"
	jwtClaimName   = "name"
)

func actorFromClaims(claims jwt.MapClaims) (models.Actor, error) {
	userID, ok := claims[jwtClaimUserID].(string)
	if !ok || userID == "" {
		return models.Actor{}, fmt.Errorf("missing '%s' claim in token", jwtClaimUserID)
	}

	roleStr, ok := claims[jwtClaimRole].(string)
	if !ok {
		return models.Actor{}, fmt.Errorf("missing '%s' claim in token", jwtClaimRole)
	}
	role := models.UserRole(roleStr)
	switch role {
	case models.RoleStaff, models.RoleMember:
	default:
		return models.Actor{}, fmt.Errorf("invalid role value in claim: %q", roleStr)
	}

	name, _ := claims[jwtClaimName].(string)
	if name == "" {
		name = userID
	}
	return models.Actor{ID: userID, DisplayName: name, Role: role}, nil
}
