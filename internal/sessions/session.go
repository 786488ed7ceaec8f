package sessions

import "time"

// Session is a refresh session. AuthTime is carried over from the sign-in
// that opened it so refreshed access tokens keep the original auth_time.
type Session struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	RefreshToken string    `bson:"refreshToken" json:"refreshToken"`
	UID          string    `bson:"uid" json:"uid"`
	AuthTime     time.Time `bson:"authTime" json:"authTime"`
	ExpiresAt    time.Time `bson:"expiresAt" json:"expiresAt"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}
