package models

type AuthProvider string

const (
	AuthProviderLocal  AuthProvider = "local"
	AuthProviderGoogle AuthProvider = "google"
)

// User owns memories. PasswordHash is nil for accounts created through social
// login. VerificationToken carries both the email verification token and the
// password reset token; issuing one replaces the other.
type User struct {
	BaseModel
	Name              string       `json:"name" gorm:"type:varchar(100);not null"`
	Email             string       `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash      *string      `json:"-" gorm:"type:text"`
	AvatarURL         *string      `json:"avatarURL,omitempty" gorm:"type:text"`
	AvatarKey         *string      `json:"-" gorm:"type:text"`
	IsVerified        bool         `json:"isVerified" gorm:"not null;default:false"`
	VerificationToken *string      `json:"-" gorm:"type:varchar(64);index"`
	AuthProvider      AuthProvider `json:"authProvider" gorm:"type:varchar(20);not null;default:'local'"`
	Memories          []Memory     `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}
