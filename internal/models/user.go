package models

type User struct {
	BaseModel
	Email        string     `gorm:"uniqueIndex;not null"`
	PasswordHash string     `gorm:"not null" json:"-"`
	Role         UserRole   `gorm:"default:'member'"`
	Status       UserStatus `gorm:"default:'active'"`
	IsVerified   bool       `gorm:"default:false"`

	// Relations
	Profile *Profile `gorm:"foreignKey:UserID"`
}
