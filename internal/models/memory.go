package models

import "github.com/google/uuid"

type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityShared  Visibility = "shared"
)

// SuggestedMoods is offered to clients; mood values are not restricted to it.
var SuggestedMoods = []string{"Happy", "Sad", "Excited", "Calm", "Nostalgic", "Grateful", "Loved", "Adventurous"}

// Memory is one dated entry with its photos. PhotoKeys holds the encoded
// object key list (see package photokeys); the column name predates the
// switch from a single key to a list and is kept for existing rows.
type Memory struct {
	BaseModel
	UserID      uuid.UUID  `json:"userID" gorm:"type:uuid;not null;index"`
	Title       string     `json:"title" gorm:"type:varchar(255);not null"`
	Description *string    `json:"description,omitempty" gorm:"type:text"`
	MemoryDate  string     `json:"memoryDate" gorm:"column:memory_date;type:varchar(10);not null"`
	Location    *string    `json:"location,omitempty" gorm:"type:varchar(255)"`
	Mood        string     `json:"mood" gorm:"type:varchar(50);not null"`
	Visibility  Visibility `json:"visibility" gorm:"type:varchar(20);not null;default:'private'"`
	PhotoKeys   string     `json:"-" gorm:"column:r2_key;type:text;not null"`
	MediaType   string     `json:"mediaType" gorm:"type:varchar(255);not null"`
}

func (Memory) TableName() string {
	return "memories"
}
