package po

import "time"

// BaseModel 公共字段
type BaseModel struct {
	Id        uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `gorm:"column:created_at;type:datetime(3);index" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:datetime(3)" json:"updated_at"`
}
