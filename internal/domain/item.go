package domain

import "time"

// Item is a catalog entry. Reviews holds the ids of the attached reviews.
type Item struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	Name      string    `gorm:"size:200;index" json:"name"`
	Price     float64   `json:"price"`
	Image     string    `gorm:"size:1024" json:"image"` // URL to item image (optional)
	Reviews   RefList   `json:"reviews" swaggertype:"array,string"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Item) TableName() string {
	return "items"
}

func (i *Item) DocID() int64      { return i.ID }
func (i *Item) SetDocID(id int64) { i.ID = id }
