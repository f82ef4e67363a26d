package domain

import "time"

// Order is a purchase record. Items are opaque line item documents.
type Order struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	Title     string    `gorm:"size:255" json:"title"`
	Date      time.Time `json:"date"`
	Items     LineItems `json:"items"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Order) TableName() string {
	return "orders"
}

func (o *Order) DocID() int64      { return o.ID }
func (o *Order) SetDocID(id int64) { o.ID = id }
