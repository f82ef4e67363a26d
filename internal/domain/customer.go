package domain

import "time"

// Customer is an identity record. Orders holds the ids of the owned orders;
// the orders themselves carry no back-reference.
type Customer struct {
	ID           int64     `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	Email        string    `gorm:"size:255;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"column:password;size:255" json:"-"`
	Name         string    `gorm:"size:200" json:"name"`
	LastName     string    `gorm:"size:200" json:"lastName"`
	Orders       RefList   `json:"orders" swaggertype:"array,string"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Customer) TableName() string {
	return "customers"
}

func (c *Customer) DocID() int64      { return c.ID }
func (c *Customer) SetDocID(id int64) { c.ID = id }
