package domain

import "time"

const (
	MinRating = 0.0
	MaxRating = 5.0
)

type Review struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	Rating    float64   `json:"rating"`
	Comment   string    `gorm:"size:2000" json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName Specify table name
func (Review) TableName() string {
	return "reviews"
}

func (r *Review) DocID() int64      { return r.ID }
func (r *Review) SetDocID(id int64) { r.ID = id }

// ValidRating reports whether v lies in the inclusive rating range.
func ValidRating(v float64) bool {
	return v >= MinRating && v <= MaxRating
}
