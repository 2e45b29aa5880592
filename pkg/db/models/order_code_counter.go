package models

// OrderCodeCounter is a single-row-per-day sequence for order codes. The
// counter is advanced with one conditional UPDATE so concurrent checkouts
// across service instances never mint the same value.
type OrderCodeCounter struct {
	Day   string `gorm:"column:day;primaryKey"`
	Value int64  `gorm:"column:value;not null;default:0"`
}
