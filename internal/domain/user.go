package domain

import "time"

// MemberSinceFormat renders the month and year a user joined, e.g. "February 2026"
const MemberSinceFormat = "January 2006"

// User Model
type User struct {
	ID           uint          `gorm:"primaryKey" json:"id"`                                                    // Primary key
	Name         string        `gorm:"size:100;not null" json:"name"`                                           // Display name
	Email        string        `gorm:"type:varchar(150) COLLATE utf8mb4_bin;not null;uniqueIndex" json:"email"` // Unique, compared case-sensitively
	Phone        string        `gorm:"size:30;not null" json:"phone"`                                           // Optional phone number
	Address      string        `gorm:"size:200;not null" json:"address"`                                        // Optional postal address
	MemberSince  string        `gorm:"size:50;not null" json:"memberSince"`                                     // "Month YYYY"
	Transactions []Transaction `gorm:"constraint:OnDelete:CASCADE;" json:"transactions,omitempty"`              // Owned transactions
}

// FormatMemberSince formats t (in UTC) as a memberSince value
func FormatMemberSince(t time.Time) string {
	return t.UTC().Format(MemberSinceFormat)
}
