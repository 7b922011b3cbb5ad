package model

import "time"

// SecurityQuestions maps question keys to their prompt text.
var SecurityQuestions = map[string]string{
	"pet":    "Apa nama hewan peliharaan pertama Anda?",
	"school": "Di sekolah mana Anda bersekolah di SD?",
	"city":   "Di kota mana Anda dilahirkan?",
	"food":   "Makanan favorit Anda adalah?",
	"color":  "Warna favorit Anda adalah?",
}

// User is a registered operator. Hash fields never leave the service layer.
type User struct {
	ID                 string    `json:"id"`
	FullName           string    `json:"fullName"`
	Email              string    `json:"email"`
	Username           string    `json:"username"`
	BirthDate          string    `json:"birthDate,omitempty"`
	PasswordHash       string    `json:"-"`
	SecurityQuestion   string    `json:"securityQuestion"`
	SecurityAnswerHash string    `json:"-"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}
