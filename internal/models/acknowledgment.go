package models

import "github.com/shopspring/decimal"

// AckComingSoon marks a feature that is announced but not operational
const AckComingSoon = "coming_soon"

// Acknowledgment is returned by features that accept a request but move no value (tips, deposits)
type Acknowledgment struct {
	Feature string           `json:"feature"`
	Status  string           `json:"status"`
	Message string           `json:"message"`
	Amount  *decimal.Decimal `json:"amount,omitempty"`
	To      string           `json:"to,omitempty"`
}

// ComingSoon builds a non-operational acknowledgment for a feature
func ComingSoon(feature string) *Acknowledgment {
	return &Acknowledgment{
		Feature: feature,
		Status:  AckComingSoon,
		Message: feature + " coming soon",
	}
}
