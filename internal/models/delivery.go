package models

import "time"

// DeliveryInfo is derived from the wall clock and the organization's cutoff
// configuration on every read; it is never persisted.
type DeliveryInfo struct {
	CanOrder            bool      `json:"can_order"`
	DeliveryDate        time.Time `json:"delivery_date"`
	CutoffDateTime      time.Time `json:"cutoff_date_time"`
	FormattedCutoffTime string    `json:"formatted_cutoff_time"`
	DeliveryWindowStart time.Time `json:"delivery_window_start"`
	DeliveryWindowEnd   time.Time `json:"delivery_window_end"`
}
