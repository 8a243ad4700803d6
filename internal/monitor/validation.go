package monitor

import (
	"errors"
	"net/url"
	"time"
)

// validation errors
var (
	ErrInvalidInterval = errors.New("interval must be a positive number of minutes")
	ErrInvalidEndpoint = errors.New("endpoint must be a valid http or https URL")
)

// ConfigureRequest is the body of a webhook reconfiguration call.
type ConfigureRequest struct {
	URL             string `json:"url"`
	IntervalMinutes int    `json:"interval_minutes"`
}

// Validate performs request validation without touching the scheduler.
func (r *ConfigureRequest) Validate() error {
	return ValidateTarget(r.Target())
}

// Target converts the request into a DeliveryTarget.
func (r *ConfigureRequest) Target() DeliveryTarget {
	return DeliveryTarget{
		URL:      r.URL,
		Interval: time.Duration(r.IntervalMinutes) * time.Minute,
	}
}

// ValidateTarget rejects non-positive intervals and malformed endpoints.
func ValidateTarget(target DeliveryTarget) error {
	if target.Interval <= 0 {
		return ErrInvalidInterval
	}

	u, err := url.Parse(target.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidEndpoint
	}

	return nil
}
