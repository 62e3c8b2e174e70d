package subscription

import "time"

// PeriodType classifies the billing period an entitlement was granted under.
type PeriodType string

const (
	// PeriodNormal is a regular paid period.
	PeriodNormal PeriodType = "normal"
	// PeriodTrial is a free trial period.
	PeriodTrial PeriodType = "trial"
	// PeriodIntro is an introductory-pricing period.
	PeriodIntro PeriodType = "intro"
)

// ParsePeriodType maps a provider period string onto a PeriodType. Unknown
// values fall back to PeriodNormal.
func ParsePeriodType(s string) PeriodType {
	switch PeriodType(s) {
	case PeriodTrial:
		return PeriodTrial
	case PeriodIntro:
		return PeriodIntro
	default:
		return PeriodNormal
	}
}

// Entitlement is a point-in-time view of the user's named entitlement,
// rebuilt from every query or push event and never persisted.
type Entitlement struct {
	Active            bool       `json:"active"`
	PeriodType        PeriodType `json:"period_type"`
	ExpirationDate    *time.Time `json:"expiration_date,omitempty"`
	WillRenew         bool       `json:"will_renew"`
	ProductIdentifier string     `json:"product_identifier,omitempty"`
}

// IsTrial reports whether the entitlement was granted under a trial period.
func (e *Entitlement) IsTrial() bool {
	return e != nil && e.PeriodType == PeriodTrial
}
