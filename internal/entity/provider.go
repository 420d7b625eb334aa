package entity

import "time"

// Registration is what a registry assigns to a provider.
type Registration struct {
	ID    int64
	Hash  string
	Class string
}

// IsZero reports whether the provider has not been registered.
func (r Registration) IsZero() bool {
	return r.Hash == ""
}

// Provider is a backend-specific adapter. Operations are bound separately
// (see package dispatch); this contract only covers identity.
type Provider interface {
	// BackendIdentity returns the values identifying the backend instance,
	// such as endpoint and tenant. Together with the concrete provider type
	// it determines the provider's stable hash.
	BackendIdentity() []string
	Registration() Registration
	SetRegistration(Registration)
}

// ProviderBase implements the registration half of Provider.
type ProviderBase struct {
	reg Registration
}

func (p *ProviderBase) Registration() Registration { return p.reg }

func (p *ProviderBase) SetRegistration(r Registration) { p.reg = r }

// DateFormatter renders timestamps in serialized output.
type DateFormatter interface {
	FormatDate(t time.Time) string
}

// DateFormatterProvider is implemented by providers whose backend expects
// a particular timestamp format.
type DateFormatterProvider interface {
	DateFormatter() DateFormatter
}

// DateLayout formats with a time.Format layout.
type DateLayout string

func (l DateLayout) FormatDate(t time.Time) string {
	return t.Format(string(l))
}

// DefaultDateFormatter is used when neither the rule set nor the provider
// supplies one.
var DefaultDateFormatter DateFormatter = DateLayout(time.RFC3339)
