package shared

// Modules lists the feature modules an installation has switched on. It is
// loaded once from configuration and handed to components at construction.
type Modules struct {
	Reservations bool `envconfig:"RESERVATIONS" default:"true"`
	Restaurant   bool `envconfig:"RESTAURANT" default:"true"`
	FrontOffice  bool `envconfig:"FRONT_OFFICE" default:"true"`
	Conference   bool `envconfig:"CONFERENCE" default:"false"`
}

// Enabled reports the flag for a module name as used in routes and logs.
func (m Modules) Enabled(name string) bool {
	switch name {
	case "reservations":
		return m.Reservations
	case "restaurant":
		return m.Restaurant
	case "front_office":
		return m.FrontOffice
	case "conference":
		return m.Conference
	default:
		return false
	}
}
