package layout

// Document is the on-disk shape of a facility layout.
type Document struct {
	Institution InstitutionDoc `yaml:"institution"`
	Lot         LotDoc         `yaml:"lot"`
	Floors      []FloorDoc     `yaml:"floors"`
}

type InstitutionDoc struct {
	ID                 string   `yaml:"id"`
	Name               string   `yaml:"name"`
	FreeParking        bool     `yaml:"free_parking"`
	FreeMinutes        int      `yaml:"free_minutes"`
	BaseRate           string   `yaml:"base_rate"`
	HourlyRate         string   `yaml:"hourly_rate"`
	MaxDurationMinutes int      `yaml:"max_duration_minutes"`
	AllowedVehicles    []string `yaml:"allowed_vehicles,omitempty"`
}

type LotDoc struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Enabled flags are pointers so an omitted flag means enabled.
type FloorDoc struct {
	ID       string       `yaml:"id"`
	Name     string       `yaml:"name,omitempty"`
	Enabled  *bool        `yaml:"enabled,omitempty"`
	Sections []SectionDoc `yaml:"sections"`
}

type SectionDoc struct {
	ID      string    `yaml:"id"`
	Name    string    `yaml:"name,omitempty"`
	Enabled *bool     `yaml:"enabled,omitempty"`
	Spots   []SpotDoc `yaml:"spots"`
}

type SpotDoc struct {
	ID              string   `yaml:"id"`
	Name            string   `yaml:"name,omitempty"`
	Category        string   `yaml:"category,omitempty"`
	Status          string   `yaml:"status,omitempty"`
	Enabled         *bool    `yaml:"enabled,omitempty"`
	AllowedVehicles []string `yaml:"allowed_vehicles,omitempty"`
	TicketID        string   `yaml:"ticket_id,omitempty"`
}
