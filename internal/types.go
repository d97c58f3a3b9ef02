package internal

type RawRecord struct {
	LineNo       int
	Name         string
	TaxID        string
	City         string
	Contact      string
	Phone        string
	EquipmentRaw string
}

type Coordinate struct {
	Latitude  float64
	Longitude float64
}

type Place struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Entity is one deduplicated client in the processed artifact.
type Entity struct {
	Name      string   `json:"name"`
	TaxID     string   `json:"taxId"`
	City      string   `json:"city"`
	Contact   string   `json:"contact"`
	Phone     string   `json:"phone"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Equipment []string `json:"equipment"`
}

func (e Entity) HasCoordinates() bool {
	return e.Latitude != nil && e.Longitude != nil
}

type RunStats struct {
	Rows             int      `json:"rows"`
	Skipped          int      `json:"skipped"`
	Failed           int      `json:"failed"`
	Entities         int      `json:"entities"`
	WithCoordinates  int      `json:"withCoordinates"`
	UnresolvedCities []string `json:"-"`
}

type RunRow struct {
	ID         int
	TraceID    string
	InputPath  string
	OutputPath string
	Stats      RunStats
	DurationMs float64
	CreatedAt  string
}

// CityQuery carries both forms of a city: the refined lookup key and the
// original display text for remote resolvers.
type CityQuery struct {
	Key     string
	Display string
}
