package domain

// StopRecord is a stop as it arrives from an ingestion source.
type StopRecord struct {
	Name          string         `json:"name" validate:"required"`
	Latitude      float64        `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude     float64        `json:"longitude" validate:"gte=-180,lte=180"`
	RoadDistances map[string]int `json:"road_distances" validate:"dive,gte=0"`
}

// BusRecord is a route as it arrives from an ingestion source.
type BusRecord struct {
	Name        string   `json:"name" validate:"required"`
	Stops       []string `json:"stops"`
	IsRoundtrip bool     `json:"is_roundtrip"`
}

// Dataset is a complete set of entities ready to be loaded into a network.
type Dataset struct {
	Stops []StopRecord
	Buses []BusRecord
}
