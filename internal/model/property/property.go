package property

// Property is a hotel or homestay the backend stub answers for.
type Property struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Timezone string `json:"timezone,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// DemoPropertyID is the tenant identifier seeded for local development.
const DemoPropertyID = "8d0f6c0e-3f5a-4b8e-9a61-2f1c7d9e4b10"

// Seed provides the properties known to a fresh stub backend.
func Seed() []Property {
	return []Property{
		{
			ID:       DemoPropertyID,
			Name:     "Nocturn Demo Resort",
			Timezone: "Asia/Kuala_Lumpur",
			Phone:    "+60 3-0000 0000",
		},
	}
}
