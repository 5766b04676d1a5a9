package types

// Program is the top of the clinic network hierarchy. A program owns
// clinics; a clinic owns locations. Parent links are immutable after
// creation (re-parenting is unsupported).
type Program struct {
	ID          string `json:"program_id"`
	Name        string `json:"name"`
	Prefix      string `json:"prefix"`
	ProgramType string `json:"program_type,omitempty"`
	Status      string `json:"status"`
}

type Clinic struct {
	ID        string `json:"clinic_id"`
	ProgramID string `json:"program_id"`
	Name      string `json:"name"`
	Code      string `json:"code,omitempty"`
	Status    string `json:"status"`
}

type Location struct {
	ID       string `json:"location_id"`
	ClinicID string `json:"clinic_id"`
	Name     string `json:"name"`
	Code     string `json:"code,omitempty"`
}

type ClinicTree struct {
	Clinic
	Locations []Location `json:"locations,omitempty"`
}

type ProgramTree struct {
	Program
	Clinics []ClinicTree `json:"clinics,omitempty"`
}
