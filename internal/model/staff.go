package model

// StaffMember is an engineer customers can book with.
type StaffMember struct {
	ID   string `json:"id"   yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// DefaultStaff is the roster used when studio.yaml lists none.
func DefaultStaff() []StaffMember {
	return []StaffMember{
		{ID: "as-if", Name: "AS IF!"},
		{ID: "naif", Name: "NAIF"},
		{ID: "tt", Name: "TT"},
		{ID: "richie", Name: "RICHIE"},
	}
}

// FindStaff returns the member with the given id.
func FindStaff(staff []StaffMember, id string) (StaffMember, bool) {
	for _, s := range staff {
		if s.ID == id {
			return s, true
		}
	}
	return StaffMember{}, false
}
