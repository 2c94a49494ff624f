package core

const avatarBaseURL = "https://api.dicebear.com/7.x/avataaars/svg?seed="

// SeedEmployees returns the default roster used when durable storage holds
// no employees. Each call returns a fresh slice.
func SeedEmployees() []Employee {
	return []Employee{
		{
			ID:           "1",
			FullName:     "John Doe",
			Gender:       GenderMale,
			DOB:          "1990-01-01",
			State:        "New York",
			IsActive:     true,
			ProfileImage: avatarBaseURL + "John",
		},
		{
			ID:           "2",
			FullName:     "Jane Smith",
			Gender:       GenderFemale,
			DOB:          "1992-05-15",
			State:        "California",
			IsActive:     true,
			ProfileImage: avatarBaseURL + "Jane",
		},
		{
			ID:           "3",
			FullName:     "Alice Johnson",
			Gender:       GenderFemale,
			DOB:          "1988-11-20",
			State:        "Texas",
			IsActive:     false,
			ProfileImage: avatarBaseURL + "Alice",
		},
	}
}
