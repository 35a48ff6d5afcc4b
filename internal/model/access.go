package model

// UserAccess links a user to its role and, optionally, the college it works in.
type UserAccess struct {
	UserID    string  `json:"user_id" db:"user_id"`
	RoleID    string  `json:"role_id" db:"role_id"`
	CollegeID *string `json:"college_id,omitempty" db:"college_id"`
}

func (a *UserAccess) College() string {
	if a.CollegeID == nil {
		return ""
	}
	return *a.CollegeID
}

// ClientConfiguration is the master record describing one tenant university.
type ClientConfiguration struct {
	UniversityID   string `json:"university_id" bson:"university_id"`
	UniversityName string `json:"university_name" bson:"university_name"`
	AWSEnv         string `json:"aws_env,omitempty" bson:"aws_env,omitempty"`
	Active         bool   `json:"active" bson:"active"`
}
