package models

// Skill is a named competency with a level in [0,100].
type Skill struct {
	Name  string `json:"name"`
	Level int    `json:"level"`
}

// UserProfile is the durable profile record of the signed-in user.
type UserProfile struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Username   string  `json:"username"`
	Email      string  `json:"email"`
	Title      string  `json:"title"`
	Bio        string  `json:"bio"`
	Avatar     string  `json:"avatar"`
	Location   string  `json:"location"`
	Level      int     `json:"level"`
	XP         int     `json:"xp"`
	Reputation int     `json:"reputation"`
	Skills     []Skill `json:"skills"`
}

// Clone returns a deep copy of p.
func (p UserProfile) Clone() UserProfile {
	if p.Skills != nil {
		skills := make([]Skill, len(p.Skills))
		copy(skills, p.Skills)
		p.Skills = skills
	}
	return p
}

// ProfilePatch is a partial profile update. Nil fields are left unchanged;
// Skills replaces the whole list when set.
type ProfilePatch struct {
	Name       *string  `json:"name,omitempty"`
	Username   *string  `json:"username,omitempty"`
	Email      *string  `json:"email,omitempty"`
	Title      *string  `json:"title,omitempty"`
	Bio        *string  `json:"bio,omitempty"`
	Avatar     *string  `json:"avatar,omitempty"`
	Location   *string  `json:"location,omitempty"`
	Level      *int     `json:"level,omitempty"`
	XP         *int     `json:"xp,omitempty"`
	Reputation *int     `json:"reputation,omitempty"`
	Skills     *[]Skill `json:"skills,omitempty"`
}

// Apply returns p with every non-nil field of patch copied over.
func (patch ProfilePatch) Apply(p UserProfile) UserProfile {
	p = p.Clone()
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Username != nil {
		p.Username = *patch.Username
	}
	if patch.Email != nil {
		p.Email = *patch.Email
	}
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Bio != nil {
		p.Bio = *patch.Bio
	}
	if patch.Avatar != nil {
		p.Avatar = *patch.Avatar
	}
	if patch.Location != nil {
		p.Location = *patch.Location
	}
	if patch.Level != nil {
		p.Level = *patch.Level
	}
	if patch.XP != nil {
		p.XP = *patch.XP
	}
	if patch.Reputation != nil {
		p.Reputation = *patch.Reputation
	}
	if patch.Skills != nil {
		skills := make([]Skill, len(*patch.Skills))
		copy(skills, *patch.Skills)
		p.Skills = skills
	}
	return p
}
