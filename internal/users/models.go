package users

import "time"

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

type Address struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"-"`
	Type          string    `json:"addressType"` // shipping | billing
	StreetAddress string    `json:"streetAddress"`
	AptSuite      *string   `json:"aptSuite"`
	City          string    `json:"city"`
	State         string    `json:"state"`
	PostalCode    string    `json:"postalCode"`
	Country       string    `json:"country"`
	IsDefault     bool      `json:"isDefault"`
	CreatedAt     time.Time `json:"createdAt"`
}

const DefaultCountry = "United States"

// Line renders the address as the single string stored on orders.
func (a Address) Line() string {
	s := a.StreetAddress
	if a.AptSuite != nil && *a.AptSuite != "" {
		s += ", " + *a.AptSuite
	}
	return s + ", " + a.City + ", " + a.State + " " + a.PostalCode + ", " + a.Country
}
