package domain

import "time"

// Client is a consulting case owner (the contracting party).
type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Document  string    `json:"document,omitempty"` // CPF/CNPJ
	Phone     string    `json:"phone,omitempty"`
	Country   string    `json:"country,omitempty"`
	VisaType  string    `json:"visaType,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// FamilyMember is the titular or a dependente on a case. Exactly one
// member per family should be titular; callers assume it, the store does
// not enforce it.
type FamilyMember struct {
	ID        string `json:"id"`
	ClientID  string `json:"clientId"`
	Name      string `json:"name"`
	Type      string `json:"type"` // relationship label: titular, conjuge, filho...
	IsTitular bool   `json:"isTitular"`
}

// ClientOverview aggregates the client record with its family members,
// fetched concurrently.
type ClientOverview struct {
	Client  *Client        `json:"client"`
	Members []FamilyMember `json:"members"`
}

// CreateClientRequest is the commercial-module intake payload.
type CreateClientRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Document string `json:"document,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Country  string `json:"country,omitempty"`
	VisaType string `json:"visaType,omitempty"`
}
