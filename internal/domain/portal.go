package domain

import "time"

// Formulario is a questionnaire the client must answer, with an optional
// uploaded response file.
type Formulario struct {
	ID          string     `json:"id"`
	ClientID    string     `json:"clientId"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"` // pending | answered
	ResponseKey string     `json:"responseKey,omitempty"`
	AnsweredAt  *time.Time `json:"answeredAt,omitempty"`
}

// Processo is a legal case tracked by the juridico module.
type Processo struct {
	ID            string    `json:"id"`
	ClientID      string    `json:"clientId"`
	Numero        string    `json:"numero"`
	Tipo          string    `json:"tipo"`
	Status        string    `json:"status"`
	ResponsibleID string    `json:"responsibleId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Notification is a portal message for a client.
type Notification struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"clientId"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}
