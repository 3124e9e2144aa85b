package api

import (
	"time"

	"github.com/google/uuid"
)

type StartRequest struct {
	Phone string `json:"phone" validate:"required"`
}

type StartResponse struct {
	ID uuid.UUID `json:"id"`
}

type CheckRequest struct {
	ID   string `json:"id" validate:"required,uuid"`
	Code string `json:"code" validate:"required"`
}

type CheckResponse struct {
	Verified bool `json:"verified"`
}

type StatusRequest struct {
	ID string `json:"id" validate:"required,uuid"`
}

type StatusResponse struct {
	ID       uuid.UUID  `json:"id"`
	Phone    string     `json:"phone"`
	Created  time.Time  `json:"created"`
	Verified *time.Time `json:"verified"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
