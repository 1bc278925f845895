package domain

import (
	"time"

	"github.com/google/uuid"
)

type ApplicationStatus string

const (
	StatusPending  ApplicationStatus = "pending"
	StatusApproved ApplicationStatus = "approved"
	StatusRejected ApplicationStatus = "rejected"
	StatusBanned   ApplicationStatus = "banned"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
	RoleOwner Role = "owner"
)

type User struct {
	ID                uuid.UUID         `json:"id"`
	Username          string            `json:"username"`
	Email             string            `json:"email"`
	FullName          string            `json:"fullName"`
	Avatar            *string           `json:"avatar,omitempty"`
	Role              Role              `json:"role"`
	ApplicationStatus ApplicationStatus `json:"applicationStatus"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// Principal is the resolved identity behind a verified credential.
type Principal struct {
	ID     uuid.UUID         `json:"id"`
	Role   Role              `json:"role"`
	Status ApplicationStatus `json:"status"`
}

func (p *Principal) Approved() bool {
	return p.Status == StatusApproved
}

// UserSummary is the minimal sender identity rendered next to a message.
type UserSummary struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	FullName string    `json:"fullName"`
	Avatar   *string   `json:"avatar,omitempty"`
}

func (u *User) Principal() *Principal {
	return &Principal{ID: u.ID, Role: u.Role, Status: u.ApplicationStatus}
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, FullName: u.FullName, Avatar: u.Avatar}
}
