package models

import (
	"time"
)

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Username     string `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email        string `gorm:"size:254" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`

	Jobs []Job `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
}

type Job struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`

	// Foreign Key, always set server-side from the authenticated account
	OwnerID uint `gorm:"not null;index" json:"-"`

	Company   string `gorm:"size:120;not null" json:"company"`
	Title     string `gorm:"size:120;not null" json:"title"`
	Status    Status `gorm:"size:20;not null;default:'applied';index" json:"status"`
	AppliedAt *Date  `json:"applied_at"`
	Note      string `gorm:"type:text;not null;default:''" json:"note"`
}

// CanTransitionTo checks target against the job's current status.
func (j *Job) CanTransitionTo(target Status) bool {
	return IsTransitionAllowed(j.Status, target)
}

// ActionableTransitions lists the statuses a client can meaningfully move this job to.
func (j *Job) ActionableTransitions() []Status {
	return ActionableTransitions(j.Status)
}

func (j *Job) IsTerminal() bool {
	return IsTerminal(j.Status)
}
