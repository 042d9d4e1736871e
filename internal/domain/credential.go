package domain

import (
	"context"
	"time"
)

type Credential struct {
	Platform     Platform
	Role         string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UpdatedAt    time.Time
	Metadata     map[string]string
}

type CredentialRepository interface {
	Get(ctx context.Context, platform Platform, role string) (*Credential, error)
	Save(ctx context.Context, cred *Credential) error
	List(ctx context.Context) ([]*Credential, error)
	Delete(ctx context.Context, platform Platform, role string) error
}
