package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/feunard/roadmap/internal/apperr"
	"github.com/feunard/roadmap/internal/domain"
	"github.com/feunard/roadmap/internal/repo"
)

// Access is the level of project access a caller needs.
type Access int

const (
	// Read covers listing and viewing; public projects grant it to anyone.
	Read Access = iota
	// Write covers task work and requires a character in the project.
	Write
	// Owner covers project settings, deletion and invitations.
	Owner
)

func (a Access) String() string {
	switch a {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return "owner"
	}
}

// Service answers project membership questions.
type Service struct {
	Repo repo.Repo
}

// Require loads the project and checks the user's access to it.
func (s Service) Require(ctx context.Context, projectID, userID string, access Access) (domain.Project, error) {
	p, err := s.Repo.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Project{}, apperr.WithMetadata(apperr.CodeProjectNotFound,
				fmt.Sprintf("project %s not found", projectID), map[string]string{"id": projectID})
		}
		return domain.Project{}, err
	}
	if userID != "" && p.CreatedBy == userID {
		return p, nil
	}
	if access == Owner {
		return domain.Project{}, forbidden(p.ID, userID, access)
	}
	if userID != "" {
		_, err = s.Repo.FindCharacter(ctx, userID, p.ID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return domain.Project{}, err
		}
	}
	if access == Read && p.Public {
		return p, nil
	}
	return domain.Project{}, forbidden(p.ID, userID, access)
}

// RequireMember is Require with Write access.
func (s Service) RequireMember(ctx context.Context, projectID, userID string) (domain.Project, error) {
	return s.Require(ctx, projectID, userID, Write)
}

func forbidden(projectID, userID string, access Access) error {
	return apperr.WithMetadata(apperr.CodeForbidden,
		fmt.Sprintf("%s access to project %s denied", access, projectID),
		map[string]string{"project_id": projectID, "user_id": userID, "access": access.String()})
}
