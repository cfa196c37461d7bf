package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/feunard/roadmap/internal/apperr"
	"github.com/feunard/roadmap/internal/domain"
	"github.com/feunard/roadmap/internal/progression"
	"github.com/feunard/roadmap/internal/repo"
)

// CharacterView is a stored character with its derived progression.
type CharacterView struct {
	domain.Character
	Sheet progression.Sheet `json:"sheet"`
}

func viewOf(c domain.Character) (CharacterView, error) {
	sheet, err := progression.CharacterSheet(c)
	if err != nil {
		return CharacterView{}, fmt.Errorf("character %s: %w", c.ID, err)
	}
	return CharacterView{Character: c, Sheet: sheet}, nil
}

// CharacterFor returns the user's character in a project.
func (e Engine) CharacterFor(ctx context.Context, projectID, userID string) (CharacterView, error) {
	c, err := e.Repo.FindCharacter(ctx, userID, projectID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CharacterView{}, apperr.WithMetadata(apperr.CodeCharacterNotFound,
				fmt.Sprintf("user %s has no character in project %s", userID, projectID),
				map[string]string{"user_id": userID, "project_id": projectID})
		}
		return CharacterView{}, err
	}
	return viewOf(c)
}

// CharactersForUser returns every character the user holds.
func (e Engine) CharactersForUser(ctx context.Context, userID string) ([]CharacterView, error) {
	chars, err := e.Repo.ListCharactersForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return viewsOf(chars)
}

// PlayerSheets is ProjectPlayers with progression attached.
func (e Engine) PlayerSheets(ctx context.Context, projectID string) ([]CharacterView, error) {
	chars, err := e.ProjectPlayers(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return viewsOf(chars)
}

func viewsOf(chars []domain.Character) ([]CharacterView, error) {
	res := make([]CharacterView, 0, len(chars))
	for _, c := range chars {
		v, err := viewOf(c)
		if err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, nil
}
