package lobby

import (
	"context"

	domain "fitclub/internal/domain/lobby"
)

// Store persists Lobby state.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Lobby, error)
	Save(ctx context.Context, value domain.Lobby) error
	// ListByStatus returns lobbies in the given status, oldest first.
	ListByStatus(ctx context.Context, status string) ([]domain.Lobby, error)
}

// RequestStore persists join requests.
type RequestStore interface {
	GetRequest(ctx context.Context, id string) (domain.JoinRequest, error)
	SaveRequest(ctx context.Context, value domain.JoinRequest) error
	ListPendingByLobby(ctx context.Context, lobbyID string) ([]domain.JoinRequest, error)
}
