package service

import (
	"context"

	"github.com/cuenta-expense-bot/internal/domain/shared"
)

// TurnService processes one inbound chat message end to end.
type TurnService interface {
	HandleTurn(ctx context.Context, msg *shared.InboundMessage) error
}
