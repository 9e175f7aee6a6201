package service

import (
	"context"

	"github.com/Hajira-org/hajira-chat/assist-service/internal/domain"
	"github.com/Hajira-org/hajira-chat/pkg/wire"
)

type AssistService interface {
	// Suggest returns a short continuation of the draft in req.
	Suggest(ctx context.Context, req wire.SuggestRequest) (string, error)
	// Chat answers question given prior turns. authorization is forwarded
	// to the job board when building the job summary.
	Chat(ctx context.Context, question string, history []domain.ChatTurn, authorization string) (string, error)
	// JobSummary never fails; it falls back to a fixed sentence.
	JobSummary(ctx context.Context, authorization string) string
}
