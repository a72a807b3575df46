package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/freshmarket/storefront-backend/api/responses"
	"github.com/freshmarket/storefront-backend/api/validators"
	"github.com/freshmarket/storefront-backend/pkg/db/models"
	"github.com/freshmarket/storefront-backend/pkg/enums"
	pkgerrors "github.com/freshmarket/storefront-backend/pkg/errors"
	"github.com/freshmarket/storefront-backend/pkg/logger"
	"github.com/freshmarket/storefront-backend/pkg/outbox"
	"github.com/freshmarket/storefront-backend/pkg/pagination"
)

// DeadLetters is the admin view over events the relay gave up on.
type DeadLetters interface {
	List(ctx context.Context, filter outbox.DeadLetterFilter) ([]models.OutboxDLQ, error)
	Requeue(ctx context.Context, eventID uuid.UUID) error
}

type deadLetterDTO struct {
	EventID      uuid.UUID `json:"eventId"`
	EventType    string    `json:"eventType"`
	AggregateID  uuid.UUID `json:"aggregateId"`
	Reason       string    `json:"reason"`
	Error        string    `json:"error,omitempty"`
	AttemptCount int       `json:"attemptCount"`
	FailedAt     time.Time `json:"failedAt"`
}

func AdminListDeadLetters(store DeadLetters, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter := outbox.DeadLetterFilter{Limit: limit}
		if raw := strings.TrimSpace(r.URL.Query().Get("reason")); raw != "" {
			reason, err := enums.ParseOutboxDLQErrorReason(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reason").
					WithDetails(map[string]any{"field": "reason"}))
				return
			}
			filter.Reason = reason
		}

		rows, err := store.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list dead letters"))
			return
		}
		out := make([]deadLetterDTO, 0, len(rows))
		for _, row := range rows {
			dto := deadLetterDTO{
				EventID:      row.EventID,
				EventType:    string(row.EventType),
				AggregateID:  row.AggregateID,
				Reason:       string(row.ErrorReason),
				AttemptCount: row.AttemptCount,
				FailedAt:     row.FailedAt,
			}
			if row.ErrorMessage != nil {
				dto.Error = *row.ErrorMessage
			}
			out = append(out, dto)
		}
		responses.WriteSuccess(w, out)
	}
}

// AdminRequeueDeadLetter hands a parked event back to the relay.
func AdminRequeueDeadLetter(store DeadLetters, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, err := validators.ParseUUIDParam(r, "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := store.Requeue(r.Context(), eventID); err != nil {
			if errors.Is(err, outbox.ErrDeadLetterNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "dead letter not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "requeue dead letter"))
			return
		}
		if logg != nil {
			logg.Info(logg.WithField(r.Context(), "event_id", eventID.String()), "outbox.requeued")
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]string{"eventId": eventID.String()})
	}
}
