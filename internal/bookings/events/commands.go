package events

import (
	"context"
	"errors"
	"net/http"

	apperrors "bikerent/pkg/errors"
	"bikerent/pkg/kafka"
	"bikerent/pkg/logger"
	"bikerent/pkg/model"
)

const CommandCancelRequested = "booking.cancel_requested"

// CancelCommand asks for a confirmed booking to be cancelled on behalf of
// its owner, for example by a support tool.
type CancelCommand struct {
	BookingID string `json:"booking_id"`
	UserID    string `json:"user_id"`
	Reason    string `json:"reason,omitempty"`
}

type Canceller interface {
	Cancel(ctx context.Context, id, userID string) (*model.Booking, error)
}

// CancelCommandHandler consumes booking commands. Commands that can never
// succeed are marked as business errors so the consumer dead-letters them
// without retrying; store failures are retried.
func CancelCommandHandler(svc Canceller, log *logger.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		if msg.GetEventType() != CommandCancelRequested {
			log.Debug("ignoring booking command", "event_type", msg.GetEventType(), "event_id", msg.GetEventID())
			return nil
		}

		var cmd CancelCommand
		if err := msg.DecodeValue(&cmd); err != nil {
			return err
		}
		if cmd.BookingID == "" || cmd.UserID == "" {
			return kafka.NewPermanentError("invalid cancel command", errors.New("booking_id and user_id are required"))
		}

		b, err := svc.Cancel(ctx, cmd.BookingID, cmd.UserID)
		if err == nil {
			log.Info("booking cancelled from command",
				"booking_id", b.ID,
				"user_id", cmd.UserID,
				"reason", cmd.Reason,
				"event_id", msg.GetEventID(),
			)
			return nil
		}

		appErr := apperrors.AsAppError(err)
		switch {
		case appErr == nil:
			return kafka.NewTransientError("cancel booking", err)
		case appErr.Code == apperrors.CodeConflict:
			// Already cancelled; redelivery of a processed command.
			log.Info("cancel command already applied", "booking_id", cmd.BookingID, "event_id", msg.GetEventID())
			return nil
		case appErr.StatusCode() >= http.StatusInternalServerError:
			return kafka.NewTransientError("cancel booking", err)
		default:
			return kafka.NewBusinessError("cancel booking rejected", err)
		}
	}
}
