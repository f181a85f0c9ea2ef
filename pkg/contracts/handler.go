package contracts

import (
	"context"

	"github.com/julienschmidt/httprouter"
)

type Handler interface {
	RegisterRoutes(*httprouter.Router)
}

// Worker is a long-running background loop owned by the application, such
// as a message consumer. Start blocks until ctx is done or Close is called.
type Worker interface {
	Start(ctx context.Context) error
	Close() error
}
