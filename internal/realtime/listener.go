package realtime

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ayush/thunder-dashboard/backend/internal/store"
)

// Listener holds a dedicated Postgres connection subscribed to the change
// channel. Each notification is resolved to its row through rows and
// published to a Hub.
type Listener struct {
	dsn     string
	hub     *Hub
	rows    RowFetcher
	backoff time.Duration
}

func NewListener(dsn string, hub *Hub, rows RowFetcher) *Listener {
	return &Listener{dsn: dsn, hub: hub, rows: rows, backoff: 2 * time.Second}
}

// Run listens until ctx is cancelled, reconnecting after failures.
func (l *Listener) Run(ctx context.Context) {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Printf("realtime listener: %v (reconnecting in %s)", err, l.backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(l.backoff):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+store.ChangeChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	log.Printf("realtime listener subscribed to %s", store.ChangeChannel)
	// events may have been missed while disconnected
	l.hub.ResyncAll()

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait: %w", err)
		}
		c, err := Decode([]byte(n.Payload))
		if err != nil {
			log.Printf("realtime listener: %v", err)
			continue
		}
		ev, ok, err := Resolve(ctx, l.rows, c)
		if err != nil {
			log.Printf("realtime listener: %v", err)
			l.hub.ResyncAll()
			continue
		}
		if ok {
			l.hub.Publish(ev)
		}
	}
}
