package notify

import (
	"context"

	"github.com/oksasatya/go-account-service/internal/application"
	"github.com/oksasatya/go-account-service/pkg/mailer"
)

// Publisher puts a JSON message on the email queue.
type Publisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// QueueNotifier turns account notifications into email jobs for the worker.
type QueueNotifier struct {
	Pub Publisher
}

func NewQueueNotifier(pub Publisher) *QueueNotifier {
	return &QueueNotifier{Pub: pub}
}

func (n *QueueNotifier) Notify(ctx context.Context, note application.Notification) error {
	return n.Pub.PublishJSON(ctx, ToEmailJob(note))
}

// ToEmailJob maps a notification onto the template of the same kind.
func ToEmailJob(note application.Notification) mailer.EmailJob {
	data := map[string]any{"Name": note.Name, "Email": note.To}
	if len(note.Changes) > 0 {
		changes := make(map[string]any, len(note.Changes))
		for k, v := range note.Changes {
			changes[k] = v
		}
		data["Changes"] = changes
	}
	return mailer.EmailJob{
		To:       note.To,
		Template: note.Kind,
		Data:     data,
	}
}
