package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-account-service/config"
	mailtpl "github.com/oksasatya/go-account-service/pkg/mailer/templates"
)

// ErrBadJob marks a message that can never be delivered and must not be requeued.
var ErrBadJob = errors.New("bad email job")

// Processor renders queued jobs and hands them to a Sender.
type Processor struct {
	Cfg         *config.Config
	Sender      Sender
	Logger      *logrus.Logger
	SendTimeout time.Duration
	Now         func() time.Time
}

func NewProcessor(cfg *config.Config, sender Sender, logger *logrus.Logger) *Processor {
	return &Processor{Cfg: cfg, Sender: sender, Logger: logger, SendTimeout: 15 * time.Second, Now: time.Now}
}

// Compose returns the subject and bodies for job, rendering its template when set.
func (p *Processor) Compose(job EmailJob) (subject, text, html string, err error) {
	if strings.TrimSpace(job.To) == "" {
		return "", "", "", fmt.Errorf("%w: missing recipient", ErrBadJob)
	}
	if job.Template == "" {
		if job.Subject == "" || (job.Text == "" && job.HTML == "") {
			return "", "", "", fmt.Errorf("%w: no template and no body", ErrBadJob)
		}
		return job.Subject, job.Text, job.HTML, nil
	}
	if !mailtpl.Known(job.Template) {
		return "", "", "", fmt.Errorf("%w: unknown template %q", ErrBadJob, job.Template)
	}
	data := mailtpl.FromJobData(p.Cfg, job.Template, job.To, job.Data, mailtpl.WithTime(p.Now()))
	subject, text, html, err = mailtpl.Render(job.Template, data)
	if err != nil {
		return "", "", "", fmt.Errorf("%w: %v", ErrBadJob, err)
	}
	return subject, text, html, nil
}

// Handle decodes, renders and sends one message body. Errors wrapping ErrBadJob
// are permanent; any other error is a delivery failure worth retrying.
func (p *Processor) Handle(ctx context.Context, body []byte) error {
	var job EmailJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("%w: %v", ErrBadJob, err)
	}
	subject, text, html, err := p.Compose(job)
	if err != nil {
		return err
	}

	c, cancel := context.WithTimeout(ctx, p.SendTimeout)
	defer cancel()
	if err := p.Sender.Send(c, job.To, subject, text, html); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	if p.Logger != nil {
		p.Logger.WithFields(logrus.Fields{"template": job.Template, "to": job.To}).Info("email sent")
	}
	return nil
}
