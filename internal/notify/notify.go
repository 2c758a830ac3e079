// Package notify tells a restaurant that one of its listings was claimed.
//
// Two implementations of service.ClaimNotifier live here:
//
//	Mailer     → queues an email and sends it over SMTP in the background
//	LogNotifier → writes the notification to the log (no SMTP configured)
//
// Sending happens off the request path. A claim never waits on, or fails
// because of, the mail server.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"gopkg.in/gomail.v2"

	"github.com/sakif/foodbridge/internal/metrics"
	"github.com/sakif/foodbridge/internal/model"
)

const DefaultQueueSize = 64

// ErrQueueFull is returned when a notification is dropped because the
// background sender is behind.
var ErrQueueFull = errors.New("notify: queue full")

// ErrStopped is returned for notifications submitted after Stop.
var ErrStopped = errors.New("notify: mailer stopped")

// Config holds SMTP settings. Host empty means mail is disabled.
type Config struct {
	Host      string
	Port      int
	User      string
	Password  string
	From      string
	QueueSize int
}

func (c Config) Enabled() bool { return strings.TrimSpace(c.Host) != "" }

// Sender delivers prepared messages. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer sends claim notifications through a single background worker.
type Mailer struct {
	sender Sender
	from   string
	logger *slog.Logger

	queue     chan *gomail.Message
	done      chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	stopped   bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewMailer builds a Mailer that dials the configured SMTP server.
func NewMailer(cfg Config, logger *slog.Logger) *Mailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	return NewMailerWithSender(d, from, cfg.QueueSize, logger)
}

// NewMailerWithSender builds a Mailer over any Sender.
func NewMailerWithSender(sender Sender, from string, queueSize int, logger *slog.Logger) *Mailer {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Mailer{
		sender: sender,
		from:   from,
		logger: logger,
		queue:  make(chan *gomail.Message, queueSize),
		done:   make(chan struct{}),
	}
}

// Start launches the background sender. Calling it more than once is a no-op.
func (m *Mailer) Start() {
	m.startOnce.Do(func() {
		m.logger.Info("starting claim mailer", slog.Int("queueSize", cap(m.queue)))
		m.wg.Add(1)
		go m.worker()
	})
}

// Stop refuses new notifications, sends whatever is already queued, and
// waits for the worker to exit.
func (m *Mailer) Stop() {
	m.stopOnce.Do(func() {
		m.logger.Info("shutting down claim mailer")
		m.mu.Lock()
		m.stopped = true
		m.mu.Unlock()
		close(m.done)
		m.wg.Wait()
	})
}

// NotifyClaim queues an email to the donor. It never blocks.
func (m *Mailer) NotifyClaim(_ context.Context, donor *model.User, food *model.Food) error {
	if donor == nil || food == nil {
		return errors.New("notify: donor and food are required")
	}
	if donor.Email == "" {
		return fmt.Errorf("notify: donor %s has no email", donor.ID)
	}

	msg := m.claimMessage(donor, food)

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.stopped {
		metrics.RecordNotification("dropped")
		return ErrStopped
	}

	select {
	case m.queue <- msg:
		return nil
	default:
		metrics.RecordNotification("dropped")
		return ErrQueueFull
	}
}

func (m *Mailer) worker() {
	defer m.wg.Done()

	for {
		select {
		case msg := <-m.queue:
			m.send(msg)
		case <-m.done:
			for {
				select {
				case msg := <-m.queue:
					m.send(msg)
				default:
					return
				}
			}
		}
	}
}

func (m *Mailer) send(msg *gomail.Message) {
	to := strings.Join(msg.GetHeader("To"), ",")
	if err := m.sender.DialAndSend(msg); err != nil {
		metrics.RecordNotification("failed")
		m.logger.Error("failed to send claim email",
			slog.String("to", to),
			slog.String("error", err.Error()),
		)
		return
	}
	metrics.RecordNotification("sent")
	m.logger.Debug("claim email sent", slog.String("to", to))
}

func (m *Mailer) claimMessage(donor *model.User, food *model.Food) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", donor.Email)
	msg.SetHeader("Subject", fmt.Sprintf("Your donation %q has been claimed", food.Title))
	msg.SetBody("text/plain", claimBody(donor, food))
	return msg
}

func claimBody(donor *model.User, food *model.Food) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", donor.Name)
	fmt.Fprintf(&b, "Your listing %q has been claimed.\n", food.Title)

	if d := food.NGODetails; d != nil {
		b.WriteString("\nPickup details:\n")
		writeLine(&b, "NGO", d.Name)
		writeLine(&b, "Phone", d.Phone)
		writeLine(&b, "Email", d.Email)
		writeLine(&b, "Address", d.Address)
		writeLine(&b, "Pickup time", d.PickupTime)
		writeLine(&b, "Notes", d.Notes)
	}

	b.WriteString("\nPlease mark the donation as completed once it has been picked up.\n")
	return b.String()
}

func writeLine(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "  %s: %s\n", label, value)
}

// LogNotifier records claims in the log. Used when SMTP is not configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyClaim(_ context.Context, donor *model.User, food *model.Food) error {
	attrs := []any{
		slog.String("donorID", donor.ID),
		slog.String("foodID", food.ID),
		slog.String("title", food.Title),
	}
	if food.NGODetails != nil {
		attrs = append(attrs,
			slog.String("ngo", food.NGODetails.Name),
			slog.String("pickupTime", food.NGODetails.PickupTime),
		)
	}
	n.logger.Info("donation claimed", attrs...)
	metrics.RecordNotification("logged")
	return nil
}
