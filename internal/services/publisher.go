package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/condor"
	"github.com/xingfanxia/iron-condor-combo-finder/internal/config"
	api "github.com/xingfanxia/iron-condor-combo-finder/pkg/contracts/api/v1"
)

// MessagePublisher is the publishing side of a NATS connection
type MessagePublisher interface {
	Publish(subject string, data []byte) error
}

// PublishedResult is the message body of a result publication
type PublishedResult struct {
	TraceID     string                  `json:"trace_id"`
	Symbol      string                  `json:"symbol"`
	Spot        float64                 `json:"spot"`
	Relaxed     bool                    `json:"relaxed"`
	PublishedAt time.Time               `json:"published_at"`
	Candidates  []api.CandidateResponse `json:"candidates"`
	Rejections  condor.RejectionStats   `json:"rejections"`
	Parameters  condor.SearchParameters `json:"parameters"`
}

// NATSPublisher publishes results to <prefix>.<symbol>
type NATSPublisher struct {
	conn   MessagePublisher
	prefix string
	drain  func() error
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// ConnectNATS dials cfg.NATSURL. The connection reconnects forever; a
// publish while disconnected is buffered by the client.
func ConnectNATS(cfg config.PublishConfig, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With(slog.String("service", "nats"))

	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name(config.AppBinary),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", cfg.NATSURL, err)
	}

	p := NewNATSPublisher(nc, cfg.SubjectPrefix, logger)
	p.drain = nc.Drain
	log.Info("connected to nats",
		slog.String("url", nc.ConnectedUrl()),
		slog.String("subject_prefix", p.prefix))
	return p, nil
}

// NewNATSPublisher wraps an established connection
func NewNATSPublisher(conn MessagePublisher, prefix string, logger *slog.Logger) *NATSPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = config.DefaultSubjectPrefix
	}
	return &NATSPublisher{
		conn:   conn,
		prefix: prefix,
		logger: logger.With(slog.String("service", "nats")),
	}
}

// Subject returns the subject for symbol. Characters NATS reserves are
// removed, so "$SPX" publishes to "<prefix>.SPX".
func (p *NATSPublisher) Subject(symbol string) string {
	token := strings.Map(func(r rune) rune {
		switch r {
		case '$', '.', '*', '>', ' ', '\t':
			return -1
		}
		return r
	}, strings.ToUpper(symbol))
	if token == "" {
		token = "UNKNOWN"
	}
	return p.prefix + "." + token
}

// Publish sends result as JSON
func (p *NATSPublisher) Publish(ctx context.Context, result *condor.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrPublisherClosed
	}

	msg := PublishedResult{
		TraceID:     result.Trace.TraceID,
		Symbol:      result.Symbol,
		Spot:        result.Spot,
		Relaxed:     result.Relaxed,
		PublishedAt: time.Now().UTC(),
		Candidates:  make([]api.CandidateResponse, 0, len(result.Candidates)),
		Rejections:  result.Trace.Rejections,
		Parameters:  result.Params,
	}
	for i, c := range result.Candidates {
		msg.Candidates = append(msg.Candidates, api.NewCandidateResponse(i+1, c))
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	subject := p.Subject(result.Symbol)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	p.logger.DebugContext(ctx, "result published",
		slog.String("subject", subject),
		slog.Int("candidates", len(msg.Candidates)),
		slog.Int("bytes", len(data)))
	return nil
}

// Close drains the connection when it was opened by ConnectNATS
func (p *NATSPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	if p.drain != nil {
		return p.drain()
	}
	return nil
}
