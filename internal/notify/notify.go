package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/DoyleJ11/auction-backend/internal/engine"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const DefaultSubject = "auction.sales"

// Sale is the record published once per closed item.
type Sale struct {
	ItemID         string    `json:"itemId"`
	ItemNickname   string    `json:"itemNickname"`
	WinnerTeam     string    `json:"winnerTeam"`
	WinnerNickname string    `json:"winnerNickname"`
	FinalBid       int       `json:"finalBid"`
	Sold           bool      `json:"sold"`
	Forced         bool      `json:"forced"`
	Raffle         bool      `json:"raffle"`
	ClosedAt       time.Time `json:"closedAt"`
}

func NewSale(r engine.SaleResult, raffle bool, at time.Time) Sale {
	return Sale{
		ItemID:         r.ItemID,
		ItemNickname:   r.ItemNickname,
		WinnerTeam:     r.WinnerTeam,
		WinnerNickname: r.WinnerNickname,
		FinalBid:       r.FinalBid,
		Sold:           r.Sold,
		Forced:         r.Forced,
		Raffle:         raffle,
		ClosedAt:       at.UTC(),
	}
}

// Publisher fans sale results out to other systems. Publish must not block
// the caller on the network.
type Publisher interface {
	Publish(s Sale) error
	Close()
}

type Nop struct{}

func (Nop) Publish(Sale) error { return nil }
func (Nop) Close()             {}

// NATSPublisher publishes sales on a core NATS subject.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
}

func Connect(url, subject string, log *zap.Logger) (*NATSPublisher, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	opts := []nats.Option{
		nats.Name("auctiond"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error("nats error", zap.Error(err))
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSPublisher{nc: nc, subject: subject}, nil
}

func (p *NATSPublisher) Publish(s Sale) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal sale: %w", err)
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish sale: %w", err)
	}
	return nil
}

func (p *NATSPublisher) Close() {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
}
