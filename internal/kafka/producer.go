package kafka

import (
	"context"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

type Producer struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}
}

func NewProducer(brokers []string, topic string, buf int) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        true, // fire-and-forget untuk throughput; log error di loop
		},
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer func() {
			_ = p.w.Close()
			close(p.closeCh)
		}()
		for {
			select {
			case <-ctx.Done():
				// inbox milik pengirim dan ditutup lewat Close, bukan di
				// sini. Flush yang terlanjur masuk buffer lalu berhenti.
				for {
					select {
					case m, ok := <-p.inbox:
						if !ok {
							return
						}
						p.write(m)
					default:
						return
					}
				}
			case m, ok := <-p.inbox:
				if !ok {
					return
				}
				p.write(m)
			}
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		log.Printf("kafka: write %s key=%s: %v", p.w.Topic, m.Key, err)
	}
}

func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) {
	p.inbox <- kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
}

// Tutup channel supaya goroutine nge-flush sisa pesan lalu exit rapi.
func (p *Producer) Close() { close(p.inbox) }

// Tunggu sampai goroutine selesai.
func (p *Producer) WaitClosed() { <-p.closeCh }
