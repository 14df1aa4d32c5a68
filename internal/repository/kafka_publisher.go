package repository

import (
	"context"
	"fmt"

	"TrendScan/internal/domain/models"
	domrepo "TrendScan/internal/domain/repository"
	"TrendScan/pkg/kafka"
)

// KafkaPublisher emits scan output to Kafka topics, keyed by symbol so all
// records for one asset land on the same partition.
type KafkaPublisher struct {
	producer      *kafka.Producer
	signalTopic   string
	backtestTopic string
}

func NewKafkaPublisher(producer *kafka.Producer, signalTopic string) *KafkaPublisher {
	return &KafkaPublisher{
		producer:      producer,
		signalTopic:   signalTopic,
		backtestTopic: signalTopic + ".backtests",
	}
}

func (p *KafkaPublisher) StoreSignal(ctx context.Context, rec *models.SignalRecord) error {
	if err := p.producer.Publish(ctx, p.signalTopic, []byte(rec.Symbol), rec); err != nil {
		return fmt.Errorf("publish signal: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) StoreBacktest(ctx context.Context, symbol string, m *models.BacktestMetrics) error {
	payload := struct {
		Symbol  string                  `json:"symbol"`
		Metrics *models.BacktestMetrics `json:"metrics"`
	}{Symbol: symbol, Metrics: m}
	if err := p.producer.Publish(ctx, p.backtestTopic, []byte(symbol), payload); err != nil {
		return fmt.Errorf("publish backtest: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

var _ domrepo.ResultSink = (*KafkaPublisher)(nil)
