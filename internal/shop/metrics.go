package shop

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"MiniBasket/internal/basket"
)

// BasketMetrics counts basket mutations and promotion payouts.
type BasketMetrics struct {
	Mutations   *prometheus.CounterVec
	FreeOranges prometheus.Counter
}

func NewBasketMetrics(reg prometheus.Registerer) *BasketMetrics {
	m := &BasketMetrics{
		Mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "basket_mutations_total",
				Help: "Basket mutations by operation",
			},
			[]string{"op"},
		),
		FreeOranges: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "basket_free_oranges_granted_total",
				Help: "Free oranges added by the apple promotion",
			},
		),
	}

	reg.MustRegister(m.Mutations, m.FreeOranges)
	return m
}

func (m *BasketMetrics) BasketChanged(_ context.Context, ev basket.Event) {
	m.Mutations.WithLabelValues(string(ev.Op)).Inc()
	if ev.FreeOrangesAdded > 0 {
		m.FreeOranges.Add(float64(ev.FreeOrangesAdded))
	}
}
